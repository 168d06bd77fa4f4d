package models

// Category представляет класс гонщика, соответствующий ENUM в БД.
type Category string

const (
	CategoryM  Category = "M"
	CategoryJS Category = "JS"
	CategoryI  Category = "I"
)

// RequiredCategories — классы, которые обязан покрывать каждый состав.
var RequiredCategories = []Category{CategoryM, CategoryJS, CategoryI}

func (c Category) Valid() bool {
	switch c {
	case CategoryM, CategoryJS, CategoryI:
		return true
	}
	return false
}

// ParseCategories converts raw tag strings into categories, rejecting
// anything outside the fixed enumeration.
func ParseCategories(raw []string) ([]Category, bool) {
	out := make([]Category, 0, len(raw))
	for _, r := range raw {
		c := Category(r)
		if !c.Valid() {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}
