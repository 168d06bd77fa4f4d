package models

import "time"

// Driver представляет гонщика в рамках одного сезона.
type Driver struct {
	ID            int        `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	CurrentValue  float64    `json:"current_value" db:"current_value"`
	PreviousValue float64    `json:"previous_value" db:"previous_value"`
	Points        float64    `json:"points" db:"points"`
	Categories    []Category `json:"categories" db:"categories"`
	Country       *string    `json:"country,omitempty" db:"country"`
	ImageKey      *string    `json:"-" db:"image_key"`
	ImageURL      *string    `json:"image_url,omitempty" db:"-"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// HasCategory reports whether the driver carries the given class tag.
func (d *Driver) HasCategory(c Category) bool {
	for _, dc := range d.Categories {
		if dc == c {
			return true
		}
	}
	return false
}
