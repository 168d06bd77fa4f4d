package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategories(t *testing.T) {
	got, ok := ParseCategories([]string{"M", "JS"})
	assert.True(t, ok)
	assert.Equal(t, []Category{CategoryM, CategoryJS}, got)

	_, ok = ParseCategories([]string{"M", "X"})
	assert.False(t, ok)

	got, ok = ParseCategories(nil)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestDriverHasCategory(t *testing.T) {
	d := Driver{Categories: []Category{CategoryJS, CategoryI}}
	assert.True(t, d.HasCategory(CategoryJS))
	assert.False(t, d.HasCategory(CategoryM))
}
