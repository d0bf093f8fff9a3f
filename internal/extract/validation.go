package extract

import (
	"strings"
)

// DefaultCategories is the taxonomy offered to the model.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Bills & Utilities",
	"Rent",
	"Shopping",
	"Entertainment",
	"Health",
	"Travel",
	"Transfers",
	"Salary",
	"Uncategorized",
}

// CategoryValidator maps model categories onto the taxonomy.
type CategoryValidator struct {
	names      []string
	categories map[string]string // normalized -> canonical name
}

// NewCategoryValidator creates a validator from the given category names.
func NewCategoryValidator(names []string) *CategoryValidator {
	v := &CategoryValidator{categories: make(map[string]string, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v.names = append(v.names, name)
		v.categories[normalizeCategory(name)] = name
	}
	return v
}

// Names returns the canonical category names in taxonomy order.
func (v *CategoryValidator) Names() []string {
	return v.names
}

// Canonical returns the taxonomy spelling of category. Unknown categories map
// to "Uncategorized" and report false.
func (v *CategoryValidator) Canonical(category string) (string, bool) {
	if name, ok := v.categories[normalizeCategory(category)]; ok {
		return name, true
	}
	return "Uncategorized", false
}

// normalizeCategory normalizes a category name for comparison.
// Converts to uppercase and trims whitespace for case-insensitive comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
