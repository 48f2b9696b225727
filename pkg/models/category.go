package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category label is not part of the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the closed set of event categories produced by the log parser.
type Category uint8

const (
	CategoryCodeUnit Category = iota
	CategoryWorkflow
	CategoryMethod
	CategoryFlow
	CategoryDML
	CategorySOQL
	CategorySystemMethod

	// NumCategories is the size of the closed set. Arrays indexed by Category use it.
	NumCategories = int(CategorySystemMethod) + 1
)

var categoryLabels = [NumCategories]string{
	CategoryCodeUnit:     "Code Unit",
	CategoryWorkflow:     "Workflow",
	CategoryMethod:       "Method",
	CategoryFlow:         "Flow",
	CategoryDML:          "DML",
	CategorySOQL:         "SOQL",
	CategorySystemMethod: "System Method",
}

// categoryPriority ranks categories for dominant-category resolution.
// Lower wins; equal values tie and fall through to duration, then count.
var categoryPriority = [NumCategories]int{
	CategoryDML:          0,
	CategorySOQL:         0,
	CategoryMethod:       1,
	CategoryFlow:         2,
	CategoryWorkflow:     2,
	CategoryCodeUnit:     3,
	CategorySystemMethod: 4,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// ParseCategory resolves a label (case-insensitive) to a Category.
func ParseCategory(label string) (Category, error) {
	label = strings.TrimSpace(label)
	for i, l := range categoryLabels {
		if strings.EqualFold(l, label) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, label)
}

// Valid reports whether c is inside the closed set.
func (c Category) Valid() bool {
	return int(c) < NumCategories
}

// Priority returns the fixed priority of c. Lower values win.
func (c Category) Priority() int {
	if !c.Valid() {
		return len(categoryPriority)
	}
	return categoryPriority[c]
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryLabels[c]
}

// MarshalText encodes the category as its label. Used for JSON values and map keys.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(categoryLabels[c]), nil
}

// UnmarshalText decodes a label, rejecting anything outside the closed set.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
