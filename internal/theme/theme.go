// Package theme resolves category colors for the rendering layer.
package theme

import (
	"fmt"
	"strings"

	"flametrace/pkg/models"
)

var defaultColors = [models.NumCategories]string{
	models.CategoryCodeUnit:     "#88AE58",
	models.CategoryWorkflow:     "#51A16E",
	models.CategoryMethod:       "#2B8F81",
	models.CategoryFlow:         "#337986",
	models.CategoryDML:          "#285663",
	models.CategorySOQL:         "#5D4963",
	models.CategorySystemMethod: "#5C3444",
}

// Palette maps every category to a color.
type Palette struct {
	colors [models.NumCategories]string
}

// NewPalette applies overrides, keyed by category label, on top of the defaults.
func NewPalette(overrides map[string]string) (*Palette, error) {
	p := &Palette{colors: defaultColors}
	for label, color := range overrides {
		c, err := models.ParseCategory(label)
		if err != nil {
			return nil, fmt.Errorf("theme override: %w", err)
		}
		color = strings.TrimSpace(color)
		if color == "" {
			continue
		}
		p.colors[c] = color
	}
	return p, nil
}

// Color returns the color for c, falling back to the first default for unknown values.
func (p *Palette) Color(c models.Category) string {
	if !c.Valid() {
		return defaultColors[0]
	}
	return p.colors[c]
}
