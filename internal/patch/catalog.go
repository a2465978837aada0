// Package patch holds the build-indexed catalog of named byte-edit
// categories and the engine that applies them to a client executable.
package patch

import (
	"fmt"
	"sort"
)

// Edit is one fixed-address byte overwrite: Values are written
// sequentially starting at Address.
type Edit struct {
	Address int64
	Values  []byte
}

// Category is a named, ordered group of edits. Categories are grouped by
// the client build they apply to and are immutable once loaded.
type Category struct {
	Name  string
	Edits []Edit
}

// Catalog is the immutable, build-indexed table of patch categories.
type Catalog struct {
	builds map[string][]Category
}

// CatalogError reports invalid catalog data, naming the build and
// category it was found in.
type CatalogError struct {
	Build    string
	Category string
	Message  string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog build %q category %q: %s", e.Build, e.Category, e.Message)
}

// NewCatalog builds a catalog from per-build category lists. Each
// category is checked once here: addresses must be non-negative, values
// non-empty, and edits within one category must not overlap. Distinct
// categories may target the same bytes (alternative patches for the same
// site), so no cross-category check is made.
func NewCatalog(builds map[string][]Category) (*Catalog, error) {
	for build, categories := range builds {
		for _, cat := range categories {
			if cat.Name == "" {
				return nil, &CatalogError{Build: build, Message: "category without a name"}
			}
			if err := checkCategory(build, cat); err != nil {
				return nil, err
			}
		}
	}
	return &Catalog{builds: builds}, nil
}

// EmptyCatalog returns a catalog with no builds. The engine then applies
// no edits for any build.
func EmptyCatalog() *Catalog {
	return &Catalog{builds: map[string][]Category{}}
}

// CategoriesFor returns the categories for a build in catalog order.
// An unknown build yields nil, not an error: the baseline is assumed
// already correct for unrecognized builds.
func (c *Catalog) CategoriesFor(build string) []Category {
	return c.builds[build]
}

// Builds returns the known build identifiers, sorted.
func (c *Catalog) Builds() []string {
	builds := make([]string, 0, len(c.builds))
	for b := range c.builds {
		builds = append(builds, b)
	}
	sort.Strings(builds)
	return builds
}

// ValidateSize checks that every edit of every category for build fits
// inside an image of the given size.
func (c *Catalog) ValidateSize(build string, size int64) error {
	for _, cat := range c.builds[build] {
		for _, edit := range cat.Edits {
			if edit.Address+int64(len(edit.Values)) > size {
				return &CatalogError{
					Build:    build,
					Category: cat.Name,
					Message: fmt.Sprintf("edit at 0x%x (%d bytes) exceeds image size %d",
						edit.Address, len(edit.Values), size),
				}
			}
		}
	}
	return nil
}

func checkCategory(build string, cat Category) error {
	type span struct{ start, end int64 }

	spans := make([]span, 0, len(cat.Edits))
	for _, edit := range cat.Edits {
		if edit.Address < 0 {
			return &CatalogError{
				Build:    build,
				Category: cat.Name,
				Message:  fmt.Sprintf("negative address %d", edit.Address),
			}
		}
		if len(edit.Values) == 0 {
			return &CatalogError{
				Build:    build,
				Category: cat.Name,
				Message:  fmt.Sprintf("edit at 0x%x has no values", edit.Address),
			}
		}
		spans = append(spans, span{start: edit.Address, end: edit.Address + int64(len(edit.Values))})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return &CatalogError{
				Build:    build,
				Category: cat.Name,
				Message:  fmt.Sprintf("overlapping edits at 0x%x", spans[i].start),
			}
		}
	}
	return nil
}
