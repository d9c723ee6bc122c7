// Package catalog holds the versioned onboarding template definitions.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/onboarding-api/internal/models"
)

// Catalog is a read-only source of template layers.
// Unknown role or department keys yield an empty overlay.
type Catalog interface {
	Version() string
	Default() []models.TemplateItem
	RoleOverlay(role string) []models.TemplateItem
	DepartmentOverlay(department string) []models.TemplateItem
}

// Definition is the serialised form of a catalog.
type Definition struct {
	Version     string                           `yaml:"version"`
	Default     []models.TemplateItem            `yaml:"default"`
	Roles       map[string][]models.TemplateItem `yaml:"roles"`
	Departments map[string][]models.TemplateItem `yaml:"departments"`
}

// Static is an in-memory catalog built from a validated Definition.
type Static struct {
	version     string
	base        []models.TemplateItem
	roles       map[string][]models.TemplateItem
	departments map[string][]models.TemplateItem
}

// New validates the definition and builds a catalog from it.
func New(def Definition) (*Static, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	c := &Static{
		version:     def.Version,
		base:        clone(def.Default),
		roles:       make(map[string][]models.TemplateItem, len(def.Roles)),
		departments: make(map[string][]models.TemplateItem, len(def.Departments)),
	}
	for key, items := range def.Roles {
		c.roles[NormalizeKey(key)] = clone(items)
	}
	for key, items := range def.Departments {
		c.departments[NormalizeKey(key)] = clone(items)
	}
	return c, nil
}

// Version returns the catalog version recorded on every instance composed from it.
func (c *Static) Version() string { return c.version }

// Default returns the base template sequence.
func (c *Static) Default() []models.TemplateItem { return clone(c.base) }

// RoleOverlay returns the overlay for role.
func (c *Static) RoleOverlay(role string) []models.TemplateItem {
	return clone(c.roles[NormalizeKey(role)])
}

// DepartmentOverlay returns the overlay for department.
func (c *Static) DepartmentOverlay(department string) []models.TemplateItem {
	return clone(c.departments[NormalizeKey(department)])
}

// Roles lists role keys that carry an overlay definition.
func (c *Static) Roles() []string { return keys(c.roles) }

// Departments lists department keys that carry an overlay definition.
func (c *Static) Departments() []string { return keys(c.departments) }

// NormalizeKey folds a role or department name into its lookup form.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Validate checks structural rules for every layer.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("catalog: version is required")
	}
	if len(d.Default) == 0 {
		return fmt.Errorf("catalog: default template is empty")
	}
	if err := validateLayer("default", d.Default); err != nil {
		return err
	}
	if err := validateOverlays("role", d.Roles); err != nil {
		return err
	}
	return validateOverlays("department", d.Departments)
}

func validateOverlays(kind string, overlays map[string][]models.TemplateItem) error {
	seen := make(map[string]string, len(overlays))
	for _, key := range keys(overlays) {
		normalized := NormalizeKey(key)
		if normalized == "" {
			return fmt.Errorf("catalog: %s overlay with empty key", kind)
		}
		if other, dup := seen[normalized]; dup {
			return fmt.Errorf("catalog: %s overlays %q and %q collide", kind, other, key)
		}
		seen[normalized] = key
		if err := validateLayer(kind+" "+key, overlays[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateLayer(layer string, items []models.TemplateItem) error {
	keys := make(map[string]struct{}, len(items))
	for i, item := range items {
		where := fmt.Sprintf("catalog: %s item %d", layer, i+1)
		if strings.TrimSpace(item.Key) == "" {
			return fmt.Errorf("%s: key is required", where)
		}
		if _, dup := keys[item.Key]; dup {
			return fmt.Errorf("%s: duplicate key %q", where, item.Key)
		}
		keys[item.Key] = struct{}{}
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%s (%s): title is required", where, item.Key)
		}
		if item.DueOffsetDays < 0 {
			return fmt.Errorf("%s (%s): dueOffsetDays must not be negative", where, item.Key)
		}
		if !item.DocumentKind.Valid() {
			return fmt.Errorf("%s (%s): unknown documentKind %q", where, item.Key, item.DocumentKind)
		}
		if item.DocumentKind != models.DocumentKindNone && !item.RequiresDocument {
			return fmt.Errorf("%s (%s): documentKind set without requiresDocument", where, item.Key)
		}
		if item.RequiresPsychometricTest != (item.TestID != nil) {
			return fmt.Errorf("%s (%s): requiresPsychometricTest and testId must be set together", where, item.Key)
		}
	}
	return nil
}

func clone(items []models.TemplateItem) []models.TemplateItem {
	if len(items) == 0 {
		return []models.TemplateItem{}
	}
	out := make([]models.TemplateItem, len(items))
	for i, item := range items {
		if item.TestID != nil {
			id := *item.TestID
			item.TestID = &id
		}
		out[i] = item
	}
	return out
}

func keys(m map[string][]models.TemplateItem) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
