package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/onboarding-api/internal/catalog"
	"github.com/noah-isme/onboarding-api/internal/models"
)

// Composer layers catalog templates into a concrete checklist.
type Composer struct {
	catalog catalog.Catalog
}

// NewComposer constructs a composer over the given catalog.
func NewComposer(c catalog.Catalog) *Composer {
	return &Composer{catalog: c}
}

// CatalogVersion returns the version of the underlying catalog.
func (c *Composer) CatalogVersion() string {
	return c.catalog.Version()
}

type layeredTemplate struct {
	ref  string
	item models.TemplateItem
}

// Templates returns default, role and department layers in that order, stably sorted by Order.
// Items are never de-duplicated.
func (c *Composer) Templates(role string, department *string) []models.TemplateItem {
	layered := c.layers(role, department)
	out := make([]models.TemplateItem, len(layered))
	for i, l := range layered {
		out[i] = l.item
	}
	return out
}

// Compose materialises unpersisted checklist items due relative to now.
func (c *Composer) Compose(role string, department *string, now time.Time) []models.ChecklistItem {
	layered := c.layers(role, department)
	items := make([]models.ChecklistItem, len(layered))
	for i, l := range layered {
		t := l.item
		items[i] = models.ChecklistItem{
			Position:                 i + 1,
			TemplateRef:              l.ref,
			Title:                    t.Title,
			Description:              t.Description,
			SortOrder:                t.Order,
			DueDate:                  now.AddDate(0, 0, t.DueOffsetDays),
			RequiresDocument:         t.RequiresDocument,
			DocumentKind:             t.DocumentKind,
			RequiresPsychometricTest: t.RequiresPsychometricTest,
			TestID:                   t.TestID,
			UpdatedAt:                now,
		}
	}
	return items
}

func (c *Composer) layers(role string, department *string) []layeredTemplate {
	var combined []layeredTemplate
	appendLayer := func(prefix string, items []models.TemplateItem) {
		for _, item := range items {
			combined = append(combined, layeredTemplate{ref: prefix + item.Key, item: item})
		}
	}
	appendLayer("default:", c.catalog.Default())
	if key := catalog.NormalizeKey(role); key != "" {
		appendLayer("role:"+key+":", c.catalog.RoleOverlay(key))
	}
	if department != nil {
		if key := catalog.NormalizeKey(*department); key != "" {
			appendLayer("department:"+key+":", c.catalog.DepartmentOverlay(key))
		}
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].item.Order < combined[j].item.Order
	})
	return combined
}

func normalizeDepartment(department *string) *string {
	if department == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*department)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
