package domain

import (
	"fmt"
	"strings"
)

type Category string

type CategoryInfo struct {
	Value       Category `yaml:"value" json:"value"`
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	// Priority is the base queue priority (0-100) for faxes of this category.
	Priority int  `yaml:"priority" json:"-"`
	Urgent   bool `yaml:"urgent" json:"-"`
}

// Taxonomy is the closed set of categories a fax can be filed under,
// plus one reserved sentinel for anything the classifier could not place.
type Taxonomy struct {
	categories []CategoryInfo
	index      map[Category]CategoryInfo
	unknown    CategoryInfo
}

func NewTaxonomy(categories []CategoryInfo, unknown CategoryInfo) (*Taxonomy, error) {
	unknown.Value = Category(normalizeLabel(string(unknown.Value)))
	if unknown.Value == "" {
		return nil, WrapError(ErrInvalidInput, "new taxonomy", fmt.Errorf("unknown category value is required"))
	}
	if len(categories) == 0 {
		return nil, WrapError(ErrInvalidInput, "new taxonomy", fmt.Errorf("at least one category is required"))
	}

	t := &Taxonomy{
		index:   make(map[Category]CategoryInfo, len(categories)+1),
		unknown: unknown,
	}
	for _, c := range categories {
		c.Value = Category(normalizeLabel(string(c.Value)))
		if c.Value == "" {
			return nil, WrapError(ErrInvalidInput, "new taxonomy", fmt.Errorf("category value is required"))
		}
		if _, dup := t.index[c.Value]; dup || c.Value == unknown.Value {
			return nil, WrapError(ErrInvalidInput, "new taxonomy", fmt.Errorf("duplicate category %q", c.Value))
		}
		t.index[c.Value] = c
		t.categories = append(t.categories, c)
	}
	t.index[unknown.Value] = unknown
	return t, nil
}

// Normalize maps a free-form classifier label onto the taxonomy. Labels that
// are not members map to the unknown sentinel.
func (t *Taxonomy) Normalize(label string) Category {
	c := Category(normalizeLabel(label))
	if _, ok := t.index[c]; ok {
		return c
	}
	return t.unknown.Value
}

func (t *Taxonomy) Contains(c Category) bool {
	_, ok := t.index[c]
	return ok
}

// Assignable reports whether a reviewer may file a fax under c.
func (t *Taxonomy) Assignable(c Category) bool {
	return c != t.unknown.Value && t.Contains(c)
}

func (t *Taxonomy) Unknown() Category {
	return t.unknown.Value
}

func (t *Taxonomy) Lookup(c Category) (CategoryInfo, bool) {
	info, ok := t.index[c]
	return info, ok
}

// Categories lists assignable categories in declaration order followed by the sentinel.
func (t *Taxonomy) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(t.categories)+1)
	out = append(out, t.categories...)
	return append(out, t.unknown)
}

func (t *Taxonomy) Values() []string {
	out := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		out = append(out, string(c.Value))
	}
	return out
}

func normalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
