// Package fields trims the select list of a query to shrink response
// payloads, via named presets or ad hoc field lists validated against the
// index schema.
package fields

import (
	"fmt"
	"sort"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// Built-in preset names.
const (
	PresetListView   = "list_view"
	PresetDetailView = "detail_view"
	PresetMapView    = "map_view"
)

// Selection is the outcome of validating a field list against the schema.
// Unknown fields are collected as warnings rather than failing the request;
// callers decide whether to proceed with the valid subset or abort.
type Selection struct {
	Valid   []string
	Invalid []string
}

// IsValid reports whether every requested field exists in the schema.
func (s Selection) IsValid() bool { return len(s.Invalid) == 0 }

// Warnings returns one error per unknown field, each matching
// domain.ErrUnknownField.
func (s Selection) Warnings() []error {
	warns := make([]error, 0, len(s.Invalid))
	for _, f := range s.Invalid {
		warns = append(warns, fmt.Errorf("%w: %q", domain.ErrUnknownField, f))
	}
	return warns
}

// Config holds selector construction parameters. Presets and the schema are
// copied at construction and never mutated afterwards, so a Selector is safe
// for concurrent use.
type Config struct {
	// Schema is the set of field names the index exposes.
	Schema []string
	// Essential fields are always included in every selection so that
	// pagination anchors and sort stability survive aggressive trimming.
	// Typically the document key, the primary display field, and a rating
	// or ranking field.
	Essential []string
	// Presets maps preset name to field list. Merged over the built-in
	// presets; an entry with the same name overrides the built-in one.
	Presets map[string][]string
	// DefaultPreset is used when an unknown preset name is requested.
	// Empty means list_view.
	DefaultPreset string
}

// Selector resolves presets and validates field lists against one index
// schema.
type Selector struct {
	schema        map[string]struct{}
	essential     []string
	presets       map[string][]string
	defaultPreset string
}

// New builds a Selector. Essential fields and all preset members must exist
// in the schema.
func New(cfg Config) (*Selector, error) {
	if len(cfg.Schema) == 0 {
		return nil, fmt.Errorf("field selector: empty schema")
	}
	schema := make(map[string]struct{}, len(cfg.Schema))
	for _, f := range cfg.Schema {
		schema[f] = struct{}{}
	}
	for _, f := range cfg.Essential {
		if _, ok := schema[f]; !ok {
			return nil, fmt.Errorf("field selector: essential %w: %q", domain.ErrUnknownField, f)
		}
	}

	presets := builtinPresets(cfg.Schema, cfg.Essential)
	for name, list := range cfg.Presets {
		for _, f := range list {
			if _, ok := schema[f]; !ok {
				return nil, fmt.Errorf("field selector: preset %s has %w: %q", name, domain.ErrUnknownField, f)
			}
		}
		presets[name] = append([]string(nil), list...)
	}

	def := cfg.DefaultPreset
	if def == "" {
		def = PresetListView
	}
	if _, ok := presets[def]; !ok {
		return nil, fmt.Errorf("field selector: default preset %q is not defined", def)
	}

	return &Selector{
		schema:        schema,
		essential:     append([]string(nil), cfg.Essential...),
		presets:       presets,
		defaultPreset: def,
	}, nil
}

// builtinPresets derives the standard presets from the schema. Without a
// caller-supplied override the built-ins stay conservative: list and map
// views carry only the essential fields, detail view carries everything.
func builtinPresets(schema, essential []string) map[string][]string {
	all := append([]string(nil), schema...)
	sort.Strings(all)
	return map[string][]string{
		PresetListView:   append([]string(nil), essential...),
		PresetMapView:    append([]string(nil), essential...),
		PresetDetailView: all,
	}
}

// Validate partitions the requested fields into those present in the schema
// and those unknown. Order of the input is preserved within each partition.
func (s *Selector) Validate(requested []string) Selection {
	var sel Selection
	for _, f := range requested {
		if _, ok := s.schema[f]; ok {
			sel.Valid = append(sel.Valid, f)
		} else {
			sel.Invalid = append(sel.Invalid, f)
		}
	}
	return sel
}

// Preset resolves a preset name to its field list. Unknown names fall back
// to the default preset rather than failing.
func (s *Selector) Preset(name string) []string {
	list, ok := s.presets[name]
	if !ok {
		list = s.presets[s.defaultPreset]
	}
	return append([]string(nil), list...)
}

// Apply decorates the query's select list with the valid subset of the
// requested fields plus the essential fields. The returned Selection reports
// what was dropped; the query itself is always usable.
func (s *Selector) Apply(q query.Query, requested []string) (query.Query, Selection) {
	sel := s.Validate(requested)
	return q.WithSelect(s.withEssentials(sel.Valid)), sel
}

// ApplyPreset decorates the query's select list with a named preset.
func (s *Selector) ApplyPreset(q query.Query, preset string) query.Query {
	return q.WithSelect(s.withEssentials(s.Preset(preset)))
}

// withEssentials prepends the essential fields and deduplicates while
// preserving first-occurrence order.
func (s *Selector) withEssentials(fields []string) []string {
	out := make([]string, 0, len(s.essential)+len(fields))
	seen := make(map[string]struct{}, len(s.essential)+len(fields))
	for _, group := range [][]string{s.essential, fields} {
		for _, f := range group {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
