// Package catalog holds the immutable set of selectable car make/model records.
//
// A Catalog is built once at startup by one of the Load functions and is
// safe for concurrent reads afterwards; it exposes no mutation API.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrLoad reports a catalog source that could not be read or parsed,
	// or that violates integrity (duplicate ids, empty make/model).
	ErrLoad = errors.New("catalog load failed")

	// ErrNotFound reports a lookup for an id that is not in the catalog.
	ErrNotFound = errors.New("car model not found")
)

// CarModel is one selectable make/model record.
type CarModel struct {
	ID    int    `json:"id" yaml:"id"`
	Make  string `json:"make" yaml:"make"`
	Model string `json:"model" yaml:"model"`
}

// Catalog maps selection ids to records.
type Catalog struct {
	records []CarModel
	byID    map[int]CarModel
}

// New builds a catalog from records. Duplicate ids are rejected rather than
// resolved, so a bad source never silently shadows a selection.
func New(records []CarModel) (*Catalog, error) {
	c := &Catalog{
		records: make([]CarModel, 0, len(records)),
		byID:    make(map[int]CarModel, len(records)),
	}

	for i, rec := range records {
		if rec.Make == "" || rec.Model == "" {
			return nil, fmt.Errorf("%w: record %d (id %d) has empty make or model", ErrLoad, i, rec.ID)
		}
		if _, exists := c.byID[rec.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %d at record %d", ErrLoad, rec.ID, i)
		}
		c.byID[rec.ID] = rec
		c.records = append(c.records, rec)
	}

	sort.Slice(c.records, func(i, j int) bool { return c.records[i].ID < c.records[j].ID })

	return c, nil
}

// Lookup returns the record for id, or ErrNotFound.
func (c *Catalog) Lookup(id int) (CarModel, error) {
	rec, ok := c.byID[id]
	if !ok {
		return CarModel{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return rec, nil
}

// Len reports the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// All returns a copy of every record ordered by id.
func (c *Catalog) All() []CarModel {
	out := make([]CarModel, len(c.records))
	copy(out, c.records)
	return out
}

// MakeGroup is the set of models sharing a make, used to build grouped
// selection lists.
type MakeGroup struct {
	Make   string     `json:"make"`
	Models []CarModel `json:"models"`
}

// Makes groups records by make. Groups are ordered by make name and models
// within a group by model name.
func (c *Catalog) Makes() []MakeGroup {
	index := make(map[string]int)
	var groups []MakeGroup

	for _, rec := range c.records {
		i, ok := index[rec.Make]
		if !ok {
			i = len(groups)
			index[rec.Make] = i
			groups = append(groups, MakeGroup{Make: rec.Make})
		}
		groups[i].Models = append(groups[i].Models, rec)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Make < groups[j].Make })
	for _, g := range groups {
		sort.SliceStable(g.Models, func(i, j int) bool { return g.Models[i].Model < g.Models[j].Model })
	}

	return groups
}
