// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package measurement implements the ordered name to value mapping attached
// to every object.
package measurement

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"annostore.io/annostore/pkg/annoterr"
)

// Record is a single named measurement. NaN values are encoded as null.
type Record struct {
	Name  string
	Value float64
}

type record struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	out := record{Name: r.Name}
	if !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in record
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Name = in.Name
	r.Value = math.NaN()
	if in.Value != nil {
		r.Value = *in.Value
	}
	return nil
}

// Hooks connect a list to its owner.
type Hooks struct {
	// Guard is called before every write; a non-nil error aborts the write.
	Guard func() error
	// Changed is called after every successful write.
	Changed func()
}

// List is an insertion ordered mapping from names to values.
// Values may be NaN to represent unset measurements.
type List struct {
	hooks  Hooks
	names  []string
	values map[string]float64
}

// New returns an empty list.
func New(hooks Hooks) *List {
	return &List{hooks: hooks, values: map[string]float64{}}
}

// Len returns the number of measurements.
func (list *List) Len() int { return len(list.names) }

// Get returns the value for name or NaN if it does not exist.
func (list *List) Get(name string) float64 {
	if v, ok := list.values[name]; ok {
		return v
	}
	return math.NaN()
}

// Lookup returns the value for name and whether it exists.
func (list *List) Lookup(name string) (float64, bool) {
	v, ok := list.values[name]
	return v, ok
}

// Contains reports whether name exists.
func (list *List) Contains(name string) bool {
	_, ok := list.values[name]
	return ok
}

// At returns the measurement at insertion position i.
func (list *List) At(i int) (Record, error) {
	if i < 0 {
		i += len(list.names)
	}
	if i < 0 || i >= len(list.names) {
		return Record{}, annoterr.ErrIndex.New("measurement %d of %d", i, len(list.names))
	}
	name := list.names[i]
	return Record{Name: name, Value: list.values[name]}, nil
}

// Names returns the names in insertion order.
func (list *List) Names() []string {
	return append([]string(nil), list.names...)
}

// Set adds or replaces a measurement. Replacing keeps the original position.
func (list *List) Set(name string, value float64) error {
	if err := list.guard(); err != nil {
		return err
	}
	list.set(name, value)
	list.changed()
	return nil
}

// Update sets all records in order.
func (list *List) Update(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := list.guard(); err != nil {
		return err
	}
	for _, r := range records {
		list.set(r.Name, r.Value)
	}
	list.changed()
	return nil
}

// Delete removes a measurement. It fails when name does not exist.
func (list *List) Delete(name string) error {
	if !list.Contains(name) {
		return annoterr.ErrKeyNotFound.New("%q", name)
	}
	if err := list.guard(); err != nil {
		return err
	}
	delete(list.values, name)
	for i, n := range list.names {
		if n == name {
			list.names = append(list.names[:i], list.names[i+1:]...)
			break
		}
	}
	list.changed()
	return nil
}

// Clear removes all measurements.
func (list *List) Clear() error {
	if err := list.guard(); err != nil {
		return err
	}
	list.names = nil
	list.values = map[string]float64{}
	list.changed()
	return nil
}

// Records returns all measurements in insertion order.
func (list *List) Records() []Record {
	records := make([]Record, 0, len(list.names))
	for _, name := range list.names {
		records = append(records, Record{Name: name, Value: list.values[name]})
	}
	return records
}

// String implements fmt.Stringer.
func (list *List) String() string {
	parts := make([]string, 0, len(list.names))
	for _, name := range list.names {
		parts = append(parts, fmt.Sprintf("%q: %v", name, list.values[name]))
	}
	return "<Measurements({" + strings.Join(parts, ", ") + "})>"
}

func (list *List) set(name string, value float64) {
	if _, ok := list.values[name]; !ok {
		list.names = append(list.names, name)
	}
	list.values[name] = value
}

func (list *List) guard() error {
	if list.hooks.Guard == nil {
		return nil
	}
	return list.hooks.Guard()
}

func (list *List) changed() {
	if list.hooks.Changed != nil {
		list.hooks.Changed()
	}
}
