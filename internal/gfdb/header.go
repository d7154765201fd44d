package gfdb

import (
	"fmt"
	"strings"
)

// Field is a single scalar header value.
type Field struct {
	Name  string
	Value interface{}
}

// Header holds the scalar header parameters of a station file in file order.
type Header struct {
	Fields []Field
}

// Add appends a field to the header.
func (h *Header) Add(name string, value interface{}) {
	h.Fields = append(h.Fields, Field{Name: name, Value: value})
}

// Get returns the value of the named field.
func (h Header) Get(name string) (interface{}, bool) {
	for _, f := range h.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Len returns the number of fields.
func (h Header) Len() int {
	return len(h.Fields)
}

// String renders one "name: value" pair per line.
func (h Header) String() string {
	var b strings.Builder
	for i, f := range h.Fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %v", f.Name, f.Value)
	}
	return b.String()
}
