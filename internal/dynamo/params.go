package dynamo

import (
	"fmt"
	"strconv"
	"strings"
)

// Params is an ordered parameter set. The zero value is an empty set.
// Values are never modified in place; With and Override return copies.
type Params struct {
	names  []string
	values []float64
}

// NewParams builds a parameter set in the given order. Extra names or
// values beyond the shorter slice are dropped.
func NewParams(names []string, values []float64) Params {
	n := len(names)
	if len(values) < n {
		n = len(values)
	}
	p := Params{
		names:  make([]string, n),
		values: make([]float64, n),
	}
	copy(p.names, names[:n])
	copy(p.values, values[:n])
	return p
}

func (p Params) Len() int { return len(p.names) }

// Index returns the position of name, or -1.
func (p Params) Index(name string) int {
	for i, n := range p.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (p Params) Lookup(name string) (float64, bool) {
	i := p.Index(name)
	if i < 0 {
		return 0, false
	}
	return p.values[i], true
}

// Get returns the value of name, or 0 if the set has no such parameter.
func (p Params) Get(name string) float64 {
	v, _ := p.Lookup(name)
	return v
}

func (p Params) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p Params) Values() []float64 {
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

// With returns a copy with name set to v. Unknown names are appended.
func (p Params) With(name string, v float64) Params {
	c := NewParams(p.names, p.values)
	if i := c.Index(name); i >= 0 {
		c.values[i] = v
		return c
	}
	c.names = append(c.names, name)
	c.values = append(c.values, v)
	return c
}

// Override applies every entry of values, rejecting names the set
// does not already contain.
func (p Params) Override(values map[string]float64) (Params, error) {
	c := NewParams(p.names, p.values)
	for name, v := range values {
		i := c.Index(name)
		if i < 0 {
			return Params{}, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		c.values[i] = v
	}
	return c, nil
}

func (p Params) Map() map[string]float64 {
	m := make(map[string]float64, len(p.names))
	for i, n := range p.names {
		m[n] = p.values[i]
	}
	return m
}

func (p Params) Equal(other Params) bool {
	if len(p.names) != len(other.names) {
		return false
	}
	for i := range p.names {
		if p.names[i] != other.names[i] || p.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

func (p Params) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range p.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(p.values[i], 'g', -1, 64))
	}
	sb.WriteByte('}')
	return sb.String()
}
