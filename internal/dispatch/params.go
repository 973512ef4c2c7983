package dispatch

// Params is an ordered set of named call parameters.
//
// Iteration order is insertion order. Setting an existing key replaces its
// value in place; setting a new key appends it. A rename therefore moves a
// key to the end of the order: set under the new name, delete the old.
//
// Params is not safe for concurrent mutation. Each resolution builds its
// own instance and hands it to at most one handler at a time.
type Params struct {
	keys   []string
	values map[string]any
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Set stores value under key. A new key is appended to the order; an
// existing key keeps its position.
func (p *Params) Set(key string, value any) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
// Deleting an absent key is a no-op.
func (p *Params) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.keys)
}

// Keys returns the parameter names in insertion order. The slice is a copy.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
