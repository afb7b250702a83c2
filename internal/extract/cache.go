package extract

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// Cache wraps Chart with change detection so that callers re-render only when
// the extracted spec logically changes. The retained value starts empty rather
// than "null", so the first Update on text without a spec reports a change to
// nil once; later spec-less updates do not.
type Cache struct {
	mu       sync.Mutex
	last     string // canonical JSON of the last emitted spec; "" before the first Update
	current  model.Spec
	gen      uint64 // bumped by Reset
	onChange func(model.Spec)
}

// NewCache creates a Cache. onChange may be nil.
func NewCache(onChange func(model.Spec)) *Cache {
	return &Cache{onChange: onChange}
}

// Update extracts from text and reports whether the result differs from the
// previous one. onChange is invoked (outside the lock) only on a change,
// including the first transition to "absent".
func (c *Cache) Update(text string) (model.Spec, bool) {
	return c.UpdateAt(c.Generation(), text)
}

// UpdateAt is Update for text read at generation gen. If Reset has run since,
// the result is discarded and no change is reported.
func (c *Cache) UpdateAt(gen uint64, text string) (model.Spec, bool) {
	spec := Chart(text)
	encoded, err := Canonical(spec)
	if err != nil {
		log.Printf("extract: cannot serialize spec: %v", err)
		return c.Current(), false
	}

	c.mu.Lock()
	if gen != c.gen {
		current := c.current
		c.mu.Unlock()
		return current, false
	}
	if encoded == c.last {
		current := c.current
		c.mu.Unlock()
		return current, false
	}
	c.last = encoded
	c.current = spec
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(spec)
	}
	return spec, true
}

// Current returns the last emitted spec.
func (c *Cache) Current() model.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Generation returns the number of Resets so far.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Reset forgets the retained spec. The next Update always reports a change.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = ""
	c.current = nil
	c.gen++
}

// Canonical returns the canonical JSON encoding of spec. Map keys are sorted
// by encoding/json, so structurally equal specs encode identically; an absent
// spec encodes as "null".
func Canonical(spec model.Spec) (string, error) {
	b, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
