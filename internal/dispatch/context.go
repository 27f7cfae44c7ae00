package dispatch

// Context is the ordered mapping of registry name to the result that
// registry produced earlier in the same request.
//
// Services receive it read-only; only the Processor appends to it. A nil
// *Context behaves as an empty one.
type Context struct {
	keys   []string
	values map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return newContext(0)
}

func newContext(capacity int) *Context {
	return &Context{
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

// Get returns the result of the named registry, or nil.
func (c *Context) Get(registry string) any {
	v, _ := c.Lookup(registry)
	return v
}

// Lookup returns the result of the named registry and whether that
// registry has run. A registry may legitimately produce a nil result.
func (c *Context) Lookup(registry string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[registry]
	return v, ok
}

// GetString returns the named result when it is a string.
func (c *Context) GetString(registry string) (string, bool) {
	s, ok := c.Get(registry).(string)
	return s, ok
}

// Keys returns the registry names processed so far, in processing order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of registries processed so far.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// set records a registry result. Entries are never overwritten.
func (c *Context) set(registry string, v any) {
	if _, exists := c.values[registry]; exists {
		return
	}
	c.keys = append(c.keys, registry)
	c.values[registry] = v
}
