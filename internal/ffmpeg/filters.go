package ffmpeg

import "strings"

// VideoFilterChain accumulates -vf entries in application order.
type VideoFilterChain struct {
	filters []string
}

// NewVideoFilterChain returns an empty chain.
func NewVideoFilterChain() *VideoFilterChain {
	return &VideoFilterChain{}
}

// AddCrop appends a crop filter; empty strings are dropped.
func (c *VideoFilterChain) AddCrop(crop string) *VideoFilterChain {
	return c.AddFilter(crop)
}

// AddFilter appends any filter expression; empty strings are dropped.
func (c *VideoFilterChain) AddFilter(filter string) *VideoFilterChain {
	if filter != "" {
		c.filters = append(c.filters, filter)
	}
	return c
}

// Build renders the chain as one comma-joined -vf value, or "" when the
// chain is empty.
func (c *VideoFilterChain) Build() string {
	return strings.Join(c.filters, ",")
}

// IsEmpty reports whether any filter was added.
func (c *VideoFilterChain) IsEmpty() bool {
	return len(c.filters) == 0
}
