package ffmpeg

import "strings"

// EvenPadFilter pads odd frame dimensions up to the next even number, which
// yuv420p requires.
const EvenPadFilter = "pad=ceil(iw/2)*2:ceil(ih/2)*2"

// VideoFilterChain builds video filter chains.
type VideoFilterChain struct {
	filters []string
}

// NewVideoFilterChain creates a new empty filter chain.
func NewVideoFilterChain() *VideoFilterChain {
	return &VideoFilterChain{}
}

// AddEvenPad adds the even-dimension pad filter.
func (c *VideoFilterChain) AddEvenPad() *VideoFilterChain {
	c.filters = append(c.filters, EvenPadFilter)
	return c
}

// Build builds the filter chain into a single filter string.
// Returns empty string if no filters are present.
func (c *VideoFilterChain) Build() string {
	if len(c.filters) == 0 {
		return ""
	}
	return strings.Join(c.filters, ",")
}

// IsEmpty returns true if no filters are present.
func (c *VideoFilterChain) IsEmpty() bool {
	return len(c.filters) == 0
}
