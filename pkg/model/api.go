package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Page limits for run and event listings. A run produces several lifecycle
// events per command, so event pages are allowed to be larger.
const (
	DefaultLimit  = 20
	MaxRunLimit   = 100
	MaxEventLimit = 1000
)

// ListOptions configures run and event queries.
type ListOptions struct {
	Limit  int
	Offset int

	// Run filters.
	State   string
	Program string

	// Event filters.
	Command  string
	Event    EventKind
	FromTick uint64
}

// DefaultListOptions returns the first page with the default limit.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultLimit}
}

// Clamp bounds a run listing.
func (o *ListOptions) Clamp() {
	o.ClampTo(MaxRunLimit)
}

// ClampTo replaces a non-positive limit with the default, caps it at
// maxLimit and floors the offset at zero.
func (o *ListOptions) ClampTo(maxLimit int) {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Page returns the pagination metadata for a listing of total rows.
func (o ListOptions) Page(total int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   o.Limit,
		Offset:  o.Offset,
		HasMore: o.Offset+o.Limit < total,
	}
}
