package domain

import "time"

// Document is a schemaless key/value bag as held by the document store.
type Document struct {
	ID   string
	Data map[string]any
}

// Snapshot is the full result set of a live query at one point in time.
type Snapshot struct {
	Collection string
	Docs       []Document
	At         time.Time
}

// Filter restricts a query to documents whose top-level Field equals Equals.
// The zero Filter matches every document.
type Filter struct {
	Field  string
	Equals string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Field == ""
}
