package models

import "fmt"

// SearchQuery is a raw retrieval request against one dataset.
type SearchQuery struct {
	Dataset string `json:"dataset"`
	Query   string `json:"query"`
	K       int    `json:"k,omitempty"`
}

// Validate ensures the query has text and clamps K into [1, maxK].
// defaultK is used when K is unset.
func (q *SearchQuery) Validate(defaultK, maxK int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// AskRequest is one user message sent to a session.
type AskRequest struct {
	Query string `json:"query"`
}

// Validate returns an error if the message is empty.
func (r *AskRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// SessionRequest opens a chat session bound to a dataset.
type SessionRequest struct {
	Dataset string `json:"dataset"`
}
