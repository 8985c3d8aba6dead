package models

import "time"

// Hit is one retrieved record with its squared L2 distance to the query.
type Hit struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`
	Rank     int     `json:"rank"`
}

// Turn is one completed exchange in a conversation.
type Turn struct {
	UserQuery      string `json:"user_query"`
	BotResponse    string `json:"bot_response"`
	SequenceNumber uint64 `json:"sequence_number"`
}

// TranscriptEntry is a stored turn with its session and time.
type TranscriptEntry struct {
	SessionID string    `json:"session_id"`
	Turn      Turn      `json:"turn"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is the result of answering one user query.
// Fallback is set when an upstream call failed and Response holds the fallback message;
// Cause then carries the failure. Turn is the stored turn on success.
type Answer struct {
	Response string `json:"response"`
	Fallback bool   `json:"fallback"`
	Question string `json:"question"`
	Hits     []Hit  `json:"hits,omitempty"`
	Turn     *Turn  `json:"turn,omitempty"`
	Cause    error  `json:"-"`
}

// Match is one keyword lookup result.
type Match struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// SearchResponse is the response for a raw retrieval request.
type SearchResponse struct {
	Dataset   string `json:"dataset"`
	Query     string `json:"query"`
	Hits      []Hit  `json:"hits"`
	QueryTime int64  `json:"query_time_ms"`
}
