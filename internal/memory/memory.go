// Package memory holds the bounded recent-turn history of one conversation.
package memory

import "github.com/hyperjump/insightbot/internal/models"

// DefaultCapacity is the number of turns kept when no capacity is given.
const DefaultCapacity = 10

// ConversationMemory keeps at most Capacity turns, evicting the oldest first.
// It is not safe for concurrent use; one session owns one memory.
type ConversationMemory struct {
	turns   []models.Turn // ring buffer
	start   int
	size    int
	nextSeq uint64
}

// New returns an empty memory holding up to capacity turns.
// A non-positive capacity means DefaultCapacity.
func New(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ConversationMemory{turns: make([]models.Turn, capacity), nextSeq: 1}
}

// Append stores turn under the next sequence number, evicting the oldest turn
// when full, and returns it as stored. The caller's SequenceNumber is ignored.
func (m *ConversationMemory) Append(turn models.Turn) models.Turn {
	turn.SequenceNumber = m.nextSeq
	m.nextSeq++
	capacity := len(m.turns)
	if m.size < capacity {
		m.turns[(m.start+m.size)%capacity] = turn
		m.size++
		return turn
	}
	m.turns[m.start] = turn
	m.start = (m.start + 1) % capacity
	return turn
}

// Window returns a copy of the stored turns, oldest first.
func (m *ConversationMemory) Window() []models.Turn {
	out := make([]models.Turn, m.size)
	for i := 0; i < m.size; i++ {
		out[i] = m.turns[(m.start+i)%len(m.turns)]
	}
	return out
}

// Clear empties the memory. Sequence numbers keep increasing afterwards.
func (m *ConversationMemory) Clear() {
	for i := range m.turns {
		m.turns[i] = models.Turn{}
	}
	m.start = 0
	m.size = 0
}

// Len returns the number of stored turns.
func (m *ConversationMemory) Len() int {
	return m.size
}

// Capacity returns the maximum number of stored turns.
func (m *ConversationMemory) Capacity() int {
	return len(m.turns)
}
