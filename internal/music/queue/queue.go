// Package queue holds the per-guild playback queue and the registry that owns them.
//
// Nothing in this package locks. A GuildQueue must only be touched from the
// owning guild's serialized lane (see package player).
package queue

import "slices"

// GuildQueue is the playback state of a single guild.
type GuildQueue struct {
	pending []Item
	current *Item
	loop    bool
	shuffle bool
}

// New returns an empty queue
func New() *GuildQueue {
	return &GuildQueue{pending: make([]Item, 0)}
}

// Add appends an item to the pending list
func (q *GuildQueue) Add(item Item) {
	q.pending = append(q.pending, item)
}

// GetNext pops the head of the pending list
func (q *GuildQueue) GetNext() (Item, bool) {
	if len(q.pending) == 0 {
		return Item{}, false
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	return item, true
}

// RemoveAt removes the item at a 0-based position. Out of range is a no-op.
func (q *GuildQueue) RemoveAt(pos int) (Item, bool) {
	if pos < 0 || pos >= len(q.pending) {
		return Item{}, false
	}
	item := q.pending[pos]
	q.pending = slices.Delete(q.pending, pos, pos+1)
	return item, true
}

// Clear empties the pending list and drops the current item
func (q *GuildQueue) Clear() {
	q.pending = q.pending[:0]
	q.current = nil
}

// Len returns the number of pending items, current excluded
func (q *GuildQueue) Len() int {
	return len(q.pending)
}

// Pending returns a copy of the pending list
func (q *GuildQueue) Pending() []Item {
	return slices.Clone(q.pending)
}

// Current returns the item that is playing or paused
func (q *GuildQueue) Current() (Item, bool) {
	if q.current == nil {
		return Item{}, false
	}
	return *q.current, true
}

func (q *GuildQueue) SetCurrent(item Item) {
	q.current = &item
}

func (q *GuildQueue) ClearCurrent() {
	q.current = nil
}

func (q *GuildQueue) Loop() bool { return q.loop }

func (q *GuildQueue) SetLoop(enabled bool) { q.loop = enabled }

// Shuffle reports the shuffle flag. It is stored only; no operation reads it.
func (q *GuildQueue) Shuffle() bool { return q.shuffle }

func (q *GuildQueue) SetShuffle(enabled bool) { q.shuffle = enabled }
