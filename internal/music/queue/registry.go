package queue

import "sync"

// Registry maps guild IDs to their queues. Entries are created on first use
// and live for the whole process.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*GuildQueue
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*GuildQueue)}
}

// Get returns the guild's queue, creating it if absent
func (r *Registry) Get(guildID string) *GuildQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q := New()
	r.queues[guildID] = q
	return q
}

// Len returns the number of known guilds
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
