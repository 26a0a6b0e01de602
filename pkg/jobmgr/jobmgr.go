// Package jobmgr runs named, cancellable delayed jobs.
//
// Scheduling a job under a name that is already pending replaces the old one:
// the old job is cancelled before it fires and only the newest runs.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	jm.Schedule("disconnect:1234", 30*time.Second, func(ctx context.Context) error {
//	    // re-check state, then act
//	    return nil
//	})
//
//	// later, if the reason went away...
//	jm.Cancel("disconnect:1234")
package jobmgr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Job represents a pending or running unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
	id     uint64
}

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	scheduled:disconnect:1234
//	cancelled:disconnect:1234
//	error:disconnect:1234:voice gone
//	done:disconnect:1234
type StatusReporter func(string)

// Manager tracks delayed jobs by name. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	seq      uint64
	Reporter StatusReporter
}

// NewManager creates a new Manager.
// The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// Schedule runs runner after delay unless cancelled or superseded first.
// The runner's context is cancelled if the job is cancelled while running.
func (m *Manager) Schedule(name string, delay time.Duration, runner func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if old, ok := m.jobs[name]; ok {
		old.Cancel()
		m.report("superseded:" + name)
	}
	m.seq++
	job := &Job{Name: name, Cancel: cancel, id: m.seq}
	m.jobs[name] = job
	m.mu.Unlock()

	m.report("scheduled:" + name)

	go func() {
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := runner(ctx)
		if err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		if cur, ok := m.jobs[name]; ok && cur.id == job.id {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
}

// Cancel stops a pending job by name. Returns false if nothing was pending.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return false
	}

	job.Cancel()
	delete(m.jobs, name)
	m.report("cancelled:" + name)
	return true
}

// Pending reports whether a job with the given name is scheduled or running
func (m *Manager) Pending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
// If none are pending: "No jobs are pending."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are pending."
	}
	return fmt.Sprintf("Pending jobs: %s", strings.Join(active, ", "))
}

// CancelAll stops every pending job.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
}

// report delivers lifecycle messages to the reporter if present.
// Called with or without m.mu held; the reporter must not call back into m.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
