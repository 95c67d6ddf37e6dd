package training

import (
	"context"
	"sort"
	"sync"
)

// Manager keeps at most one running poll per job
type Manager struct {
	poller *Poller

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates a manager starting polls with poller
func NewManager(poller *Poller) *Manager {
	return &Manager{
		poller:  poller,
		handles: make(map[string]*Handle),
	}
}

// Watch starts polling jobID unless a poll for it is already running, in
// which case the running handle is returned and started is false
func (m *Manager) Watch(ctx context.Context, jobID string) (h *Handle, started bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.handles[jobID]; ok {
		select {
		case <-existing.Done():
		default:
			return existing, false
		}
	}

	h = m.poller.Start(ctx, jobID)
	m.handles[jobID] = h

	go func() {
		<-h.Done()
		m.mu.Lock()
		if m.handles[jobID] == h {
			delete(m.handles, jobID)
		}
		m.mu.Unlock()
	}()

	return h, true
}

// Stop stops the poll for jobID and reports whether one was running
func (m *Manager) Stop(jobID string) bool {
	m.mu.Lock()
	h, ok := m.handles[jobID]
	m.mu.Unlock()

	if !ok {
		return false
	}
	h.Stop()
	<-h.Done()
	return true
}

// StopAll stops every running poll and waits for them to end
func (m *Manager) StopAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	for _, h := range handles {
		<-h.Done()
	}
}

// Active lists the jobs currently being polled
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.handles))
	for id, h := range m.handles {
		select {
		case <-h.Done():
		default:
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
