package checkpoint

import (
	"errors"
	"sync"
)

// StorageKey names the single slot holding the checkpoint in every backend
const StorageKey = "ai_vision_checkpoint"

// ErrSlotEmpty is returned by Slot.Read when nothing has been written
var ErrSlotEmpty = errors.New("checkpoint slot is empty")

// Slot is one durable key-value entry holding the serialized checkpoint
type Slot interface {
	// Read returns the stored payload or ErrSlotEmpty
	Read() ([]byte, error)
	// Write replaces the stored payload
	Write(data []byte) error
	// Remove deletes the payload; removing an empty slot is not an error
	Remove() error
}

// MemorySlot keeps the payload in process memory
type MemorySlot struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemorySlot creates an empty in-memory slot
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Read() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.set {
		return nil, ErrSlotEmpty
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemorySlot) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = append(m.data[:0], data...)
	m.set = true
	return nil
}

func (m *MemorySlot) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	m.set = false
	return nil
}
