package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"visionlab/pkg/config"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
)

// Store saves and restores the single workflow checkpoint.
//
// Failures never reach the caller as errors: a failed Save or Clear is
// logged and reported as false, and anything unreadable in the slot
// loads as nil.
type Store struct {
	mu     sync.Mutex
	slot   Slot
	logger logger.Logger
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over slot. A nil logger uses the global one.
func NewStore(slot Slot, log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Store{
		slot:   slot,
		logger: log.WithField("component", "checkpoint"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the slot selected by the configuration and returns a store over it
func Open(cfg config.CheckpointConfig, log logger.Logger) (*Store, error) {
	var (
		slot Slot
		err  error
	)

	switch strings.ToLower(cfg.Backend) {
	case config.BackendFile, "":
		slot, err = NewFileSlot(cfg.Path)
	case config.BackendKeyring:
		slot, err = NewKeyringSlot()
	case config.BackendSQLite:
		slot, err = NewSQLiteSlot(cfg.Path)
	case config.BackendMemory:
		slot = NewMemorySlot()
	default:
		err = fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Passphrase != "" {
		slot, err = NewEncryptedSlot(slot, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	return NewStore(slot, log), nil
}

// Save stamps cp with the current time in epoch milliseconds and
// overwrites the slot with it. A remote "failed" status is stored as "error".
func (s *Store) Save(cp models.Checkpoint) bool {
	cp.Timestamp = s.now().UnixMilli()
	if cp.TrainingStatus != nil {
		normalized := cp.TrainingStatus.Normalized()
		cp.TrainingStatus = &normalized
	}

	if err := cp.Validate(); err != nil {
		s.logger.WithError(err).Error("Refusing to save invalid checkpoint")
		return false
	}

	data, err := json.Marshal(cp)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode checkpoint")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.slot.Write(data); err != nil {
		s.logger.WithError(err).Error("Failed to save checkpoint")
		return false
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"timestamp": cp.Timestamp,
		"bytes":     len(data),
	})
	return true
}

// Load returns the stored checkpoint, or nil when the slot is empty,
// unreadable, malformed, missing a field or fails schema validation
func (s *Store) Load() *models.Checkpoint {
	data := s.read()
	if data == nil {
		return nil
	}

	if err := models.CheckShape(data); err != nil {
		s.logger.WithError(err).Warn("Stored checkpoint is incomplete, ignoring it")
		return nil
	}
	cp := s.decode(data)
	if cp == nil {
		return nil
	}

	if err := cp.Validate(); err != nil {
		s.logger.WithError(err).Warn("Stored checkpoint failed validation, ignoring it")
		return nil
	}
	return cp
}

// LoadUnvalidated decodes the slot without checking the schema. Empty,
// unreadable and malformed slots still load as nil.
func (s *Store) LoadUnvalidated() *models.Checkpoint {
	data := s.read()
	if data == nil {
		return nil
	}
	return s.decode(data)
}

func (s *Store) read() []byte {
	s.mu.Lock()
	data, err := s.slot.Read()
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			s.logger.WithError(err).Error("Failed to read checkpoint")
		}
		return nil
	}
	return data
}

func (s *Store) decode(data []byte) *models.Checkpoint {
	var cp *models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.WithError(err).Warn("Stored checkpoint is malformed, ignoring it")
		return nil
	}
	return cp
}

// Clear removes the checkpoint. Clearing an empty slot succeeds.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.slot.Remove(); err != nil {
		s.logger.WithError(err).Error("Failed to clear checkpoint")
		return false
	}
	s.logger.Debug("Checkpoint cleared")
	return true
}

// Close releases the slot when it holds resources such as a database handle
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.slot.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Exists reports whether the slot holds a decodable checkpoint
func (s *Store) Exists() bool {
	return s.LoadUnvalidated() != nil
}
