package checkpoint

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "visionlab"

// KeyringSlot stores the payload in the OS keychain
type KeyringSlot struct {
	service string
	key     string
}

// NewKeyringSlot probes the keychain and returns a slot stored under StorageKey
func NewKeyringSlot() (*KeyringSlot, error) {
	probe := "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)

	return &KeyringSlot{service: keyringService, key: StorageKey}, nil
}

func (k *KeyringSlot) Read() ([]byte, error) {
	data, err := keyring.Get(k.service, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSlotEmpty
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return []byte(data), nil
}

func (k *KeyringSlot) Write(data []byte) error {
	if err := keyring.Set(k.service, k.key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringSlot) Remove() error {
	if err := keyring.Delete(k.service, k.key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
