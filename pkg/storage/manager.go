package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"visionlab/pkg/models"
)

const tempSuffix = ".tmp"

// Manager keeps uploaded dataset files in one directory per split
type Manager struct {
	rootDir string
	mu      sync.RWMutex
}

// NewManager creates the split directories under rootDir
func NewManager(rootDir string) (*Manager, error) {
	for _, split := range models.Splits {
		if err := os.MkdirAll(filepath.Join(rootDir, string(split)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", split, err)
		}
	}
	return &Manager{rootDir: rootDir}, nil
}

// RootDir returns the dataset root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// Dir returns the directory holding a split
func (m *Manager) Dir(split models.DatasetSplit) string {
	return filepath.Join(m.rootDir, string(split))
}

// Save stores r under the base name of filename in split, replacing any
// file of that name. It returns the stored name.
func (m *Manager) Save(split models.DatasetSplit, filename string, r io.Reader) (string, error) {
	if _, err := models.ParseSplit(string(split)); err != nil {
		return "", err
	}
	name := SanitizeName(filename)
	if name == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	target := filepath.Join(m.Dir(split), name)
	tempFile := target + tempSuffix

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file from split. A file that is already gone is
// not an error.
func (m *Manager) Remove(split models.DatasetSplit, name string) error {
	if _, err := models.ParseSplit(string(split)); err != nil {
		return err
	}
	base := SanitizeName(name)
	if base == "" {
		return fmt.Errorf("invalid file name %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(filepath.Join(m.Dir(split), base)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Info reports file count and total size per split; a split without
// files is nil
func (m *Manager) Info() (models.Datasets, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out models.Datasets
	for _, split := range models.Splits {
		info, err := m.splitInfo(split)
		if err != nil {
			return models.Datasets{}, err
		}
		out.Set(split, info)
	}
	return out, nil
}

func (m *Manager) splitInfo(split models.DatasetSplit) (*models.DatasetInfo, error) {
	entries, err := os.ReadDir(m.Dir(split))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", split, err)
	}

	info := &models.DatasetInfo{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		info.FileCount++
		info.TotalSize += fi.Size()
	}

	if info.FileCount == 0 {
		return nil, nil
	}
	return info, nil
}

// SanitizeName strips any directory components from an uploaded file name
func SanitizeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}
