package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlab/pkg/models"
)

func TestNewManagerCreatesSplits(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)
	assert.Equal(t, root, m.RootDir())

	for _, split := range models.Splits {
		info, err := os.Stat(filepath.Join(root, string(split)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestInfoEmpty(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	info, err := m.Info()
	require.NoError(t, err)
	assert.Nil(t, info.Train)
	assert.Nil(t, info.Valid)
	assert.Nil(t, info.Test)
}

func TestSaveAndInfo(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	name, err := m.Save(models.SplitTrain, "cat.jpg", strings.NewReader("12345"))
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", name)

	_, err = m.Save(models.SplitTrain, "dog.png", strings.NewReader("123"))
	require.NoError(t, err)
	_, err = m.Save(models.SplitTest, "bird.jpg", strings.NewReader("1"))
	require.NoError(t, err)

	// leftovers from an interrupted upload are ignored
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(models.SplitTest), "half.jpg.tmp"), []byte("xx"), 0644))

	info, err := m.Info()
	require.NoError(t, err)
	require.NotNil(t, info.Train)
	assert.Equal(t, 2, info.Train.FileCount)
	assert.Equal(t, int64(8), info.Train.TotalSize)
	assert.Nil(t, info.Valid)
	require.NotNil(t, info.Test)
	assert.Equal(t, 1, info.Test.FileCount)
}

func TestSaveOverwrites(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Save(models.SplitValid, "a.jpg", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = m.Save(models.SplitValid, "a.jpg", strings.NewReader("second!"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(m.Dir(models.SplitValid), "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second!", string(data))

	info, err := m.Info()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Valid.FileCount)
}

func TestSaveStripsDirectories(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	name, err := m.Save(models.SplitTrain, "../../etc/passwd.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.jpg", name)
	_, err = os.Stat(filepath.Join(m.Dir(models.SplitTrain), "passwd.jpg"))
	assert.NoError(t, err)

	_, err = m.Save(models.SplitTrain, "..", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = m.Save("holdout", "a.jpg", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Save(models.SplitTest, "a.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, m.Remove(models.SplitTest, "a.jpg"))
	_, err = os.Stat(filepath.Join(m.Dir(models.SplitTest), "a.jpg"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.Remove(models.SplitTest, "a.jpg"))
	assert.Error(t, m.Remove(models.SplitTest, ".."))
	assert.Error(t, m.Remove("holdout", "a.jpg"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "img.png", SanitizeName(`C:\Users\me\img.png`))
	assert.Equal(t, "img.png", SanitizeName("dir/img.png"))
	assert.Equal(t, "", SanitizeName(""))
	assert.Equal(t, "", SanitizeName("."))
}
