package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), 1, 2, []string{"ppt", "pptx", "pdf"})
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain name", input: "deck.pptx", expected: "deck.pptx"},
		{name: "spaces replaced", input: "my deck v2.pptx", expected: "my_deck_v2.pptx"},
		{name: "path components stripped", input: "../../etc/passwd", expected: "passwd"},
		{name: "non ascii replaced", input: "配方说明.pdf", expected: "pdf"},
		{name: "hidden file prefix stripped", input: ".hidden", expected: "hidden"},
		{name: "empty input", input: "", expected: "file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.input))
		})
	}
}

func TestDirForType(t *testing.T) {
	assert.Equal(t, DirPresentations, DirForType("ppt"))
	assert.Equal(t, DirDocuments, DirForType("pdf"))
	assert.Equal(t, DirAnnotations, DirForType("annotation"))
	assert.Equal(t, DirTemp, DirForType("something-else"))
	assert.Equal(t, DirTemp, DirForType(""))
}

func TestStore(t *testing.T) {
	m := newTestManager(t)

	stored, err := m.Store(7, "ppt", "quarterly deck.pptx", strings.NewReader("slides"))
	require.NoError(t, err)

	assert.Equal(t, "quarterly_deck.pptx", stored.Name)
	assert.Equal(t, "user_7/ppt", stored.Dir)
	assert.Equal(t, int64(len("slides")), stored.Size)
	assert.True(t, strings.HasSuffix(stored.StoredName, "_quarterly_deck.pptx"))
	assert.Greater(t, len(stored.StoredName), len("_quarterly_deck.pptx"), "stored name should carry a unique prefix")

	// File is on disk under the expected path
	data, err := os.ReadFile(filepath.Join(m.root, "user_7", "ppt", stored.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "slides", string(data))

	// No leftover temp files
	entries, err := os.ReadDir(filepath.Join(m.root, "user_7", "ppt"))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), uploadingPrefix), "temp file left behind: %s", entry.Name())
	}
}

func TestStoreRejectsBadExtensions(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Store(1, "ppt", "malware.exe", strings.NewReader("nope"))
	require.ErrorIs(t, err, ErrExtensionNotAllowed)

	_, err = m.Store(1, "ppt", "", strings.NewReader("nope"))
	require.ErrorIs(t, err, ErrEmptyFilename)

	// Annotation sidecars are always accepted
	_, err = m.Store(1, "annotation", "slide_notes.json", strings.NewReader("{}"))
	require.NoError(t, err)
}

func TestStoreEnforcesSizeCap(t *testing.T) {
	m := newTestManager(t) // 1 MB cap

	oversized := strings.NewReader(strings.Repeat("x", 1024*1024+1))

	_, err := m.Store(1, "ppt", "big.pptx", oversized)
	require.ErrorIs(t, err, ErrFileTooLarge)

	usage, err := m.Usage(1)
	require.NoError(t, err)
	assert.Zero(t, usage, "failed upload must not consume quota")
}

func TestStoreEnforcesQuota(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 1, []string{"ppt"}) // 1 MB quota, no file cap

	chunk := strings.Repeat("x", 600*1024)

	_, err := m.Store(1, "ppt", "first.ppt", strings.NewReader(chunk))
	require.NoError(t, err)

	// Second upload would exceed the quota
	_, err = m.Store(1, "ppt", "second.ppt", strings.NewReader(chunk))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// Another user is unaffected
	_, err = m.Store(2, "ppt", "other.ppt", strings.NewReader(chunk))
	require.NoError(t, err)
}

func TestUsage(t *testing.T) {
	m := newTestManager(t)

	usage, err := m.Usage(42)
	require.NoError(t, err)
	assert.Zero(t, usage, "missing user directory counts as zero")

	_, err = m.Store(42, "ppt", "a.ppt", strings.NewReader("12345"))
	require.NoError(t, err)
	_, err = m.Store(42, "pdf", "b.pdf", strings.NewReader("123"))
	require.NoError(t, err)

	usage, err = m.Usage(42)
	require.NoError(t, err)
	assert.Equal(t, int64(8), usage)
}

func TestExistsAndRemove(t *testing.T) {
	m := newTestManager(t)

	stored, err := m.Store(3, "ppt", "deck.ppt", strings.NewReader("x"))
	require.NoError(t, err)

	assert.True(t, m.Exists(stored.Dir, stored.StoredName))

	require.NoError(t, m.Remove(stored.Dir, stored.StoredName))
	assert.False(t, m.Exists(stored.Dir, stored.StoredName))

	err = m.Remove(stored.Dir, stored.StoredName)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
