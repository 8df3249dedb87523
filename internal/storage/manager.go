package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Per-user subdirectories. The conversion pipeline expects uploads routed
// into these fixed locations.
const (
	DirPresentations = "ppt"
	DirDocuments     = "pdf"
	DirAnnotations   = "annotations"
	DirTemp          = "temp"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640

	uploadingPrefix = ".uploading."
)

// Manager stores uploaded files in per-user directories under a single root
// and enforces the per-file size cap and the per-user quota.
type Manager struct {
	root      string
	maxUpload int64
	quota     int64
	allowed   map[string]struct{}
}

// StoredFile describes a file written into a user's upload area.
type StoredFile struct {
	// Name is the sanitized original file name.
	Name string
	// StoredName is the unique on-disk name.
	StoredName string
	// Dir is the directory holding the file, relative to the storage root.
	Dir string
	// Size is the number of bytes written.
	Size int64
}

// NewManager creates a storage manager rooted at root. Size limits are given
// in megabytes, zero disables the corresponding limit.
func NewManager(root string, maxUploadMB, quotaMB int, allowedExtensions []string) *Manager {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &Manager{
		root:      root,
		maxUpload: int64(maxUploadMB) * 1024 * 1024,
		quota:     int64(quotaMB) * 1024 * 1024,
		allowed:   allowed,
	}
}

// MaxUpload returns the per-file size cap in bytes, zero meaning unlimited.
func (m *Manager) MaxUpload() int64 {
	return m.maxUpload
}

// Quota returns the per-user quota in bytes, zero meaning unlimited.
func (m *Manager) Quota() int64 {
	return m.quota
}

// UserDir returns the directory name holding a user's files, relative to the root.
func (m *Manager) UserDir(userID uint64) string {
	return fmt.Sprintf("user_%d", userID)
}

// DirForType maps the upload form's file_type field to a per-user subdirectory.
// Unknown types land in the temp directory, matching what clients relied on.
func DirForType(fileType string) string {
	switch fileType {
	case "ppt":
		return DirPresentations
	case "pdf":
		return DirDocuments
	case "annotation":
		return DirAnnotations
	default:
		return DirTemp
	}
}

// Allowed reports whether the file name carries an accepted extension.
// Annotation sidecars (.json) are always accepted.
func (m *Manager) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "json" {
		return true
	}

	_, ok := m.allowed[ext]

	return ok
}

// SanitizeFilename strips directory components and characters that are not
// safe in a stored file name.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)

	var b strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "file"
	}

	return cleaned
}

// Store writes src into the user's upload area. The file goes through a
// hidden temp name and is renamed into place only after a successful write,
// so readers never observe partial files. Returns ErrExtensionNotAllowed,
// ErrFileTooLarge or ErrQuotaExceeded on policy violations.
func (m *Manager) Store(userID uint64, fileType, filename string, src io.Reader) (*StoredFile, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	name := SanitizeFilename(filename)

	if !m.Allowed(name) {
		return nil, ErrExtensionNotAllowed
	}

	usage, err := m.Usage(userID)
	if err != nil {
		return nil, err
	}

	if m.quota > 0 && usage >= m.quota {
		return nil, ErrQuotaExceeded
	}

	relDir := filepath.Join(m.UserDir(userID), DirForType(fileType))
	absDir := filepath.Join(m.root, relDir)

	if err := os.MkdirAll(absDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	id := uuid.New()
	storedName := hex.EncodeToString(id[:]) + "_" + name

	size, err := m.writeAtomic(absDir, storedName, src, usage)
	if err != nil {
		return nil, err
	}

	log.Debug().Uint64("user_id", userID).Str("file", storedName).
		Int64("size", size).Msg("stored uploaded file")

	return &StoredFile{
		Name:       name,
		StoredName: storedName,
		Dir:        filepath.ToSlash(relDir),
		Size:       size,
	}, nil
}

// writeAtomic copies src to a temp file in dir and renames it to name,
// enforcing the size cap and quota against the copied byte count.
func (m *Manager) writeAtomic(dir, name string, src io.Reader, usage int64) (int64, error) {
	tmpPath := filepath.Join(dir, uploadingPrefix+name)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	discard := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	// Copy at most one byte over the cap so oversized uploads are detected
	// without buffering them in full.
	limit := src
	if m.maxUpload > 0 {
		limit = io.LimitReader(src, m.maxUpload+1)
	}

	written, err := io.Copy(f, limit)
	if err != nil {
		discard()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if m.maxUpload > 0 && written > m.maxUpload {
		discard()
		return 0, ErrFileTooLarge
	}

	if m.quota > 0 && usage+written > m.quota {
		discard()
		return 0, ErrQuotaExceeded
	}

	if err := f.Sync(); err != nil {
		discard()
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return written, nil
}

// Usage returns the number of bytes a user's upload area occupies on disk.
// A missing directory counts as zero.
func (m *Manager) Usage(userID uint64) (int64, error) {
	var total int64

	root := filepath.Join(m.root, m.UserDir(userID))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		total += info.Size()

		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to measure storage usage: %w", err)
	}

	return total, nil
}

// Exists reports whether a stored file is still present on disk.
func (m *Manager) Exists(relDir, storedName string) bool {
	_, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(relDir), storedName))
	return err == nil
}

// Remove deletes a stored file. Returns fs.ErrNotExist (wrapped) when the
// file is already gone so callers can treat that as success.
func (m *Manager) Remove(relDir, storedName string) error {
	path := filepath.Join(m.root, filepath.FromSlash(relDir), storedName)

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stored file: %w", err)
	}

	log.Debug().Str("file", storedName).Msg("removed stored file")

	return nil
}
