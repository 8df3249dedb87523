package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Datastore manages the reference dataset directory. Unlike Manager it works
// on caller-supplied relative paths, so every path is resolved against the
// root and traversal outside it is rejected.
type Datastore struct {
	root    string
	allowed map[string]struct{}
}

// FileInfo describes one entry of the dataset listing.
type FileInfo struct {
	Name         string    `json:"name"`
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
	IsDirectory  bool      `json:"is_directory"`
}

// NewDatastore creates a datastore rooted at root accepting the given
// dataset file extensions.
func NewDatastore(root string, allowedExtensions []string) *Datastore {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &Datastore{
		root:    root,
		allowed: allowed,
	}
}

// Root returns the dataset root directory.
func (d *Datastore) Root() string {
	return d.root
}

// Allowed reports whether the file name carries an accepted dataset extension.
func (d *Datastore) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := d.allowed[ext]

	return ok
}

// Resolve joins rel onto the dataset root. Absolute paths and any path
// escaping the root are rejected with ErrPathOutsideRoot.
func (d *Datastore) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "\\") {
		return "", ErrPathOutsideRoot
	}

	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}

	return filepath.Join(d.root, cleaned), nil
}

// SaveFile writes src to the given relative path. An existing file is backed
// up first and restored if the write fails, so a bad upload never destroys
// the previous dataset version. Reports whether a backup was taken.
func (d *Datastore) SaveFile(rel string, src io.Reader) (bool, error) {
	if rel == "" || strings.HasSuffix(rel, "/") {
		return false, ErrEmptyFilename
	}

	if !d.Allowed(rel) {
		return false, ErrExtensionNotAllowed
	}

	target, err := d.Resolve(rel)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return false, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	backup, backedUp, err := backupExisting(target)
	if err != nil {
		return false, err
	}

	if err := writeDataFile(target, src); err != nil {
		if backedUp {
			if errRestore := os.Rename(backup, target); errRestore != nil {
				log.Error().Err(errRestore).Str("backup", backup).
					Msg("failed to restore dataset backup")
			}
		}

		return backedUp, err
	}

	log.Info().Str("path", rel).Bool("backed_up", backedUp).Msg("dataset file saved")

	return backedUp, nil
}

// backupExisting renames target to a timestamped .bak sibling if it exists.
func backupExisting(target string) (string, bool, error) {
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to stat existing file: %w", err)
	}

	backup := fmt.Sprintf("%s.%d.bak", target, time.Now().Unix())
	if err := os.Rename(target, backup); err != nil {
		return "", false, fmt.Errorf("failed to back up existing file: %w", err)
	}

	return backup, true, nil
}

// writeDataFile copies src through a hidden temp file and renames it into place.
func writeDataFile(target string, src io.Reader) error {
	tmpPath := filepath.Join(filepath.Dir(target), uploadingPrefix+filepath.Base(target))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}

// List walks the dataset tree and returns every entry sorted by modification
// time, newest first. Hidden temp files from interrupted uploads are skipped.
func (d *Datastore) List() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == d.root {
			return nil
		}

		if strings.HasPrefix(entry.Name(), uploadingPrefix) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}

		files = append(files, FileInfo{
			Name:         entry.Name(),
			RelativePath: filepath.ToSlash(rel),
			Size:         info.Size(),
			ModifiedAt:   info.ModTime(),
			IsDirectory:  entry.IsDir(),
		})

		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list dataset files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})

	return files, nil
}

// Stat returns the listing entry for one dataset path.
func (d *Datastore) Stat(rel string) (FileInfo, error) {
	path, err := d.Resolve(rel)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat dataset file: %w", err)
	}

	return FileInfo{
		Name:         info.Name(),
		RelativePath: filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel))),
		Size:         info.Size(),
		ModifiedAt:   info.ModTime(),
		IsDirectory:  info.IsDir(),
	}, nil
}

// Open opens a dataset file for reading after safe resolution.
func (d *Datastore) Open(rel string) (*os.File, os.FileInfo, error) {
	path, err := d.Resolve(rel)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat dataset file: %w", err)
	}

	return f, info, nil
}

// ZipDir streams the given directory as a zip archive to w.
func (d *Datastore) ZipDir(rel string, w io.Writer) error {
	path, err := d.Resolve(rel)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", rel)
	}

	archive := zip.NewWriter(w)

	if err := addFS(archive, os.DirFS(path)); err != nil {
		_ = archive.Close()
		return fmt.Errorf("failed to write zip archive: %w", err)
	}

	return archive.Close()
}

// addFS is (*zip.Writer).AddFS from the standard library, inlined because the
// method requires Go 1.22+ and this module still builds with Go 1.21.
func addFS(w *zip.Writer, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
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
		if !info.Mode().IsRegular() {
			return errors.New("zip: cannot add non-regular file")
		}
		h, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		h.Name = name
		h.Method = zip.Deflate
		fw, err := w.CreateHeader(h)
		if err != nil {
			return err
		}
		f, err := fsys.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(fw, f)
		return err
	})
}
