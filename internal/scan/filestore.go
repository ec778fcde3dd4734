package scan

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes one object of a file store.
type FileInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

// FileStore is a flat or hierarchical collection of files. Names are
// slash-separated and relative to the store root.
type FileStore interface {
	List(ctx context.Context) ([]FileInfo, error)
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// LocalStore serves files below a directory of the local file system.
// WebDAV endpoints are served from their mount point.
type LocalStore struct {
	Root string
}

// NewLocalStore accepts a directory path or a file:// URL.
func NewLocalStore(location string) (*LocalStore, error) {
	root := location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		root = u.Path
	}
	if root == "" {
		return nil, fmt.Errorf("empty directory in %q", location)
	}
	return &LocalStore{Root: filepath.Clean(root)}, nil
}

func (s *LocalStore) List(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		out = append(out, FileInfo{Name: filepath.ToSlash(rel), Size: info.Size(), Modified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Root, err)
	}
	return out, nil
}

func (s *LocalStore) ReadFile(ctx context.Context, name string) ([]byte, error) {
	p := filepath.Join(s.Root, filepath.FromSlash(name))
	if !strings.HasPrefix(p, s.Root) {
		return nil, fmt.Errorf("%q escapes %s", name, s.Root)
	}
	return os.ReadFile(p)
}
