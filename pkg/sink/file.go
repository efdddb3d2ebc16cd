package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/bpdoc/pkg/document"
)

// File writes documents under a root directory.
type File struct {
	root string
}

// NewFile returns a File sink rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("file sink: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create %s: %w", dir, err)
	}
	return &File{root: dir}, nil
}

// Name returns "file".
func (f *File) Name() string { return "file" }

// Root returns the output directory.
func (f *File) Root() string { return f.root }

// Write stores doc at <root>/<OutputPath(path)>.
func (f *File) Write(ctx context.Context, path string, doc []byte) error {
	target, err := f.target(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(target, doc)
}

// WriteIndex stores doc at <root>/index.json.
func (f *File) WriteIndex(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(f.root, document.IndexFile), doc)
}

// Remove deletes the document and any directories it leaves empty.
func (f *File) Remove(ctx context.Context, path string) error {
	target, err := f.target(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	f.prune(filepath.Dir(target))
	return nil
}

// ReadIndex returns <root>/index.json.
func (f *File) ReadIndex(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.root, document.IndexFile))
	if os.IsNotExist(err) {
		return nil, ErrNoIndex
	}
	return data, err
}

// target resolves the document file for path, refusing locations outside
// the root.
func (f *File) target(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("file sink: path is required")
	}
	rel := filepath.FromSlash(document.OutputPath(path))
	target := filepath.Join(f.root, rel)
	within, err := filepath.Rel(f.root, target)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file sink: %s escapes the output directory", path)
	}
	return target, nil
}

// prune removes empty directories from dir up to, but excluding, the root.
func (f *File) prune(dir string) {
	root := filepath.Clean(f.root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

var (
	_ Sink        = (*File)(nil)
	_ IndexReader = (*File)(nil)
)
