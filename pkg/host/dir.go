package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// MountPrefix is the content mount assumed for snapshot files that do not
// carry their own artifact path.
const MountPrefix = "/Game/"

// Dir is a Host backed by a directory of snapshot files (*.json) written by
// the editor-side dumper. Change notifications are produced by [Dir.Scan],
// which compares each file's size and modification time with the previous
// scan.
//
// When several files declare the same artifact path, the lexically first one
// provides the artifact and the others are ignored with a warning.
type Dir struct {
	// Kind, if set, limits Enumerate to artifacts of that class. Change
	// notifications are not filtered.
	Kind string

	root   string
	logger *log.Logger

	mu     sync.Mutex
	files  map[string]fileEntry // keyed by file path
	paths  map[string]string    // artifact path -> file path
	shadow map[string]bool      // duplicate files already warned about
	registry
}

type fileEntry struct {
	ref     ArtifactRef
	size    int64
	modTime time.Time
}

// NewDir returns a Dir host rooted at root. A nil logger uses log.Default().
func NewDir(root string, logger *log.Logger) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open snapshot dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open snapshot dir: %s is not a directory", root)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dir{
		root:   root,
		logger: logger,
		files:  make(map[string]fileEntry),
		paths:  make(map[string]string),
		shadow: make(map[string]bool),
	}, nil
}

// Root returns the snapshot directory.
func (d *Dir) Root() string { return d.root }

// Enumerate walks the directory in lexical order and returns every readable
// snapshot. It also records the current file stamps, so a following Scan
// reports only changes made after enumeration.
func (d *Dir) Enumerate(ctx context.Context) ([]ArtifactRef, error) {
	files, err := d.walk(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dedupe(files)
	d.replace(files)
	d.mu.Unlock()

	refs := make([]ArtifactRef, 0, len(files))
	for _, f := range sortedKeys(files) {
		if ref := files[f].ref; d.Kind == "" || ref.Class == d.Kind {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Read decodes the snapshot for path. Paths not seen by the last Enumerate or
// Scan, or whose file has since disappeared, yield ErrNotFound.
func (d *Dir) Read(ctx context.Context, p string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	file, ok := d.paths[p]
	d.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	a, err := d.decode(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if a.Path != p {
		// The file was rewritten for a different artifact.
		return nil, ErrNotFound
	}
	return a, nil
}

// Subscribe registers lifecycle callbacks fired by Scan.
func (d *Dir) Subscribe(h Handlers) (Subscription, error) {
	return d.subscribe(h), nil
}

// Unsubscribe removes callbacks registered by Subscribe.
func (d *Dir) Unsubscribe(s Subscription) error {
	return d.unsubscribe(s)
}

// Scan rescans the directory and fires added, updated and removed callbacks
// for every difference against the previous scan. Callbacks run on the
// calling goroutine after the internal state has been updated.
func (d *Dir) Scan(ctx context.Context) error {
	files, err := d.walk(ctx)
	if err != nil {
		return err
	}

	type change struct {
		kind eventKind
		ev   Event
	}
	var changes []change

	d.mu.Lock()
	d.dedupe(files)
	current := make(map[string]bool, len(files))
	for _, f := range sortedKeys(files) {
		cur := files[f]
		current[cur.ref.Path] = true
		prevFile, ok := d.paths[cur.ref.Path]
		if !ok {
			changes = append(changes, change{added, Event{Path: cur.ref.Path, Class: cur.ref.Class}})
			continue
		}
		if prev := d.files[prevFile]; prevFile != f || prev.size != cur.size || !prev.modTime.Equal(cur.modTime) {
			changes = append(changes, change{updated, Event{Path: cur.ref.Path, Class: cur.ref.Class}})
		}
	}
	for _, f := range sortedKeys(d.files) {
		if prev := d.files[f]; !current[prev.ref.Path] {
			changes = append(changes, change{removed, Event{Path: prev.ref.Path, Class: prev.ref.Class}})
		}
	}
	d.replace(files)
	d.mu.Unlock()

	for _, c := range changes {
		d.logger.Debug("snapshot changed", "path", c.ev.Path, "kind", c.kind)
		d.fire(c.kind, c.ev)
	}
	return nil
}

// dedupe drops every file that declares an artifact path already provided by
// a lexically earlier file. d.mu must be held.
func (d *Dir) dedupe(files map[string]fileEntry) {
	for f := range d.shadow {
		if _, ok := files[f]; !ok {
			delete(d.shadow, f)
		}
	}
	owner := make(map[string]string, len(files))
	for _, f := range sortedKeys(files) {
		p := files[f].ref.Path
		first, ok := owner[p]
		if !ok {
			owner[p] = f
			delete(d.shadow, f)
			continue
		}
		if !d.shadow[f] {
			d.shadow[f] = true
			d.logger.Warn("duplicate snapshot ignored", "path", p, "file", f, "using", first)
		}
		delete(files, f)
	}
}

// replace swaps in a new file table. d.mu must be held.
func (d *Dir) replace(files map[string]fileEntry) {
	d.files = files
	d.paths = make(map[string]string, len(files))
	for f, e := range files {
		d.paths[e.ref.Path] = f
	}
}

func (d *Dir) walk(ctx context.Context) (map[string]fileEntry, error) {
	files := make(map[string]fileEntry)
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		ref, err := d.header(p)
		if err != nil {
			d.logger.Warn("skipping unreadable snapshot", "file", p, "error", err)
			return nil
		}
		files[p] = fileEntry{ref: ref, size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan snapshot dir: %w", err)
	}
	return files, nil
}

func (d *Dir) header(file string) (ArtifactRef, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return ArtifactRef{}, err
	}
	var h struct {
		Path  string `json:"path"`
		Name  string `json:"name"`
		Class string `json:"class"`
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return ArtifactRef{}, err
	}
	ref := ArtifactRef{Path: h.Path, Name: h.Name, Class: h.Class}
	d.fillLocation(file, &ref.Path, &ref.Name)
	return ref, nil
}

func (d *Dir) decode(file string) (*Artifact, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", file, err)
	}
	d.fillLocation(file, &a.Path, &a.Name)
	return &a, nil
}

// fillLocation derives a missing artifact path and name from the file's
// location: <root>/Props/BP_Door.json becomes /Game/Props/BP_Door.
func (d *Dir) fillLocation(file string, p, name *string) {
	if *p == "" {
		rel, err := filepath.Rel(d.root, file)
		if err != nil {
			return
		}
		*p = MountPrefix + strings.TrimSuffix(filepath.ToSlash(rel), ".json")
	}
	if *name == "" {
		*name = path.Base(*p)
	}
}

func sortedKeys(m map[string]fileEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ Host = (*Dir)(nil)
