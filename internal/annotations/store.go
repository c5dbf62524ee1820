// Package annotations persists per-device customizations (icon, label) and
// the dashboard's "show all users" toggle in a single JSON document shared
// with other dashboard widgets.
package annotations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/metrics"
)

const (
	DefaultPath = "/etc/overview.json"

	filePerm = 0o644

	keyUsers   = "users"
	keyShowAll = "showAllUsers"
	keyIcon    = "icon"
	keyLabel   = "label"
)

// Annotation is the user customization attached to one MAC.
type Annotation struct {
	IconPath string `json:"iconPath,omitempty"`
	Label    string `json:"label,omitempty"`
}

// IsZero reports whether neither field is set.
func (a Annotation) IsZero() bool {
	return a.IconPath == "" && a.Label == ""
}

// Snapshot is an immutable view of the store taken by Load.
type Snapshot struct {
	entries map[string]Annotation
	showAll bool
}

// EmptySnapshot is what a missing or unreadable store yields.
func EmptySnapshot() Snapshot {
	return Snapshot{entries: map[string]Annotation{}, showAll: true}
}

// NewSnapshot builds a snapshot from plain values. Keys are canonicalized.
func NewSnapshot(entries map[string]Annotation, showAll bool) Snapshot {
	s := Snapshot{entries: make(map[string]Annotation, len(entries)), showAll: showAll}
	for mac, a := range entries {
		if !a.IsZero() {
			s.entries[macaddr.Canonical(mac)] = a
		}
	}

	return s
}

// Get returns the annotation for mac, if any.
func (s Snapshot) Get(mac string) (Annotation, bool) {
	a, ok := s.entries[macaddr.Canonical(mac)]

	return a, ok
}

// ShowAll reports whether wired devices should be listed. Defaults to true.
func (s Snapshot) ShowAll() bool { return s.showAll }

func (s Snapshot) Len() int { return len(s.entries) }

// All returns a copy of every annotation keyed by MAC.
func (s Snapshot) All() map[string]Annotation {
	out := make(map[string]Annotation, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}

	return out
}

// Store reads and writes the annotation document at a fixed path.
// Writes are serialized; every mutation re-reads the file first so edits
// made by other processes between passes are not lost.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by path.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}

	return &Store{path: path}
}

// Path is the backing file.
func (s *Store) Path() string { return s.path }

// Load reads the document. Any failure yields an empty snapshot and a logged
// warning; a missing file is not an error.
func (s *Store) Load(ctx context.Context) Snapshot {
	d, err := s.read()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", s.path).Msg("annotation store unreadable, using empty set")

		return EmptySnapshot()
	}

	return d.snapshot()
}

// Get loads the store and returns the annotation for mac.
func (s *Store) Get(ctx context.Context, mac string) (Annotation, bool) {
	return s.Load(ctx).Get(mac)
}

// SetIcon assigns an icon path to mac. An empty path clears it.
func (s *Store) SetIcon(ctx context.Context, mac, iconPath string) error {
	return s.mutate(ctx, "set_icon", func(d *document) {
		d.set(keyIcon, mac, iconPath)
	})
}

// ClearIcon removes any custom icon for mac.
func (s *Store) ClearIcon(ctx context.Context, mac string) error {
	return s.mutate(ctx, "clear_icon", func(d *document) {
		d.set(keyIcon, mac, "")
	})
}

// SetLabel assigns a custom label to mac. An empty label clears it.
func (s *Store) SetLabel(ctx context.Context, mac, label string) error {
	return s.mutate(ctx, "set_label", func(d *document) {
		d.set(keyLabel, mac, label)
	})
}

// ClearLabel removes any custom label for mac.
func (s *Store) ClearLabel(ctx context.Context, mac string) error {
	return s.mutate(ctx, "clear_label", func(d *document) {
		d.set(keyLabel, mac, "")
	})
}

// SetShowAll persists the "show all users" toggle.
func (s *Store) SetShowAll(ctx context.Context, showAll bool) error {
	return s.mutate(ctx, "set_show_all", func(d *document) {
		d.showAll = &showAll
	})
}

func (s *Store) mutate(ctx context.Context, op string, fn func(*document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := zerolog.Ctx(ctx)

	d, err := s.read()
	if err != nil {
		// A corrupt document is replaced rather than blocking every edit.
		log.Warn().Err(err).Str("path", s.path).Str("op", op).Msg("annotation store corrupt, rewriting")

		d = newDocument()
	}

	fn(d)

	if err := s.write(d); err != nil {
		metrics.RecordAnnotationWrite(op, false)
		log.Err(err).Str("path", s.path).Str("op", op).Msg("annotation store write failed")

		return err
	}

	metrics.RecordAnnotationWrite(op, true)
	log.Debug().Str("path", s.path).Str("op", op).Msg("annotation store updated")

	return nil
}

func (s *Store) read() (*document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newDocument(), nil
		}

		return nil, fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreCorrupt, err)
	}

	if len(strings.TrimSpace(string(b))) == 0 {
		return newDocument(), nil
	}

	d, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreCorrupt, err)
	}

	return d, nil
}

// write replaces the file atomically: temp file in the same directory, then rename.
func (s *Store) write(d *document) error {
	out, err := d.encode()
	if err != nil {
		return fmt.Errorf("%w: encode: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()

		cleanup()

		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		cleanup()

		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()

		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()

		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()

		return fmt.Errorf("%w: %w", customerrors.ErrAnnotationStoreNotWritable, err)
	}

	return nil
}
