package screen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/syncx"
)

// Region is a rectangle in screen coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Selection is the currently selected capture region, persisted to a JSON file
// that an external selector may also write.
type Selection struct {
	path    string
	current *syncx.RWGuard[*Region]
}

// NewSelection creates an empty selection backed by path. An empty path keeps
// the selection in memory only.
func NewSelection(path string) *Selection {
	return &Selection{path: path, current: syncx.NewGuard[*Region](nil)}
}

// Region returns the selected region, or false when nothing is selected.
func (s *Selection) Region() (Region, bool) {
	r := s.current.Get()
	if r == nil {
		return Region{}, false
	}
	return *r, true
}

// Set selects r and persists it.
func (s *Selection) Set(r Region) error {
	if !r.Valid() {
		return apperrors.Newf(apperrors.CodeRegionInvalid, "region %s has no area", r)
	}
	s.current.Set(&r)
	return s.persist(&r)
}

// Clear deselects and removes the persisted file.
func (s *Selection) Clear() error {
	s.current.Set(nil)
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.CodeRegionInvalid, "remove region file")
	}
	return nil
}

// Load reads the persisted region. A missing file leaves nothing selected.
func (s *Selection) Load() error {
	if s.path == "" {
		return nil
	}
	r, err := readRegion(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.current.Set(nil)
		return nil
	}
	if err != nil {
		return err
	}
	s.current.Set(r)
	return nil
}

func (s *Selection) persist(r *Region) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRegionInvalid, "create region dir")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRegionInvalid, "encode region")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRegionInvalid, "write region file")
	}
	return os.Rename(tmp, s.path)
}

func readRegion(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Region
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeRegionInvalid, "parse %s", path)
	}
	if !r.Valid() {
		return nil, apperrors.Newf(apperrors.CodeRegionInvalid, "region %s has no area", r)
	}
	return &r, nil
}

// regionReloadDelay coalesces the burst of events editors emit for one save.
const regionReloadDelay = 100 * time.Millisecond

// Watch reloads the selection whenever the region file changes, until ctx ends.
// The parent directory is watched so atomic replaces are seen.
func (s *Selection) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRegionInvalid, "create region dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "create region watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeInternal, "watch %s", dir)
	}

	name := filepath.Clean(s.path)
	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				reload = time.After(regionReloadDelay)
			}
		case <-reload:
			reload = nil
			if err := s.Load(); err != nil {
				slog.Warn("region file reload failed", "path", s.path, "error", err)
				continue
			}
			if r, ok := s.Region(); ok {
				slog.Info("region reloaded", "region", r.String())
			} else {
				slog.Info("region cleared", "path", s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("region watcher error", "error", err)
		}
	}
}
