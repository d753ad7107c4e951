// Zaparoo DOS Drives
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo DOS Drives.
//
// Zaparoo DOS Drives is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo DOS Drives is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo DOS Drives.  If not, see <http://www.gnu.org/licenses/>.

// Package watcher keeps drive roots under observation. It reports changes
// inside a tracked root, tracked roots disappearing, and host volumes
// attaching or detaching, all on a single event channel.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers/syncutil"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce = 250 * time.Millisecond
	eventBuffer     = 64
)

// ErrUnknownHandle is returned when stopping a handle that was never issued
// or was already released.
var ErrUnknownHandle = errors.New("unknown or released watch handle")

type EventKind int

const (
	// TreeChanged means something under Root was created, written, removed
	// or renamed. Path is the last changed path seen before the debounce
	// window closed.
	TreeChanged EventKind = iota
	VolumeMounted
	// VolumeUnmounted is sent for detached host volumes and for tracked
	// roots that were deleted, renamed away or became unreadable.
	VolumeUnmounted
)

func (k EventKind) String() string {
	switch k {
	case TreeChanged:
		return "tree_changed"
	case VolumeMounted:
		return "volume_mounted"
	case VolumeUnmounted:
		return "volume_unmounted"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type Event struct {
	Root    string
	Path    string
	Label   string
	Kind    EventKind
	Optical bool
}

type Options struct {
	Clock clockwork.Clock
	// Detector may be nil, in which case no volume events are produced.
	Detector VolumeDetector
	// Debounce is how long tree changes are coalesced per root. Zero sends
	// every change straight away.
	Debounce time.Duration
}

type tracked struct {
	dirs   map[string]struct{}
	handle drives.WatchHandle
	root   string
	// file is set when the root is a single file (a disc image); its parent
	// directory is watched and only events for the file itself count.
	file string
	gone bool
}

type pendingChange struct {
	timer clockwork.Timer
	root  string
	path  string
}

type Watcher struct {
	fsw      *fsnotify.Watcher
	clock    clockwork.Clock
	detector VolumeDetector
	events   chan Event
	fired    chan string
	stop     chan struct{}
	tracked  map[uuid.UUID]*tracked
	dirRefs  map[string]int
	pending  map[string]*pendingChange
	debounce time.Duration
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	stopOnce sync.Once
}

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Watcher{
		fsw:      fsw,
		clock:    clock,
		detector: opts.Detector,
		debounce: opts.Debounce,
		events:   make(chan Event, eventBuffer),
		fired:    make(chan string, eventBuffer),
		stop:     make(chan struct{}),
		tracked:  make(map[uuid.UUID]*tracked),
		dirRefs:  make(map[string]int),
		pending:  make(map[string]*pendingChange),
	}, nil
}

// Events is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins delivering events. A detector that fails to start is logged
// and dropped; tree watching still works without it.
func (w *Watcher) Start() {
	var volumeChanges <-chan VolumeChange
	if w.detector != nil {
		if err := w.detector.Start(); err != nil {
			log.Warn().Err(err).Msg("volume detection unavailable")
			w.detector = nil
		} else {
			volumeChanges = w.detector.Changes()
		}
	}

	w.wg.Add(1)
	go w.run(volumeChanges)
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.detector != nil {
			w.detector.Stop()
		}
		if err := w.fsw.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close fsnotify watcher")
		}
		w.wg.Wait()

		w.mu.Lock()
		for key, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, key)
		}
		w.mu.Unlock()

		close(w.events)
	})
}

// StartTracking watches root recursively and returns the handle that must
// later be passed to StopTracking exactly once.
func (w *Watcher) StartTracking(root string) (drives.WatchHandle, error) {
	clean := filepath.Clean(root)
	info, err := os.Stat(clean)
	if err != nil {
		return drives.WatchHandle{}, fmt.Errorf("%w: %w", drives.ErrWatchSetupFailed, err)
	}

	t := &tracked{
		root: clean,
		dirs: make(map[string]struct{}),
	}

	var dirs []string
	if info.IsDir() {
		dirs = listDirs(clean)
	} else {
		t.file = clean
		dirs = []string{filepath.Dir(clean)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// The first directory is the root (or the image's folder); without it
	// nothing would be reported at all.
	if err := w.addDirLocked(t, dirs[0]); err != nil {
		return drives.WatchHandle{}, fmt.Errorf("%w: %s: %w", drives.ErrWatchSetupFailed, clean, err)
	}
	for _, dir := range dirs[1:] {
		if err := w.addDirLocked(t, dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to watch subdirectory")
		}
	}

	t.handle = drives.WatchHandle{Root: clean, ID: uuid.New()}
	w.tracked[t.handle.ID] = t

	log.Debug().Str("root", clean).Int("dirs", len(t.dirs)).Msg("started tracking root")
	return t.handle, nil
}

// StopTracking releases a handle. Directories shared with other tracked
// roots stay watched until their last user lets go.
func (w *Watcher) StopTracking(h drives.WatchHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.tracked[h.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h.Root)
	}
	delete(w.tracked, h.ID)

	for dir := range t.dirs {
		w.releaseDirLocked(t, dir)
	}

	key := helpers.NormalizePathForComparison(t.root)
	if !w.rootTrackedLocked(key) {
		if p, ok := w.pending[key]; ok {
			p.timer.Stop()
			delete(w.pending, key)
		}
	}

	log.Debug().Str("root", t.root).Msg("stopped tracking root")
	return nil
}

// Tracking returns the number of live handles.
func (w *Watcher) Tracking() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tracked)
}

func (w *Watcher) rootTrackedLocked(key string) bool {
	for _, t := range w.tracked {
		if helpers.NormalizePathForComparison(t.root) == key {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirLocked(t *tracked, dir string) error {
	if _, ok := t.dirs[dir]; ok {
		return nil
	}
	if w.dirRefs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err //nolint:wrapcheck // wrapped by callers
		}
	}
	w.dirRefs[dir]++
	t.dirs[dir] = struct{}{}
	return nil
}

func (w *Watcher) releaseDirLocked(t *tracked, dir string) {
	if _, ok := t.dirs[dir]; !ok {
		return
	}
	delete(t.dirs, dir)
	w.dirRefs[dir]--
	if w.dirRefs[dir] > 0 {
		return
	}
	delete(w.dirRefs, dir)
	// The kernel drops watches on deleted directories by itself, so a
	// failure here is expected after removals.
	_ = w.fsw.Remove(dir)
}

// listDirs returns root followed by every directory below it.
func listDirs(root string) []string {
	dirs := []string{root}
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		mu.Lock()
		dirs = append(dirs, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("failed to walk root")
	}
	return dirs
}

func (w *Watcher) run(volumeChanges <-chan VolumeChange) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFS(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("filesystem watch error")
			w.checkRoots()
		case key := <-w.fired:
			w.flush(key)
		case change, ok := <-volumeChanges:
			if !ok {
				volumeChanges = nil
				continue
			}
			kind := VolumeUnmounted
			if change.Mounted {
				kind = VolumeMounted
			}
			w.emit(Event{
				Kind:    kind,
				Root:    change.Root,
				Path:    change.Root,
				Label:   change.Label,
				Optical: change.Optical,
			})
		}
	}
}

func (w *Watcher) handleFS(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	removal := ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)

	var gone []string
	changed := make(map[string]string)

	w.mu.Lock()
	for _, t := range w.tracked {
		if t.gone {
			continue
		}
		switch {
		case removal && helpers.SamePath(ev.Name, t.root):
			t.gone = true
			gone = append(gone, t.root)
		case t.file != "":
			if helpers.SamePath(ev.Name, t.file) {
				changed[helpers.NormalizePathForComparison(t.root)] = t.root
			}
		case helpers.PathIsWithin(ev.Name, t.root):
			changed[helpers.NormalizePathForComparison(t.root)] = t.root
			w.followLocked(t, ev, removal)
		}
	}
	for _, root := range gone {
		key := helpers.NormalizePathForComparison(root)
		delete(changed, key)
		if p, ok := w.pending[key]; ok {
			p.timer.Stop()
			delete(w.pending, key)
		}
	}
	immediate := w.debounce <= 0
	if !immediate {
		for key, root := range changed {
			w.scheduleLocked(key, root, ev.Name)
		}
	}
	w.mu.Unlock()

	for _, root := range gone {
		log.Info().Str("root", root).Msg("tracked root disappeared")
		w.emit(Event{Kind: VolumeUnmounted, Root: root, Path: root})
	}
	if immediate {
		for _, root := range changed {
			w.emit(Event{Kind: TreeChanged, Root: root, Path: ev.Name})
		}
	}
}

// followLocked keeps the watched directory set in step with the tree.
func (w *Watcher) followLocked(t *tracked, ev fsnotify.Event, removal bool) {
	if removal {
		for dir := range t.dirs {
			if helpers.PathHasPrefix(dir, ev.Name) {
				w.releaseDirLocked(t, dir)
			}
		}
		return
	}
	if !ev.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return
	}
	for _, dir := range listDirs(ev.Name) {
		if err := w.addDirLocked(t, dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to watch new directory")
		}
	}
}

func (w *Watcher) scheduleLocked(key, root, path string) {
	if p, ok := w.pending[key]; ok {
		p.path = path
		p.timer.Reset(w.debounce)
		return
	}
	w.pending[key] = &pendingChange{
		root: root,
		path: path,
		timer: w.clock.AfterFunc(w.debounce, func() {
			select {
			case w.fired <- key:
			case <-w.stop:
			}
		}),
	}
}

func (w *Watcher) flush(key string) {
	w.mu.Lock()
	p, ok := w.pending[key]
	if ok {
		delete(w.pending, key)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	w.emit(Event{Kind: TreeChanged, Root: p.root, Path: p.path})
}

// checkRoots turns roots that can no longer be read into unmount events.
func (w *Watcher) checkRoots() {
	var gone []string

	w.mu.Lock()
	for _, t := range w.tracked {
		if t.gone {
			continue
		}
		if _, err := os.Stat(t.root); err != nil {
			t.gone = true
			gone = append(gone, t.root)
		}
	}
	w.mu.Unlock()

	for _, root := range gone {
		log.Warn().Str("root", root).Msg("tracked root became unreadable")
		w.emit(Event{Kind: VolumeUnmounted, Root: root, Path: root})
	}
}

func (w *Watcher) emit(ev Event) { //nolint:gocritic // sent by value
	select {
	case w.events <- ev:
		log.Debug().Str("kind", ev.Kind.String()).Str("root", ev.Root).Str("path", ev.Path).Msg("watch event")
	case <-w.stop:
	}
}
