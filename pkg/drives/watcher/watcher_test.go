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

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 5 * time.Second

func newTestWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

// waitFor returns the first event matching kind and root, failing the test
// if none arrives in time.
func waitFor(t *testing.T, w *Watcher, kind EventKind, root string) Event {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-w.Events():
			require.True(t, ok, "event channel closed")
			if ev.Kind == kind && ev.Root == root {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on %s", kind, root)
			return Event{}
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestStartTracking_MissingRoot(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, Options{})
	_, err := w.StartTracking(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, drives.ErrWatchSetupFailed)
	assert.Equal(t, 0, w.Tracking())
}

func TestStopTracking_ReleasedExactlyOnce(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, Options{})
	h, err := w.StartTracking(t.TempDir())
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, 1, w.Tracking())

	require.NoError(t, w.StopTracking(h))
	require.ErrorIs(t, w.StopTracking(h), ErrUnknownHandle)
	require.ErrorIs(t, w.StopTracking(drives.WatchHandle{}), ErrUnknownHandle)
	assert.Equal(t, 0, w.Tracking())
}

func TestTreeChanged_Debounced(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	w := newTestWatcher(t, Options{Clock: clock, Debounce: time.Second})

	root := t.TempDir()
	_, err := w.StartTracking(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "A.TXT"), "a")

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case ev := <-w.Events():
		t.Fatalf("event before debounce elapsed: %+v", ev)
	default:
	}

	clock.Advance(time.Second)
	ev := waitFor(t, w, TreeChanged, root)
	assert.Equal(t, filepath.Join(root, "A.TXT"), ev.Path)
}

func TestTreeChanged_FollowsNewDirectories(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, Options{})
	root := t.TempDir()
	_, err := w.StartTracking(root)
	require.NoError(t, err)

	sub := filepath.Join(root, "SAVES")
	require.NoError(t, os.Mkdir(sub, 0o750))
	waitFor(t, w, TreeChanged, root)

	writeFile(t, filepath.Join(sub, "SLOT1.SAV"), "x")
	for {
		ev := waitFor(t, w, TreeChanged, root)
		if ev.Path == filepath.Join(sub, "SLOT1.SAV") {
			break
		}
	}
}

func TestTreeChanged_ExistingSubdirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	deep := filepath.Join(root, "GAME", "DATA")
	require.NoError(t, os.MkdirAll(deep, 0o750))

	w := newTestWatcher(t, Options{})
	_, err := w.StartTracking(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(deep, "LEVEL.DAT"), "1")
	ev := waitFor(t, w, TreeChanged, root)
	assert.Equal(t, filepath.Join(deep, "LEVEL.DAT"), ev.Path)
}

func TestRootRemoved_ReportedAsUnmount(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, Options{})
	root := filepath.Join(t.TempDir(), "CD")
	require.NoError(t, os.Mkdir(root, 0o750))

	h, err := w.StartTracking(root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(root))
	waitFor(t, w, VolumeUnmounted, root)

	// The handle is still owned by the caller until released.
	require.NoError(t, w.StopTracking(h))
}

func TestFileRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	image := filepath.Join(dir, "GAME.ISO")
	writeFile(t, image, "v1")

	w := newTestWatcher(t, Options{})
	h, err := w.StartTracking(image)
	require.NoError(t, err)
	assert.Equal(t, image, h.Root)

	writeFile(t, image, "v2")
	waitFor(t, w, TreeChanged, image)

	require.NoError(t, os.Remove(image))
	waitFor(t, w, VolumeUnmounted, image)
}

func TestSharedDirectoriesAreRefcounted(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	child := filepath.Join(parent, "GAME")
	require.NoError(t, os.Mkdir(child, 0o750))

	w := newTestWatcher(t, Options{})
	_, err := w.StartTracking(parent)
	require.NoError(t, err)
	childHandle, err := w.StartTracking(child)
	require.NoError(t, err)

	require.NoError(t, w.StopTracking(childHandle))

	writeFile(t, filepath.Join(child, "RUN.BAT"), "echo")
	waitFor(t, w, TreeChanged, parent)
}

type chanDetector struct {
	changes chan VolumeChange
}

func (d *chanDetector) Changes() <-chan VolumeChange { return d.changes }
func (*chanDetector) Start() error { return nil }
func (*chanDetector) Stop() {}

func TestVolumeChangesForwarded(t *testing.T) {
	t.Parallel()

	det := &chanDetector{changes: make(chan VolumeChange, 2)}
	w := newTestWatcher(t, Options{Detector: det})

	det.changes <- VolumeChange{Root: "/media/cdrom", Label: "DOOM", Mounted: true, Optical: true}
	ev := waitFor(t, w, VolumeMounted, "/media/cdrom")
	assert.True(t, ev.Optical)
	assert.Equal(t, "DOOM", ev.Label)

	det.changes <- VolumeChange{Root: "/media/cdrom"}
	waitFor(t, w, VolumeUnmounted, "/media/cdrom")
}

func TestStop_ClosesEvents(t *testing.T) {
	t.Parallel()

	w, err := New(Options{Detector: NewNopDetector()})
	require.NoError(t, err)
	w.Start()
	w.Stop()
	w.Stop()

	_, ok := <-w.Events()
	assert.False(t, ok)
}
