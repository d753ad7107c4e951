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

package mounts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/classifier"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/volumes"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/watcher"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/guest"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixtureFiles = map[string][]byte{
	"/media/Game/RUN.EXE":    []byte("MZ\x90\x00"),
	"/media/Game/README.TXT": []byte("read me"),
	"/media/Game/DATA/L1":    []byte("level"),
	"/media/Game.iso":        []byte("disc"),
	"/media/Other/GO.BAT":    []byte("@echo off"),
	"/cdrom/SETUP.EXE":       []byte("MZ"),
	"/cdrom/extra/Bonus.iso": []byte("disc"),
	"/cdrom2/INSTALL.EXE":    []byte("MZ"),
	"/usb/FILE.TXT":          []byte("usb"),
	"/utils/KEYB.COM":        {0xCD, 0x20},
}

var fixtureOptical = []string{"/cdrom", "/cdrom2"}

type fixture struct {
	c       *Coordinator
	tracker *mocks.FakeTracker
	lister  *mocks.MockVolumeLister
	fs      afero.Fs
	ns      chan models.Notification
	events  chan watcher.Event
	guest   guest.Guest
	clock   *clockwork.FakeClock
}

type fixtureOptions struct {
	guest  guest.Guest
	values config.Values
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, data := range fixtureFiles {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	}
	for i := range 30 {
		require.NoError(t, fs.MkdirAll(filepath.Join("/many", string(rune('a'+i%26))+string(rune('0'+i/26))), 0o755))
	}

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return(fixtureOptical, nil)

	cfg := config.NewMemoryConfig(opts.values)
	cls := classifier.New(fs, classifier.Options{
		Volumes:           lister,
		AllowSourceImages: cfg.AllowSourceImages(),
		SourceImages:      staticSources{"/media/Other": "/media/Game.iso"},
	})

	f := &fixture{
		tracker: mocks.NewFakeTracker(),
		lister:  lister,
		fs:      fs,
		ns:      make(chan models.Notification, 128),
		events:  make(chan watcher.Event, 16),
		guest:   opts.guest,
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.c = New(Options{
		Classifier:    cls,
		Tracker:       f.tracker,
		Config:        cfg,
		Scanner:       volumes.NewScanner(lister),
		Guest:         opts.guest,
		Clock:         f.clock,
		Events:        f.events,
		Notifications: f.ns,
	})
	return f
}

// start runs the coordinator loop until the test ends.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = f.c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.c.Done()
	})
}

// assertInvariants checks every active drive holds exactly one live watch
// and that no handle was released twice.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()

	all := f.c.Drives()
	live := f.tracker.Live()
	require.Len(t, live, len(all), "one live watch per drive")
	require.False(t, f.tracker.OverReleased(), "watch released more than once")

	letters := make(map[string]struct{})
	roots := make(map[string]struct{})
	for _, d := range all {
		require.True(t, d.Watch.Valid())
		require.NotContains(t, letters, d.Letter)
		require.NotContains(t, roots, d.Root)
		letters[d.Letter] = struct{}{}
		roots[d.Root] = struct{}{}
	}
}

func (f *fixture) drainNotifications() []models.Notification {
	var out []models.Notification
	for {
		select {
		case n := <-f.ns:
			out = append(out, n)
		default:
			return out
		}
	}
}

type staticSources map[string]string

func (s staticSources) SourceImage(path string) (string, bool) {
	img, ok := s[path]
	return img, ok
}

func letters(ds []drives.Drive) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Letter)
	}
	return out
}
