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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/classifier"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/watcher"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/testing/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMountForPath_Folder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)

	res, err := f.c.MountForPath(context.Background(), "/media/Game")
	require.NoError(t, err)
	require.False(t, res.Rejected)

	d := res.Drive
	assert.Equal(t, "C", d.Letter)
	assert.Equal(t, "/media/Game", d.Root)
	assert.Equal(t, "/media/Game", d.Source)
	assert.Equal(t, drives.KindPlainFolder, d.Kind)
	assert.Equal(t, "GAME", d.Label)
	assert.Equal(t, f.clock.Now(), d.MountedAt)
	assert.Equal(t, []string{"C"}, letters(f.c.ListVisible()))
	f.assertInvariants(t)
}

func TestMountForPath_FileMountsParent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)

	res, err := f.c.MountForPath(context.Background(), "/media/Game/RUN.EXE")
	require.NoError(t, err)
	assert.Equal(t, "/media/Game", res.Drive.Root)
	assert.Equal(t, "/media/Game/RUN.EXE", res.Drive.Source)
	assert.Equal(t, drives.KindPlainFolder, res.Drive.Kind)
}

func TestMountForPath_DiscImagePrefersD(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)

	res, err := f.c.MountForPath(context.Background(), "/media/Game.iso")
	require.NoError(t, err)
	assert.Equal(t, "D", res.Drive.Letter)
	assert.Equal(t, "/media/Game.iso", res.Drive.Root)
	assert.Equal(t, drives.KindDiscImage, res.Drive.Kind)
}

func TestMountForPath_OpticalMemberMountsVolume(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)

	res, err := f.c.MountForPath(context.Background(), "/cdrom/SETUP.EXE")
	require.NoError(t, err)
	assert.Equal(t, "/cdrom", res.Drive.Root)
	assert.Equal(t, drives.KindOpticalVolume, res.Drive.Kind)
	assert.Equal(t, "D", res.Drive.Letter)
}

func TestMountForPath_AlreadyAccessibleIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/media/Game")
	require.NoError(t, err)

	for _, path := range []string{"/media/Game", "/media/Game/RUN.EXE", "/media/Game/DATA"} {
		res, err := f.c.MountForPath(ctx, path)
		require.NoError(t, err, path)
		assert.True(t, res.Rejected, path)
		assert.Equal(t, drives.RejectAlreadyAccessible, res.Reason, path)
	}
	assert.Len(t, f.c.Drives(), 1)
	f.assertInvariants(t)
}

func TestMountForPath_ImageInsideMountedFolderGetsOwnDrive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/media")
	require.NoError(t, err)

	res, err := f.c.MountForPath(ctx, "/media/Game.iso")
	require.NoError(t, err)
	require.False(t, res.Rejected)
	assert.Equal(t, "/media/Game.iso", res.Drive.Root)

	res, err = f.c.MountForPath(ctx, "/media/Game.iso")
	require.NoError(t, err)
	assert.True(t, res.Rejected, "second mount of the same image")
	f.assertInvariants(t)
}

func TestMountForPath_MissingPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)

	_, err := f.c.MountForPath(context.Background(), "/nowhere")
	require.ErrorIs(t, err, drives.ErrClassification)
	assert.Empty(t, f.c.Drives())
}

func TestMountForPath_WatchFailureRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.tracker.Fail["/media/Game"] = errors.New("inotify limit")
	f.start(t)

	_, err := f.c.MountForPath(context.Background(), "/media/Game")
	require.ErrorIs(t, err, drives.ErrWatchSetupFailed)
	assert.Empty(t, f.c.Drives())
	assert.Empty(t, f.drainNotifications())
	f.assertInvariants(t)

	// The letter was not consumed.
	res, err := f.c.MountForPath(context.Background(), "/usb")
	require.NoError(t, err)
	assert.Equal(t, "C", res.Drive.Letter)
}

func TestMountForPath_LetterExhaustion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	mounted := 0
	var lastErr error
	for i := range 30 {
		path := fmt.Sprintf("/many/%c%c", rune('a'+i%26), rune('0'+i/26))
		res, err := f.c.MountForPath(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		require.False(t, res.Rejected)
		mounted++
	}

	// C through X; Y and Z are reserved.
	assert.Equal(t, 22, mounted)
	require.ErrorIs(t, lastErr, drives.ErrNoFreeIdentifier)
	for _, d := range f.c.Drives() {
		assert.NotContains(t, []string{"A", "B", "Y", "Z"}, d.Letter)
	}
	f.assertInvariants(t)
}

func TestMountForPath_SourceImageGated(t *testing.T) {
	t.Parallel()

	off := newFixture(t, fixtureOptions{})
	off.start(t)
	res, err := off.c.Mount(context.Background(), MountRequest{Path: "/media/Other", PreferSourceImage: true})
	require.NoError(t, err)
	assert.Equal(t, "/media/Other", res.Drive.Root)

	on := newFixture(t, fixtureOptions{values: config.Values{Drives: config.Drives{AllowSourceImages: true}}})
	on.start(t)
	res, err = on.c.Mount(context.Background(), MountRequest{Path: "/media/Other", PreferSourceImage: true})
	require.NoError(t, err)
	assert.Equal(t, "/media/Game.iso", res.Drive.Root)
	assert.Equal(t, drives.KindDiscImage, res.Drive.Kind)
}

func TestMountInternal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	d, err := f.c.MountInternal(ctx, "/utils", "y", false)
	require.NoError(t, err)
	assert.Equal(t, "Y", d.Letter)
	assert.True(t, d.Internal)
	assert.Empty(t, f.c.ListVisible())
	assert.Len(t, f.c.Drives(), 1)
	assert.Empty(t, f.drainNotifications(), "internal drives are not announced")

	_, err = f.c.MountInternal(ctx, "/usb", "Y", true)
	require.ErrorIs(t, err, drives.ErrDuplicateIdentifier)

	_, err = f.c.MountInternal(ctx, "/usb", "1", true)
	require.ErrorIs(t, err, drives.ErrInvalidIdentifier)
	f.assertInvariants(t)
}

func TestUnmount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	res, err := f.c.MountForPath(ctx, "/media/Game")
	require.NoError(t, err)

	require.NoError(t, f.c.Unmount(ctx, "c:"))
	assert.Empty(t, f.c.Drives())
	assert.Empty(t, f.tracker.Live())

	err = f.c.Unmount(ctx, res.Drive.Letter)
	require.ErrorIs(t, err, drives.ErrNotFound)
	f.assertInvariants(t)
}

func TestUnmount_InternalDriveIsBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountInternal(ctx, "/utils", "Z", true)
	require.NoError(t, err)
	before := f.c.Drives()

	err = f.c.Unmount(ctx, "Z")
	require.ErrorIs(t, err, drives.ErrDriveBusy)
	assert.Equal(t, before, f.c.Drives())
	f.assertInvariants(t)
}

func TestUnmountAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	for _, p := range []string{"/media/Game", "/usb", "/media/Game.iso"} {
		_, err := f.c.MountForPath(ctx, p)
		require.NoError(t, err)
	}
	_, err := f.c.MountInternal(ctx, "/utils", "Y", false)
	require.NoError(t, err)

	n, err := f.c.UnmountAll(ctx, []string{"C", "Q", "Y", "D"})
	assert.Equal(t, 2, n)
	require.ErrorIs(t, err, drives.ErrNotFound)
	require.ErrorIs(t, err, drives.ErrDriveBusy)

	joined, ok := err.(interface{ Unwrap() []error }) //nolint:errorlint // splitting errors.Join
	require.True(t, ok)
	failed := make([]string, 0, 2)
	for _, e := range joined.Unwrap() {
		var ue *UnmountError
		require.ErrorAs(t, e, &ue)
		failed = append(failed, ue.Letter)
	}
	assert.Equal(t, []string{"Q", "Y"}, failed)

	n, err = f.c.UnmountAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "empty list unmounts remaining visible drives")
	assert.Equal(t, []string{"Y"}, letters(f.c.Drives()))
	f.assertInvariants(t)
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/media/Game")
	require.NoError(t, err)
	require.NoError(t, f.c.Unmount(ctx, "C"))

	ns := f.drainNotifications()
	require.Len(t, ns, 2)
	assert.Equal(t, models.NotificationDrivesAdded, ns[0].Method)
	assert.Equal(t, models.NotificationDrivesRemoved, ns[1].Method)
	assert.Contains(t, string(ns[0].Params), `"letter":"C"`)
}

func TestOpenPath(t *testing.T) {
	t.Parallel()

	g := &mocks.MockGuest{}
	g.On("Launch", mock.Anything, `C:\GAME\RUN.EXE`).Return(nil)
	g.On("ChangeDirectory", mock.Anything, `C:\GAME`).Return(nil)
	g.On("ChangeDirectory", mock.Anything, `C:\GAME\DATA`).Return(nil)
	g.On("ChangeDirectory", mock.Anything, `D:\`).Return(nil)

	f := newFixture(t, fixtureOptions{guest: g})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/media")
	require.NoError(t, err)

	out, err := f.c.OpenPath(ctx, "/media/Game/RUN.EXE")
	require.NoError(t, err)
	assert.Equal(t, ActionLaunch, out.Action)
	assert.Equal(t, `C:\GAME\RUN.EXE`, out.DOSPath)
	assert.False(t, out.Mounted)

	out, err = f.c.OpenPath(ctx, "/media/Game/README.TXT")
	require.NoError(t, err)
	assert.Equal(t, ActionChangeDirectory, out.Action)
	assert.Equal(t, `C:\GAME`, out.DOSPath)

	out, err = f.c.OpenPath(ctx, "/media/Game/DATA")
	require.NoError(t, err)
	assert.Equal(t, `C:\GAME\DATA`, out.DOSPath)

	out, err = f.c.OpenPath(ctx, "/media/Game.iso")
	require.NoError(t, err)
	assert.True(t, out.Mounted)
	assert.Equal(t, "D", out.Drive.Letter)
	assert.Equal(t, `D:\`, out.DOSPath)

	g.AssertExpectations(t)
	f.assertInvariants(t)
}

func TestOpenPath_MountsWhenUnreachable(t *testing.T) {
	t.Parallel()

	g := &mocks.MockGuest{}
	g.On("Launch", mock.Anything, `C:\RUN.EXE`).Return(nil)

	f := newFixture(t, fixtureOptions{guest: g})
	f.start(t)

	out, err := f.c.OpenPath(context.Background(), "/media/Game/RUN.EXE")
	require.NoError(t, err)
	assert.True(t, out.Mounted)
	assert.Equal(t, "/media/Game", out.Drive.Root)
	g.AssertExpectations(t)
}

func TestOpenPath_GuestErrorKeepsDrive(t *testing.T) {
	t.Parallel()

	g := &mocks.MockGuest{}
	g.On("Launch", mock.Anything, mock.Anything).Return(errors.New("emulator gone"))

	f := newFixture(t, fixtureOptions{guest: g})
	f.start(t)

	out, err := f.c.OpenPath(context.Background(), "/media/Game/RUN.EXE")
	require.Error(t, err)
	assert.Equal(t, "C", out.Drive.Letter)
	assert.Len(t, f.c.Drives(), 1)
}

func TestMountOpticalVolumes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/cdrom")
	require.NoError(t, err)

	mountedAny, err := f.c.MountOpticalVolumes(ctx)
	require.NoError(t, err)
	assert.True(t, mountedAny)

	all := f.c.Drives()
	require.Len(t, all, 2)
	assert.Equal(t, "/cdrom2", all[1].Root)

	mountedAny, err = f.c.MountOpticalVolumes(ctx)
	require.NoError(t, err)
	assert.False(t, mountedAny)
	f.assertInvariants(t)
}

func TestMountOpticalVolumes_InsideFolderDrive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	res, err := f.c.MountForPath(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, "C", res.Drive.Letter)

	mountedAny, err := f.c.MountOpticalVolumes(ctx)
	require.NoError(t, err)
	assert.True(t, mountedAny)

	all := f.c.Drives()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"C", "D", "E"}, letters(all))
	assert.Equal(t, "/cdrom", all[1].Root)
	assert.Equal(t, drives.KindOpticalVolume, all[1].Kind)
	assert.Equal(t, "/cdrom2", all[2].Root)

	// members of the mounted disc are reachable and stay on its drive
	res, err = f.c.MountForPath(ctx, "/cdrom/SETUP.EXE")
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	f.assertInvariants(t)
}

func TestNew_WithoutConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media/Game", 0o755))
	c := New(Options{
		Classifier: classifier.New(fs, classifier.Options{}),
		Tracker:    mocks.NewFakeTracker(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	res, err := c.MountForPath(context.Background(), "/media/Game")
	require.NoError(t, err)
	assert.Equal(t, "C", res.Drive.Letter)

	// default reserved letters still apply
	assert.True(t, c.table.Reserved("Y"))
	assert.True(t, c.table.Reserved("Z"))

	// default auto mount policy mounts attached volumes
	require.NoError(t, fs.MkdirAll("/usb", 0o755))
	require.NoError(t, c.submit(context.Background(), func() {
		c.reconcile(context.Background(), watcher.Event{Kind: watcher.VolumeMounted, Root: "/usb"})
	}))
	_, ok := c.table.LookupByRoot("/usb")
	assert.True(t, ok)
}

func TestMountOpticalVolumes_NoScanner(t *testing.T) {
	t.Parallel()

	c := New(Options{Config: config.NewMemoryConfig(config.Values{})})
	_, err := c.MountOpticalVolumes(context.Background())
	require.ErrorIs(t, err, ErrNoScanner)
}

func TestStoppedCoordinator(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = f.c.Run(ctx) }()

	_, err := f.c.MountForPath(context.Background(), "/media/Game")
	require.NoError(t, err)
	_, err = f.c.MountInternal(context.Background(), "/utils", "Y", true)
	require.NoError(t, err)

	cancel()
	<-f.c.Done()

	assert.Empty(t, f.tracker.Live(), "every watch released on shutdown")
	assert.False(t, f.tracker.OverReleased())
	assert.Empty(t, f.c.Drives())

	_, err = f.c.MountForPath(context.Background(), "/usb")
	require.ErrorIs(t, err, ErrStopped)
}

func TestSubmit_ContextCancelledBeforeLoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.c.MountForPath(ctx, "/media/Game")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.c.Drives())
}

func TestRun_ReconcilesWatcherEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.start(t)
	ctx := context.Background()

	_, err := f.c.MountForPath(ctx, "/cdrom")
	require.NoError(t, err)

	f.events <- watcher.Event{Kind: watcher.VolumeUnmounted, Root: "/cdrom"}
	require.Eventually(t, func() bool {
		return len(f.c.Drives()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	f.events <- watcher.Event{Kind: watcher.VolumeMounted, Root: "/usb"}
	require.Eventually(t, func() bool {
		return len(f.c.Drives()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	f.assertInvariants(t)
}

func TestDOSPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		letter, root, path, want string
	}{
		{"C", "/media", "/media/Game/RUN.EXE", `C:\GAME\RUN.EXE`},
		{"C", "/media/Game", "/media/Game", `C:\`},
		{"D", "/media/Game.iso", "/media/Game.iso", `D:\`},
		{"E", "/media/Game", "/elsewhere/x", `E:\`},
		{"F", "/media", "/media/a b/c", `F:\A B\C`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DOSPath(tt.letter, tt.root, tt.path), tt.path)
	}
}
