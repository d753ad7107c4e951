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

package volumes

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/testing/mocks"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOpticalVolumes_CleansAndDeduplicates(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).
		Return([]string{"/media/cd2/", "/media/cd1", "", "/media/cd1"}, nil)

	got, err := NewScanner(lister).OpticalVolumes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/cd1", "/media/cd2"}, got)
}

func TestOpticalVolumes_ListerError(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return(nil, errors.New("bus down"))

	_, err := NewScanner(lister).OpticalVolumes(context.Background())
	require.Error(t, err)
}

func TestMountAllUnmounted_MountsOnlyNewVolumes(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return([]string{"/media/cd1", "/media/cd2"}, nil)

	m := &mocks.MockMounter{}
	m.On("Drives").Return([]drives.Drive{{Letter: "D", Root: "/media/cd1", Kind: drives.KindOpticalVolume}})
	m.On("MountForPath", mock.Anything, "/media/cd2").
		Return(drives.MountResult{Drive: drives.Drive{Letter: "E", Root: "/media/cd2"}}, nil)

	mountedAny, err := NewScanner(lister).MountAllUnmounted(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mountedAny)
	m.AssertNumberOfCalls(t, "MountForPath", 1)
	m.AssertNotCalled(t, "MountForPath", mock.Anything, "/media/cd1")
}

func TestMountAllUnmounted_NestedVolumeNotSkipped(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return([]string{"/media/cd1"}, nil)

	m := &mocks.MockMounter{}
	m.On("Drives").Return([]drives.Drive{{Letter: "C", Root: "/media"}})
	m.On("MountForPath", mock.Anything, "/media/cd1").
		Return(drives.MountResult{Drive: drives.Drive{Letter: "D", Root: "/media/cd1"}}, nil)

	mountedAny, err := NewScanner(lister).MountAllUnmounted(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mountedAny)
}

func TestMountAllUnmounted_CollectsFailures(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return([]string{"/media/a", "/media/b", "/media/c"}, nil)

	m := &mocks.MockMounter{}
	m.On("Drives").Return([]drives.Drive{})
	m.On("MountForPath", mock.Anything, "/media/a").Return(drives.MountResult{}, drives.ErrNoFreeIdentifier)
	m.On("MountForPath", mock.Anything, "/media/b").
		Return(drives.MountResult{Rejected: true, Reason: drives.RejectAlreadyAccessible}, nil)
	m.On("MountForPath", mock.Anything, "/media/c").
		Return(drives.MountResult{Drive: drives.Drive{Letter: "D", Root: "/media/c"}}, nil)

	mountedAny, err := NewScanner(lister).MountAllUnmounted(context.Background(), m)
	require.ErrorIs(t, err, drives.ErrNoFreeIdentifier)
	assert.True(t, mountedAny, "later volumes still mount after a failure")
	m.AssertNumberOfCalls(t, "MountForPath", 3)
}

func TestMountAllUnmounted_NothingNew(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return([]string{}, nil)

	m := &mocks.MockMounter{}
	m.On("Drives").Return([]drives.Drive{})

	mountedAny, err := NewScanner(lister).MountAllUnmounted(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, mountedAny)
}

func TestMountAllUnmounted_CancelledContext(t *testing.T) {
	t.Parallel()

	lister := &mocks.MockVolumeLister{}
	lister.On("OpticalVolumes", mock.Anything).Return([]string{"/media/cd1"}, nil)

	m := &mocks.MockMounter{}
	m.On("Drives").Return([]drives.Drive{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mountedAny, err := NewScanner(lister).MountAllUnmounted(ctx, m)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, mountedAny)
	m.AssertNotCalled(t, "MountForPath", mock.Anything, mock.Anything)
}

func TestPartitionLister(t *testing.T) {
	t.Parallel()

	l := PartitionLister{
		Partitions: func(context.Context, bool) ([]disk.PartitionStat, error) {
			return []disk.PartitionStat{
				{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
				{Device: "/dev/sr0", Mountpoint: "/media/user/DOOM", Fstype: "iso9660"},
				{Device: "/dev/sr1", Mountpoint: "/media/user/DVD", Fstype: "udf"},
				{Device: "/dev/sr2", Mountpoint: "", Fstype: "iso9660"},
				{Device: `\\nas\cd`, Mountpoint: `\\nas\cd`, Fstype: "CDFS"},
			}, nil
		},
	}

	got, err := l.OpticalVolumes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/user/DOOM", "/media/user/DVD"}, got)
}

func TestPartitionLister_Error(t *testing.T) {
	t.Parallel()

	l := PartitionLister{
		Partitions: func(context.Context, bool) ([]disk.PartitionStat, error) {
			return nil, errors.New("no proc")
		},
	}
	_, err := l.OpticalVolumes(context.Background())
	require.Error(t, err)
}
