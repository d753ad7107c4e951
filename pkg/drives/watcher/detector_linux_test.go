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

//go:build linux

package watcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMounts = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/nvme0n1p2 / ext4 rw,relatime 0 0
tmpfs /media/ram tmpfs rw 0 0
/dev/sr0 /media/user/DOOM_CD iso9660 ro,nosuid,nodev 0 0
/dev/sdb1 /run/media/user/MY\040STICK vfat rw,nosuid 0 0
//nas/share /mnt/nas cifs rw 0 0
/dev/sdc1 /mnt/floppy vfat rw 0 0
broken line
`

func TestParseMounts(t *testing.T) {
	t.Parallel()

	got := parseMounts(strings.NewReader(sampleMounts))
	require.Len(t, got, 3)

	cd := got["/dev/sr0"]
	assert.Equal(t, "/media/user/DOOM_CD", cd.Root)
	assert.Equal(t, "DOOM_CD", cd.Label)
	assert.True(t, cd.Optical)
	assert.True(t, cd.Mounted)

	stick := got["/dev/sdb1"]
	assert.Equal(t, "/run/media/user/MY STICK", stick.Root)
	assert.False(t, stick.Optical)

	assert.Equal(t, "/mnt/floppy", got["/dev/sdc1"].Root)
}

func TestUnescapeMountPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/media/a b", unescapeMountPath(`/media/a\040b`))
	assert.Equal(t, `/media/a\b`, unescapeMountPath(`/media/a\134b`))
	assert.Equal(t, `/media/trail\04`, unescapeMountPath(`/media/trail\04`))
	assert.Equal(t, "/plain", unescapeMountPath("/plain"))
}

func TestMountsDetector_Apply(t *testing.T) {
	t.Parallel()

	d := newMountsDetector("unused")
	d.mounted = parseMounts(strings.NewReader("/dev/sr0 /media/cd iso9660 ro 0 0\n"))

	ok := d.apply(parseMounts(strings.NewReader("/dev/sdb1 /media/usb vfat rw 0 0\n")))
	require.True(t, ok)

	var changes []VolumeChange
	for range 2 {
		changes = append(changes, <-d.changes)
	}

	assert.Equal(t, "/media/usb", changes[0].Root)
	assert.True(t, changes[0].Mounted)
	assert.Equal(t, "/media/cd", changes[1].Root)
	assert.False(t, changes[1].Mounted)
	assert.True(t, changes[1].Optical)
	assert.Len(t, d.mounted, 1)
}
