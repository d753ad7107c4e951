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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

const backingLookupTimeout = 2 * time.Second

// LoopImageResolver finds the disc image behind a loop-mounted volume, so a
// path on a mounted ISO can be swapped for the ISO itself. Hosts without
// loop devices never resolve anything.
type LoopImageResolver struct {
	// Partitions defaults to gopsutil's disk.PartitionsWithContext.
	Partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	// ReadFile defaults to os.ReadFile; it reads the sysfs backing_file.
	ReadFile func(name string) ([]byte, error)
}

func (r LoopImageResolver) SourceImage(path string) (string, bool) {
	partitions := r.Partitions
	if partitions == nil {
		partitions = disk.PartitionsWithContext
	}
	readFile := r.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	ctx, cancel := context.WithTimeout(context.Background(), backingLookupTimeout)
	defer cancel()

	parts, err := partitions(ctx, false)
	if err != nil {
		log.Debug().Err(err).Msg("failed to list partitions for backing image")
		return "", false
	}

	var best disk.PartitionStat
	for _, p := range parts {
		if !strings.HasPrefix(p.Device, "/dev/loop") || p.Mountpoint == "" {
			continue
		}
		if helpers.PathHasPrefix(path, p.Mountpoint) && len(p.Mountpoint) > len(best.Mountpoint) {
			best = p
		}
	}
	if best.Device == "" {
		return "", false
	}

	sysPath := filepath.Join("/sys/block", filepath.Base(best.Device), "loop", "backing_file")
	data, err := readFile(sysPath)
	if err != nil {
		log.Debug().Err(err).Str("device", best.Device).Msg("no backing file for loop device")
		return "", false
	}
	img := strings.TrimSpace(string(data))
	// the kernel appends this when the image was deleted after mounting
	if img == "" || strings.HasSuffix(img, "(deleted)") {
		return "", false
	}
	return img, true
}
