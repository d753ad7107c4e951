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

//go:build windows

package volumes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/yusufpapurcu/wmi"
)

const driveTypeCDROM = 5

//nolint:revive,stylecheck // field names must match the WMI class
type win32LogicalDisk struct {
	DeviceID   string
	VolumeName *string
	FileSystem *string
	DriveType  uint32
}

// SystemLister asks WMI for CD-ROM drives with media loaded. Empty trays
// have no filesystem and are skipped.
type SystemLister struct{}

func (SystemLister) OpticalVolumes(ctx context.Context) ([]string, error) {
	var disks []win32LogicalDisk
	query := fmt.Sprintf(
		"SELECT DeviceID, VolumeName, FileSystem, DriveType FROM Win32_LogicalDisk WHERE DriveType = %d",
		driveTypeCDROM,
	)
	if err := wmi.Query(query, &disks); err != nil {
		log.Debug().Err(err).Msg("WMI optical query failed, falling back to partitions")
		return PartitionLister{}.OpticalVolumes(ctx)
	}

	roots := make([]string, 0, len(disks))
	for _, d := range disks {
		if d.FileSystem == nil || *d.FileSystem == "" {
			continue
		}
		roots = append(roots, d.DeviceID+`\`)
	}
	return roots, nil
}
