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

// Package volumes finds mounted optical volumes and bulk-mounts the ones
// that do not have a drive yet.
package volumes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

// Lister enumerates host volumes that currently hold optical media.
type Lister interface {
	OpticalVolumes(ctx context.Context) ([]string, error)
}

// Mounter is the part of the mount coordinator the scanner drives.
type Mounter interface {
	Drives() []drives.Drive
	MountForPath(ctx context.Context, path string) (drives.MountResult, error)
}

type Scanner struct {
	lister Lister
}

// NewScanner uses the platform's volume listing when lister is nil.
func NewScanner(lister Lister) *Scanner {
	if lister == nil {
		lister = SystemLister{}
	}
	return &Scanner{lister: lister}
}

// OpticalVolumes returns the sorted, de-duplicated roots of mounted optical
// volumes at the time of the call.
func (s *Scanner) OpticalVolumes(ctx context.Context) ([]string, error) {
	roots, err := s.lister.OpticalVolumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list optical volumes: %w", err)
	}

	seen := make(map[string]struct{}, len(roots))
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = cleanRoot(root)
		key := helpers.NormalizePathForComparison(root)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, root)
	}
	slices.Sort(out)
	return out, nil
}

// MountAllUnmounted mounts every optical volume that is not already the
// exact root of a drive. A volume nested inside another drive still gets its
// own drive. It reports whether at least one new drive was created; per
// volume failures are joined and never stop the scan.
func (s *Scanner) MountAllUnmounted(ctx context.Context, m Mounter) (bool, error) {
	roots, err := s.OpticalVolumes(ctx)
	if err != nil {
		return false, err
	}

	existing := m.Drives()
	mountedAny := false
	var errs []error

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if hasExactRoot(existing, root) {
			continue
		}

		res, err := m.MountForPath(ctx, root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("failed to mount optical volume")
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		if res.Rejected {
			log.Debug().Str("root", root).Str("reason", res.Reason.String()).Msg("optical volume not mounted")
			continue
		}
		log.Info().Str("root", root).Str("letter", res.Drive.Letter).Msg("mounted optical volume")
		mountedAny = true
	}

	return mountedAny, errors.Join(errs...)
}

func hasExactRoot(existing []drives.Drive, root string) bool {
	for i := range existing {
		if helpers.SamePath(existing[i].Root, root) {
			return true
		}
	}
	return false
}

// cleanRoot keeps Windows drive roots in their "E:\" form.
func cleanRoot(root string) string {
	if len(root) == 2 && root[1] == ':' {
		return root + `\`
	}
	return filepath.Clean(root)
}

// PartitionLister lists optical volumes from the mounted partition table.
type PartitionLister struct {
	// Partitions defaults to gopsutil's disk.PartitionsWithContext.
	Partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
}

func (l PartitionLister) OpticalVolumes(ctx context.Context) ([]string, error) {
	partitions := l.Partitions
	if partitions == nil {
		partitions = disk.PartitionsWithContext
	}

	parts, err := partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk partitions: %w", err)
	}

	roots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Mountpoint == "" || !drives.IsOpticalFS(p.Fstype) {
			continue
		}
		if strings.HasPrefix(p.Mountpoint, `\\`) {
			continue
		}
		roots = append(roots, p.Mountpoint)
	}
	return roots, nil
}
