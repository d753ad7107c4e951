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
	"fmt"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/notifications"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/rs/zerolog/log"
)

type MountRequest struct {
	Path string
	// Letter forces a drive letter instead of allocating one.
	Letter string
	// PreferSourceImage asks for the disc image a folder was extracted from.
	// It only applies when source images are enabled in config.
	PreferSourceImage bool
	// Internal drives skip the eligibility gate and cannot be unmounted by
	// users.
	Internal bool
	Hidden   bool
}

// MountForPath mounts the preferred mount point for path if the path is not
// already reachable. An already reachable path is a rejected result, not an
// error.
func (c *Coordinator) MountForPath(ctx context.Context, path string) (drives.MountResult, error) {
	return c.Mount(ctx, MountRequest{Path: path})
}

func (c *Coordinator) Mount(ctx context.Context, req MountRequest) (drives.MountResult, error) {
	var (
		res drives.MountResult
		err error
	)
	if subErr := c.submit(ctx, func() {
		res, err = c.mount(req)
	}); subErr != nil {
		return drives.MountResult{}, subErr
	}
	return res, err
}

// MountInternal registers a drive the guest relies on, such as a utilities
// folder. Internal drives are not listed and cannot be unmounted by users.
func (c *Coordinator) MountInternal(
	ctx context.Context,
	root string,
	letter string,
	hidden bool,
) (drives.Drive, error) {
	if _, err := drives.NormalizeLetter(letter); err != nil {
		return drives.Drive{}, err
	}
	res, err := c.Mount(ctx, MountRequest{
		Path:     root,
		Letter:   letter,
		Internal: true,
		Hidden:   hidden,
	})
	if err != nil {
		return drives.Drive{}, err
	}
	return res.Drive, nil
}

// mount runs on the loop goroutine.
func (c *Coordinator) mount(req MountRequest) (drives.MountResult, error) { //nolint:gocritic // request copied once
	hp, err := c.classifier.Stat(req.Path)
	if err != nil {
		return drives.MountResult{}, err //nolint:wrapcheck // already wraps ErrClassification
	}

	if !req.Internal {
		eligible, err := c.classifier.ShouldMountSeparately(hp.Path, c.table.All())
		if err != nil {
			return drives.MountResult{}, err //nolint:wrapcheck // already wraps ErrClassification
		}
		if !eligible {
			log.Debug().Str("path", hp.Path).Msg("path already accessible, not mounting")
			return rejected(drives.RejectAlreadyAccessible), nil
		}
	}

	root := hp.Path
	if !req.Internal {
		root, err = c.classifier.PreferredMountPoint(hp.Path, req.PreferSourceImage && c.cfg.AllowSourceImages())
		if err != nil {
			return drives.MountResult{}, err //nolint:wrapcheck // already wraps ErrClassification
		}
	}
	if _, ok := c.table.LookupByRoot(root); ok {
		log.Debug().Str("path", hp.Path).Str("root", root).Msg("mount point already has a drive")
		return rejected(drives.RejectAlreadyAccessible), nil
	}

	kind, err := c.classifier.Classify(root)
	if err != nil {
		return drives.MountResult{}, err //nolint:wrapcheck // already wraps ErrClassification
	}

	letter, err := c.pickLetter(req.Letter, kind)
	if err != nil {
		return drives.MountResult{}, err
	}

	handle, err := c.tracker.StartTracking(root)
	if err != nil {
		return drives.MountResult{}, fmt.Errorf("mounting %s: %w", root, err)
	}

	d := drives.Drive{
		MountedAt: c.clock.Now(),
		Letter:    letter,
		Root:      root,
		Source:    hp.Path,
		Label:     drives.VolumeLabel(root),
		Watch:     handle,
		Kind:      kind,
		Internal:  req.Internal,
		Hidden:    req.Hidden,
	}
	if err := c.table.Insert(d); err != nil {
		c.stopWatch(&d)
		return drives.MountResult{}, fmt.Errorf("mounting %s: %w", root, err)
	}

	log.Info().
		Str("letter", d.Letter).
		Str("root", d.Root).
		Str("kind", d.Kind.String()).
		Bool("internal", d.Internal).
		Msg("mounted drive")

	if d.Visible() {
		notifications.DrivesAdded(c.ns, models.NewDriveResponse(&d))
	}
	return drives.MountResult{Drive: d}, nil
}

func (c *Coordinator) pickLetter(requested string, kind drives.Kind) (string, error) {
	if requested == "" {
		return c.table.AllocateIdentifier(kind) //nolint:wrapcheck // sentinel errors from table
	}
	letter, err := drives.NormalizeLetter(requested)
	if err != nil {
		return "", err //nolint:wrapcheck // sentinel errors from drives
	}
	if _, taken := c.table.LookupByLetter(letter); taken {
		return "", fmt.Errorf("%w: %s:", drives.ErrDuplicateIdentifier, letter)
	}
	return letter, nil
}

func rejected(reason drives.RejectReason) drives.MountResult {
	return drives.MountResult{Rejected: true, Reason: reason}
}
