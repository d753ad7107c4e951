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

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/notifications"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// Unmount removes a user drive. Internal drives return ErrDriveBusy and the
// table is left untouched.
func (c *Coordinator) Unmount(ctx context.Context, letter string) error {
	var err error
	if subErr := c.submit(ctx, func() {
		err = c.unmount(letter)
	}); subErr != nil {
		return subErr
	}
	return err
}

// UnmountError is one letter's failure within UnmountAll.
type UnmountError struct {
	Err    error
	Letter string
}

func (e *UnmountError) Error() string {
	return e.Letter + ": " + e.Err.Error()
}

func (e *UnmountError) Unwrap() error {
	return e.Err
}

// UnmountAll unmounts each letter independently and returns how many went.
// An empty list means every visible drive. Failures are joined, one
// *UnmountError per letter.
func (c *Coordinator) UnmountAll(ctx context.Context, letters []string) (int, error) {
	if len(letters) == 0 {
		for _, d := range c.table.ListVisible() {
			letters = append(letters, d.Letter)
		}
	}

	count := 0
	var errs []error
	for _, letter := range letters {
		if err := c.Unmount(ctx, letter); err != nil {
			errs = append(errs, &UnmountError{Letter: letter, Err: err})
			if errors.Is(err, ErrStopped) || ctx.Err() != nil {
				break
			}
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func (c *Coordinator) unmount(letter string) error {
	l, err := drives.NormalizeLetter(letter)
	if err != nil {
		return err //nolint:wrapcheck // sentinel errors from drives
	}
	d, ok := c.table.LookupByLetter(l)
	if !ok {
		return fmt.Errorf("%w: %s:", drives.ErrNotFound, l)
	}
	if d.Internal {
		return fmt.Errorf("%w: %s:", drives.ErrDriveBusy, l)
	}

	c.stopWatch(&d)
	if _, err := c.table.Remove(l); err != nil {
		return err //nolint:wrapcheck // sentinel errors from table
	}

	log.Info().Str("letter", d.Letter).Str("root", d.Root).Msg("unmounted drive")
	if d.Visible() {
		notifications.DrivesRemoved(c.ns, models.NewDriveResponse(&d))
	}
	return nil
}

// detachRoot drops the drive rooted at root and every drive nested inside
// it, internal ones included, in one table mutation.
func (c *Coordinator) detachRoot(root string) []drives.Drive {
	var victims []drives.Drive
	for _, d := range c.table.All() {
		if helpers.PathHasPrefix(d.Root, root) {
			victims = append(victims, d)
		}
	}
	if len(victims) == 0 {
		return nil
	}

	letters := make([]string, 0, len(victims))
	for i := range victims {
		c.stopWatch(&victims[i])
		letters = append(letters, victims[i].Letter)
	}
	removed := c.table.RemoveAll(letters)

	for i := range removed {
		log.Info().
			Str("letter", removed[i].Letter).
			Str("root", removed[i].Root).
			Str("volume", root).
			Msg("drive detached with host volume")
		if removed[i].Visible() {
			notifications.DrivesRemoved(c.ns, models.NewDriveResponse(&removed[i]))
		}
	}
	return removed
}
