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
)

var ErrNoScanner = errors.New("optical volume scanning unavailable")

// MountOpticalVolumes mounts every attached optical volume that is not yet a
// drive root. Each volume is its own request on the loop, so one failure
// does not undo the others.
func (c *Coordinator) MountOpticalVolumes(ctx context.Context) (bool, error) {
	if c.scanner == nil {
		return false, ErrNoScanner
	}
	mountedAny, err := c.scanner.MountAllUnmounted(ctx, c)
	if err != nil {
		return mountedAny, fmt.Errorf("mounting optical volumes: %w", err)
	}
	return mountedAny, nil
}
