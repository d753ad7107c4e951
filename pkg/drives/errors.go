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

package drives

import "errors"

var (
	// ErrClassification is returned when a host path does not exist or
	// cannot be read well enough to decide what kind of volume it is.
	ErrClassification = errors.New("path could not be classified")
	// ErrDuplicateRoot is returned when a drive already exposes the root.
	ErrDuplicateRoot = errors.New("a drive is already mounted at this root")
	// ErrDuplicateIdentifier is returned when the drive letter is taken.
	ErrDuplicateIdentifier = errors.New("drive letter already in use")
	// ErrInvalidIdentifier is returned for anything that is not A-Z.
	ErrInvalidIdentifier = errors.New("invalid drive letter")
	ErrNotFound          = errors.New("drive not found")
	// ErrDriveBusy is returned when unmounting an internal drive.
	ErrDriveBusy        = errors.New("drive is in use and cannot be unmounted")
	ErrNoFreeIdentifier = errors.New("no free drive letters")
	ErrWatchSetupFailed = errors.New("failed to watch drive root")
)
