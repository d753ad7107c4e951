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

// Package guest describes the DOS session the drives are exposed to.
package guest

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Guest receives the follow-up action after a host path has been opened.
// Paths are DOS paths such as `C:\GAME\RUN.EXE`.
type Guest interface {
	Launch(ctx context.Context, dosPath string) error
	ChangeDirectory(ctx context.Context, dosPath string) error
}

// CacheRefresher is implemented by guests that cache directory listings
// and need telling when a drive's backing folder changed.
type CacheRefresher interface {
	RefreshDrive(ctx context.Context, letter string) error
}

// LogGuest only records what it is asked to do. It stands in when no
// emulator is attached.
type LogGuest struct{}

func (LogGuest) Launch(_ context.Context, dosPath string) error {
	log.Info().Str("dos_path", dosPath).Msg("guest launch requested")
	return nil
}

func (LogGuest) ChangeDirectory(_ context.Context, dosPath string) error {
	log.Info().Str("dos_path", dosPath).Msg("guest change directory requested")
	return nil
}

func (LogGuest) RefreshDrive(_ context.Context, letter string) error {
	log.Debug().Str("letter", letter).Msg("guest drive cache refresh requested")
	return nil
}
