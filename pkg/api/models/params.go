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

package models

type MountParams struct {
	Path              string `json:"path" validate:"required,hostpath"`
	PreferSourceImage bool   `json:"preferSourceImage"`
}

type UnmountParams struct {
	Letter string `json:"letter" validate:"required,letter"`
}

// UnmountAllParams with no letters unmounts every user drive.
type UnmountAllParams struct {
	Letters []string `json:"letters" validate:"omitempty,max=26,dive,letter"`
}

type OpenParams struct {
	Path string `json:"path" validate:"required,hostpath"`
}
