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

import (
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
)

type DriveResponse struct {
	MountedAt time.Time `json:"mountedAt"`
	Letter    string    `json:"letter"`
	Root      string    `json:"root"`
	Source    string    `json:"source"`
	Label     string    `json:"label"`
	Kind      string    `json:"kind"`
	Internal  bool      `json:"internal"`
	Hidden    bool      `json:"hidden"`
}

func NewDriveResponse(d *drives.Drive) DriveResponse {
	return DriveResponse{
		MountedAt: d.MountedAt,
		Letter:    d.Letter,
		Root:      d.Root,
		Source:    d.Source,
		Label:     d.Label,
		Kind:      d.Kind.String(),
		Internal:  d.Internal,
		Hidden:    d.Hidden,
	}
}

func NewDrivesResponse(ds []drives.Drive) DrivesResponse {
	out := DrivesResponse{Drives: make([]DriveResponse, 0, len(ds))}
	for i := range ds {
		out.Drives = append(out.Drives, NewDriveResponse(&ds[i]))
	}
	return out
}

type DrivesResponse struct {
	Drives []DriveResponse `json:"drives"`
}

type MountResponse struct {
	Drive    *DriveResponse `json:"drive,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Rejected bool           `json:"rejected"`
}

type UnmountFailure struct {
	Letter string `json:"letter,omitempty"`
	Error  string `json:"error"`
}

// UnmountAllResponse reports partial success: drives that went and the
// letters that could not be unmounted.
type UnmountAllResponse struct {
	Errors    []UnmountFailure `json:"errors,omitempty"`
	Unmounted int              `json:"unmounted"`
}

type OpenResponse struct {
	Drive   DriveResponse `json:"drive"`
	DOSPath string        `json:"dosPath"`
	Action  string        `json:"action"`
	Mounted bool          `json:"mounted"`
}

type MountOpticalResponse struct {
	MountedAny bool `json:"mountedAny"`
}

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}
