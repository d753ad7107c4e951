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

package requests

import (
	"context"
	"encoding/json"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/service/mounts"
)

// DriveService is the mount coordinator as seen by API handlers.
type DriveService interface {
	ListVisible() []drives.Drive
	Drives() []drives.Drive
	Mount(ctx context.Context, req mounts.MountRequest) (drives.MountResult, error)
	Unmount(ctx context.Context, letter string) error
	UnmountAll(ctx context.Context, letters []string) (int, error)
	OpenPath(ctx context.Context, path string) (mounts.OpenOutcome, error)
	MountOpticalVolumes(ctx context.Context) (bool, error)
}

type RequestEnv struct {
	Context context.Context
	Drives  DriveService
	Config  *config.Instance
	Params  json.RawMessage
	ID      models.RPCID
	IsLocal bool
}
