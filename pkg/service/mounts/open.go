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
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/rs/zerolog/log"
)

type Action int

const (
	ActionChangeDirectory Action = iota
	ActionLaunch
)

func (a Action) String() string {
	if a == ActionLaunch {
		return "launch"
	}
	return "cd"
}

type OpenOutcome struct {
	Drive   drives.Drive
	DOSPath string
	Action  Action
	// Mounted is true when opening the path created a new drive.
	Mounted bool
}

// OpenPath makes path reachable, mounting its preferred mount point if
// needed, then asks the guest to launch it if it is an executable or to
// change into its folder otherwise.
func (c *Coordinator) OpenPath(ctx context.Context, path string) (OpenOutcome, error) {
	var (
		out OpenOutcome
		err error
	)
	if subErr := c.submit(ctx, func() {
		out, err = c.resolveOpen(path)
	}); subErr != nil {
		return OpenOutcome{}, subErr
	}
	if err != nil {
		return OpenOutcome{}, err
	}

	if c.guest == nil {
		return out, nil
	}
	switch out.Action {
	case ActionLaunch:
		err = c.guest.Launch(ctx, out.DOSPath)
	case ActionChangeDirectory:
		err = c.guest.ChangeDirectory(ctx, out.DOSPath)
	}
	if err != nil {
		return out, fmt.Errorf("guest %s %s: %w", out.Action, out.DOSPath, err)
	}
	return out, nil
}

// resolveOpen runs on the loop goroutine.
func (c *Coordinator) resolveOpen(path string) (OpenOutcome, error) {
	res, err := c.mount(MountRequest{Path: path})
	if err != nil {
		return OpenOutcome{}, err
	}

	hp, err := c.classifier.Stat(path)
	if err != nil {
		return OpenOutcome{}, err //nolint:wrapcheck // already wraps ErrClassification
	}

	owner, ok := c.table.Owner(hp.Path)
	if !ok {
		return OpenOutcome{}, fmt.Errorf("%w: no drive reaches %s", drives.ErrNotFound, hp.Path)
	}

	out := OpenOutcome{Drive: owner, Mounted: !res.Rejected}
	switch {
	case !hp.IsDir && helpers.SamePath(owner.Root, hp.Path):
		// a disc image: the drive itself is the target
		out.Action = ActionChangeDirectory
		out.DOSPath = DOSPath(owner.Letter, owner.Root, owner.Root)
	case !hp.IsDir && c.classifier.IsExecutablePayload(hp.Path):
		out.Action = ActionLaunch
		out.DOSPath = DOSPath(owner.Letter, owner.Root, hp.Path)
	case !hp.IsDir:
		out.Action = ActionChangeDirectory
		out.DOSPath = DOSPath(owner.Letter, owner.Root, filepath.Dir(hp.Path))
	default:
		out.Action = ActionChangeDirectory
		out.DOSPath = DOSPath(owner.Letter, owner.Root, hp.Path)
	}

	log.Info().
		Str("path", hp.Path).
		Str("letter", owner.Letter).
		Str("dos_path", out.DOSPath).
		Str("action", out.Action.String()).
		Msg("opening path")
	return out, nil
}

// DOSPath converts a host path under root into the guest's view of it on
// drive letter, e.g. `C:\GAME\RUN.EXE`. Paths outside root map to the drive
// root.
func DOSPath(letter, root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return letter + `:\`
	}
	rel = strings.ReplaceAll(filepath.ToSlash(rel), "/", `\`)
	return letter + `:\` + strings.ToUpper(rel)
}
