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

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/watcher"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/guest"
	"github.com/rs/zerolog/log"
)

// reconcile applies a host event to the table. It runs on the loop
// goroutine, so it is ordered with every user request.
func (c *Coordinator) reconcile(ctx context.Context, ev watcher.Event) { //nolint:gocritic // event by value
	switch ev.Kind {
	case watcher.VolumeMounted:
		c.volumeAttached(ev)
	case watcher.VolumeUnmounted:
		removed := c.detachRoot(ev.Root)
		log.Debug().Str("root", ev.Root).Int("removed", len(removed)).Msg("reconciled volume detach")
	case watcher.TreeChanged:
		c.treeChanged(ctx, ev)
	}
}

func (c *Coordinator) volumeAttached(ev watcher.Event) { //nolint:gocritic // event by value
	switch c.cfg.AutoMount() {
	case config.AutoMountOff:
		return
	case config.AutoMountOptical:
		if !ev.Optical {
			return
		}
	}

	res, err := c.mount(MountRequest{Path: ev.Root})
	switch {
	case err != nil:
		log.Warn().Err(err).Str("root", ev.Root).Msg("failed to auto mount volume")
	case res.Rejected:
		log.Debug().Str("root", ev.Root).Str("reason", res.Reason.String()).Msg("attached volume not mounted")
	}
}

// treeChanged leaves the table alone; the drive still exists, only its
// contents moved. Guests that cache listings are told to refresh.
func (c *Coordinator) treeChanged(ctx context.Context, ev watcher.Event) { //nolint:gocritic // event by value
	d, ok := c.table.LookupByRoot(ev.Root)
	if !ok {
		return
	}
	refresher, ok := c.guest.(guest.CacheRefresher)
	if !ok {
		return
	}
	if err := refresher.RefreshDrive(ctx, d.Letter); err != nil {
		log.Warn().Err(err).Str("letter", d.Letter).Msg("failed to refresh guest drive cache")
	}
}
