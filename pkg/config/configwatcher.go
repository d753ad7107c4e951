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

package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultWatchDebounce = 250 * time.Millisecond

type Watcher struct {
	VolumeEvents *bool  `toml:"volume_events,omitempty"`
	Debounce     string `toml:"debounce,omitempty"`
}

// WatchDebounce is how long tree change events are coalesced per root.
func (c *Instance) WatchDebounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Watcher.Debounce == "" {
		return DefaultWatchDebounce
	}
	d, err := time.ParseDuration(c.vals.Watcher.Debounce)
	if err != nil || d < 0 {
		log.Warn().Str("debounce", c.vals.Watcher.Debounce).Msg("invalid watcher debounce, using default")
		return DefaultWatchDebounce
	}
	return d
}

// VolumeEvents reports whether host volume attach/detach detection runs.
func (c *Instance) VolumeEvents() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Watcher.VolumeEvents == nil {
		return true
	}
	return *c.vals.Watcher.VolumeEvents
}

func (c *Instance) SetVolumeEvents(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Watcher.VolumeEvents = &enabled
}
