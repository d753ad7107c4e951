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
	"fmt"
	"strings"
)

const (
	AutoMountAll     = "all"
	AutoMountOptical = "optical"
	AutoMountOff     = "off"
)

var (
	DefaultReservedLetters = []string{"Y", "Z"}
	DefaultSeparateKinds   = []string{"image", "drivefolder"}
	DefaultImageExtensions = []string{".iso", ".cdr", ".cue", ".toast", ".inst", ".gog"}
)

type Drives struct {
	AutoMount         string   `toml:"auto_mount,omitempty"`
	ReservedLetters   []string `toml:"reserved_letters,omitempty,multiline"`
	SeparateKinds     []string `toml:"separate_kinds,omitempty,multiline"`
	ImageExtensions   []string `toml:"image_extensions,omitempty,multiline"`
	AllowSourceImages bool     `toml:"allow_source_images"`
}

func (d *Drives) validate() error {
	switch strings.ToLower(d.AutoMount) {
	case "", AutoMountAll, AutoMountOptical, AutoMountOff:
	default:
		return fmt.Errorf("invalid drives.auto_mount value: %q", d.AutoMount)
	}
	for _, l := range d.ReservedLetters {
		if len(l) != 1 || strings.ToUpper(l)[0] < 'A' || strings.ToUpper(l)[0] > 'Z' {
			return fmt.Errorf("invalid drives.reserved_letters entry: %q", l)
		}
	}
	return nil
}

// ReservedLetters returns letters kept for internal drives.
func (c *Instance) ReservedLetters() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Drives.ReservedLetters) == 0 {
		return DefaultReservedLetters
	}
	return c.vals.Drives.ReservedLetters
}

// SeparateKinds returns the drive kind names that always get their own
// drive, even inside an already mounted folder.
func (c *Instance) SeparateKinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Drives.SeparateKinds) == 0 {
		return DefaultSeparateKinds
	}
	return c.vals.Drives.SeparateKinds
}

// ImageExtensions returns the lower case, dot-prefixed disc image extensions.
func (c *Instance) ImageExtensions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Drives.ImageExtensions) == 0 {
		return DefaultImageExtensions
	}
	exts := make([]string, 0, len(c.vals.Drives.ImageExtensions))
	for _, ext := range c.vals.Drives.ImageExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// AutoMount returns the policy for volumes attached while running.
func (c *Instance) AutoMount() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Drives.AutoMount == "" {
		return AutoMountAll
	}
	return strings.ToLower(c.vals.Drives.AutoMount)
}

func (c *Instance) SetAutoMount(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Drives.AutoMount = mode
}

// AllowSourceImages gates mounting the backing disc image instead of the
// extracted folder. Drive bookkeeping cannot track both at once yet, so this
// stays off unless explicitly enabled.
func (c *Instance) AllowSourceImages() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Drives.AllowSourceImages
}
