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

package watcher

import "sync"

// VolumeChange is a host volume appearing or going away.
type VolumeChange struct {
	// DeviceID is stable across mount cycles (volume UUID or serial) when the
	// platform provides one, otherwise the mount path.
	DeviceID string
	Root     string
	Label    string
	FSType   string
	Mounted  bool
	Optical  bool
}

// VolumeDetector reports host volumes attaching and detaching. Unmount
// changes carry the Root the volume was mounted at.
type VolumeDetector interface {
	// Changes is closed once Stop returns.
	Changes() <-chan VolumeChange
	Start() error
	Stop()
}

// NopDetector never reports anything. It is used where volume events are
// disabled in config or unsupported by the platform.
type NopDetector struct {
	changes  chan VolumeChange
	stopOnce sync.Once
}

func NewNopDetector() *NopDetector {
	return &NopDetector{changes: make(chan VolumeChange)}
}

func (d *NopDetector) Changes() <-chan VolumeChange { return d.changes }

func (*NopDetector) Start() error { return nil }

func (d *NopDetector) Stop() {
	d.stopOnce.Do(func() { close(d.changes) })
}
