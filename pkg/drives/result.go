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

// RejectReason says why an eligible-looking request did not mount anything.
type RejectReason int

const (
	RejectNone RejectReason = iota
	// RejectAlreadyAccessible means an existing drive already reaches the
	// path and its kind does not call for a drive of its own.
	RejectAlreadyAccessible
)

func (r RejectReason) String() string {
	switch r {
	case RejectAlreadyAccessible:
		return "already_accessible"
	default:
		return "none"
	}
}

func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// MountResult is the outcome of a mount request that did not fail. Exactly
// one of Drive being set or Rejected being true holds.
type MountResult struct {
	Drive    Drive
	Reason   RejectReason
	Rejected bool
}
