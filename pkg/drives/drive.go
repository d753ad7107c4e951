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

// Package drives holds the drive model shared by the classifier, watcher
// and mount coordinator, and the Table registry of active drives.
package drives

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/google/uuid"
)

// Kind is the classification of a host path.
type Kind int

const (
	KindPlainFile Kind = iota
	KindPlainFolder
	// KindOpticalVolume is a path on a mounted physical or virtual CD/DVD.
	KindOpticalVolume
	// KindDiscImage is a single file holding a whole disc (ISO, CUE, CDR...).
	KindDiscImage
	// KindDriveFolder is a folder bundle standing in for a whole drive,
	// e.g. "Game.cdrom", "Boot.floppy" or "C.harddisk".
	KindDriveFolder
)

var kindNames = map[Kind]string{
	KindPlainFile:     "file",
	KindPlainFolder:   "folder",
	KindOpticalVolume: "optical",
	KindDiscImage:     "image",
	KindDriveFolder:   "drivefolder",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown drive kind: %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HostPath is a cleaned absolute host path plus the stat details the
// classifier needed to decide its Kind.
type HostPath struct {
	Path     string
	Size     int64
	IsDir    bool
	IsBundle bool
}

// WatchHandle is the ownership token for a live filesystem watch. The Table
// keeps it with the drive record; it must be handed back to the watcher
// exactly once when the drive goes away.
type WatchHandle struct {
	Root string
	ID   uuid.UUID
}

func (h WatchHandle) Valid() bool {
	return h.ID != uuid.Nil
}

// Drive is one active virtual volume.
type Drive struct {
	MountedAt time.Time
	// Letter is the drive identifier, always a single upper case A-Z.
	Letter string
	// Root is the host path backing the drive.
	Root string
	// Source is the path that triggered the mount. It differs from Root when
	// e.g. a file caused its parent folder to be mounted.
	Source   string
	Label    string
	Watch    WatchHandle
	Kind     Kind
	Internal bool
	Hidden   bool
}

// Visible reports whether the drive belongs in user-facing listings.
func (d *Drive) Visible() bool {
	return !d.Internal && !d.Hidden
}

// Contains reports whether path is reachable through this drive.
func (d *Drive) Contains(path string) bool {
	return helpers.PathHasPrefix(path, d.Root)
}

// NormalizeLetter validates and upper-cases a drive letter. A trailing colon
// is accepted ("c:" -> "C").
func NormalizeLetter(letter string) (string, error) {
	l := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(letter), ":"))
	if len(l) != 1 || l[0] < 'A' || l[0] > 'Z' {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, letter)
	}
	return l, nil
}
