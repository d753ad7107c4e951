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

package helpers

import (
	"path"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var segment = rapid.StringMatching(`[A-Za-z0-9_\-]{1,12}`)

func drawRoot(t *rapid.T, label string) string {
	parts := rapid.SliceOfN(segment, 1, 4).Draw(t, label)
	return "/" + strings.Join(parts, "/")
}

func TestPropertyNormalizeStable(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		root := drawRoot(t, "root")
		key := NormalizePathForComparison(root)

		if NormalizePathForComparison(key) != key {
			t.Fatalf("normalizing %q twice changed it", root)
		}
		if NormalizePathForComparison(root+"/") != key {
			t.Fatalf("trailing slash changed key for %q", root)
		}
		if NormalizePathForComparison(root+"/./x/..") != key {
			t.Fatalf("dot segments changed key for %q", root)
		}
	})
}

func TestPropertyDriveRootContainment(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		root := drawRoot(t, "root")
		child := path.Join(root, segment.Draw(t, "child"))

		if !PathHasPrefix(root, root) || PathIsWithin(root, root) {
			t.Fatalf("root %q must contain itself but not strictly", root)
		}
		if !PathIsWithin(child, root) {
			t.Fatalf("%q should be inside %q", child, root)
		}
		if PathHasPrefix(root, child) {
			t.Fatalf("%q should not be inside %q", root, child)
		}
	})
}

// A drive at /media/Game must not claim /media/Game2.
func TestPropertySiblingRootsStayApart(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		root := drawRoot(t, "root")
		suffix := segment.Draw(t, "suffix")
		sibling := root + suffix

		if SamePath(root, sibling) {
			t.Skip("suffix collapsed")
		}
		if PathHasPrefix(sibling, root) {
			t.Fatalf("%q matched sibling root %q", sibling, root)
		}
		if PathHasPrefix(sibling+"/RUN.EXE", root) {
			t.Fatalf("file under %q matched root %q", sibling, root)
		}
	})
}
