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
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// caseInsensitiveHost is true where the default host filesystems (NTFS,
// APFS, HFS+) ignore case, so two spellings of a path are the same root.
var caseInsensitiveHost = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// CleanPath returns the absolute, cleaned form of a host path.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// NormalizePathForComparison converts a path to a comparison key: forward
// slashes, cleaned, and lowercased on hosts with case-insensitive filesystems.
func NormalizePathForComparison(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.ToSlash(filepath.Clean(path))
	if caseInsensitiveHost {
		return strings.ToLower(p)
	}
	return p
}

// PathHasPrefix checks if path is root itself or lives inside root, handling
// separator boundaries so "/media/games2/x" is not inside "/media/games".
func PathHasPrefix(path, root string) bool {
	normPath := NormalizePathForComparison(path)
	normRoot := NormalizePathForComparison(root)

	if normRoot == "" {
		return false
	}
	if normPath == normRoot {
		return true
	}
	if !strings.HasSuffix(normRoot, "/") {
		normRoot += "/"
	}
	return strings.HasPrefix(normPath, normRoot)
}

// PathIsWithin is PathHasPrefix without the equality case: it is true only
// when root is a proper ancestor of path.
func PathIsWithin(path, root string) bool {
	if NormalizePathForComparison(path) == NormalizePathForComparison(root) {
		return false
	}
	return PathHasPrefix(path, root)
}

// SamePath reports whether two host paths name the same location.
func SamePath(a, b string) bool {
	return NormalizePathForComparison(a) == NormalizePathForComparison(b)
}
