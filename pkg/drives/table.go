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

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers/syncutil"
)

// Table is the authoritative registry of active drives, indexed by letter
// and by normalized root.
//
// Only the mount coordinator's write loop calls the mutating methods. Every
// read returns copies, so readers on other goroutines never see a record
// change under them.
type Table struct {
	byLetter map[string]*Drive
	byRoot   map[string]string
	reserved map[string]struct{}
	mu       syncutil.RWMutex
}

// NewTable creates an empty table. Letters in reserved are never handed out
// by AllocateIdentifier; they can still be inserted explicitly, which is how
// internal drives claim them.
func NewTable(reserved []string) *Table {
	t := &Table{
		byLetter: make(map[string]*Drive),
		byRoot:   make(map[string]string),
		reserved: make(map[string]struct{}),
	}
	for _, r := range reserved {
		l, err := NormalizeLetter(r)
		if err != nil {
			continue
		}
		t.reserved[l] = struct{}{}
	}
	return t
}

// Insert adds a drive. The drive's watch handle is owned by the table from
// this point until Remove hands it back.
func (t *Table) Insert(d Drive) error { //nolint:gocritic // drive is copied into the table
	letter, err := NormalizeLetter(d.Letter)
	if err != nil {
		return err
	}
	key := helpers.NormalizePathForComparison(d.Root)
	if key == "" {
		return errors.New("drive root is empty")
	}
	d.Letter = letter

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byRoot[key]; ok {
		return fmt.Errorf("%w: %s is already %s:", ErrDuplicateRoot, d.Root, existing)
	}
	if _, ok := t.byLetter[letter]; ok {
		return fmt.Errorf("%w: %s:", ErrDuplicateIdentifier, letter)
	}

	t.byLetter[letter] = &d
	t.byRoot[key] = letter
	return nil
}

// Remove detaches a drive and returns the record so the caller can release
// its watch handle.
func (t *Table) Remove(letter string) (Drive, error) {
	l, err := NormalizeLetter(letter)
	if err != nil {
		return Drive{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.byLetter[l]
	if !ok {
		return Drive{}, fmt.Errorf("%w: %s:", ErrNotFound, l)
	}
	t.removeLocked(d)
	return *d, nil
}

// RemoveAll removes every listed drive under a single lock so no reader sees
// a partially applied cascade. Unknown letters are skipped.
func (t *Table) RemoveAll(letters []string) []Drive {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := make([]Drive, 0, len(letters))
	for _, letter := range letters {
		l, err := NormalizeLetter(letter)
		if err != nil {
			continue
		}
		d, ok := t.byLetter[l]
		if !ok {
			continue
		}
		t.removeLocked(d)
		removed = append(removed, *d)
	}
	return removed
}

func (t *Table) removeLocked(d *Drive) {
	delete(t.byLetter, d.Letter)
	delete(t.byRoot, helpers.NormalizePathForComparison(d.Root))
}

func (t *Table) LookupByRoot(root string) (Drive, bool) {
	key := helpers.NormalizePathForComparison(root)

	t.mu.RLock()
	defer t.mu.RUnlock()

	letter, ok := t.byRoot[key]
	if !ok {
		return Drive{}, false
	}
	return *t.byLetter[letter], true
}

func (t *Table) LookupByLetter(letter string) (Drive, bool) {
	l, err := NormalizeLetter(letter)
	if err != nil {
		return Drive{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.byLetter[l]
	if !ok {
		return Drive{}, false
	}
	return *d, true
}

// Owner returns the drive with the deepest root containing path, if any.
// Nested drives (a disc image inside a mounted folder) win over their parent.
func (t *Table) Owner(path string) (Drive, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best *Drive
	for _, d := range t.byLetter {
		if !d.Contains(path) {
			continue
		}
		if best == nil || len(d.Root) > len(best.Root) {
			best = d
		}
	}
	if best == nil {
		return Drive{}, false
	}
	return *best, true
}

// All returns a snapshot of every drive, sorted by letter.
func (t *Table) All() []Drive {
	return t.snapshot(func(*Drive) bool { return true })
}

// ListVisible returns a snapshot of drives that are neither internal nor
// hidden, sorted by letter.
func (t *Table) ListVisible() []Drive {
	return t.snapshot((*Drive).Visible)
}

func (t *Table) snapshot(keep func(*Drive) bool) []Drive {
	t.mu.RLock()
	out := make([]Drive, 0, len(t.byLetter))
	for _, d := range t.byLetter {
		if keep(d) {
			out = append(out, *d)
		}
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Drive) int {
		return strings.Compare(a.Letter, b.Letter)
	})
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byLetter)
}

// Reserved reports whether a letter is kept back for internal drives.
func (t *Table) Reserved(letter string) bool {
	l, err := NormalizeLetter(letter)
	if err != nil {
		return false
	}
	_, ok := t.reserved[l]
	return ok
}

// AllocateIdentifier returns the first free letter suitable for kind. It does
// not claim the letter; the single writer inserts the drive before the next
// allocation.
func (t *Table) AllocateIdentifier(kind Kind) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, l := range candidateLetters(kind) {
		if _, ok := t.reserved[l]; ok {
			continue
		}
		if _, ok := t.byLetter[l]; ok {
			continue
		}
		return l, nil
	}
	return "", fmt.Errorf("%w for %s", ErrNoFreeIdentifier, kind)
}

// candidateLetters lists letters in preference order. A: and B: are floppy
// letters and are only ever assigned explicitly. Discs prefer D: onwards so
// C: stays free for the main hard disk folder, falling back to C: last.
func candidateLetters(kind Kind) []string {
	start := byte('C')
	if kind == KindDiscImage || kind == KindOpticalVolume {
		start = 'D'
	}

	letters := make([]string, 0, 24)
	for c := start; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	if start == 'D' {
		letters = append(letters, "C")
	}
	return letters
}
