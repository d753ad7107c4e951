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

package mocks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers/syncutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockGuest mocks guest.Guest and guest.CacheRefresher
type MockGuest struct {
	mock.Mock
}

func (m *MockGuest) Launch(ctx context.Context, dosPath string) error {
	args := m.Called(ctx, dosPath)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockGuest) ChangeDirectory(ctx context.Context, dosPath string) error {
	args := m.Called(ctx, dosPath)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockGuest) RefreshDrive(ctx context.Context, letter string) error {
	args := m.Called(ctx, letter)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// MockVolumeLister mocks an optical volume listing
type MockVolumeLister struct {
	mock.Mock
}

func (m *MockVolumeLister) OpticalVolumes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if err := args.Error(1); err != nil {
		return nil, fmt.Errorf("mock operation failed: %w", err)
	}
	if roots, ok := args.Get(0).([]string); ok {
		return roots, nil
	}
	return []string{}, nil
}

// MockMounter mocks the coordinator surface used by bulk volume mounting
type MockMounter struct {
	mock.Mock
}

func (m *MockMounter) Drives() []drives.Drive {
	args := m.Called()
	if ds, ok := args.Get(0).([]drives.Drive); ok {
		return ds
	}
	return []drives.Drive{}
}

func (m *MockMounter) MountForPath(ctx context.Context, path string) (drives.MountResult, error) {
	args := m.Called(ctx, path)
	res, _ := args.Get(0).(drives.MountResult)
	if err := args.Error(1); err != nil {
		return res, fmt.Errorf("mock operation failed: %w", err)
	}
	return res, nil
}

// ErrDoubleRelease is returned by FakeTracker when a handle is stopped twice.
var ErrDoubleRelease = errors.New("watch handle released twice")

// FakeTracker hands out watch handles without touching the filesystem and
// records every release, so tests can assert each handle is released
// exactly once.
type FakeTracker struct {
	// Fail makes StartTracking fail for the listed roots.
	Fail     map[string]error
	live     map[uuid.UUID]string
	released map[uuid.UUID]int
	mu       syncutil.Mutex
}

func NewFakeTracker() *FakeTracker {
	return &FakeTracker{
		Fail:     make(map[string]error),
		live:     make(map[uuid.UUID]string),
		released: make(map[uuid.UUID]int),
	}
}

func (f *FakeTracker) StartTracking(root string) (drives.WatchHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Fail[root]; ok {
		return drives.WatchHandle{}, fmt.Errorf("%w: %w", drives.ErrWatchSetupFailed, err)
	}
	h := drives.WatchHandle{Root: filepath.Clean(root), ID: uuid.New()}
	f.live[h.ID] = h.Root
	return h, nil
}

func (f *FakeTracker) StopTracking(h drives.WatchHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released[h.ID]++
	if _, ok := f.live[h.ID]; !ok {
		return ErrDoubleRelease
	}
	delete(f.live, h.ID)
	return nil
}

// Live returns the roots of handles not yet released.
func (f *FakeTracker) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	roots := make([]string, 0, len(f.live))
	for _, r := range f.live {
		roots = append(roots, r)
	}
	return roots
}

// OverReleased reports whether any handle was released more than once.
func (f *FakeTracker) OverReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.released {
		if n > 1 {
			return true
		}
	}
	return false
}
