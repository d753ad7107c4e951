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

package client

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
)

// APIClient abstracts API communication for testability.
type APIClient interface {
	Call(ctx context.Context, method, params string) (string, error)
}

// LocalAPIClient calls the daemon running on this machine.
type LocalAPIClient struct {
	cfg *config.Instance
}

func NewLocalAPIClient(cfg *config.Instance) *LocalAPIClient {
	return &LocalAPIClient{cfg: cfg}
}

func (c *LocalAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	resp, err := LocalClient(ctx, c.cfg, method, params)
	if err != nil {
		return "", fmt.Errorf("api call failed: %w", err)
	}
	return resp, nil
}
