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

package methods

import (
	"errors"
	"runtime"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models/requests"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/rs/zerolog/log"
)

// ErrNotLocal is returned for methods restricted to loopback clients.
var ErrNotLocal = errors.New("method only available to local clients")

// NoContent is an empty result object.
type NoContent struct{}

func HandleVersion(_ requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received version request")
	return models.VersionResponse{
		Version:  config.AppVersion,
		Platform: runtime.GOOS,
	}, nil
}
