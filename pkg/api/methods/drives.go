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
	"fmt"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models/requests"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/validation"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/service/mounts"
	"github.com/rs/zerolog/log"
)

func HandleDrives(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received drives request")
	return models.NewDrivesResponse(env.Drives.ListVisible()), nil
}

// HandleDrivesAll includes internal and hidden drives, so it is only served
// to local clients.
func HandleDrivesAll(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received drives all request")
	if !env.IsLocal {
		return nil, ErrNotLocal
	}
	return models.NewDrivesResponse(env.Drives.Drives()), nil
}

func HandleMount(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received mount request")

	var p models.MountParams
	if err := validation.ValidateAndUnmarshal(env.Params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	res, err := env.Drives.Mount(env.Context, mounts.MountRequest{
		Path:              p.Path,
		PreferSourceImage: p.PreferSourceImage,
	})
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", p.Path, err)
	}

	resp := models.MountResponse{Rejected: res.Rejected}
	if res.Rejected {
		resp.Reason = res.Reason.String()
		return resp, nil
	}
	d := models.NewDriveResponse(&res.Drive)
	resp.Drive = &d
	return resp, nil
}

func HandleUnmount(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received unmount request")

	var p models.UnmountParams
	if err := validation.ValidateAndUnmarshal(env.Params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := env.Drives.Unmount(env.Context, p.Letter); err != nil {
		return nil, fmt.Errorf("unmounting %s: %w", p.Letter, err)
	}
	return NoContent{}, nil
}

// HandleUnmountAll accepts missing params as "every visible drive".
func HandleUnmountAll(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received unmount all request")

	var p models.UnmountAllParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	n, err := env.Drives.UnmountAll(env.Context, p.Letters)
	resp := models.UnmountAllResponse{Unmounted: n}
	if err != nil {
		log.Warn().Err(err).Int("unmounted", n).Msg("some drives failed to unmount")
		resp.Errors = unmountFailures(err)
	}
	return resp, nil
}

// unmountFailures flattens the joined UnmountAll error into one entry per
// failed letter.
func unmountFailures(err error) []models.UnmountFailure {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint // splitting errors.Join
		errs = joined.Unwrap()
	}

	failures := make([]models.UnmountFailure, 0, len(errs))
	for _, e := range errs {
		var ue *mounts.UnmountError
		if errors.As(e, &ue) {
			failures = append(failures, models.UnmountFailure{Letter: ue.Letter, Error: ue.Err.Error()})
			continue
		}
		failures = append(failures, models.UnmountFailure{Error: e.Error()})
	}
	return failures
}

func HandleOpen(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received open request")

	var p models.OpenParams
	if err := validation.ValidateAndUnmarshal(env.Params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	out, err := env.Drives.OpenPath(env.Context, p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.Path, err)
	}
	return models.OpenResponse{
		Drive:   models.NewDriveResponse(&out.Drive),
		DOSPath: out.DOSPath,
		Action:  out.Action.String(),
		Mounted: out.Mounted,
	}, nil
}

func HandleMountOptical(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received mount optical request")

	mountedAny, err := env.Drives.MountOpticalVolumes(env.Context)
	if err != nil {
		return nil, fmt.Errorf("mounting optical volumes: %w", err)
	}
	return models.MountOpticalResponse{MountedAny: mountedAny}, nil
}
