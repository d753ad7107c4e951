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

//nolint:revive // custom validation tags (letter, hostpath) are unknown to revive
package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLetter(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Letter string `validate:"letter"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "upper", value: "C", wantError: false},
		{name: "lower", value: "d", wantError: false},
		{name: "with colon", value: "e:", wantError: false},
		{name: "empty skipped", value: "", wantError: false},
		{name: "digit", value: "1", wantError: true},
		{name: "two letters", value: "CD", wantError: true},
		{name: "unicode", value: "é", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Letter: tt.value})
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "drive letter")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHostPath(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Path string `validate:"required,hostpath"`
	}

	v := NewValidator()
	require.NoError(t, v.Validate(&testStruct{Path: "/media/Game"}))

	err := v.Validate(&testStruct{Path: "relative/dir"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute host path")

	require.Error(t, v.Validate(&testStruct{Path: "/media/a\x00b"}))

	err = v.Validate(&testStruct{})
	require.Error(t, err)
	assert.Equal(t, "path is required", err.Error())
}

func TestValidateAndUnmarshal(t *testing.T) {
	t.Parallel()

	type params struct {
		Letters []string `json:"letters" validate:"omitempty,dive,letter"`
	}

	var p params
	require.ErrorIs(t, ValidateAndUnmarshal(nil, &p), ErrMissingParams)
	require.ErrorIs(t, ValidateAndUnmarshal(json.RawMessage("null"), &p), ErrMissingParams)
	require.ErrorIs(t, ValidateAndUnmarshal(json.RawMessage(`{"letters":7}`), &p), ErrInvalidParams)

	err := ValidateAndUnmarshal(json.RawMessage(`{"letters":["C","11"]}`), &p)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "letter", ve.Fields[0].Tag)
	assert.True(t, IsParamsError(err))

	require.NoError(t, ValidateAndUnmarshal(json.RawMessage(`{"letters":["c:","D"]}`), &p))
	assert.Equal(t, []string{"c:", "D"}, p.Letters)
}

func TestIsParamsError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsParamsError(ErrMissingParams))
	assert.True(t, IsParamsError(ErrInvalidParams))
	assert.False(t, IsParamsError(assert.AnError))
}
