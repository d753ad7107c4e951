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

// Package validation checks API request parameters using
// go-playground/validator with custom tags for drive letters and host paths.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the custom tags registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("letter", validateLetter)
	_ = v.RegisterValidation("hostpath", validateHostPath)

	return &Validator{validate: v}
}

// DefaultValidator is the shared instance used by API handlers.
var DefaultValidator = NewValidator()

// Validate returns an *Error when any field fails.
func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAndUnmarshal decodes params into dest and validates it. Empty
// params are ErrMissingParams, undecodable ones ErrInvalidParams.
func ValidateAndUnmarshal[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 || string(params) == "null" {
		return ErrMissingParams
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return ErrInvalidParams
	}
	return DefaultValidator.Validate(dest)
}

// IsParamsError reports whether err came from parameter decoding or
// validation rather than from the operation itself.
func IsParamsError(err error) bool {
	var ve *Error
	return errors.Is(err, ErrMissingParams) || errors.Is(err, ErrInvalidParams) || errors.As(err, &ve)
}

// validateLetter accepts a single drive letter, optionally followed by a
// colon, in either case.
func validateLetter(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	_, err := drives.NormalizeLetter(val)
	return err == nil
}

// validateHostPath accepts absolute host paths without NUL bytes.
func validateHostPath(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	if strings.ContainsRune(val, 0) {
		return false
	}
	return filepath.IsAbs(val)
}
