// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownActivation is returned when a key matches neither a stateless function nor a registered variant.
	// The returned error is an *UnknownError, holding the offending key.
	ErrUnknownActivation = errors.New("unknown activation")

	// ErrConfig is returned when a variant is missing a required configuration value, or is given an invalid one.
	ErrConfig = errors.New("invalid activation configuration")

	// ErrRegistrationConflict is returned when registering a key that is already taken.
	ErrRegistrationConflict = errors.New("activation key already registered")
)

// UnknownError reports an activation key that couldn't be resolved.
type UnknownError struct {
	Key string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown activation %q", e.Key)
}

// Is makes errors.Is(err, ErrUnknownActivation) true.
func (e *UnknownError) Is(target error) bool {
	return target == ErrUnknownActivation
}
