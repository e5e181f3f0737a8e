// SPDX-License-Identifier: Apache-2.0

package serverref

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("serverref: email already registered")
	ErrUserNotFound       = errors.New("serverref: no user found for email")
	ErrWrongPassword      = errors.New("serverref: server password mismatch")
	ErrVersionConflict    = errors.New("serverref: item updated_at does not match server copy")
	ErrTokenInvalid       = errors.New("serverref: token invalid or expired")
)
