// Package services defines the business logic for persistent notifications
// and read tracking. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrPermissionDenied is returned when the actor is anonymous or acts on
	// a message owned by a different user. Never downgraded to a soft
	// failure.
	ErrPermissionDenied = errors.New("permission denied")
)
