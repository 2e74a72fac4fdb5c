// Package services defines the business logic for the billing workflow:
// credential handling, mailbox import, summary generation and the sync of
// time entries to the billing system. This file centralizes service-level
// error values so they can be returned consistently and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates that the integration has no stored
	// credential. Sync and connection tests treat it as a normal result;
	// operations that cannot proceed without a credential return it.
	ErrNotConnected = errors.New("not connected")

	// ErrMalformedCredential is returned when the stored credential has no
	// access token.
	ErrMalformedCredential = errors.New("stored credential has no access token")

	// ErrEmailNotFound indicates that the requested email does not exist.
	ErrEmailNotFound = errors.New("email not found")

	// ErrAlreadyPushed is returned when editing an email whose time entry
	// has already been sent.
	ErrAlreadyPushed = errors.New("email already pushed to billing")

	// ErrSyncInProgress is returned when another push pass holds the lease.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidSummary is returned when an edited summary is empty or its
	// hours are not positive.
	ErrInvalidSummary = errors.New("summary must be non-empty and billing hours positive")

	// ErrInvalidEmail is returned when a captured email has no external id.
	ErrInvalidEmail = errors.New("email id is required")
)

// ConfigurationError reports a required setting that is absent. It is
// fatal to the operation and not retried.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}
