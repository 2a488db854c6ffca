package model

import "errors"

var (
	// ErrNotFound is returned when a remote document or store key is absent.
	ErrNotFound = errors.New("not found")
	// ErrNoOwner is returned by identity resolution when no guardian account
	// is signed in; a reconciliation pass is skipped entirely in that case.
	ErrNoOwner = errors.New("no active owner")
	// ErrPassInFlight is returned when a reconciliation pass is requested
	// while another pass is still running.
	ErrPassInFlight = errors.New("reconcile pass already in flight")
	// ErrValidation is returned for malformed request input.
	ErrValidation = errors.New("validation error")
)
