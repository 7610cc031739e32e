package model

import "errors"

var (
	// ErrAuthentication indicates bad credentials or an expired/invalid token.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotAuthenticated indicates an operation that needs a session was
	// attempted while signed out.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrConnectivity indicates the device is offline or the remote store is
	// unreachable.
	ErrConnectivity = errors.New("offline: remote store unreachable")
	// ErrRemote indicates a non-success response or a malformed payload.
	ErrRemote = errors.New("remote store error")
	// ErrStorage indicates a durable read or write failure.
	ErrStorage = errors.New("local storage error")
	// ErrUnknownField indicates an edit to a field that is not a money field.
	ErrUnknownField = errors.New("unknown budget field")
)
