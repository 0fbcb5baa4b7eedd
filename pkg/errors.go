// Package pkg holds small utilities shared by every layer of the server and
// the client SDK.
//
// This file defines the domain error taxonomy. Errors are plain sentinel values
// so callers compare with errors.Is instead of matching strings:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Services wrap them with detail (fmt.Errorf("%w: post", pkg.ErrNotFound)) and
// the HTTP layer maps them to status codes in one place (see response.go).
package pkg

import "errors"

// Domain-level errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrTooManyReqs   = errors.New("too many requests")
	ErrInternal      = errors.New("internal error")

	// ErrTransport covers an unreachable or dropped push channel. It never
	// leaves the client process.
	ErrTransport = errors.New("transport error")
)
