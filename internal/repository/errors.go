package repository

import "errors"

// ErrNotFound is the repository-specific sentinel returned when a lookup for
// a single session finds nothing. The service layer translates it into the
// domain-level `app_errors.ErrNotFound`, keeping business logic decoupled
// from the storage implementation.
var ErrNotFound = errors.New("repository: not found")
