package media

import "errors"

var (
	// ErrNotFound is returned when a resource or rendition does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable wraps failures of the backing metadata store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
