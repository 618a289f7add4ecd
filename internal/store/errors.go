package store

import "errors"

// ErrNotFound is returned by write operations that target a row which does
// not exist. Read operations return (nil, nil) instead.
var ErrNotFound = errors.New("store: not found")
