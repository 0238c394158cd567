package storage

import "errors"

var (
	ErrNotFound       = errors.New("document not found")
	ErrObjectTooLarge = errors.New("object exceeds size limit")
)
