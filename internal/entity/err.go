package entity

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid entity")
	ErrInternal = errors.New("internal error")
)
