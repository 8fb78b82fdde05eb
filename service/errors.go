package service

import "errors"

var (
	ErrNotFound        = errors.New("material not found")
	ErrForbidden       = errors.New("permission denied")
	ErrInvalidState    = errors.New("material in invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
)
