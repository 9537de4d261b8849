package model

import "errors"

var (
	// ErrMalformedData means a raw payload was empty or nothing in it could be parsed.
	ErrMalformedData = errors.New("malformed data")
	// ErrInvalidParameter means a caller passed a bad period or window argument.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDataSource wraps any failure reported by a data-source collaborator.
	ErrDataSource = errors.New("data source error")
)
