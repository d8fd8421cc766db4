package session

import "errors"

var (
	ErrUnsupported = errors.New("operation not supported by this driver")
	ErrNotFound    = errors.New("element not found")
	ErrNoPage      = errors.New("no page loaded")
	ErrStatus      = errors.New("unexpected http status")
)
