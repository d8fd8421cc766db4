package config

import "errors"

var (
	ErrMissingField      = errors.New("missing required field")
	ErrNotInteger        = errors.New("value is not an integer")
	ErrBedsRange         = errors.New("beds_min exceeds beds_max")
	ErrNegativeBathrooms = errors.New("bathrooms must not be negative")
	ErrNoWebsites        = errors.New("no websites configured")
	ErrInvalidURL        = errors.New("invalid url")
	ErrUnknownAction     = errors.New("unknown action")
	ErrEmptyTarget       = errors.New("empty step target")
	ErrInvalidPattern    = errors.New("invalid regular expression")
	ErrMissingPageBound  = errors.New("select pagination requires max_page")
	ErrInvalidIndex      = errors.New("check_property index out of range")
	ErrNoExtraction      = errors.New("active website needs a match_url_regex extract step")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrInvalidSetting    = errors.New("invalid setting")
)
