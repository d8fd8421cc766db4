package crawl

import "errors"

var (
	// ErrInvalidPageBound means the page count read for select pagination
	// was missing, not an integer, or below one.
	ErrInvalidPageBound = errors.New("invalid page bound")
	ErrNavigation       = errors.New("navigation failed")
	ErrSitePanic        = errors.New("site crawl panicked")
	ErrUnknownAction    = errors.New("unknown action")
)
