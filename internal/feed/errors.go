package feed

import "errors"

// Fetch and parse failures are terminal for the current render request; they
// carry no retry semantics and surface directly to the caller.
var (
	ErrFeedUnavailable   = errors.New("unable to fetch the feed")
	ErrEmptyFeed         = errors.New("feed response was empty")
	ErrMalformedFeed     = errors.New("feed XML could not be parsed")
	ErrUnsupportedFormat = errors.New("unsupported feed format")
)
