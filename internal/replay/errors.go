package replay

import "errors"

// ErrInvalidOrdering is returned when block heights do not strictly increase.
var ErrInvalidOrdering = errors.New("blocks are not in ascending order")

// ErrInvalidEvent is returned for undecodable or incomplete events.
var ErrInvalidEvent = errors.New("invalid event")
