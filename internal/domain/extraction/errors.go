package extraction

import "errors"

// ErrNotObject is returned when a payload is valid JSON but not an object.
var ErrNotObject = errors.New("extraction payload is not a JSON object")
