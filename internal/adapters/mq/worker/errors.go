package worker

import "errors"

// ErrPanic marks a job whose pipeline run panicked.
var ErrPanic = errors.New("pipeline panicked")
