package broker

import "errors"

// ErrDuplicate is returned by Enqueue when the job id is already present
// in the dedup set (spec §4.1 "enqueue: dedup-check-then-append").
var ErrDuplicate = errors.New("broker: duplicate job id")
