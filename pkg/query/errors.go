package query

import "errors"

var (
	ErrStoreClosed   = errors.New("query store is closed")
	ErrPanic         = errors.New("endpoint panicked")
	ErrNoLatencyData = errors.New("no latency data for endpoint")
)
