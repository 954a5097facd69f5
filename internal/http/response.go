package http

import (
	"net/http"
	"time"
)

// TimingInfo stores timing information for an HTTP exchange.
type TimingInfo struct {
	// StartTime is when the request started
	StartTime time.Time

	// TimeToFirstByte is the time from start until the first response byte
	TimeToFirstByte time.Duration
}

// Response represents a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo
}

// IsOK reports whether the status is exactly 200.
func (r *Response) IsOK() bool {
	return r.StatusCode == http.StatusOK
}
