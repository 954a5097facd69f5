// Package outcome defines the per-request result recorded by the engine.
package outcome

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is the immutable result of one dispatched request.
//
// A Record is created by a worker once its call completes and is never
// modified after it is handed to the collector.
type Record struct {
	RequestID    string          `json:"requestId"`
	Success      bool            `json:"success"`
	LatencyMs    int64           `json:"latencyMs"`
	StatusCode   int             `json:"statusCode"`
	Error        string          `json:"error,omitempty"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`

	// TTFBMs is the time to the first response byte. It is 0 when no
	// response was received.
	TTFBMs int64 `json:"ttfbMs,omitempty"`

	// RiskLevel is the verdict reported by the moderation service, if any.
	RiskLevel string `json:"riskLevel,omitempty"`

	// SchemaError describes a 200 response that did not match the expected
	// response contract. It is informational and does not affect Success.
	SchemaError string `json:"schemaError,omitempty"`
}

// Succeeded builds the record for an HTTP 200 response.
// Non-JSON bodies are dropped; the request still counts as a success.
func Succeeded(requestID string, latencyMs int64, body []byte) Record {
	r := Record{
		RequestID:  requestID,
		Success:    true,
		LatencyMs:  latencyMs,
		StatusCode: 200,
	}
	if gjson.ValidBytes(body) {
		r.ResponseBody = json.RawMessage(body)
		r.RiskLevel = gjson.GetBytes(body, "riskLevel").String()
	}
	return r
}

// HTTPFailure builds the record for any non-200 response.
func HTTPFailure(requestID string, latencyMs int64, statusCode int) Record {
	return Record{
		RequestID:  requestID,
		LatencyMs:  latencyMs,
		StatusCode: statusCode,
		Error:      fmt.Sprintf("HTTP %d", statusCode),
	}
}

// TransportFailure builds the record for a call that never produced a
// response (connection refused, DNS failure, timeout).
func TransportFailure(requestID string, latencyMs int64, err error) Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Record{
		RequestID: requestID,
		LatencyMs: latencyMs,
		Error:     msg,
	}
}
