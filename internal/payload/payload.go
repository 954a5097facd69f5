// Package payload builds the request bodies sent to the moderation endpoint.
package payload

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrNegativeTotal is returned when a negative request count is requested.
var ErrNegativeTotal = errors.New("total requests cannot be negative")

// Corpus is the fixed set of sample texts requests are drawn from.
var Corpus = []string{
	"This is a normal comment about technology.",
	"I love this product, it's amazing!",
	"This service is terrible and should be banned.",
	"Maybe this is spam content?",
	"Hello world, this is a test message.",
	"Check out this great deal on illegal substances!",
	"The weather is nice today.",
	"This might be suspicious activity.",
	"Great customer service, highly recommended!",
	"Bad experience, very disappointed.",
}

// Payload is a single moderation request body.
type Payload struct {
	ID    string `json:"id" yaml:"id"`
	Text  string `json:"text" yaml:"text"`
	RunID string `json:"runId" yaml:"runId"`
}

// ID returns the request identifier for the given run and sequence index.
func ID(runID string, index int) string {
	return fmt.Sprintf("req-%s-%d", runID, index)
}

// Generate creates total payloads for the run. Texts are drawn uniformly,
// with replacement, from Corpus. A nil rng uses a time-seeded source.
func Generate(total int, runID string, rng *rand.Rand) ([]Payload, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeTotal, total)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	payloads := make([]Payload, total)
	for i := range payloads {
		payloads[i] = Payload{
			ID:    ID(runID, i),
			Text:  Corpus[rng.Intn(len(Corpus))],
			RunID: runID,
		}
	}
	return payloads, nil
}
