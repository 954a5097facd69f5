package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns an identifier of the form run-YYYYMMDD-HHMMSS-xxxxxxxx,
// where the suffix is 8 random hex characters.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("run-%s-%s", now.Format("20060102-150405"), suffix)
}
