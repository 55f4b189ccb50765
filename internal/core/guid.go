package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewGUID returns the 32 character hex identifier used for accounts,
// transactions and entry lines.
func NewGUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
