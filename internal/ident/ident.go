package ident

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed identifier like "item_9f2c41d07a3b".
// The 12 hex chars keep ids short enough for logs while staying
// collision-safe at this system's write rates.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + hex[:12]
}
