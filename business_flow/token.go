package businessflow

import (
	"strings"

	"github.com/amirphl/leadbridge/utils"
	"github.com/google/uuid"
)

// maxTokenAttempts bounds regeneration when an insert hits the unique token index
const maxTokenAttempts = 5

// TokenGenerator produces correlation tokens for new clicks
type TokenGenerator interface {
	Generate() string
}

type uuidTokenGenerator struct {
	prefix string
}

// NewTokenGenerator returns a generator of "<prefix><uuid hex>" tokens.
// The result stays within Telegram's deep-link payload limit and alphabet.
func NewTokenGenerator(prefix string) TokenGenerator {
	if prefix == "" {
		prefix = utils.TokenPrefix
	}
	return &uuidTokenGenerator{prefix: prefix}
}

func (g *uuidTokenGenerator) Generate() string {
	return g.prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsCorrelationToken reports whether s looks like a token issued with prefix
func IsCorrelationToken(s, prefix string) bool {
	return len(s) > len(prefix) &&
		len(s) <= utils.TelegramStartPayloadMaxLen &&
		strings.HasPrefix(s, prefix)
}
