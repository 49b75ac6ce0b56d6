package businessflow

import (
	"regexp"
	"strings"
	"testing"

	"github.com/amirphl/leadbridge/utils"
	"github.com/stretchr/testify/assert"
)

var deepLinkPayload = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestTokenGenerator(t *testing.T) {
	gen := NewTokenGenerator("")

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token := gen.Generate()
		assert.True(t, strings.HasPrefix(token, utils.TokenPrefix))
		assert.LessOrEqual(t, len(token), utils.TelegramStartPayloadMaxLen)
		assert.Regexp(t, deepLinkPayload, token)
		assert.True(t, IsCorrelationToken(token, utils.TokenPrefix))

		_, dup := seen[token]
		assert.False(t, dup, "token generated twice: %s", token)
		seen[token] = struct{}{}
	}
}

func TestTokenGeneratorCustomPrefix(t *testing.T) {
	token := NewTokenGenerator("lead_").Generate()
	assert.True(t, strings.HasPrefix(token, "lead_"))
	assert.False(t, IsCorrelationToken(token, utils.TokenPrefix))
}

func TestIsCorrelationToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"issued token", "user_3f2b9c1d8e7a4b6c9d0e1f2a3b4c5d6e", true},
		{"legacy short suffix", "user_abc", true},
		{"empty", "", false},
		{"prefix only", "user_", false},
		{"missing prefix", "abc123", false},
		{"wrong case", "USER_abc", false},
		{"too long", "user_" + strings.Repeat("a", 60), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorrelationToken(tt.token, utils.TokenPrefix))
		})
	}
}

func TestParseStartCommand(t *testing.T) {
	tests := []struct {
		text      string
		wantToken string
		wantStart bool
	}{
		{"/start user_abc", "user_abc", true},
		{"  /start   user_abc  ", "user_abc", true},
		{"/start", "", true},
		{"/start@LeadBot user_abc", "user_abc", true},
		{"/start user_abc extra", "user_abc", true},
		{"/starter user_abc", "", false},
		{"hello", "", false},
		{"", "", false},
		{"start user_abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			token, isStart := ParseStartCommand(tt.text)
			assert.Equal(t, tt.wantStart, isStart)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}
