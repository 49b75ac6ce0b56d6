package utils

import (
	"time"
)

// Correlation token constants
const (
	// TokenPrefix marks a string as a click correlation token
	TokenPrefix = "user_"

	// TelegramStartPayloadMaxLen is the longest deep-link payload Telegram forwards with /start
	TelegramStartPayloadMaxLen = 64

	// DefaultAdName is stored when the landing page sends no ad name
	DefaultAdName = "unknown"

	// DefaultAdsetName is stored when the landing page sends no ad set name
	DefaultAdsetName = "unknown"
)

// Conversion constants
const (
	// LeadEventName is the conversion reported when a click is linked to a chat
	LeadEventName = "Lead"

	// ActionSourceSystemGenerated is the Conversions API action_source for server-side events
	ActionSourceSystemGenerated = "system_generated"

	// DefaultGraphAPIVersion is the Graph API version used for the Conversions API
	DefaultGraphAPIVersion = "v18.0"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Webhook processing constants
const (
	// UpdateDedupTTL is how long a processed Telegram update_id is remembered
	UpdateDedupTTL = 24 * time.Hour
)
