// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// InitUserRequest is posted by the landing page when a visitor arrives from an ad.
// Attribution fields are pointers: an absent field is stored as NULL, "" as "".
type InitUserRequest struct {
	FbClid    *string `json:"fbclid" validate:"omitempty,max=512"`
	UserAgent *string `json:"userAgent" validate:"omitempty,max=1024"`
	IP        *string `json:"ip" validate:"omitempty,ip"`
	AdName    string  `json:"ad_name" validate:"omitempty,max=255"`
	AdsetName string  `json:"adset_name" validate:"omitempty,max=255"`
}

// InitUserResponse carries the correlation token the landing page embeds in the bot deep link
type InitUserResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the flat error body the landing page expects
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClickStatsRequest bounds a stats query. Zero times leave that side open.
type ClickStatsRequest struct {
	Since  time.Time
	Until  time.Time
	Recent int
}

type ClickSummary struct {
	Token     string    `json:"token"`
	AdName    string    `json:"ad_name"`
	AdsetName string    `json:"adset_name"`
	Linked    bool      `json:"linked"`
	CreatedAt time.Time `json:"created_at"`
}

// ClickStatsResponse reports how many clicks were linked to a chat
type ClickStatsResponse struct {
	Total    int64          `json:"total"`
	Linked   int64          `json:"linked"`
	Pending  int64          `json:"pending"`
	LinkRate float64        `json:"link_rate"`
	Recent   []ClickSummary `json:"recent,omitempty"`
}
