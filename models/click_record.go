// Package models contains domain entities and business models for the lead bridge
package models

import "time"

type ClickStatus string

const (
	ClickStatusPending  ClickStatus = ""
	ClickStatusVerified ClickStatus = "verified"
)

// ClickRecord is one ad click captured by the landing page
// UniqueToken is set once at creation; TelegramID is set at most once, when the
// visitor opens the bot with the token
type ClickRecord struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UniqueToken string      `gorm:"size:80;not null;uniqueIndex:uk_click_records_unique_token" json:"unique_token"`
	FbClid      *string     `gorm:"column:fb_clid;size:512" json:"fb_clid,omitempty"`
	FbAgent     *string     `gorm:"column:fb_agent;type:text" json:"fb_agent,omitempty"`
	FbIP        *string     `gorm:"column:fb_ip;size:64" json:"fb_ip,omitempty"`
	AdName      string      `gorm:"size:255;not null;default:'unknown'" json:"ad_name"`
	AdsetName   string      `gorm:"size:255;not null;default:'unknown'" json:"adset_name"`
	TelegramID  *string     `gorm:"column:telegram_id;size:32;index:idx_click_records_telegram_id" json:"telegram_id,omitempty"`
	Status      ClickStatus `gorm:"size:20;not null;default:'';index:idx_click_records_status" json:"status"`
	VerifiedAt  *time.Time  `json:"verified_at,omitempty"`
	CreatedAt   time.Time   `gorm:"index:idx_click_records_created_at" json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the table name for ClickRecord
func (ClickRecord) TableName() string { return "click_records" }

// IsResolved reports whether the record is already linked to a chat
func (r *ClickRecord) IsResolved() bool {
	return r.TelegramID != nil && *r.TelegramID != ""
}

// ClickRecordFilter represents filter criteria for click record queries
type ClickRecordFilter struct {
	UniqueToken   *string
	Resolved      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// AllModels lists every entity managed by migrations
func AllModels() []any {
	return []any{&ClickRecord{}}
}
