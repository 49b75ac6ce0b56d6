package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestClickRecord inserts an unresolved click record with ad attribution data
func (tf *TestFixtures) CreateTestClickRecord() (*models.ClickRecord, error) {
	n := rand.Intn(900000000) + 100000000
	record := &models.ClickRecord{
		UniqueToken: fmt.Sprintf("%sfixture%d", utils.TokenPrefix, n),
		FbClid:      utils.ToPtr(fmt.Sprintf("IwAR%d", n)),
		FbAgent:     utils.ToPtr("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"),
		FbIP:        utils.ToPtr("203.0.113.7"),
		AdName:      "summer_ad",
		AdsetName:   "balkan_18_35",
	}
	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to insert click record: %w", err)
	}
	return record, nil
}

// CreateResolvedClickRecord inserts a click record already linked to chatID
func (tf *TestFixtures) CreateResolvedClickRecord(chatID string) (*models.ClickRecord, error) {
	record, err := tf.CreateTestClickRecord()
	if err != nil {
		return nil, err
	}
	now := utils.UTCNow()
	err = tf.DB.DB.Model(record).Updates(map[string]any{
		"telegram_id": chatID,
		"status":      models.ClickStatusVerified,
		"verified_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve click record: %w", err)
	}
	record.TelegramID = &chatID
	record.Status = models.ClickStatusVerified
	record.VerifiedAt = &now
	return record, nil
}
