package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/utils"
	"golang.org/x/oauth2"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// ConversionReport describes the outcome of one Conversions API call.
// Reporting never fails the caller; Err is informational.
type ConversionReport struct {
	EventName  string
	EventTime  int64
	Sent       bool
	StatusCode int
	Err        error
}

// ConversionService reports conversion events to the Meta Conversions API
type ConversionService interface {
	ReportConversion(ctx context.Context, eventName string, record *models.ClickRecord, chatID string) ConversionReport
}

// ConversionServiceImpl posts single-event batches to the Graph API
type ConversionServiceImpl struct {
	cfg    config.FacebookConfig
	client *http.Client
	now    func() time.Time
}

// NewConversionService creates a Conversions API client authenticated with the
// configured access token as a bearer credential
func NewConversionService(cfg config.FacebookConfig) ConversionService {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = defaultGraphBaseURL
	}
	if cfg.GraphAPIVersion == "" {
		cfg.GraphAPIVersion = utils.DefaultGraphAPIVersion
	}
	cfg.GraphBaseURL = strings.TrimRight(cfg.GraphBaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout

	return &ConversionServiceImpl{
		cfg:    cfg,
		client: client,
		now:    utils.UTCNow,
	}
}

func (s *ConversionServiceImpl) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/events", s.cfg.GraphBaseURL, s.cfg.GraphAPIVersion, s.cfg.PixelID)
}

// ReportConversion sends one event built from record and chatID. The event
// time is taken at send time.
func (s *ConversionServiceImpl) ReportConversion(ctx context.Context, eventName string, record *models.ClickRecord, chatID string) ConversionReport {
	eventTime := s.now().Unix()
	report := ConversionReport{EventName: eventName, EventTime: eventTime}

	if record == nil {
		report.Err = fmt.Errorf("conversion %s: click record is nil", eventName)
		return report
	}

	batch := dto.ConversionEventBatch{
		Data:          []dto.ConversionEvent{BuildConversionEvent(eventName, record, chatID, eventTime)},
		TestEventCode: s.cfg.TestEventCode,
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		report.Err = fmt.Errorf("failed to marshal conversion batch: %w", err)
		return report
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(payload))
	if err != nil {
		report.Err = fmt.Errorf("failed to create HTTP request: %w", err)
		return report
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		report.Err = fmt.Errorf("conversions api request failed: %w", err)
		return report
	}
	defer resp.Body.Close()
	report.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		report.Err = fmt.Errorf("failed to read response body: %w", err)
		return report
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr dto.ConversionAPIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			report.Err = fmt.Errorf("conversions api http status: %d: %s (code %d, trace %s)",
				resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code, apiErr.Error.FbTraceID)
		} else {
			report.Err = fmt.Errorf("conversions api http status: %d", resp.StatusCode)
		}
		return report
	}

	var apiResp dto.ConversionAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		report.Err = fmt.Errorf("failed to decode conversions api response: %w", err)
		return report
	}
	if apiResp.EventsReceived < 1 {
		report.Err = fmt.Errorf("conversions api accepted %d events", apiResp.EventsReceived)
		return report
	}

	report.Sent = true
	return report
}

// BuildConversionEvent maps a click record to a Conversions API event.
// fbc is only set when the click carried an fbclid.
func BuildConversionEvent(eventName string, record *models.ClickRecord, chatID string, eventTime int64) dto.ConversionEvent {
	userData := dto.ConversionUserData{
		ClientUserAgent: utils.StringOrDefault(record.FbAgent, ""),
		ClientIPAddress: utils.StringOrDefault(record.FbIP, ""),
		ExternalID:      chatID,
	}
	if record.FbClid != nil && *record.FbClid != "" {
		userData.Fbc = fmt.Sprintf("fb.1.%d.%s", eventTime, *record.FbClid)
	}

	return dto.ConversionEvent{
		EventName:    eventName,
		EventTime:    eventTime,
		ActionSource: utils.ActionSourceSystemGenerated,
		UserData:     userData,
		CustomData: &dto.ConversionCustomData{
			ContentName:     record.AdName,
			ContentCategory: record.AdsetName,
		},
	}
}

// MockConversionService implements ConversionService for testing
type MockConversionService struct {
	mu     sync.Mutex
	Events []MockConversion
	Err    error
}

// MockConversion is one recorded ReportConversion call
type MockConversion struct {
	EventName string
	Record    models.ClickRecord
	ChatID    string
}

// NewMockConversionService creates a new mock conversion service
func NewMockConversionService() *MockConversionService {
	return &MockConversionService{Events: make([]MockConversion, 0)}
}

func (m *MockConversionService) ReportConversion(ctx context.Context, eventName string, record *models.ClickRecord, chatID string) ConversionReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	report := ConversionReport{EventName: eventName, EventTime: utils.UTCNowUnix()}
	if m.Err != nil {
		report.Err = m.Err
		return report
	}
	if record != nil {
		m.Events = append(m.Events, MockConversion{EventName: eventName, Record: *record, ChatID: chatID})
	}
	report.Sent = true
	return report
}

// GetEvents returns a copy of all recorded conversions
func (m *MockConversionService) GetEvents() []MockConversion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockConversion(nil), m.Events...)
}
