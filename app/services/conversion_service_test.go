package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testClickRecord() *models.ClickRecord {
	return &models.ClickRecord{
		UniqueToken: "user_abc",
		FbClid:      utils.ToPtr("IwAR123"),
		FbAgent:     utils.ToPtr("Mozilla/5.0"),
		FbIP:        utils.ToPtr("203.0.113.9"),
		AdName:      "summer_ad",
		AdsetName:   "balkan_18_35",
	}
}

func newTestConversionService(t *testing.T, handler http.HandlerFunc, mutate func(*config.FacebookConfig)) *ConversionServiceImpl {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.FacebookConfig{
		AccessToken:     "EAAB-test-token",
		PixelID:         "1234567890",
		GraphAPIVersion: "v18.0",
		GraphBaseURL:    srv.URL,
		Timeout:         2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := NewConversionService(cfg).(*ConversionServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestConversionServiceReport(t *testing.T) {
	var (
		gotPath  string
		gotAuth  string
		gotBatch dto.ConversionEventBatch
	)
	svc := newTestConversionService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &gotBatch))
		_, _ = w.Write([]byte(`{"events_received":1,"messages":[],"fbtrace_id":"AbC"}`))
	}, func(cfg *config.FacebookConfig) {
		cfg.TestEventCode = "TEST123"
	})

	report := svc.ReportConversion(context.Background(), "Lead", testClickRecord(), "987654321")
	require.NoError(t, report.Err)
	assert.True(t, report.Sent)
	assert.Equal(t, http.StatusOK, report.StatusCode)
	assert.Equal(t, fixedNow.Unix(), report.EventTime)

	assert.Equal(t, "/v18.0/1234567890/events", gotPath)
	assert.Equal(t, "Bearer EAAB-test-token", gotAuth)
	assert.Equal(t, "TEST123", gotBatch.TestEventCode)
	require.Len(t, gotBatch.Data, 1)

	event := gotBatch.Data[0]
	assert.Equal(t, "Lead", event.EventName)
	assert.Equal(t, fixedNow.Unix(), event.EventTime)
	assert.Equal(t, "system_generated", event.ActionSource)
	assert.Equal(t, "fb.1.1748779200.IwAR123", event.UserData.Fbc)
	assert.Equal(t, "Mozilla/5.0", event.UserData.ClientUserAgent)
	assert.Equal(t, "203.0.113.9", event.UserData.ClientIPAddress)
	assert.Equal(t, "987654321", event.UserData.ExternalID)
	require.NotNil(t, event.CustomData)
	assert.Equal(t, "summer_ad", event.CustomData.ContentName)
	assert.Equal(t, "balkan_18_35", event.CustomData.ContentCategory)
}

func TestConversionServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"graph error envelope", http.StatusBadRequest, `{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"fbtrace_id":"Xyz"}}`, "Invalid parameter"},
		{"plain server error", http.StatusInternalServerError, `oops`, "500"},
		{"nothing received", http.StatusOK, `{"events_received":0}`, "accepted 0 events"},
		{"undecodable success", http.StatusOK, `not json`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestConversionService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)

			report := svc.ReportConversion(context.Background(), "Lead", testClickRecord(), "1")
			require.Error(t, report.Err)
			assert.False(t, report.Sent)
			assert.Equal(t, tt.status, report.StatusCode)
			assert.Contains(t, report.Err.Error(), tt.want)
		})
	}
}

func TestConversionServiceNilRecord(t *testing.T) {
	called := false
	svc := newTestConversionService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, nil)

	report := svc.ReportConversion(context.Background(), "Lead", nil, "1")
	require.Error(t, report.Err)
	assert.False(t, report.Sent)
	assert.False(t, called)
}

func TestBuildConversionEvent(t *testing.T) {
	t.Run("WithoutFbclid", func(t *testing.T) {
		record := testClickRecord()
		record.FbClid = nil
		record.FbIP = nil

		event := BuildConversionEvent("Lead", record, "42", 1700000000)
		assert.Empty(t, event.UserData.Fbc)
		assert.Empty(t, event.UserData.ClientIPAddress)
		assert.Equal(t, "Mozilla/5.0", event.UserData.ClientUserAgent)
		assert.Equal(t, "42", event.UserData.ExternalID)

		raw, err := json.Marshal(event)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), `"fbc"`)
		assert.NotContains(t, string(raw), `"client_ip_address"`)
	})

	t.Run("EmptyFbclid", func(t *testing.T) {
		record := testClickRecord()
		record.FbClid = utils.ToPtr("")

		event := BuildConversionEvent("Lead", record, "42", 1700000000)
		assert.Empty(t, event.UserData.Fbc)
	})

	t.Run("FbcFormat", func(t *testing.T) {
		event := BuildConversionEvent("Lead", testClickRecord(), "42", 1700000000)
		assert.Equal(t, "fb.1.1700000000.IwAR123", event.UserData.Fbc)
	})
}

func TestMockConversionService(t *testing.T) {
	mock := NewMockConversionService()
	report := mock.ReportConversion(context.Background(), "Lead", testClickRecord(), "42")
	assert.True(t, report.Sent)

	events := mock.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "42", events[0].ChatID)
	assert.Equal(t, "user_abc", events[0].Record.UniqueToken)
}
