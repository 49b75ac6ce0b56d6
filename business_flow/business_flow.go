// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/leadbridge/utils"
)

// OutcomeRecorder is the side channel flows report to. Recording never blocks
// or fails a flow.
type OutcomeRecorder interface {
	RecordClickRegistered(ok bool)
	RecordWebhookOutcome(outcome string)
	RecordConversion(eventName string, sent bool)
	RecordReply(kind string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordClickRegistered(bool) {}
func (noopRecorder) RecordWebhookOutcome(string) {}
func (noopRecorder) RecordConversion(string, bool) {}
func (noopRecorder) RecordReply(string, bool) {}

func recorderOrNoop(r OutcomeRecorder) OutcomeRecorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

func contextString(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// requestFields formats the request values handlers put in ctx for log lines
func requestFields(ctx context.Context) string {
	return fmt.Sprintf("request_id=%s endpoint=%s ip=%s user_agent=%q",
		contextString(ctx, utils.RequestIDKey),
		contextString(ctx, utils.EndpointKey),
		contextString(ctx, utils.IPAddressKey),
		contextString(ctx, utils.UserAgentKey))
}
