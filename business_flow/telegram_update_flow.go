package businessflow

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/app/services"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/repository"
	"github.com/amirphl/leadbridge/utils"
)

// UpdateOutcome is the terminal state reached for one inbound update
type UpdateOutcome string

const (
	OutcomeIgnored         UpdateOutcome = "ignored"
	OutcomeDuplicate       UpdateOutcome = "duplicate"
	OutcomeNoAction        UpdateOutcome = "no_action"
	OutcomeLinked          UpdateOutcome = "linked"
	OutcomeNotFound        UpdateOutcome = "not_found"
	OutcomeAlreadyResolved UpdateOutcome = "already_resolved"
	OutcomeFailed          UpdateOutcome = "failed"
)

// Reply kinds
const (
	ReplySuccess  = "success"
	ReplyFallback = "fallback"
	ReplyAlready  = "already_linked"
)

const startCommand = "/start"

// UpdateResult is what happened while processing an update. Errors listed here
// were logged and swallowed.
type UpdateResult struct {
	Outcome    UpdateOutcome
	ChatID     string
	Token      string
	ReplyKind  string
	Conversion *services.ConversionReport
	Errors     []error
}

// TelegramUpdateFlow runs the /start correlation for one Telegram update
type TelegramUpdateFlow interface {
	HandleUpdate(ctx context.Context, update *dto.TelegramUpdate) UpdateResult
}

type TelegramUpdateFlowImpl struct {
	repo       repository.ClickRecordRepository
	bot        services.TelegramBotService
	conversion services.ConversionService
	dedup      services.UpdateDeduplicator
	recorder   OutcomeRecorder
	cfg        config.TelegramConfig
	logger     *log.Logger
	now        func() time.Time
}

func NewTelegramUpdateFlow(
	repo repository.ClickRecordRepository,
	bot services.TelegramBotService,
	conversion services.ConversionService,
	dedup services.UpdateDeduplicator,
	recorder OutcomeRecorder,
	cfg config.TelegramConfig,
	logger *log.Logger,
) TelegramUpdateFlow {
	if dedup == nil {
		dedup = services.NewUpdateDeduplicator(nil, "", 0)
	}
	if cfg.TokenPrefix == "" {
		cfg.TokenPrefix = utils.TokenPrefix
	}
	return &TelegramUpdateFlowImpl{
		repo:       repo,
		bot:        bot,
		conversion: conversion,
		dedup:      dedup,
		recorder:   recorderOrNoop(recorder),
		cfg:        cfg,
		logger:     loggerOrDefault(logger),
		now:        utils.UTCNow,
	}
}

// ParseStartCommand reports whether text is a /start command and returns its
// first argument ("" when absent). "/start@BotName" is accepted for group chats.
func ParseStartCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	if cmd != startCommand && !strings.HasPrefix(cmd, startCommand+"@") {
		return "", false
	}
	if len(fields) < 2 {
		return "", true
	}
	return fields[1], true
}

func (f *TelegramUpdateFlowImpl) HandleUpdate(ctx context.Context, update *dto.TelegramUpdate) (result UpdateResult) {
	defer func() {
		f.recorder.RecordWebhookOutcome(string(result.Outcome))
	}()

	if update == nil {
		result.Outcome = OutcomeIgnored
		result.Errors = append(result.Errors, ErrUpdateNil)
		return result
	}
	if update.Message == nil {
		result.Outcome = OutcomeIgnored
		return result
	}

	msg := update.Message
	if msg.Chat.ID == 0 {
		result.Outcome = OutcomeIgnored
		result.Errors = append(result.Errors, ErrMissingChatID)
		f.logger.Printf("webhook: update %d dropped: %v", update.UpdateID, ErrMissingChatID)
		return result
	}
	result.ChatID = strconv.FormatInt(msg.Chat.ID, 10)

	token, isStart := ParseStartCommand(msg.Text)
	if !isStart {
		result.Outcome = OutcomeNoAction
		return result
	}
	// only "/start" alone or "/start <prefix>..." is a correlation attempt
	if token != "" && !strings.HasPrefix(token, f.cfg.TokenPrefix) {
		result.Outcome = OutcomeNoAction
		return result
	}
	result.Token = token

	if update.UpdateID != 0 {
		first, err := f.dedup.FirstSeen(ctx, update.UpdateID)
		if err != nil {
			// dedup is best effort, keep processing
			f.logger.Printf("webhook: update %d dedup check failed: %v", update.UpdateID, err)
			result.Errors = append(result.Errors, err)
		} else if !first {
			result.Outcome = OutcomeDuplicate
			return result
		}
	}

	if !IsCorrelationToken(token, f.cfg.TokenPrefix) {
		result.Errors = append(result.Errors, ErrTokenMalformed)
		result.Outcome = OutcomeNotFound
		f.reply(ctx, &result, ReplyFallback)
		return result
	}

	record, err := f.repo.ByToken(ctx, token)
	if err != nil {
		err = NewStorageError("CLICK_LOOKUP_FAILED", "Failed to lookup click record", err)
		f.logger.Printf("webhook: chat %s token %s: %v", result.ChatID, token, err)
		result.Errors = append(result.Errors, err)
		result.Outcome = OutcomeNotFound
		f.reply(ctx, &result, ReplyFallback)
		return result
	}
	if record == nil {
		result.Errors = append(result.Errors, ErrClickRecordNotFound)
		result.Outcome = OutcomeNotFound
		f.reply(ctx, &result, ReplyFallback)
		return result
	}

	linked, err := f.repo.ResolveIdentity(ctx, token, result.ChatID, f.now())
	if err != nil {
		err = NewStorageError("CLICK_RESOLVE_FAILED", "Failed to link click record to chat", err)
		f.logger.Printf("webhook: chat %s token %s: %v", result.ChatID, token, err)
		result.Errors = append(result.Errors, err)
		result.Outcome = OutcomeFailed
		f.reply(ctx, &result, ReplyFallback)
		return result
	}
	if !linked {
		result.Errors = append(result.Errors, ErrClickAlreadyResolved)
		result.Outcome = OutcomeAlreadyResolved
		f.reply(ctx, &result, ReplyAlready)
		return result
	}

	// record is the pre-update snapshot
	report := f.conversion.ReportConversion(ctx, utils.LeadEventName, record, result.ChatID)
	result.Conversion = &report
	f.recorder.RecordConversion(report.EventName, report.Sent)
	if report.Err != nil {
		err := NewExternalAPIError("CONVERSION_FAILED", "Failed to report conversion", report.Err)
		f.logger.Printf("webhook: chat %s token %s: %v", result.ChatID, token, err)
		result.Errors = append(result.Errors, err)
	}

	result.Outcome = OutcomeLinked
	f.reply(ctx, &result, ReplySuccess)
	return result
}

func (f *TelegramUpdateFlowImpl) reply(ctx context.Context, result *UpdateResult, kind string) {
	reply := f.replyContent(kind)
	reply.ChatID = result.ChatID
	reply.ButtonURL = f.cfg.FinalDestination
	result.ReplyKind = kind

	err := f.bot.SendMessage(ctx, reply)
	f.recorder.RecordReply(kind, err == nil)
	if err != nil {
		err = NewExternalAPIError("REPLY_FAILED", "Failed to send "+kind+" reply", err)
		f.logger.Printf("webhook: chat %s: %v", result.ChatID, err)
		result.Errors = append(result.Errors, err)
	}
}

func (f *TelegramUpdateFlowImpl) replyContent(kind string) services.BotReply {
	switch kind {
	case ReplySuccess:
		return services.BotReply{Text: f.cfg.SuccessText, ParseMode: f.cfg.SuccessParseMode, ButtonText: f.cfg.SuccessButton}
	case ReplyAlready:
		return services.BotReply{Text: f.cfg.AlreadyText, ParseMode: f.cfg.AlreadyParseMode, ButtonText: f.cfg.AlreadyButton}
	default:
		return services.BotReply{Text: f.cfg.FallbackText, ParseMode: f.cfg.FallbackParseMode, ButtonText: f.cfg.FallbackButton}
	}
}

// HasError reports whether any swallowed error in r matches target
func (r UpdateResult) HasError(target error) bool {
	for _, err := range r.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
