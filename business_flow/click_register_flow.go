package businessflow

import (
	"context"
	"errors"
	"log"
	"net"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/repository"
	"github.com/amirphl/leadbridge/utils"
)

// ClickRegisterFlow stores an ad click and hands back its correlation token
type ClickRegisterFlow interface {
	RegisterClick(ctx context.Context, req *dto.InitUserRequest) (*dto.InitUserResponse, error)
}

type ClickRegisterFlowImpl struct {
	repo     repository.ClickRecordRepository
	tokens   TokenGenerator
	recorder OutcomeRecorder
	logger   *log.Logger
}

func NewClickRegisterFlow(
	repo repository.ClickRecordRepository,
	tokens TokenGenerator,
	recorder OutcomeRecorder,
	logger *log.Logger,
) ClickRegisterFlow {
	return &ClickRegisterFlowImpl{
		repo:     repo,
		tokens:   tokens,
		recorder: recorderOrNoop(recorder),
		logger:   loggerOrDefault(logger),
	}
}

// RegisterClick persists the click under a fresh token. A token that collides
// with an existing row is regenerated.
func (f *ClickRegisterFlowImpl) RegisterClick(ctx context.Context, req *dto.InitUserRequest) (*dto.InitUserResponse, error) {
	if err := validateInitUserRequest(req); err != nil {
		return nil, err
	}

	adName := req.AdName
	if adName == "" {
		adName = utils.DefaultAdName
	}
	adsetName := req.AdsetName
	if adsetName == "" {
		adsetName = utils.DefaultAdsetName
	}

	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		record := &models.ClickRecord{
			UniqueToken: f.tokens.Generate(),
			FbClid:      utils.ClonePtr(req.FbClid),
			FbAgent:     utils.ClonePtr(req.UserAgent),
			FbIP:        utils.ClonePtr(req.IP),
			AdName:      adName,
			AdsetName:   adsetName,
		}

		err := f.repo.Save(ctx, record)
		if err == nil {
			f.recorder.RecordClickRegistered(true)
			return &dto.InitUserResponse{Token: record.UniqueToken}, nil
		}
		if repository.IsDuplicateKey(err) {
			f.logger.Printf("click: token collision on attempt %d, regenerating (%s)", attempt, requestFields(ctx))
			continue
		}

		f.recorder.RecordClickRegistered(false)
		f.logger.Printf("click: save failed (%s): %v", requestFields(ctx), err)
		return nil, NewStorageError("CLICK_SAVE_FAILED", "Failed to save click record", err)
	}

	f.recorder.RecordClickRegistered(false)
	return nil, NewStorageError("TOKEN_ALLOCATION_FAILED", "Failed to allocate a unique token", ErrTokenSpaceExhausted)
}

// validateInitUserRequest mirrors the handler schema so the flow is safe to call directly
func validateInitUserRequest(req *dto.InitUserRequest) error {
	if req == nil {
		return NewBusinessError("INVALID_REQUEST", "Request is required", errors.Join(ErrValidation, ErrRequestNil))
	}
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"fbclid", utils.ValueOrZero(req.FbClid), 512},
		{"userAgent", utils.ValueOrZero(req.UserAgent), 1024},
		{"ad_name", req.AdName, 255},
		{"adset_name", req.AdsetName, 255},
	}
	for _, l := range limits {
		if len([]rune(l.value)) > l.max {
			return NewBusinessErrorf("VALIDATION_ERROR", "%s must be at most %d characters", errors.Join(ErrValidation, ErrFieldTooLong), l.field, l.max)
		}
	}
	if ip := utils.ValueOrZero(req.IP); ip != "" && net.ParseIP(ip) == nil {
		return NewBusinessError("VALIDATION_ERROR", "ip must be a valid IP address", errors.Join(ErrValidation, ErrInvalidIP))
	}
	return nil
}
