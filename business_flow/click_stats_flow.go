package businessflow

import (
	"context"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/repository"
	"github.com/amirphl/leadbridge/utils"
)

const maxRecentClicks = 100

// ClickStatsFlow summarizes stored clicks for operators
type ClickStatsFlow interface {
	ClickStats(ctx context.Context, req dto.ClickStatsRequest) (*dto.ClickStatsResponse, error)
}

type ClickStatsFlowImpl struct {
	repo repository.ClickRecordRepository
}

func NewClickStatsFlow(repo repository.ClickRecordRepository) ClickStatsFlow {
	return &ClickStatsFlowImpl{repo: repo}
}

func (f *ClickStatsFlowImpl) ClickStats(ctx context.Context, req dto.ClickStatsRequest) (*dto.ClickStatsResponse, error) {
	if !req.Since.IsZero() && !req.Until.IsZero() && !req.Since.Before(req.Until) {
		return nil, NewBusinessError("INVALID_WINDOW", "since must be before until", ErrValidation)
	}
	if req.Recent < 0 || req.Recent > maxRecentClicks {
		return nil, NewBusinessErrorf("INVALID_RECENT", "recent must be between 0 and %d", ErrValidation, maxRecentClicks)
	}

	filter := models.ClickRecordFilter{}
	if !req.Since.IsZero() {
		filter.CreatedAfter = utils.ToPtr(req.Since)
	}
	if !req.Until.IsZero() {
		filter.CreatedBefore = utils.ToPtr(req.Until)
	}

	total, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, NewStorageError("CLICK_COUNT_FAILED", "Failed to count clicks", err)
	}
	linkedFilter := filter
	linkedFilter.Resolved = utils.ToPtr(true)
	linked, err := f.repo.Count(ctx, linkedFilter)
	if err != nil {
		return nil, NewStorageError("CLICK_COUNT_FAILED", "Failed to count linked clicks", err)
	}

	resp := &dto.ClickStatsResponse{
		Total:   total,
		Linked:  linked,
		Pending: total - linked,
	}
	if total > 0 {
		resp.LinkRate = float64(linked) / float64(total)
	}

	if req.Recent > 0 {
		rows, err := f.repo.ByFilter(ctx, filter, "created_at DESC, id DESC", req.Recent, 0)
		if err != nil {
			return nil, NewStorageError("CLICK_LIST_FAILED", "Failed to list recent clicks", err)
		}
		resp.Recent = make([]dto.ClickSummary, 0, len(rows))
		for _, r := range rows {
			resp.Recent = append(resp.Recent, dto.ClickSummary{
				Token:     r.UniqueToken,
				AdName:    r.AdName,
				AdsetName: r.AdsetName,
				Linked:    r.IsResolved(),
				CreatedAt: r.CreatedAt,
			})
		}
	}

	return resp, nil
}
