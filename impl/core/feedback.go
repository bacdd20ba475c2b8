package core

import (
	"cmp"
	"context"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/metrics"
	"invisifeed/lib/sl"
	"log/slog"
	"slices"
)

// GetFeedbacks sorts a copy of the owner's feedback and returns one page.
// Equal keys keep insertion order, so repeated calls return the same pages.
func (c *Core) GetFeedbacks(ctx context.Context, query *entity.FeedbackQuery) (*entity.FeedbackPage, error) {
	query.Defaults()
	if query.Page < 1 || query.Limit < 1 {
		return nil, fmt.Errorf("%w: page and limit must be positive", entity.ErrValidation)
	}
	list, found, err := c.repo.GetFeedbacks(ctx, query.Username)
	if err != nil {
		return nil, entity.Transient("get feedbacks", err)
	}
	if !found {
		return nil, fmt.Errorf("owner %s: %w", query.Username, entity.ErrNotFound)
	}

	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, compareFeedback(query.SortBy))

	total := len(sorted)
	totalPages := total / query.Limit
	if total%query.Limit != 0 {
		totalPages++
	}
	// page is checked before multiplying so a huge value cannot overflow
	start, end := total, total
	if query.Page <= totalPages {
		start = (query.Page - 1) * query.Limit
		end = start + min(query.Limit, total-start)
	}

	page := make([]*entity.Feedback, 0, end-start)
	page = append(page, sorted[start:end]...)

	return &entity.FeedbackPage{
		Feedbacks:      page,
		TotalFeedbacks: total,
		TotalPages:     totalPages,
		CurrentPage:    query.Page,
		HasNextPage:    query.Page < totalPages,
		HasPrevPage:    query.Page > 1,
	}, nil
}

func compareFeedback(order entity.SortOrder) func(a, b *entity.Feedback) int {
	switch order {
	case entity.SortOldest:
		return func(a, b *entity.Feedback) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	case entity.SortHighest:
		return func(a, b *entity.Feedback) int {
			return cmp.Compare(b.OverAllRating, a.OverAllRating)
		}
	case entity.SortLowest:
		return func(a, b *entity.Feedback) int {
			return cmp.Compare(a.OverAllRating, b.OverAllRating)
		}
	default:
		return func(a, b *entity.Feedback) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	}
}

// SubmitFeedback stores customer feedback; with an invoice id the invoice is
// marked as reviewed in the same write
func (c *Core) SubmitFeedback(ctx context.Context, req *entity.FeedbackRequest) (*entity.Feedback, error) {
	owner, err := c.loadOwner(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if req.InvoiceId != "" {
		invoice := owner.Invoice(req.InvoiceId)
		if invoice == nil {
			return nil, fmt.Errorf("invoice %s: %w", req.InvoiceId, entity.ErrNotFound)
		}
		if invoice.IsFeedbackSubmitted {
			return nil, fmt.Errorf("%w: feedback already submitted for invoice %s", entity.ErrConflict, req.InvoiceId)
		}
	}

	feedback := entity.NewFeedback(req, c.now())
	if err = c.repo.AddFeedback(ctx, req.Username, feedback, req.InvoiceId); err != nil {
		return nil, storeErr("add feedback", err)
	}
	metrics.FeedbackSubmissions.Inc()
	c.log.With(
		sl.Owner(req.Username),
		sl.Invoice(req.InvoiceId),
		slog.Float64("rating", feedback.OverAllRating),
	).Debug("feedback received")
	return feedback, nil
}
