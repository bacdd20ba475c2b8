package entity

import (
	"invisifeed/lib/validate"
	"math"
	"net/http"
	"strings"
	"time"
)

type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"

	DefaultFeedbackPageSize = 5
)

type Feedback struct {
	SatisfactionRating     int       `json:"satisfaction_rating" bson:"satisfaction_rating"`
	CommunicationRating    int       `json:"communication_rating" bson:"communication_rating"`
	QualityOfServiceRating int       `json:"quality_of_service_rating" bson:"quality_of_service_rating"`
	ValueForMoneyRating    int       `json:"value_for_money_rating" bson:"value_for_money_rating"`
	RecommendRating        int       `json:"recommend_rating" bson:"recommend_rating"`
	OverAllRating          float64   `json:"over_all_rating" bson:"over_all_rating"`
	FeedbackContent        string    `json:"feedback_content,omitempty" bson:"feedback_content,omitempty"`
	SuggestionContent      string    `json:"suggestion_content,omitempty" bson:"suggestion_content,omitempty"`
	CreatedAt              time.Time `json:"created_at" bson:"created_at"`
}

// FeedbackRequest is posted by a customer from the feedback page
type FeedbackRequest struct {
	Username               string `json:"username" validate:"required"`
	InvoiceId              string `json:"invoice_id,omitempty"`
	SatisfactionRating     int    `json:"satisfaction_rating" validate:"required,min=1,max=5"`
	CommunicationRating    int    `json:"communication_rating" validate:"required,min=1,max=5"`
	QualityOfServiceRating int    `json:"quality_of_service_rating" validate:"required,min=1,max=5"`
	ValueForMoneyRating    int    `json:"value_for_money_rating" validate:"required,min=1,max=5"`
	RecommendRating        int    `json:"recommend_rating" validate:"required,min=1,max=5"`
	FeedbackContent        string `json:"feedback_content,omitempty" validate:"omitempty,min=10,max=300"`
	SuggestionContent      string `json:"suggestion_content,omitempty" validate:"omitempty,max=300"`
}

func (f *FeedbackRequest) Bind(_ *http.Request) error {
	f.Username = strings.TrimSpace(f.Username)
	f.InvoiceId = strings.TrimSpace(f.InvoiceId)
	f.FeedbackContent = strings.TrimSpace(f.FeedbackContent)
	f.SuggestionContent = strings.TrimSpace(f.SuggestionContent)
	return validate.Struct(f)
}

// NewFeedback computes the overall rating as the mean of the five
// sub-ratings, rounded to one decimal
func NewFeedback(req *FeedbackRequest, now time.Time) *Feedback {
	sum := req.SatisfactionRating + req.CommunicationRating + req.QualityOfServiceRating +
		req.ValueForMoneyRating + req.RecommendRating
	return &Feedback{
		SatisfactionRating:     req.SatisfactionRating,
		CommunicationRating:    req.CommunicationRating,
		QualityOfServiceRating: req.QualityOfServiceRating,
		ValueForMoneyRating:    req.ValueForMoneyRating,
		RecommendRating:        req.RecommendRating,
		OverAllRating:          math.Round(float64(sum)/5*10) / 10,
		FeedbackContent:        req.FeedbackContent,
		SuggestionContent:      req.SuggestionContent,
		CreatedAt:              now,
	}
}

// FeedbackQuery selects one page of the owner's feedback; an empty
// username means the authenticated owner
type FeedbackQuery struct {
	Username string    `json:"username"`
	Page     int       `json:"page" validate:"omitempty,min=1"`
	Limit    int       `json:"limit" validate:"omitempty,min=1,max=100"`
	SortBy   SortOrder `json:"sort_by" validate:"omitempty,oneof=newest oldest highest lowest"`
}

func (q *FeedbackQuery) Bind(_ *http.Request) error {
	q.Username = strings.TrimSpace(q.Username)
	if err := validate.Struct(q); err != nil {
		return err
	}
	q.Defaults()
	return nil
}

func (q *FeedbackQuery) Defaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultFeedbackPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortNewest
	}
}

type FeedbackPage struct {
	Feedbacks      []*Feedback `json:"feedbacks"`
	TotalFeedbacks int         `json:"total_feedbacks"`
	TotalPages     int         `json:"total_pages"`
	CurrentPage    int         `json:"current_page"`
	HasNextPage    bool        `json:"has_next_page"`
	HasPrevPage    bool        `json:"has_prev_page"`
}
