package entity

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"invisifeed/lib/validate"
	"net/http"
	"strings"
	"time"
)

// ProfileStatus tracks the onboarding step after verification
type ProfileStatus string

const (
	ProfilePending   ProfileStatus = "pending"
	ProfileSkipped   ProfileStatus = "skipped"
	ProfileCompleted ProfileStatus = "completed"
)

type Address struct {
	LocalAddress string `json:"local_address" bson:"local_address" validate:"max=200"`
	City         string `json:"city" bson:"city" validate:"max=100"`
	State        string `json:"state" bson:"state" validate:"max=100"`
	Country      string `json:"country" bson:"country" validate:"max=100"`
	Pincode      string `json:"pincode" bson:"pincode" validate:"max=20"`
}

type RecommendedActions struct {
	Improvements []string `json:"improvements" bson:"improvements"`
	Strengths    []string `json:"strengths" bson:"strengths"`
}

// Owner is one organization account. Invoices and feedbacks are embedded
// and exclusively owned by the document.
type Owner struct {
	Id                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrganizationName   string             `json:"organization_name" bson:"organization_name"`
	Email              string             `json:"email" bson:"email"`
	Username           string             `json:"username" bson:"username"`
	Password           string             `json:"-" bson:"password"`
	VerifyCode         string             `json:"-" bson:"verify_code"`
	VerifyCodeExpiry   time.Time          `json:"-" bson:"verify_code_expiry"`
	IsVerified         bool               `json:"is_verified" bson:"is_verified"`
	ProfileStatus      ProfileStatus      `json:"profile_status" bson:"profile_status"`
	PhoneNumber        string             `json:"phone_number" bson:"phone_number"`
	Address            Address            `json:"address" bson:"address"`
	Invoices           []*Invoice         `json:"invoices,omitempty" bson:"invoices"`
	Feedbacks          []*Feedback        `json:"feedbacks,omitempty" bson:"feedbacks"`
	UploadCounter      UploadCounter      `json:"upload_counter" bson:"upload_counter"`
	RecommendedActions RecommendedActions `json:"recommended_actions" bson:"recommended_actions"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
}

// NewOwner builds an unverified owner; embedded arrays are initialized
// so that $push works on a fresh document
func NewOwner(req *SignUpRequest, passwordHash, code string, codeExpiry, now time.Time) *Owner {
	return &Owner{
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Username:         req.Username,
		Password:         passwordHash,
		VerifyCode:       code,
		VerifyCodeExpiry: codeExpiry,
		ProfileStatus:    ProfilePending,
		Invoices:         []*Invoice{},
		Feedbacks:        []*Feedback{},
		UploadCounter: UploadCounter{
			LastUpdated:    now,
			LastDailyReset: now,
		},
		RecommendedActions: RecommendedActions{
			Improvements: []string{},
			Strengths:    []string{},
		},
		CreatedAt: now,
	}
}

func (o *Owner) Invoice(id string) *Invoice {
	for _, inv := range o.Invoices {
		if inv.InvoiceId == id {
			return inv
		}
	}
	return nil
}

// Summary drops the embedded lists for responses that only need the profile
func (o *Owner) Summary() *Owner {
	s := *o
	s.Invoices = nil
	s.Feedbacks = nil
	return &s
}

type SignUpRequest struct {
	OrganizationName string `json:"organization_name" validate:"required,max=120"`
	Email            string `json:"email" validate:"required,email"`
	Username         string `json:"username" validate:"required,min=3,max=40,excludesall=/?#%"`
	Password         string `json:"password" validate:"required,min=6,max=72"`
}

func (s *SignUpRequest) Bind(_ *http.Request) error {
	s.OrganizationName = strings.TrimSpace(s.OrganizationName)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Username = strings.TrimSpace(s.Username)
	return validate.Struct(s)
}

type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (s *SignInRequest) Bind(_ *http.Request) error {
	s.Identifier = strings.TrimSpace(s.Identifier)
	return validate.Struct(s)
}

type SignInResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Owner     *Owner    `json:"owner"`
}

type VerifyRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

func (v *VerifyRequest) Bind(_ *http.Request) error {
	v.Username = strings.TrimSpace(v.Username)
	v.Code = strings.TrimSpace(v.Code)
	return validate.Struct(v)
}

// UsernameRequest is the body of owner endpoints that take nothing but the username
type UsernameRequest struct {
	Username string `json:"username"`
}

func (u *UsernameRequest) Bind(_ *http.Request) error {
	u.Username = strings.TrimSpace(u.Username)
	return nil
}

type ProfileRequest struct {
	PhoneNumber string        `json:"phone_number" validate:"omitempty,max=20"`
	Address     Address       `json:"address"`
	Status      ProfileStatus `json:"status" validate:"required,oneof=completed skipped"`
}

func (p *ProfileRequest) Bind(_ *http.Request) error {
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	p.Address.LocalAddress = strings.TrimSpace(p.Address.LocalAddress)
	p.Address.City = strings.TrimSpace(p.Address.City)
	p.Address.State = strings.TrimSpace(p.Address.State)
	p.Address.Country = strings.TrimSpace(p.Address.Country)
	p.Address.Pincode = strings.TrimSpace(p.Address.Pincode)
	return validate.Struct(p)
}

type Message struct {
	Message string `json:"message"`
}
