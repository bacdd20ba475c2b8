package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/metrics"
	"invisifeed/lib/sl"
	"log/slog"
	"math/big"
	"strings"

	"github.com/biter777/countries"
)

const (
	msgRegistered    = "User registered successfully. Please verify your account."
	msgVerified      = "Account verified successfully"
	msgCodeExpired   = "Verification code has expired, please sign up again to get a new code"
	msgCodeIncorrect = "Incorrect Verification code"
	msgProfileSaved  = "Profile updated successfully"
	msgDataReset     = "All invoices and feedbacks were removed"
)

func (c *Core) SignUp(ctx context.Context, req *entity.SignUpRequest) (*entity.Message, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	log := c.log.With(sl.Owner(req.Username))

	existing, err := c.repo.GetOwner(ctx, req.Username)
	if err != nil {
		return nil, entity.Transient("get owner", err)
	}
	if existing != nil && existing.IsVerified {
		return nil, fmt.Errorf("%w: username %s is already taken", entity.ErrConflict, req.Username)
	}
	byEmail, err := c.repo.GetOwnerByEmail(ctx, req.Email)
	if err != nil {
		return nil, entity.Transient("get owner by email", err)
	}
	if byEmail != nil && byEmail.Username != req.Username {
		return nil, fmt.Errorf("%w: email is already registered", entity.ErrConflict)
	}

	hash, err := c.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := verificationCode()
	if err != nil {
		return nil, err
	}
	now := c.now()
	owner := entity.NewOwner(req, hash, code, now.Add(c.verifyCodeTTL), now)

	if existing != nil {
		err = c.repo.UpdateRegistration(ctx, owner)
	} else {
		err = c.repo.CreateOwner(ctx, owner)
	}
	if err != nil {
		return nil, storeErr("save owner", err)
	}

	if c.mail != nil {
		err = c.mail.SendVerification(ctx, &entity.VerificationMail{
			Email:            owner.Email,
			Username:         owner.Username,
			OrganizationName: owner.OrganizationName,
			Code:             code,
		})
		if err != nil {
			metrics.Emails.WithLabelValues("verification", metrics.ResultFailed).Inc()
			log.Error("send verification email", sl.Err(err))
			return nil, entity.Transient("send verification email", err)
		}
		metrics.Emails.WithLabelValues("verification", metrics.ResultSent).Inc()
	}
	log.Info("owner registered", slog.Bool("re_registration", existing != nil))
	return &entity.Message{Message: msgRegistered}, nil
}

// verificationCode returns six random digits
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// VerifyCode checks expiry first, then the code; a verified owner stays verified
func (c *Core) VerifyCode(ctx context.Context, req *entity.VerifyRequest) (*entity.Message, error) {
	owner, err := c.loadOwner(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if owner.IsVerified {
		return &entity.Message{Message: msgVerified}, nil
	}
	if !c.now().Before(owner.VerifyCodeExpiry) {
		return nil, entity.Public(entity.ErrExpired, msgCodeExpired)
	}
	if req.Code != owner.VerifyCode {
		return nil, entity.Public(entity.ErrInvalidCode, msgCodeIncorrect)
	}
	if err = c.repo.SetVerified(ctx, owner.Username); err != nil {
		return nil, storeErr("set verified", err)
	}
	c.log.With(sl.Owner(owner.Username)).Info("owner verified")
	return &entity.Message{Message: msgVerified}, nil
}

func (c *Core) SignIn(ctx context.Context, req *entity.SignInRequest) (*entity.SignInResult, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	identifier := req.Identifier
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}
	owner, err := c.repo.FindOwnerByIdentifier(ctx, identifier)
	if err != nil {
		return nil, entity.Transient("find owner", err)
	}
	if owner == nil || !c.auth.CheckPassword(owner.Password, req.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}
	if !owner.IsVerified {
		return nil, fmt.Errorf("%w: account is not verified", entity.ErrForbidden)
	}
	token, expiresAt, err := c.auth.IssueToken(owner.Username, c.now())
	if err != nil {
		return nil, err
	}
	return &entity.SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Owner:     owner.Summary(),
	}, nil
}

func (c *Core) Me(ctx context.Context, username string) (*entity.Owner, error) {
	owner, err := c.loadOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	return owner.Summary(), nil
}

// UpdateProfile stores contact details; the country is normalized to its common name
func (c *Core) UpdateProfile(ctx context.Context, username string, req *entity.ProfileRequest) (*entity.Message, error) {
	address := req.Address
	if address.Country != "" {
		country := countries.ByName(address.Country)
		if country == countries.Unknown {
			return nil, fmt.Errorf("%w: unknown country %q", entity.ErrValidation, address.Country)
		}
		address.Country = country.String()
	}
	if err := c.repo.UpdateProfile(ctx, username, req.PhoneNumber, address, req.Status); err != nil {
		return nil, storeErr("update profile", err)
	}
	return &entity.Message{Message: msgProfileSaved}, nil
}

// ResetData clears invoices, feedback and counters and removes the stored files
func (c *Core) ResetData(ctx context.Context, username string) (*entity.Message, error) {
	owner, err := c.loadOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	if err = c.repo.ResetOwnerData(ctx, username, c.now()); err != nil {
		return nil, storeErr("reset owner data", err)
	}
	log := c.log.With(sl.Owner(username))
	if c.store != nil {
		for _, invoice := range owner.Invoices {
			c.cleanup(ctx, log, invoice.InvoicePdfUrl, invoice.QrCodeUrl)
		}
	}
	log.Info("owner data reset", slog.Int("invoices", len(owner.Invoices)))
	return &entity.Message{Message: msgDataReset}, nil
}
