package core

import (
	"context"
	"errors"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/lock"
	"invisifeed/internal/quota"
	"invisifeed/lib/clock"
	"invisifeed/lib/sl"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const defaultMaxFileSize = 3 << 20

// Repository is the owner document store
type Repository interface {
	GetOwner(ctx context.Context, username string) (*entity.Owner, error)
	GetOwnerByEmail(ctx context.Context, email string) (*entity.Owner, error)
	FindOwnerByIdentifier(ctx context.Context, identifier string) (*entity.Owner, error)
	CreateOwner(ctx context.Context, owner *entity.Owner) error
	UpdateRegistration(ctx context.Context, owner *entity.Owner) error
	SetVerified(ctx context.Context, username string) error
	ResetDailyUploads(ctx context.Context, username string, prevReset, now time.Time) (bool, error)
	AddInvoice(ctx context.Context, username string, invoice *entity.Invoice, counter entity.UploadCounter, expect *entity.UploadCounter) error
	GetFeedbacks(ctx context.Context, username string) ([]*entity.Feedback, bool, error)
	AddFeedback(ctx context.Context, username string, feedback *entity.Feedback, invoiceId string) error
	RedeemCoupon(ctx context.Context, username, invoiceId string) error
	UpdateProfile(ctx context.Context, username string, phone string, address entity.Address, status entity.ProfileStatus) error
	ResetOwnerData(ctx context.Context, username string, now time.Time) error
}

type Storage interface {
	Put(ctx context.Context, owner, name string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

type Mailer interface {
	SendInvoice(ctx context.Context, data *entity.InvoiceMail) error
	SendVerification(ctx context.Context, data *entity.VerificationMail) error
}

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	IssueToken(username string, now time.Time) (string, time.Time, error)
	OwnerByToken(ctx context.Context, token string) (*entity.Owner, error)
}

type Core struct {
	repo          Repository
	store         Storage
	mail          Mailer
	auth          AuthService
	locker        lock.Locker
	gate          *quota.Gate
	policy        quota.Policy
	maxFileSize   int64
	baseUrl       string
	verifyCodeTTL time.Duration
	now           func() time.Time
	log           *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Core {
	if repo == nil {
		panic("repository is nil")
	}
	return &Core{
		repo:          repo,
		locker:        lock.Noop{},
		gate:          quota.New(quota.DefaultDailyLimit, quota.DefaultWindow),
		policy:        quota.PolicyBestEffort,
		maxFileSize:   defaultMaxFileSize,
		verifyCodeTTL: time.Hour,
		now:           clock.Stamp,
		log:           log.With(sl.Module("core")),
	}
}

func (c *Core) SetStorage(store Storage) {
	c.store = store
}

func (c *Core) SetMailer(mail Mailer) {
	c.mail = mail
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

// SetQuota installs the daily gate and the consistency policy; the locker
// is only consulted under the serialized policy
func (c *Core) SetQuota(gate *quota.Gate, policy quota.Policy, locker lock.Locker) {
	c.gate = gate
	c.policy = policy
	if policy == quota.PolicySerialized && locker != nil {
		c.locker = locker
	} else {
		c.locker = lock.Noop{}
	}
}

func (c *Core) SetMaxFileSize(size int64) {
	if size > 0 {
		c.maxFileSize = size
	}
}

func (c *Core) SetBaseUrl(baseUrl string) {
	c.baseUrl = strings.TrimRight(baseUrl, "/")
}

func (c *Core) SetVerifyCodeTTL(ttl time.Duration) {
	if ttl > 0 {
		c.verifyCodeTTL = ttl
	}
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.Owner, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.OwnerByToken(ctx, token)
}

// loadOwner returns NotFound for unknown owners and Transient for store failures
func (c *Core) loadOwner(ctx context.Context, username string) (*entity.Owner, error) {
	owner, err := c.repo.GetOwner(ctx, username)
	if err != nil {
		return nil, entity.Transient("get owner", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("owner %s: %w", username, entity.ErrNotFound)
	}
	return owner, nil
}

// storeErr keeps conflicts and missing documents as they are; anything else is transient
func storeErr(op string, err error) error {
	if errors.Is(err, entity.ErrConflict) || errors.Is(err, entity.ErrNotFound) {
		return err
	}
	return entity.Transient(op, err)
}

func (c *Core) feedbackUrl(username, invoiceId string) string {
	u := fmt.Sprintf("%s/feedback/%s", c.baseUrl, url.PathEscape(username))
	if invoiceId != "" {
		u += "?invoice=" + url.QueryEscape(invoiceId)
	}
	return u
}
