package core

import (
	"context"
	"errors"
	"fmt"
	"invisifeed/entity"
	"sync"
	"time"
)

// fakeRepo mirrors the conditional updates of the Mongo store in memory
type fakeRepo struct {
	mu     sync.Mutex
	owners map[string]*entity.Owner
	err    error
	// beforeAddInvoice runs inside AddInvoice, before the conditions are checked
	beforeAddInvoice func(o *entity.Owner) error
	resets           int
}

func newFakeRepo(owners ...*entity.Owner) *fakeRepo {
	r := &fakeRepo{owners: make(map[string]*entity.Owner)}
	for _, o := range owners {
		r.owners[o.Username] = o
	}
	return r
}

func cloneOwner(o *entity.Owner) *entity.Owner {
	c := *o
	c.Invoices = make([]*entity.Invoice, 0, len(o.Invoices))
	for _, inv := range o.Invoices {
		i := *inv
		if inv.CouponAttached != nil {
			coupon := *inv.CouponAttached
			i.CouponAttached = &coupon
		}
		c.Invoices = append(c.Invoices, &i)
	}
	c.Feedbacks = append([]*entity.Feedback{}, o.Feedbacks...)
	return &c
}

func (r *fakeRepo) owner(username string) *entity.Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[username]
}

func (r *fakeRepo) find(match func(o *entity.Owner) bool) (*entity.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, o := range r.owners {
		if match(o) {
			return cloneOwner(o), nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetOwner(_ context.Context, username string) (*entity.Owner, error) {
	return r.find(func(o *entity.Owner) bool { return o.Username == username })
}

func (r *fakeRepo) GetOwnerByEmail(_ context.Context, email string) (*entity.Owner, error) {
	return r.find(func(o *entity.Owner) bool { return o.Email == email })
}

func (r *fakeRepo) FindOwnerByIdentifier(_ context.Context, identifier string) (*entity.Owner, error) {
	return r.find(func(o *entity.Owner) bool { return o.Username == identifier || o.Email == identifier })
}

func (r *fakeRepo) CreateOwner(_ context.Context, owner *entity.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[owner.Username]; ok {
		return fmt.Errorf("insert owner: %w: duplicate key", entity.ErrConflict)
	}
	r.owners[owner.Username] = cloneOwner(owner)
	return nil
}

func (r *fakeRepo) UpdateRegistration(_ context.Context, owner *entity.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[owner.Username]
	if !ok || o.IsVerified {
		return fmt.Errorf("update registration: %w", entity.ErrConflict)
	}
	o.OrganizationName = owner.OrganizationName
	o.Email = owner.Email
	o.Password = owner.Password
	o.VerifyCode = owner.VerifyCode
	o.VerifyCodeExpiry = owner.VerifyCodeExpiry
	return nil
}

func (r *fakeRepo) update(username string, fn func(o *entity.Owner) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	o, ok := r.owners[username]
	if !ok {
		return fmt.Errorf("update: %w", entity.ErrNotFound)
	}
	return fn(o)
}

func (r *fakeRepo) SetVerified(_ context.Context, username string) error {
	return r.update(username, func(o *entity.Owner) error {
		o.IsVerified = true
		return nil
	})
}

func (r *fakeRepo) ResetDailyUploads(_ context.Context, username string, prevReset, now time.Time) (bool, error) {
	changed := false
	err := r.update(username, func(o *entity.Owner) error {
		if !o.UploadCounter.LastDailyReset.Equal(prevReset) {
			return nil
		}
		o.UploadCounter.DailyUploads = 0
		o.UploadCounter.LastDailyReset = now
		changed = true
		r.resets++
		return nil
	})
	return changed, err
}

func (r *fakeRepo) AddInvoice(_ context.Context, username string, invoice *entity.Invoice, counter entity.UploadCounter, expect *entity.UploadCounter) error {
	return r.update(username, func(o *entity.Owner) error {
		if r.beforeAddInvoice != nil {
			if err := r.beforeAddInvoice(o); err != nil {
				return err
			}
		}
		if o.Invoice(invoice.InvoiceId) != nil {
			return fmt.Errorf("add invoice: %w", entity.ErrConflict)
		}
		if expect != nil && (o.UploadCounter.DailyUploads != expect.DailyUploads ||
			!o.UploadCounter.LastDailyReset.Equal(expect.LastDailyReset)) {
			return fmt.Errorf("add invoice: %w: counter changed", entity.ErrConflict)
		}
		o.Invoices = append(o.Invoices, invoice)
		o.UploadCounter = counter
		return nil
	})
}

func (r *fakeRepo) GetFeedbacks(_ context.Context, username string) ([]*entity.Feedback, bool, error) {
	o, err := r.GetOwner(context.Background(), username)
	if err != nil || o == nil {
		return nil, false, err
	}
	return o.Feedbacks, true, nil
}

func (r *fakeRepo) AddFeedback(_ context.Context, username string, feedback *entity.Feedback, invoiceId string) error {
	return r.update(username, func(o *entity.Owner) error {
		if invoiceId != "" {
			inv := o.Invoice(invoiceId)
			if inv == nil || inv.IsFeedbackSubmitted {
				return fmt.Errorf("add feedback: %w", entity.ErrConflict)
			}
			inv.IsFeedbackSubmitted = true
		}
		o.Feedbacks = append(o.Feedbacks, feedback)
		return nil
	})
}

func (r *fakeRepo) RedeemCoupon(_ context.Context, username, invoiceId string) error {
	return r.update(username, func(o *entity.Owner) error {
		inv := o.Invoice(invoiceId)
		if inv == nil || inv.CouponAttached == nil || inv.CouponAttached.IsCouponUsed {
			return fmt.Errorf("redeem coupon: %w", entity.ErrConflict)
		}
		inv.CouponAttached.IsCouponUsed = true
		return nil
	})
}

func (r *fakeRepo) UpdateProfile(_ context.Context, username string, phone string, address entity.Address, status entity.ProfileStatus) error {
	return r.update(username, func(o *entity.Owner) error {
		o.PhoneNumber = phone
		o.Address = address
		o.ProfileStatus = status
		return nil
	})
}

func (r *fakeRepo) ResetOwnerData(_ context.Context, username string, now time.Time) error {
	return r.update(username, func(o *entity.Owner) error {
		o.Invoices = []*entity.Invoice{}
		o.Feedbacks = []*entity.Feedback{}
		o.UploadCounter = entity.UploadCounter{LastUpdated: now, LastDailyReset: now}
		o.RecommendedActions = entity.RecommendedActions{Improvements: []string{}, Strengths: []string{}}
		return nil
	})
}

type fakeStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	failPut bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (s *fakeStorage) Put(_ context.Context, owner, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", errors.New("disk full")
	}
	url := fmt.Sprintf("http://files.test/%s/%d-%s", owner, len(s.files), name)
	s.files[url] = data
	return url, nil
}

func (s *fakeStorage) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, url)
	return nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type fakeMailer struct {
	invoices      []*entity.InvoiceMail
	verifications []*entity.VerificationMail
	err           error
}

func (m *fakeMailer) SendInvoice(_ context.Context, data *entity.InvoiceMail) error {
	if m.err != nil {
		return m.err
	}
	m.invoices = append(m.invoices, data)
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, data *entity.VerificationMail) error {
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, data)
	return nil
}
