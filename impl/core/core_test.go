package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"invisifeed/entity"
	"invisifeed/impl/auth"
	"invisifeed/internal/lock"
	"invisifeed/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pdf(size int) []byte {
	header := []byte("%PDF-1.4\n")
	if size < len(header) {
		return header[:size]
	}
	return append(header, bytes.Repeat([]byte("0"), size-len(header))...)
}

func testOwner(username string, daily int, lastReset time.Time) *entity.Owner {
	o := entity.NewOwner(&entity.SignUpRequest{
		OrganizationName: "Acme",
		Email:            username + "@example.com",
		Username:         username,
	}, "", "123456", testNow.Add(time.Hour), lastReset)
	o.IsVerified = true
	o.UploadCounter.DailyUploads = daily
	o.UploadCounter.Count = daily
	return o
}

type testCore struct {
	*Core
	repo  *fakeRepo
	store *fakeStorage
	mail  *fakeMailer
}

func newTestCore(owners ...*entity.Owner) *testCore {
	repo := newFakeRepo(owners...)
	store := newFakeStorage()
	mail := &fakeMailer{}
	c := New(repo, testLogger())
	c.SetStorage(store)
	c.SetMailer(mail)
	c.SetAuthService(auth.New(repo, "secret", time.Hour))
	c.SetBaseUrl("https://invisifeed.test/")
	c.now = func() time.Time { return testNow }
	return &testCore{Core: c, repo: repo, store: store, mail: mail}
}

func upload(username string) *entity.UploadRequest {
	return &entity.UploadRequest{Username: username, FileName: "invoice.pdf", Data: pdf(1024)}
}

func TestUploadAcceptedBelowCap(t *testing.T) {
	tc := newTestCore(testOwner("acme", 2, testNow.Add(-time.Hour)))

	res, err := tc.UploadInvoice(context.Background(), upload("acme"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20240501-0003", res.InvoiceNumber)
	assert.Equal(t, "https://invisifeed.test/feedback/acme?invoice=INV-20240501-0003", res.FeedbackUrl)
	assert.NotEmpty(t, res.QrCodeUrl)

	stored := tc.repo.owner("acme")
	assert.Equal(t, 3, stored.UploadCounter.DailyUploads)
	assert.Equal(t, 3, stored.UploadCounter.Count)
	assert.Equal(t, testNow, stored.UploadCounter.LastUpdated)
	require.Len(t, stored.Invoices, 1)
	assert.Equal(t, res.Url, stored.Invoices[0].InvoicePdfUrl)
	assert.Equal(t, 2, tc.store.count())
}

func TestUploadRejectedAtCap(t *testing.T) {
	tc := newTestCore(testOwner("acme", 3, testNow.Add(-10*time.Hour)))

	_, err := tc.UploadInvoice(context.Background(), upload("acme"))
	var rateLimit *entity.RateLimitError
	require.ErrorAs(t, err, &rateLimit)
	assert.Equal(t, 14, rateLimit.TimeLeft)

	stored := tc.repo.owner("acme")
	assert.Equal(t, 3, stored.UploadCounter.DailyUploads)
	assert.Empty(t, stored.Invoices)
	assert.Zero(t, tc.store.count())
}

func TestUploadRollsOverBeforeCap(t *testing.T) {
	tc := newTestCore(testOwner("acme", 3, testNow.Add(-25*time.Hour)))

	_, err := tc.UploadInvoice(context.Background(), upload("acme"))
	require.NoError(t, err)

	stored := tc.repo.owner("acme")
	assert.Equal(t, 1, stored.UploadCounter.DailyUploads)
	assert.Equal(t, 4, stored.UploadCounter.Count)
	assert.Equal(t, testNow, stored.UploadCounter.LastDailyReset)
}

func TestUploadFailurePersistsRollover(t *testing.T) {
	owner := testOwner("acme", 3, testNow.Add(-25*time.Hour))
	owner.Invoices = append(owner.Invoices, entity.NewInvoice("A-1", "", "", nil, testNow.Add(-25*time.Hour)))
	tc := newTestCore(owner)

	req := upload("acme")
	req.InvoiceNumber = "A-1"
	_, err := tc.UploadInvoice(context.Background(), req)
	assert.ErrorIs(t, err, entity.ErrConflict)

	stored := tc.repo.owner("acme")
	assert.Equal(t, 0, stored.UploadCounter.DailyUploads)
	assert.Equal(t, testNow, stored.UploadCounter.LastDailyReset)
	assert.Equal(t, 1, tc.repo.resets)
}

func TestUploadFileChecks(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ok   bool
	}{
		{"exactly 3 MiB", pdf(3145728), true},
		{"one byte over", pdf(3145729), false},
		{"empty", nil, false},
		{"not a pdf", []byte("<html><body>invoice</body></html>"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCore(testOwner("acme", 0, testNow))
			req := upload("acme")
			req.Data = tt.data
			_, err := tc.UploadInvoice(context.Background(), req)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, entity.ErrValidation)
			assert.Empty(t, tc.repo.owner("acme").Invoices)
		})
	}
}

func TestUploadInvoiceNumbers(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	ctx := context.Background()

	req := upload("acme")
	req.InvoiceNumber = "  2024/INV-77 "
	res, err := tc.UploadInvoice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2024/INV-77", res.InvoiceNumber)
	assert.Contains(t, res.FeedbackUrl, "invoice=2024%2FINV-77")

	_, err = tc.UploadInvoice(ctx, req)
	assert.ErrorIs(t, err, entity.ErrConflict)

	req.InvoiceNumber = "bad id!"
	_, err = tc.UploadInvoice(ctx, req)
	assert.ErrorIs(t, err, entity.ErrValidation)

	res, err = tc.UploadInvoice(ctx, upload("acme"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20240501-0002", res.InvoiceNumber)

	sample := upload("acme")
	sample.IsSample = true
	res, err = tc.UploadInvoice(ctx, sample)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.InvoiceNumber, "SAMPLE-"))
	assert.Len(t, res.InvoiceNumber, len("SAMPLE-")+8)

	_, err = tc.UploadInvoice(ctx, upload("acme"))
	var rateLimit *entity.RateLimitError
	assert.ErrorAs(t, err, &rateLimit)
}

func TestUploadSkipsTakenSequence(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	owner.UploadCounter.Count = 1
	owner.Invoices = append(owner.Invoices, entity.NewInvoice("INV-20240501-0002", "", "", nil, testNow))
	tc := newTestCore(owner)

	res, err := tc.UploadInvoice(context.Background(), upload("acme"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20240501-0003", res.InvoiceNumber)
}

func TestUploadWithCoupon(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	req := upload("acme")
	req.Coupon = &entity.CouponData{CouponCode: " save10 ", Description: "10% off"}
	res, err := tc.UploadInvoice(context.Background(), req)
	require.NoError(t, err)

	coupon := tc.repo.owner("acme").Invoice(res.InvoiceNumber).CouponAttached
	require.NotNil(t, coupon)
	assert.Equal(t, "SAVE10", coupon.CouponCode)
	assert.Equal(t, testNow.Add(30*24*time.Hour), coupon.CouponExpiryDate)
	assert.False(t, coupon.IsCouponUsed)

	req = upload("acme")
	req.Coupon = &entity.CouponData{CouponCode: "NO-DASH", Description: "x"}
	_, err = tc.UploadInvoice(context.Background(), req)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestUploadStorageFailure(t *testing.T) {
	tc := newTestCore(testOwner("acme", 1, testNow))
	tc.store.failPut = true

	_, err := tc.UploadInvoice(context.Background(), upload("acme"))
	assert.ErrorIs(t, err, entity.ErrTransient)
	assert.Equal(t, 1, tc.repo.owner("acme").UploadCounter.DailyUploads)
}

func TestUploadStoreFailureRemovesFiles(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	tc.repo.beforeAddInvoice = func(o *entity.Owner) error {
		return errors.New("connection reset")
	}

	_, err := tc.UploadInvoice(context.Background(), upload("acme"))
	assert.ErrorIs(t, err, entity.ErrTransient)
	assert.Zero(t, tc.store.count())
	assert.Equal(t, 0, tc.repo.owner("acme").UploadCounter.DailyUploads)
}

func TestSerializedPolicyRejectsStaleCounter(t *testing.T) {
	concurrent := func(o *entity.Owner) error {
		o.UploadCounter.DailyUploads++
		o.UploadCounter.Count++
		return nil
	}

	tc := newTestCore(testOwner("acme", 1, testNow))
	tc.SetQuota(quota.New(3, 24*time.Hour), quota.PolicySerialized, lock.NewMemory())
	tc.repo.beforeAddInvoice = concurrent

	_, err := tc.UploadInvoice(context.Background(), upload("acme"))
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.Empty(t, tc.repo.owner("acme").Invoices)
	assert.Zero(t, tc.store.count())

	// best effort keeps last write wins
	tc = newTestCore(testOwner("acme", 1, testNow))
	tc.repo.beforeAddInvoice = concurrent
	_, err = tc.UploadInvoice(context.Background(), upload("acme"))
	require.NoError(t, err)
	assert.Equal(t, 2, tc.repo.owner("acme").UploadCounter.DailyUploads)
}

func TestSerializedPolicyNeverExceedsCap(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	tc.SetQuota(quota.New(3, 24*time.Hour), quota.PolicySerialized, lock.NewMemory())

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, limited := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tc.UploadInvoice(context.Background(), upload("acme"))
			mu.Lock()
			defer mu.Unlock()
			var rateLimit *entity.RateLimitError
			switch {
			case err == nil:
				accepted++
			case errors.As(err, &rateLimit):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 7, limited)
	stored := tc.repo.owner("acme")
	assert.Equal(t, 3, stored.UploadCounter.DailyUploads)
	assert.Len(t, stored.Invoices, 3)
}

func TestUploadCount(t *testing.T) {
	tc := newTestCore(
		testOwner("full", 3, testNow.Add(-10*time.Hour)),
		testOwner("stale", 3, testNow.Add(-30*time.Hour)),
	)
	ctx := context.Background()

	status, err := tc.UploadCount(ctx, "full")
	require.NoError(t, err)
	assert.Equal(t, 3, status.DailyUploads)
	assert.Equal(t, 3, status.DailyLimit)
	require.NotNil(t, status.TimeLeft)
	assert.Equal(t, 14, *status.TimeLeft)

	status, err = tc.UploadCount(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, 0, status.DailyUploads)
	assert.Nil(t, status.TimeLeft)
	assert.Equal(t, testNow, tc.repo.owner("stale").UploadCounter.LastDailyReset)

	_, err = tc.UploadCount(ctx, "nobody")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	tc.repo.err = errors.New("timeout")
	_, err = tc.UploadCount(ctx, "full")
	assert.ErrorIs(t, err, entity.ErrTransient)
}

func feedbackAt(rating float64, at time.Time) *entity.Feedback {
	return &entity.Feedback{OverAllRating: rating, CreatedAt: at}
}

func TestGetFeedbacksSorting(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	owner.Feedbacks = []*entity.Feedback{
		feedbackAt(2, testNow.Add(-3*time.Hour)),
		feedbackAt(5, testNow.Add(-2*time.Hour)),
		feedbackAt(3, testNow.Add(-1*time.Hour)),
	}
	tc := newTestCore(owner)

	ratings := func(sort entity.SortOrder) []float64 {
		page, err := tc.GetFeedbacks(context.Background(), &entity.FeedbackQuery{Username: "acme", SortBy: sort})
		require.NoError(t, err)
		var out []float64
		for _, f := range page.Feedbacks {
			out = append(out, f.OverAllRating)
		}
		return out
	}

	assert.Equal(t, []float64{5, 3, 2}, ratings(entity.SortHighest))
	assert.Equal(t, []float64{2, 3, 5}, ratings(entity.SortLowest))
	assert.Equal(t, []float64{3, 5, 2}, ratings(entity.SortNewest))
	assert.Equal(t, []float64{2, 5, 3}, ratings(entity.SortOldest))
	assert.Equal(t, []float64{3, 5, 2}, ratings(""))
}

func TestGetFeedbacksPaging(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	for i := 0; i < 12; i++ {
		owner.Feedbacks = append(owner.Feedbacks, feedbackAt(4, testNow))
	}
	tc := newTestCore(owner)
	ctx := context.Background()

	first, err := tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: 2, SortBy: entity.SortHighest})
	require.NoError(t, err)
	assert.Len(t, first.Feedbacks, 5)
	assert.Equal(t, 12, first.TotalFeedbacks)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 2, first.CurrentPage)
	assert.True(t, first.HasNextPage)
	assert.True(t, first.HasPrevPage)

	again, err := tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: 2, SortBy: entity.SortHighest})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	last, err := tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: 3})
	require.NoError(t, err)
	assert.Len(t, last.Feedbacks, 2)
	assert.False(t, last.HasNextPage)

	past, err := tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, past.Feedbacks)
	assert.Empty(t, past.Feedbacks)

	huge, err := tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: 1 << 62, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, huge.Feedbacks)
	assert.Equal(t, 1, huge.TotalPages)
	assert.False(t, huge.HasNextPage)
	assert.True(t, huge.HasPrevPage)

	_, err = tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "acme", Page: math.MaxInt, Limit: math.MaxInt})
	require.NoError(t, err)

	_, err = tc.GetFeedbacks(ctx, &entity.FeedbackQuery{Username: "nobody"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGetFeedbacksTiesKeepInsertionOrder(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	for _, content := range []string{"a", "b", "c", "d", "e", "f"} {
		fb := feedbackAt(4, testNow)
		fb.FeedbackContent = content
		owner.Feedbacks = append(owner.Feedbacks, fb)
	}
	tc := newTestCore(owner)

	for _, sort := range []entity.SortOrder{entity.SortHighest, entity.SortLowest, entity.SortNewest, entity.SortOldest} {
		var got []string
		for page := 1; page <= 2; page++ {
			res, err := tc.GetFeedbacks(context.Background(), &entity.FeedbackQuery{
				Username: "acme", Page: page, Limit: 3, SortBy: sort,
			})
			require.NoError(t, err)
			for _, f := range res.Feedbacks {
				got = append(got, f.FeedbackContent)
			}
		}
		assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got, sort)
	}
}

func TestGetFeedbacksEmpty(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	page, err := tc.GetFeedbacks(context.Background(), &entity.FeedbackQuery{Username: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasNextPage)
	assert.False(t, page.HasPrevPage)
	assert.NotNil(t, page.Feedbacks)
}

func TestSubmitFeedback(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	owner.Invoices = append(owner.Invoices, entity.NewInvoice("INV-1", "", "", nil, testNow))
	tc := newTestCore(owner)
	ctx := context.Background()

	req := &entity.FeedbackRequest{
		Username:               "acme",
		InvoiceId:              "INV-1",
		SatisfactionRating:     5,
		CommunicationRating:    4,
		QualityOfServiceRating: 4,
		ValueForMoneyRating:    4,
		RecommendRating:        4,
	}
	fb, err := tc.SubmitFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 4.2, fb.OverAllRating)
	assert.True(t, tc.repo.owner("acme").Invoice("INV-1").IsFeedbackSubmitted)

	_, err = tc.SubmitFeedback(ctx, req)
	assert.ErrorIs(t, err, entity.ErrConflict)

	req.InvoiceId = "INV-404"
	_, err = tc.SubmitFeedback(ctx, req)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	req.InvoiceId = ""
	_, err = tc.SubmitFeedback(ctx, req)
	require.NoError(t, err)
	assert.Len(t, tc.repo.owner("acme").Feedbacks, 2)
}

func TestVerifyCode(t *testing.T) {
	unverified := func(expiry time.Time) *entity.Owner {
		o := testOwner("acme", 0, testNow)
		o.IsVerified = false
		o.VerifyCodeExpiry = expiry
		return o
	}
	ctx := context.Background()

	tc := newTestCore(unverified(testNow.Add(-time.Minute)))
	_, err := tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "acme", Code: "123456"})
	assert.ErrorIs(t, err, entity.ErrExpired)
	assert.EqualError(t, err, msgCodeExpired)
	assert.False(t, tc.repo.owner("acme").IsVerified)

	tc = newTestCore(unverified(testNow.Add(time.Minute)))
	_, err = tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "acme", Code: "000000"})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)
	assert.EqualError(t, err, msgCodeIncorrect)
	assert.False(t, tc.repo.owner("acme").IsVerified)

	msg, err := tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "acme", Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, msgVerified, msg.Message)
	assert.True(t, tc.repo.owner("acme").IsVerified)

	// a verified owner is not affected by an old code
	tc.repo.owner("acme").VerifyCodeExpiry = testNow.Add(-time.Hour)
	_, err = tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "acme", Code: "999999"})
	assert.NoError(t, err)

	_, err = tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "nobody", Code: "1"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSignUpAndSignIn(t *testing.T) {
	tc := newTestCore()
	ctx := context.Background()
	req := &entity.SignUpRequest{
		OrganizationName: "Acme",
		Email:            "owner@acme.test",
		Username:         "acme",
		Password:         "secret1",
	}

	_, err := tc.SignUp(ctx, req)
	require.NoError(t, err)
	require.Len(t, tc.mail.verifications, 1)
	code := tc.mail.verifications[0].Code
	assert.Len(t, code, 6)

	stored := tc.repo.owner("acme")
	assert.False(t, stored.IsVerified)
	assert.NotEqual(t, "secret1", stored.Password)
	assert.Equal(t, testNow.Add(time.Hour), stored.VerifyCodeExpiry)

	_, err = tc.SignIn(ctx, &entity.SignInRequest{Identifier: "acme", Password: "secret1"})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	// re-registration of an unverified account issues a new code
	_, err = tc.SignUp(ctx, req)
	require.NoError(t, err)
	require.Len(t, tc.mail.verifications, 2)
	code = tc.mail.verifications[1].Code

	_, err = tc.VerifyCode(ctx, &entity.VerifyRequest{Username: "acme", Code: code})
	require.NoError(t, err)

	_, err = tc.SignUp(ctx, req)
	assert.ErrorIs(t, err, entity.ErrConflict)

	other := *req
	other.Username = "other"
	_, err = tc.SignUp(ctx, &other)
	assert.ErrorIs(t, err, entity.ErrConflict)

	// tokens are checked against the wall clock
	tc.now = func() time.Time { return time.Now().UTC() }

	_, err = tc.SignIn(ctx, &entity.SignInRequest{Identifier: "acme", Password: "wrong"})
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
	_, err = tc.SignIn(ctx, &entity.SignInRequest{Identifier: "ghost", Password: "secret1"})
	assert.ErrorIs(t, err, entity.ErrUnauthorized)

	res, err := tc.SignIn(ctx, &entity.SignInRequest{Identifier: "Owner@Acme.test", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Nil(t, res.Owner.Invoices)

	owner, err := tc.AuthenticateByToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "acme", owner.Username)
}

func TestSignUpMailFailure(t *testing.T) {
	tc := newTestCore()
	tc.mail.err = errors.New("smtp down")
	_, err := tc.SignUp(context.Background(), &entity.SignUpRequest{
		OrganizationName: "Acme",
		Email:            "owner@acme.test",
		Username:         "acme",
		Password:         "secret1",
	})
	assert.ErrorIs(t, err, entity.ErrTransient)
}

func TestUpdateProfile(t *testing.T) {
	tc := newTestCore(testOwner("acme", 0, testNow))
	ctx := context.Background()

	_, err := tc.UpdateProfile(ctx, "acme", &entity.ProfileRequest{
		PhoneNumber: "+49 30 1234",
		Address:     entity.Address{City: "Berlin", Country: "Germany"},
		Status:      entity.ProfileCompleted,
	})
	require.NoError(t, err)
	stored := tc.repo.owner("acme")
	assert.Equal(t, entity.ProfileCompleted, stored.ProfileStatus)
	assert.Equal(t, "Germany", stored.Address.Country)

	_, err = tc.UpdateProfile(ctx, "acme", &entity.ProfileRequest{
		Address: entity.Address{Country: "Atlantis"},
		Status:  entity.ProfileCompleted,
	})
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = tc.UpdateProfile(ctx, "nobody", &entity.ProfileRequest{Status: entity.ProfileSkipped})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestResetData(t *testing.T) {
	tc := newTestCore(testOwner("acme", 2, testNow.Add(-time.Hour)))
	ctx := context.Background()
	_, err := tc.UploadInvoice(ctx, upload("acme"))
	require.NoError(t, err)
	require.Equal(t, 2, tc.store.count())

	_, err = tc.ResetData(ctx, "acme")
	require.NoError(t, err)

	stored := tc.repo.owner("acme")
	assert.Empty(t, stored.Invoices)
	assert.Equal(t, 0, stored.UploadCounter.Count)
	assert.Equal(t, 0, stored.UploadCounter.DailyUploads)
	assert.Equal(t, testNow, stored.UploadCounter.LastDailyReset)
	assert.Zero(t, tc.store.count())
}

func TestSendInvoiceEmail(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	owner.Invoices = append(owner.Invoices, entity.NewInvoice("INV-1", "http://files.test/a.pdf", "", nil, testNow))
	tc := newTestCore(owner)
	ctx := context.Background()
	req := &entity.InvoiceEmailRequest{
		CustomerEmail: "customer@example.com",
		InvoiceNumber: "INV-1",
		PdfUrl:        "http://files.test/a.pdf",
	}

	_, err := tc.SendInvoiceEmail(ctx, "acme", req)
	require.NoError(t, err)
	require.Len(t, tc.mail.invoices, 1)
	assert.Equal(t, "https://invisifeed.test/feedback/acme?invoice=INV-1", tc.mail.invoices[0].FeedbackUrl)

	req.InvoiceNumber = "INV-2"
	_, err = tc.SendInvoiceEmail(ctx, "acme", req)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	req.InvoiceNumber = "INV-1"
	tc.mail.err = errors.New("smtp down")
	_, err = tc.SendInvoiceEmail(ctx, "acme", req)
	assert.ErrorIs(t, err, entity.ErrTransient)
}

func TestRedeemCoupon(t *testing.T) {
	owner := testOwner("acme", 0, testNow)
	owner.Invoices = append(owner.Invoices,
		entity.NewInvoice("INV-1", "", "", &entity.Coupon{
			CouponCode:       "SAVE10",
			CouponExpiryDate: testNow.Add(time.Hour),
		}, testNow),
		entity.NewInvoice("INV-2", "", "", &entity.Coupon{
			CouponCode:       "OLD",
			CouponExpiryDate: testNow,
		}, testNow),
		entity.NewInvoice("INV-3", "", "", nil, testNow),
	)
	tc := newTestCore(owner)
	ctx := context.Background()

	coupon, err := tc.RedeemCoupon(ctx, "acme", &entity.RedeemCouponRequest{InvoiceId: "INV-1", CouponCode: "save10"})
	require.NoError(t, err)
	assert.True(t, coupon.IsCouponUsed)
	assert.True(t, tc.repo.owner("acme").Invoice("INV-1").CouponAttached.IsCouponUsed)

	_, err = tc.RedeemCoupon(ctx, "acme", &entity.RedeemCouponRequest{InvoiceId: "INV-1", CouponCode: "SAVE10"})
	assert.ErrorIs(t, err, entity.ErrConflict)

	_, err = tc.RedeemCoupon(ctx, "acme", &entity.RedeemCouponRequest{InvoiceId: "INV-2", CouponCode: "OLD"})
	assert.ErrorIs(t, err, entity.ErrExpired)

	_, err = tc.RedeemCoupon(ctx, "acme", &entity.RedeemCouponRequest{InvoiceId: "INV-2", CouponCode: "NEW"})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = tc.RedeemCoupon(ctx, "acme", &entity.RedeemCouponRequest{InvoiceId: "INV-3", CouponCode: "ANY"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
