package database

import (
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"invisifeed/entity"
	"invisifeed/internal/config"
	"time"
)

const (
	collectionOwners = "owners"
)

type MongoDB struct {
	client   *mongo.Client
	database string
}

func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return connect(ctx, clientOptions, conf.Mongo.Database)
}

// NewFromURI connects with a full connection string
func NewFromURI(ctx context.Context, uri, database string) (*MongoDB, error) {
	return connect(ctx, options.Client().ApplyURI(uri), database)
}

func connect(ctx context.Context, clientOptions *options.ClientOptions, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return &MongoDB{
		client:   client,
		database: database,
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) {
	_ = m.client.Disconnect(ctx)
}

func (m *MongoDB) owners() *mongo.Collection {
	return m.client.Database(m.database).Collection(collectionOwners)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) writeError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w: duplicate key", op, entity.ErrConflict)
	}
	return fmt.Errorf("mongodb %s: %w", op, err)
}

// EnsureIndexes creates the unique indexes the owner model relies on.
// The compound index guards invoice ids across documents; the $ne filter in
// AddInvoice guards them within one document.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{"username", 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{"email", 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{"username", 1}, {"invoices.invoice_id", 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := m.owners().Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("mongodb indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) findOwner(ctx context.Context, filter bson.D) (*entity.Owner, error) {
	var owner entity.Owner
	err := m.owners().FindOne(ctx, filter).Decode(&owner)
	if err != nil {
		return nil, m.findError(err)
	}
	return &owner, nil
}

// GetOwner returns nil without error when the owner does not exist
func (m *MongoDB) GetOwner(ctx context.Context, username string) (*entity.Owner, error) {
	return m.findOwner(ctx, bson.D{{"username", username}})
}

func (m *MongoDB) GetOwnerByEmail(ctx context.Context, email string) (*entity.Owner, error) {
	return m.findOwner(ctx, bson.D{{"email", email}})
}

// FindOwnerByIdentifier matches either the username or the email
func (m *MongoDB) FindOwnerByIdentifier(ctx context.Context, identifier string) (*entity.Owner, error) {
	return m.findOwner(ctx, bson.D{{"$or", bson.A{
		bson.D{{"username", identifier}},
		bson.D{{"email", identifier}},
	}}})
}

func (m *MongoDB) CreateOwner(ctx context.Context, owner *entity.Owner) error {
	_, err := m.owners().InsertOne(ctx, owner)
	if err != nil {
		return m.writeError("insert owner", err)
	}
	return nil
}

// UpdateRegistration overwrites the sign-up fields of an unverified owner
func (m *MongoDB) UpdateRegistration(ctx context.Context, owner *entity.Owner) error {
	filter := bson.D{{"username", owner.Username}, {"is_verified", false}}
	update := bson.D{{"$set", bson.D{
		{"organization_name", owner.OrganizationName},
		{"email", owner.Email},
		{"password", owner.Password},
		{"verify_code", owner.VerifyCode},
		{"verify_code_expiry", owner.VerifyCodeExpiry},
	}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("update registration", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update registration: %w: account already verified", entity.ErrConflict)
	}
	return nil
}

func (m *MongoDB) SetVerified(ctx context.Context, username string) error {
	filter := bson.D{{"username", username}}
	update := bson.D{{"$set", bson.D{{"is_verified", true}}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("set verified", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set verified: %w", entity.ErrNotFound)
	}
	return nil
}

// ResetDailyUploads persists a rollover only if nobody else has rolled the
// counter since prevReset; it reports whether the document was changed
func (m *MongoDB) ResetDailyUploads(ctx context.Context, username string, prevReset, now time.Time) (bool, error) {
	filter := bson.D{
		{"username", username},
		{"upload_counter.last_daily_reset", prevReset},
	}
	update := bson.D{{"$set", bson.D{
		{"upload_counter.daily_uploads", 0},
		{"upload_counter.last_daily_reset", now},
	}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, m.writeError("reset daily uploads", err)
	}
	return res.ModifiedCount > 0, nil
}

// AddInvoice appends the invoice and stores the counter in one update.
// With expect set, the update only applies while the stored counter still
// equals expect (compare-and-set); otherwise the counter is overwritten.
func (m *MongoDB) AddInvoice(ctx context.Context, username string, invoice *entity.Invoice, counter entity.UploadCounter, expect *entity.UploadCounter) error {
	filter := bson.D{
		{"username", username},
		{"invoices.invoice_id", bson.D{{"$ne", invoice.InvoiceId}}},
	}
	if expect != nil {
		filter = append(filter,
			bson.E{Key: "upload_counter.daily_uploads", Value: expect.DailyUploads},
			bson.E{Key: "upload_counter.last_daily_reset", Value: expect.LastDailyReset},
		)
	}
	update := bson.D{
		{"$push", bson.D{{"invoices", invoice}}},
		{"$set", bson.D{{"upload_counter", counter}}},
	}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("add invoice", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("add invoice %s: %w: invoice exists or counter changed concurrently", invoice.InvoiceId, entity.ErrConflict)
	}
	return nil
}

// GetFeedbacks loads only the feedback list; found is false when the owner does not exist
func (m *MongoDB) GetFeedbacks(ctx context.Context, username string) ([]*entity.Feedback, bool, error) {
	opts := options.FindOne().SetProjection(bson.D{{"feedbacks", 1}})
	var owner entity.Owner
	err := m.owners().FindOne(ctx, bson.D{{"username", username}}, opts).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, m.findError(err)
	}
	return owner.Feedbacks, true, nil
}

// AddFeedback appends the feedback; with invoiceId set, the invoice is
// flagged in the same update and must not carry feedback yet
func (m *MongoDB) AddFeedback(ctx context.Context, username string, feedback *entity.Feedback, invoiceId string) error {
	filter := bson.D{{"username", username}}
	set := bson.D{}
	if invoiceId != "" {
		filter = append(filter, bson.E{Key: "invoices", Value: bson.D{{"$elemMatch", bson.D{
			{"invoice_id", invoiceId},
			{"is_feedback_submitted", false},
		}}}})
		set = append(set, bson.E{Key: "invoices.$.is_feedback_submitted", Value: true})
	}
	update := bson.D{{"$push", bson.D{{"feedbacks", feedback}}}}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("add feedback", err)
	}
	if res.MatchedCount == 0 {
		if invoiceId != "" {
			return fmt.Errorf("add feedback: %w: feedback already submitted for invoice %s", entity.ErrConflict, invoiceId)
		}
		return fmt.Errorf("add feedback: %w", entity.ErrNotFound)
	}
	return nil
}

// RedeemCoupon flips is_coupon_used on the invoice's coupon exactly once
func (m *MongoDB) RedeemCoupon(ctx context.Context, username, invoiceId string) error {
	filter := bson.D{
		{"username", username},
		{"invoices", bson.D{{"$elemMatch", bson.D{
			{"invoice_id", invoiceId},
			{"coupon_attached.is_coupon_used", false},
		}}}},
	}
	update := bson.D{{"$set", bson.D{{"invoices.$.coupon_attached.is_coupon_used", true}}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("redeem coupon", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("redeem coupon: %w: coupon already used", entity.ErrConflict)
	}
	return nil
}

func (m *MongoDB) UpdateProfile(ctx context.Context, username string, phone string, address entity.Address, status entity.ProfileStatus) error {
	filter := bson.D{{"username", username}}
	update := bson.D{{"$set", bson.D{
		{"phone_number", phone},
		{"address", address},
		{"profile_status", status},
	}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("update profile", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update profile: %w", entity.ErrNotFound)
	}
	return nil
}

// ResetOwnerData clears invoices, feedbacks, recommendations and counters
func (m *MongoDB) ResetOwnerData(ctx context.Context, username string, now time.Time) error {
	filter := bson.D{{"username", username}}
	update := bson.D{{"$set", bson.D{
		{"invoices", bson.A{}},
		{"feedbacks", bson.A{}},
		{"upload_counter", entity.UploadCounter{
			LastUpdated:    now,
			LastDailyReset: now,
		}},
		{"recommended_actions", entity.RecommendedActions{
			Improvements: []string{},
			Strengths:    []string{},
		}},
	}}}
	res, err := m.owners().UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError("reset owner data", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("reset owner data: %w", entity.ErrNotFound)
	}
	return nil
}
