package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"punchgate/internal/payroll/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

const (
	batchesCollection   = "payroll_batches"
	timecardsCollection = "timecards"
)

// NewMongoHandle binds a handle to one tenant's database. The database name
// comes from the tenant's directory entry, so two tenants can never share a
// handle.
func NewMongoHandle(client *mongo.Client, tenantID id.TenantID, datastoreName string) *Handle {
	db := client.Database(datastoreName)
	return &Handle{
		TenantID:  tenantID,
		Name:      datastoreName,
		Batches:   &mongoBatchStore{db: db},
		Timecards: &mongoTimecardStore{db: db},
	}
}

// batchDoc is the persisted batch shape. IDs are canonical UUID strings.
type batchDoc struct {
	ID                string    `bson:"_id"`
	Status            string    `bson:"status"`
	MemberTimecardIDs []string  `bson:"memberTimecardIds"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

func toBatchDoc(b *models.PayrollBatch) batchDoc {
	members := make([]string, 0, len(b.MemberTimecardIDs))
	for _, member := range b.MemberTimecardIDs {
		members = append(members, member.String())
	}
	return batchDoc{
		ID:                b.ID.String(),
		Status:            string(b.Status),
		MemberTimecardIDs: members,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

func (d *batchDoc) toModel() (*models.PayrollBatch, error) {
	batchID, err := id.ParseBatchID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt batch id %q: %w", d.ID, err)
	}
	members := make([]id.TimecardID, 0, len(d.MemberTimecardIDs))
	for _, raw := range d.MemberTimecardIDs {
		timecardID, err := id.ParseTimecardID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt member timecard id %q: %w", raw, err)
		}
		members = append(members, timecardID)
	}
	return &models.PayrollBatch{
		ID:                batchID,
		Status:            models.BatchStatus(d.Status),
		MemberTimecardIDs: members,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

type mongoBatchStore struct {
	db *mongo.Database
}

func (s *mongoBatchStore) Create(ctx context.Context, batch *models.PayrollBatch) error {
	_, err := s.db.Collection(batchesCollection).InsertOne(ctx, toBatchDoc(batch))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("batch already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (s *mongoBatchStore) FindByID(ctx context.Context, batchID id.BatchID) (*models.PayrollBatch, error) {
	var doc batchDoc
	err := s.db.Collection(batchesCollection).
		FindOne(ctx, bson.M{"_id": batchID.String()}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("batch not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return doc.toModel()
}

func (s *mongoBatchStore) FindLockingByTimecard(ctx context.Context, timecardID id.TimecardID) ([]*models.PayrollBatch, error) {
	filter := bson.M{
		"memberTimecardIds": timecardID.String(),
		"status": bson.M{"$in": []string{
			string(models.BatchStatusProcessing),
			string(models.BatchStatusProcessed),
		}},
	}
	opts := mongooptions.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(batchesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find locking batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*models.PayrollBatch
	for cursor.Next(ctx) {
		var doc batchDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		batch, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate locking batches: %w", err)
	}
	return batches, nil
}

func (s *mongoBatchStore) Transition(ctx context.Context, batchID id.BatchID, next models.BatchStatus, now time.Time) (*models.PayrollBatch, error) {
	batch, err := s.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	prev := batch.Status
	if err := batch.Transition(next, now); err != nil {
		return nil, err
	}

	// Filter on the previous status so a concurrent transition loses cleanly
	// instead of silently reverting a processed batch.
	res, err := s.db.Collection(batchesCollection).UpdateOne(ctx,
		bson.M{"_id": batchID.String(), "status": string(prev)},
		bson.M{"$set": bson.M{"status": string(next), "updatedAt": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("transition batch: %w", err)
	}
	if res.ModifiedCount == 0 {
		return nil, fmt.Errorf("batch moved concurrently: %w", sentinel.ErrConflict)
	}
	return batch, nil
}

// punchDoc and timecardDoc persist the timecard aggregate.
type punchDoc struct {
	ID   string    `bson:"_id"`
	Kind string    `bson:"kind"`
	At   time.Time `bson:"at"`
	Note string    `bson:"note,omitempty"`
}

type timecardDoc struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"userId"`
	PeriodStart time.Time  `bson:"periodStart"`
	PeriodEnd   time.Time  `bson:"periodEnd"`
	Punches     []punchDoc `bson:"punches"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

func toTimecardDoc(t *models.Timecard) timecardDoc {
	punches := make([]punchDoc, 0, len(t.Punches))
	for _, p := range t.Punches {
		punches = append(punches, punchDoc{ID: p.ID.String(), Kind: string(p.Kind), At: p.At, Note: p.Note})
	}
	return timecardDoc{
		ID:          t.ID.String(),
		UserID:      t.UserID.String(),
		PeriodStart: t.PeriodStart,
		PeriodEnd:   t.PeriodEnd,
		Punches:     punches,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d *timecardDoc) toModel() (*models.Timecard, error) {
	timecardID, err := id.ParseTimecardID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt timecard id %q: %w", d.ID, err)
	}
	userID, err := id.ParseUserID(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", d.UserID, err)
	}
	punches := make([]models.Punch, 0, len(d.Punches))
	for _, p := range d.Punches {
		punchID, err := id.ParsePunchID(p.ID)
		if err != nil {
			return nil, fmt.Errorf("corrupt punch id %q: %w", p.ID, err)
		}
		punches = append(punches, models.Punch{ID: punchID, Kind: models.PunchKind(p.Kind), At: p.At, Note: p.Note})
	}
	return &models.Timecard{
		ID:          timecardID,
		UserID:      userID,
		PeriodStart: d.PeriodStart,
		PeriodEnd:   d.PeriodEnd,
		Punches:     punches,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type mongoTimecardStore struct {
	db *mongo.Database
}

func (s *mongoTimecardStore) Create(ctx context.Context, timecard *models.Timecard) error {
	_, err := s.db.Collection(timecardsCollection).InsertOne(ctx, toTimecardDoc(timecard))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("timecard already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create timecard: %w", err)
	}
	return nil
}

func (s *mongoTimecardStore) FindByID(ctx context.Context, timecardID id.TimecardID) (*models.Timecard, error) {
	var doc timecardDoc
	err := s.db.Collection(timecardsCollection).
		FindOne(ctx, bson.M{"_id": timecardID.String()}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("timecard not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find timecard: %w", err)
	}
	return doc.toModel()
}

func (s *mongoTimecardStore) ListByUser(ctx context.Context, userID id.UserID, start, end time.Time) ([]*models.Timecard, error) {
	filter := bson.M{
		"userId":      userID.String(),
		"periodStart": bson.M{"$lte": end},
		"periodEnd":   bson.M{"$gte": start},
	}
	opts := mongooptions.Find().SetSort(bson.D{{Key: "periodStart", Value: 1}})
	cursor, err := s.db.Collection(timecardsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list timecards: %w", err)
	}
	defer cursor.Close(ctx)

	var timecards []*models.Timecard
	for cursor.Next(ctx) {
		var doc timecardDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode timecard: %w", err)
		}
		timecard, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		timecards = append(timecards, timecard)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate timecards: %w", err)
	}
	return timecards, nil
}

func (s *mongoTimecardStore) UpdatePunch(ctx context.Context, timecardID id.TimecardID, punch models.Punch, now time.Time) error {
	res, err := s.db.Collection(timecardsCollection).UpdateOne(ctx,
		bson.M{"_id": timecardID.String(), "punches._id": punch.ID.String()},
		bson.M{"$set": bson.M{
			"punches.$": punchDoc{ID: punch.ID.String(), Kind: string(punch.Kind), At: punch.At, Note: punch.Note},
			"updatedAt": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("update punch: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("punch not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
