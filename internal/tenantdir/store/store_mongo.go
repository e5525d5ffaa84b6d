package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

const tenantsCollection = "tenants"

// Mongo reads the tenant directory from the shared directory database.
type Mongo struct {
	db *mongo.Database
}

// NewMongo constructs a directory store over the given database.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// tenantDoc is the persisted shape. IDs are stored as canonical UUID strings.
type tenantDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	DatastoreName string    `bson:"datastoreName"`
	DomainAliases []string  `bson:"domainAliases"`
	Status        string    `bson:"status"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func (d *tenantDoc) toModel() (*models.Tenant, error) {
	tenantID, err := id.ParseTenantID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt tenant id %q: %w", d.ID, err)
	}
	return &models.Tenant{
		ID:            tenantID,
		Name:          d.Name,
		DatastoreName: d.DatastoreName,
		DomainAliases: d.DomainAliases,
		Status:        models.TenantStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func (s *Mongo) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	var doc tenantDoc
	err := s.db.Collection(tenantsCollection).
		FindOne(ctx, bson.M{"_id": tenantID.String()}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return doc.toModel()
}

func (s *Mongo) FindByAlias(ctx context.Context, alias string) (*models.Tenant, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	var doc tenantDoc
	err := s.db.Collection(tenantsCollection).
		FindOne(ctx, bson.M{"domainAliases": alias}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("tenant not found for alias %q: %w", alias, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant by alias: %w", err)
	}
	return doc.toModel()
}

// Create inserts a directory entry. Used by provisioning tooling and tests.
func (s *Mongo) Create(ctx context.Context, tenant *models.Tenant) error {
	doc := tenantDoc{
		ID:            tenant.ID.String(),
		Name:          tenant.Name,
		DatastoreName: tenant.DatastoreName,
		DomainAliases: tenant.DomainAliases,
		Status:        string(tenant.Status),
		CreatedAt:     tenant.CreatedAt,
		UpdatedAt:     tenant.UpdatedAt,
	}
	if _, err := s.db.Collection(tenantsCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("tenant already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}
