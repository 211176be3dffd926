package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commtrack/commtrack_backend/models"
)

// AuditService appends privileged state changes to the audit_logs
// collection. Writes are best-effort: a failure is logged and swallowed so
// the primary operation never blocks on the audit sink.
type AuditService struct {
	DB *mongo.Database
}

// NewAuditService creates the audit service.
func NewAuditService(db *mongo.Database) *AuditService {
	return &AuditService{DB: db}
}

// Record appends one audit entry.
func (a *AuditService) Record(ctx context.Context, actorID primitive.ObjectID, action string, recordID primitive.ObjectID, details map[string]interface{}) {
	entry := models.AuditLog{
		ActorID:       actorID,
		Action:        action,
		RecordID:      recordID,
		Details:       details,
		CorrelationID: uuid.NewString(),
		CreatedAt:     time.Now(),
	}
	_, err := a.DB.Collection("audit_logs").InsertOne(ctx, entry)
	if err != nil {
		log.Printf("Error writing audit log (%s on %s): %v", action, recordID.Hex(), err)
	}
}

// List returns a page of audit entries, newest first.
func (a *AuditService) List(ctx context.Context, page, limit int64) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := a.DB.Collection("audit_logs").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	defer cursor.Close(ctx)

	var entries []models.AuditLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, ErrStoreUnavailable
	}
	return entries, nil
}
