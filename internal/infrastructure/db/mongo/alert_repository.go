package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

const collectionAlerts = "fraud_alerts"

// AlertRepository archives emitted alerts in MongoDB for auditing and the
// status API. The external sink remains the system of record; this archive is
// best-effort.
type AlertRepository struct {
	col *mongo.Collection
}

// NewAlertRepository creates an AlertRepository on the fraud_alerts collection.
func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{col: db.Collection(collectionAlerts)}
}

// Insert persists one emitted alert.
func (r *AlertRepository) Insert(ctx context.Context, alert domain.FraudAlert) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"subject_id":      alert.SubjectID,
		"subject_label":   alert.SubjectLabel,
		"rule_tag":        alert.RuleTag,
		"message":         alert.Message,
		"severity":        string(alert.Severity),
		"cycle_timestamp": alert.CycleTimestamp.UTC(),
		"archived_at":     time.Now().UTC(),
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

// ListRecent returns the most recently archived alerts, newest first.
func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]domain.FraudAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "cycle_timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var alerts []domain.FraudAlert
	for cur.Next(ctx) {
		var doc struct {
			SubjectID      string    `bson:"subject_id"`
			SubjectLabel   string    `bson:"subject_label"`
			RuleTag        string    `bson:"rule_tag"`
			Message        string    `bson:"message"`
			Severity       string    `bson:"severity"`
			CycleTimestamp time.Time `bson:"cycle_timestamp"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		alerts = append(alerts, domain.FraudAlert{
			SubjectID:      doc.SubjectID,
			SubjectLabel:   doc.SubjectLabel,
			RuleTag:        doc.RuleTag,
			Message:        doc.Message,
			Severity:       domain.Severity(doc.Severity),
			CycleTimestamp: doc.CycleTimestamp,
		})
	}
	return alerts, cur.Err()
}

// EnsureIndexes creates the indexes used by ListRecent and ad-hoc queries.
func (r *AlertRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "cycle_timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "subject_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
