// Package persistence is the thin database layer behind the API routes.
// The original deployment used a hosted database service; this wraps the
// same three tables behind GORM so the backend runs against sqlite in
// development and postgres or mysql in production.
package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&Subscriber{},
		&ProfileAnswer{},
		&AnalyticsEvent{},
	)
}

// Ping reports database reachability; wired into the readiness check.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// UpsertSubscriber inserts a subscriber or, when the email already exists,
// refreshes its source and magnet fields.
func (r *Repository) UpsertSubscriber(ctx context.Context, sub *Subscriber) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "magnet_id", "updated_at"}),
	}).Create(sub).Error
}

func (r *Repository) GetSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error) {
	var sub Subscriber
	if err := r.db.WithContext(ctx).First(&sub, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// SaveProfileAnswer records an answer, replacing any previous answer the
// same email gave to the same question.
func (r *Repository) SaveProfileAnswer(ctx context.Context, ans *ProfileAnswer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}, {Name: "question"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
	}).Create(ans).Error
}

func (r *Repository) ProfileAnswers(ctx context.Context, email string) ([]ProfileAnswer, error) {
	var answers []ProfileAnswer
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("question").Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *Repository) RecordEvent(ctx context.Context, ev *AnalyticsEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}
