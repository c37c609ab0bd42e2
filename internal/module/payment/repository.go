package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines access to payment records and webhook events.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error)

	// RecordWebhookEvent claims the event for processing. It returns
	// ErrWebhookEventExists only when a prior delivery finished processing
	// it; a claimed-but-failed event stays claimable so gateway redelivery
	// can retry it.
	RecordWebhookEvent(ctx context.Context, event *WebhookEvent) error
	MarkWebhookProcessed(ctx context.Context, event *WebhookEvent, processErr error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by order: %w", err)
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, p *Payment) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var payments []*Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (r *repository) RecordWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return fmt.Errorf("record webhook event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var prior WebhookEvent
		if err := r.db.WithContext(ctx).First(&prior, "event_id = ?", event.EventID).Error; err != nil {
			return fmt.Errorf("record webhook event: %w", err)
		}
		if prior.Processed {
			return ErrWebhookEventExists
		}
	}
	return nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, event *WebhookEvent, processErr error) error {
	updates := map[string]any{
		"processed":    processErr == nil,
		"processed_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if processErr != nil {
		msg := processErr.Error()
		updates["error"] = &msg
	}
	err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("event_id = ?", event.EventID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}
