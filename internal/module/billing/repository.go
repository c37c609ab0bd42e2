package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sodam/server/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository defines access to the per-period usage ledger.
type LedgerRepository interface {
	// GetOrCreate returns the ledger row for the user and period, creating
	// one with all counters at zero if absent.
	GetOrCreate(ctx context.Context, userID uuid.UUID, period string) (*UsageLedger, error)

	// Increment atomically adds amount to the named counter, creating the
	// row if absent, and returns the new counter value.
	Increment(ctx context.Context, userID uuid.UUID, period string, kind ResourceKind, amount int64) (int64, error)

	// ConditionalIncrement adds amount to the named counter only if the
	// result stays within limit. Admission and increment are one atomic
	// statement, so concurrent callers can never jointly exceed the limit.
	// It returns whether the increment was admitted and the counter value
	// after the call (unchanged on rejection).
	ConditionalIncrement(ctx context.Context, userID uuid.UUID, period string, kind ResourceKind, amount, limit int64) (admitted bool, current int64, err error)
}

// SubscriptionRepository defines access to subscription records.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetCurrent returns the user's subscription in a current status
	// (trial, active or past_due), or ErrSubscriptionNotFound.
	GetCurrent(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error

	// SaveWithUserPlan persists the subscription and the owning user's plan
	// field in one transaction, so a crash cannot leave them out of sync.
	SaveWithUserPlan(ctx context.Context, sub *Subscription, plan string) error

	// GetUserPlan returns the plan tier on the user's profile.
	GetUserPlan(ctx context.Context, userID uuid.UUID) (string, error)

	ListActivePlans(ctx context.Context) ([]*Plan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed billing repository.
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

var (
	_ LedgerRepository       = (*repository)(nil)
	_ SubscriptionRepository = (*repository)(nil)
)

// --- Usage Ledger ---

func (r *repository) GetOrCreate(ctx context.Context, userID uuid.UUID, period string) (*UsageLedger, error) {
	if err := r.ensureLedger(ctx, userID, period); err != nil {
		return nil, err
	}

	var ledger UsageLedger
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, period).
		First(&ledger).Error
	if err != nil {
		return nil, fmt.Errorf("get usage ledger: %w", err)
	}
	return &ledger, nil
}

func (r *repository) Increment(ctx context.Context, userID uuid.UUID, period string, kind ResourceKind, amount int64) (int64, error) {
	col, ok := ledgerColumns[kind]
	if !ok {
		return 0, ErrInvalidResource
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	// Upsert: create-with-initial-amount if the row is missing, otherwise
	// add to the existing counter. Single statement, safe under concurrency.
	query := fmt.Sprintf(`
		INSERT INTO usage_ledgers (user_id, period, %[1]s, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, period)
		DO UPDATE SET %[1]s = usage_ledgers.%[1]s + EXCLUDED.%[1]s, updated_at = CURRENT_TIMESTAMP
		RETURNING %[1]s`, col)

	var newValue int64
	err := r.db.WithContext(ctx).Raw(query, userID, period, amount).Scan(&newValue).Error
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", kind, err)
	}
	return newValue, nil
}

func (r *repository) ConditionalIncrement(ctx context.Context, userID uuid.UUID, period string, kind ResourceKind, amount, limit int64) (bool, int64, error) {
	col, ok := ledgerColumns[kind]
	if !ok {
		return false, 0, ErrInvalidResource
	}
	if amount <= 0 {
		return false, 0, ErrInvalidAmount
	}

	if err := r.ensureLedger(ctx, userID, period); err != nil {
		return false, 0, err
	}

	// The admission check and the increment are one UPDATE: the WHERE
	// clause evaluates against the row as locked by the statement, so N
	// concurrent callers against limit L admit exactly L.
	query := fmt.Sprintf(`
		UPDATE usage_ledgers
		SET %[1]s = %[1]s + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND period = ? AND %[1]s + ? <= ?
		RETURNING %[1]s`, col)

	var newValue int64
	res := r.db.WithContext(ctx).Raw(query, amount, userID, period, amount, limit).Scan(&newValue)
	if res.Error != nil {
		return false, 0, fmt.Errorf("conditional increment %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, newValue, nil
	}

	// Rejected: the counter is untouched, read it back for reporting.
	ledger, err := r.GetOrCreate(ctx, userID, period)
	if err != nil {
		return false, 0, err
	}
	return false, ledger.Counter(kind), nil
}

func (r *repository) ensureLedger(ctx context.Context, userID uuid.UUID, period string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(&UsageLedger{UserID: userID, Period: period}).Error
	if err != nil {
		return fmt.Errorf("ensure usage ledger: %w", err)
	}
	return nil
}

// --- Subscriptions ---

func (r *repository) Create(ctx context.Context, sub *Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) GetCurrent(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []SubscriptionStatus{
			SubscriptionStatusTrial,
			SubscriptionStatusActive,
			SubscriptionStatusPastDue,
		}).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get current subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) Update(ctx context.Context, sub *Subscription) error {
	if err := r.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (r *repository) SaveWithUserPlan(ctx context.Context, sub *Subscription, plan string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		err := tx.Model(&model.User{}).
			Where("id = ?", sub.UserID).
			Update("plan", plan).Error
		if err != nil {
			return fmt.Errorf("sync user plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save subscription with user plan: %w", err)
	}
	return nil
}

func (r *repository) GetUserPlan(ctx context.Context, userID uuid.UUID) (string, error) {
	var plan string
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("plan").
		Where("id = ?", userID).
		Scan(&plan).Error
	if err != nil {
		return "", fmt.Errorf("get user plan: %w", err)
	}
	if plan == "" {
		plan = PlanFree
	}
	return plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("display_order ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	return plans, nil
}
