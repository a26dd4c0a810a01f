package coupon

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/osanz/go_market/internal/domain"
)

// Store provides coupon lookup and redemption. Consumers define this
// interface, not the Postgres implementation.
type Store interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	CountRedemptions(ctx context.Context, couponID uuid.UUID, userID string) (int, error)
	Redeem(ctx context.Context, couponID uuid.UUID, userID string, orderID uuid.UUID) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT id, code, kind, value, absolute_cap, minimum_spend, starts_at, ends_at,
	                 global_limit, per_user_limit, used_count, active, stackable, restriction
	          FROM coupons WHERE code = $1`

	var c domain.Coupon
	var restrictionJSON []byte
	err := s.db.QueryRowContext(ctx, query, domain.NormalizeCode(code)).Scan(
		&c.ID,
		&c.Code,
		&c.Kind,
		&c.Value,
		&c.AbsoluteCap,
		&c.MinimumSpend,
		&c.StartsAt,
		&c.EndsAt,
		&c.GlobalLimit,
		&c.PerUserLimit,
		&c.UsedCount,
		&c.Active,
		&c.Stackable,
		&restrictionJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query coupon by code: %w", err)
	}

	if len(restrictionJSON) > 0 {
		if err := json.Unmarshal(restrictionJSON, &c.Restriction); err != nil {
			return nil, fmt.Errorf("unmarshal coupon restriction: %w", err)
		}
	}

	return &c, nil
}

func (s *PostgresStore) CountRedemptions(ctx context.Context, couponID uuid.UUID, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`
	if err := s.db.QueryRowContext(ctx, query, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count coupon redemptions: %w", err)
	}
	return count, nil
}

// Redeem burns one use of the coupon for this user and order. The global cap
// is enforced with a single increment-and-check statement, the per-user cap
// with a guarded insert in the same transaction, so neither can be exceeded
// under concurrent redemption.
func (s *PostgresStore) Redeem(ctx context.Context, couponID uuid.UUID, userID string, orderID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		 WHERE id = $1 AND (global_limit = 0 OR used_count < global_limit)`,
		couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM coupons WHERE id = $1)`, couponID).Scan(&exists); err != nil {
			return fmt.Errorf("check coupon existence: %w", err)
		}
		if !exists {
			return domain.ErrCouponNotFound
		}
		return domain.ErrCouponExhausted
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, user_id, order_id, redeemed_at)
		 SELECT $1, $2, $3, NOW()
		 WHERE (SELECT per_user_limit FROM coupons WHERE id = $1) = 0
		    OR (SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)
		       < (SELECT per_user_limit FROM coupons WHERE id = $1)`,
		couponID, userID, orderID)
	if err != nil {
		return fmt.Errorf("record coupon redemption: %w", err)
	}

	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record coupon redemption: %w", err)
	}
	if affected == 0 {
		// Rollback also undoes the used_count increment.
		return domain.ErrCouponUsageLimit
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem transaction: %w", err)
	}
	return nil
}
