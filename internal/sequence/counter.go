// Package sequence hands out invoice sequence numbers. Numbers are strictly
// increasing within one company and period, including under concurrent use.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourdesk/internal/invoicing"
	"tourdesk/internal/model"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter allocates the next sequence value of a (company, period) scope.
type Counter interface {
	Next(ctx context.Context, companyID uuid.UUID, period string) (int64, error)
}

// Seeder reports the highest value already issued in a scope. Counters call
// it once per scope so numbering continues after existing invoices.
type Seeder func(ctx context.Context, companyID uuid.UUID, period string) (int64, error)

// MaxIssued seeds from the invoice numbers already stored.
func MaxIssued(invoices repository.InvoiceRepository) Seeder {
	return func(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
		numbers, err := invoices.NumbersWithPrefix(ctx, companyID, invoicing.NumberPrefix(period))
		if err != nil {
			return 0, fmt.Errorf("failed to scan invoice numbers: %w", err)
		}
		return invoicing.MaxSequence(numbers), nil
	}
}

// --- Redis ---

// redisStore is the subset of *redis.Client the counter needs.
type redisStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// keyTTL outlives the month a key numbers, then lets Redis drop it.
const keyTTL = 62 * 24 * time.Hour

// RedisCounter increments one key per scope with INCR.
type RedisCounter struct {
	client redisStore
	seed   Seeder
}

func NewRedisCounter(client *redis.Client, seed Seeder) *RedisCounter {
	return &RedisCounter{client: client, seed: seed}
}

func (c *RedisCounter) Next(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
	key := fmt.Sprintf("tourdesk:invoice_seq:%s:%s", companyID, period)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists: %w", err)
	}
	if exists == 0 {
		start, err := c.seed(ctx, companyID, period)
		if err != nil {
			return 0, err
		}
		// Losing the SETNX race is fine: the winner seeded the same value.
		if err := c.client.SetNX(ctx, key, start, keyTTL).Err(); err != nil {
			return 0, fmt.Errorf("redis setnx: %w", err)
		}
	}

	next, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return next, nil
}

// --- Database ---

// DBCounter keeps one locked row per scope in invoice_sequences. It joins the
// caller's transaction when there is one, so a rolled back invoice also
// returns its number.
type DBCounter struct {
	db   *gorm.DB
	seed Seeder
}

func NewDBCounter(db *gorm.DB, seed Seeder) *DBCounter {
	return &DBCounter{db: db, seed: seed}
}

func (c *DBCounter) Next(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
	var next int64
	err := repository.GetDB(ctx, c.db).Transaction(func(tx *gorm.DB) error {
		txCtx := repository.WithTx(ctx, tx)

		row, err := c.lockRow(tx, companyID, period)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			start, seedErr := c.seed(txCtx, companyID, period)
			if seedErr != nil {
				return seedErr
			}
			seeded := model.InvoiceSequence{CompanyID: companyID, Period: period, LastValue: start}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seeded).Error; err != nil {
				return fmt.Errorf("failed to seed invoice sequence: %w", err)
			}
			row, err = c.lockRow(tx, companyID, period)
		}
		if err != nil {
			return fmt.Errorf("failed to lock invoice sequence: %w", err)
		}

		next = row.LastValue + 1
		return tx.Model(&model.InvoiceSequence{}).
			Where("company_id = ? AND period = ?", companyID, period).
			Update("last_value", next).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (c *DBCounter) lockRow(tx *gorm.DB, companyID uuid.UUID, period string) (*model.InvoiceSequence, error) {
	var row model.InvoiceSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "company_id = ? AND period = ?", companyID, period).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
