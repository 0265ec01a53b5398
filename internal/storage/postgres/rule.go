package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

const (
	ruleColumns = `id, name, discount_type, discount_value, target_type, target_value, priority, is_active, created_at`

	activeRulesSQL = `SELECT ` + ruleColumns + `
		FROM dynamic_discounts WHERE is_active = 1 ORDER BY priority ASC, id ASC`

	listRulesSQL = `SELECT ` + ruleColumns + `
		FROM dynamic_discounts ORDER BY created_at DESC, id DESC`

	getRuleSQL = `SELECT ` + ruleColumns + `
		FROM dynamic_discounts WHERE id = $1`

	insertRuleSQL = `INSERT INTO dynamic_discounts
		(name, discount_type, discount_value, target_type, target_value, priority, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	deleteRuleSQL = `DELETE FROM dynamic_discounts WHERE id = $1`

	setRuleActiveSQL = `UPDATE dynamic_discounts SET is_active = $2 WHERE id = $1`
)

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository implements discount.Repository backed by PostgreSQL.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository returns a RuleRepository that uses the given pool.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// ActiveByPriority returns active rules ordered by priority, then id.
func (r *RuleRepository) ActiveByPriority(ctx context.Context) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, activeRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, scanRule)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	return rules, nil
}

// List returns all rules, newest first.
func (r *RuleRepository) List(ctx context.Context) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, listRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return pgx.CollectRows(rows, scanRule)
}

// GetByID returns a single rule regardless of its active flag.
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getRuleSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting rule %d: %w", id, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting rule %d: %w", id, err)
	}
	return &rule, nil
}

// Create inserts rule and sets its ID.
func (r *RuleRepository) Create(ctx context.Context, rule *discount.Rule) error {
	rec := discount.NewRecord(rule)
	err := r.pool.QueryRow(ctx, insertRuleSQL,
		rec.Name, rec.DiscountType, rec.DiscountValue, rec.TargetType, rec.TargetValue,
		rec.Priority, int16(rec.IsActive), rec.CreatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("inserting rule %q: %w", rule.Name, err)
	}
	return nil
}

// Delete removes a rule. It returns discount.ErrNotFound for unknown ids.
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteRuleSQL, id)
	if err != nil {
		return fmt.Errorf("deleting rule %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// SetActive toggles a rule. It returns discount.ErrNotFound for unknown ids.
func (r *RuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	var flag int16
	if active {
		flag = 1
	}
	tag, err := r.pool.Exec(ctx, setRuleActiveSQL, id, flag)
	if err != nil {
		return fmt.Errorf("updating rule %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rec      discount.Record
		priority int32
		active   int16
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.DiscountType, &rec.DiscountValue,
		&rec.TargetType, &rec.TargetValue, &priority, &active, &rec.CreatedAt,
	)
	rec.Priority = int(priority)
	rec.IsActive = int(active)
	return rec.Rule(), err
}
