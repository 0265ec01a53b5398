package wordpress

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

// discountModel maps a row of the {prefix}dynamic_discounts table.
type discountModel struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string          `gorm:"column:name;size:255"`
	DiscountType  string          `gorm:"column:discount_type;size:20"`
	DiscountValue decimal.Decimal `gorm:"column:discount_value;type:decimal(10,2)"`
	TargetType    string          `gorm:"column:target_type;size:50"`
	TargetValue   string          `gorm:"column:target_value;size:255"`
	Priority      int             `gorm:"column:priority;index:idx_active_priority,priority:2"`
	IsActive      int8            `gorm:"column:is_active;type:tinyint(1);index:idx_active_priority,priority:1"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (m discountModel) toRule() discount.Rule {
	return discount.Record{
		ID:            m.ID,
		Name:          m.Name,
		DiscountType:  m.DiscountType,
		DiscountValue: m.DiscountValue,
		TargetType:    m.TargetType,
		TargetValue:   m.TargetValue,
		Priority:      m.Priority,
		IsActive:      int(m.IsActive),
		CreatedAt:     m.CreatedAt,
	}.Rule()
}

func fromRule(rule *discount.Rule) discountModel {
	rec := discount.NewRecord(rule)
	return discountModel{
		ID:            rec.ID,
		Name:          rec.Name,
		DiscountType:  rec.DiscountType,
		DiscountValue: rec.DiscountValue,
		TargetType:    rec.TargetType,
		TargetValue:   rec.TargetValue,
		Priority:      rec.Priority,
		IsActive:      int8(rec.IsActive),
		CreatedAt:     rec.CreatedAt,
	}
}

// Migrate creates the discounts table when it is missing and adds new
// columns and indexes to an existing one.
func Migrate(ctx context.Context, db *gorm.DB, tables Tables) error {
	if err := db.WithContext(ctx).Table(tables.Discounts()).AutoMigrate(&discountModel{}); err != nil {
		return fmt.Errorf("migrating %s: %w", tables.Discounts(), err)
	}
	return nil
}

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository implements discount.Repository over the plugin's legacy
// discounts table.
type RuleRepository struct {
	db    *gorm.DB
	table string
}

// NewRuleRepository returns a RuleRepository for the given table prefix.
func NewRuleRepository(db *gorm.DB, tables Tables) *RuleRepository {
	return &RuleRepository{db: db, table: tables.Discounts()}
}

func (r *RuleRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

// ActiveByPriority returns active rules ordered by priority, then id.
func (r *RuleRepository) ActiveByPriority(ctx context.Context) ([]discount.Rule, error) {
	var models []discountModel
	err := r.query(ctx).
		Where("is_active = ?", 1).
		Order("priority ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	return toRules(models), nil
}

// List returns all rules, newest first.
func (r *RuleRepository) List(ctx context.Context) ([]discount.Rule, error) {
	var models []discountModel
	err := r.query(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return toRules(models), nil
}

// Create inserts rule and sets its ID.
func (r *RuleRepository) Create(ctx context.Context, rule *discount.Rule) error {
	m := fromRule(rule)
	if err := r.query(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("inserting rule %q: %w", rule.Name, err)
	}
	rule.ID = m.ID
	return nil
}

// Delete removes a rule. It returns discount.ErrNotFound for unknown ids.
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	res := r.query(ctx).Where("id = ?", id).Delete(&discountModel{})
	if res.Error != nil {
		return fmt.Errorf("deleting rule %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// SetActive toggles a rule. It returns discount.ErrNotFound for unknown ids.
func (r *RuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	var flag int8
	if active {
		flag = 1
	}
	res := r.query(ctx).Where("id = ?", id).Update("is_active", flag)
	if res.Error != nil {
		return fmt.Errorf("updating rule %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the value is unchanged.
	var m discountModel
	if err := r.query(ctx).Select("id").Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return discount.ErrNotFound
		}
		return fmt.Errorf("updating rule %d: %w", id, err)
	}
	return nil
}

func toRules(models []discountModel) []discount.Rule {
	rules := make([]discount.Rule, len(models))
	for i, m := range models {
		rules[i] = m.toRule()
	}
	return rules
}
