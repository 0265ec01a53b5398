package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is the flat persisted form of a Rule, shared by the storage
// adapters. IsActive is 0 or 1.
type Record struct {
	ID            int64
	Name          string
	DiscountType  string
	DiscountValue decimal.Decimal
	TargetType    string
	TargetValue   string
	Priority      int
	IsActive      int
	CreatedAt     time.Time
}

// NewRecord flattens rule for storage.
func NewRecord(rule *Rule) Record {
	kind, value := EncodeTarget(rule.Target)
	active := 0
	if rule.Active {
		active = 1
	}
	return Record{
		ID:            rule.ID,
		Name:          rule.Name,
		DiscountType:  string(rule.DiscountType),
		DiscountValue: rule.Value,
		TargetType:    string(kind),
		TargetValue:   value,
		Priority:      rule.Priority,
		IsActive:      active,
		CreatedAt:     rule.CreatedAt,
	}
}

// Rule decodes the record, including legacy target values.
func (r Record) Rule() Rule {
	return Rule{
		ID:           r.ID,
		Name:         r.Name,
		DiscountType: DiscountType(r.DiscountType),
		Value:        r.DiscountValue,
		Target:       ParseTarget(TargetType(r.TargetType), r.TargetValue),
		Priority:     r.Priority,
		Active:       r.IsActive == 1,
		CreatedAt:    r.CreatedAt,
	}
}
