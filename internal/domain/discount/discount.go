// Package discount resolves which catalog discount rule applies to an item
// and computes the resulting price.
package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported price reduction strategies.
type DiscountType string

const (
	// Percentage reduces the base price by Value percent.
	Percentage DiscountType = "percentage"
	// Fixed subtracts Value in currency units from the base price.
	Fixed DiscountType = "fixed"
)

// DefaultPriority is assigned to rules created without an explicit priority.
const DefaultPriority = 10

// DefaultBrandNamespaces is the probing order for brand rules stored without
// a namespace.
var DefaultBrandNamespaces = []string{"product_brand", "pwb-brand", "pa_brand"}

var (
	// ErrStoreUnavailable is returned when active rules cannot be read.
	// It is distinct from an empty rule set.
	ErrStoreUnavailable = errors.New("discount rule store unavailable")
	// ErrNotFound is returned when a rule id does not exist.
	ErrNotFound = errors.New("discount rule not found")
	// ErrInvalidRule is the parent of every ValidationError.
	ErrInvalidRule = errors.New("invalid discount rule")
)

// ValidationError describes an administrative input that was rejected
// before reaching persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }

// TermID identifies a term within one classification namespace.
type TermID int64

// Rule is a single discount definition.
type Rule struct {
	ID           int64
	Name         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Target       Target
	Priority     int
	Active       bool
	CreatedAt    time.Time
}

// Item is the capability the resolver needs from a catalog entry.
type Item interface {
	ItemID() int64
	// RegularPrice reports the list price; ok is false when none is set.
	RegularPrice() (price decimal.Decimal, ok bool)
	CurrentPrice() decimal.Decimal
	ContentType() string
	// TermIDs returns the terms the item belongs to within namespace.
	TermIDs(namespace string) []TermID
}

// Term is a classification term as known to the catalog.
type Term struct {
	Namespace      string
	NamespaceLabel string
	ID             TermID
	Name           string
}

// Taxonomy answers questions about the catalog's classification systems.
type Taxonomy interface {
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	LookupTerm(ctx context.Context, namespace string, id TermID) (Term, bool, error)
}

// Store provides the rules that participate in price resolution.
type Store interface {
	// ActiveByPriority returns active rules ordered by priority ascending,
	// ties broken by id ascending.
	ActiveByPriority(ctx context.Context) ([]Rule, error)
}

// Repository is the administrative view of the rule store.
type Repository interface {
	Store
	Create(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	// List returns all rules, newest first.
	List(ctx context.Context) ([]Rule, error)
}
