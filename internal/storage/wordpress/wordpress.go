// Package wordpress reads and writes discount rules and catalog data stored
// in the tables of a WordPress/WooCommerce installation.
package wordpress

import (
	"time"

	"github.com/go-faster/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultTablePrefix is the stock WordPress table prefix.
const DefaultTablePrefix = "wp_"

// Open connects to the WordPress MySQL database. The DSN must enable
// parseTime so DATETIME columns scan into time.Time.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "open wordpress database")
	}
	return db, nil
}

// Tables resolves prefixed WordPress table names.
type Tables struct {
	prefix string
}

// NewTables returns table names for prefix, falling back to
// DefaultTablePrefix when empty.
func NewTables(prefix string) Tables {
	if prefix == "" {
		prefix = DefaultTablePrefix
	}
	return Tables{prefix: prefix}
}

func (t Tables) Discounts() string         { return t.prefix + "dynamic_discounts" }
func (t Tables) Posts() string             { return t.prefix + "posts" }
func (t Tables) PostMeta() string          { return t.prefix + "postmeta" }
func (t Tables) Terms() string             { return t.prefix + "terms" }
func (t Tables) TermTaxonomy() string      { return t.prefix + "term_taxonomy" }
func (t Tables) TermRelationships() string { return t.prefix + "term_relationships" }
