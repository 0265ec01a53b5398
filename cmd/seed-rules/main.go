package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/internal/storage/postgres"
)

type taxonomyJSON struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type termJSON struct {
	Taxonomy string `json:"taxonomy"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
}

type productJSON struct {
	ID           int64               `json:"id"`
	ParentID     int64               `json:"parentId"`
	Name         string              `json:"name"`
	Type         string              `json:"type"`
	RegularPrice decimal.NullDecimal `json:"regularPrice"`
	Price        decimal.Decimal     `json:"price"`
	Terms        map[string][]int64  `json:"terms"`
}

type ruleJSON struct {
	Name         string          `json:"name"`
	DiscountType string          `json:"discountType"`
	Value        decimal.Decimal `json:"value"`
	TargetType   string          `json:"targetType"`
	TargetValue  string          `json:"targetValue"`
	Priority     *int            `json:"priority"`
	Active       *bool           `json:"active"`
}

type fixture struct {
	Taxonomies []taxonomyJSON `json:"taxonomies"`
	Terms      []termJSON     `json:"terms"`
	Products   []productJSON  `json:"products"`
	Rules      []ruleJSON     `json:"rules"`
}

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture", "db/seed/catalog.json", "path to catalog and rules JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	f, err := readFixture(fixtureFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	cat := postgres.NewCatalogRepository(pool)
	if err := seedCatalog(ctx, cat, f); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	rules := postgres.NewRuleRepository(pool)
	resolver, err := discount.NewResolver(rules, cat)
	if err != nil {
		return errors.Wrap(err, "create resolver")
	}
	if err := seedRules(ctx, discount.NewService(rules, cat, resolver), f.Rules); err != nil {
		return errors.Wrap(err, "seed rules")
	}

	return nil
}

func readFixture(path string) (*fixture, error) {
	slog.Info("reading fixture file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture file")
	}

	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse fixture JSON")
	}
	return &f, nil
}

func seedCatalog(ctx context.Context, cat *postgres.CatalogRepository, f *fixture) error {
	for _, t := range f.Taxonomies {
		if err := cat.UpsertTaxonomy(ctx, t.Name, t.Label); err != nil {
			return err
		}
	}
	for _, t := range f.Terms {
		if err := cat.UpsertTerm(ctx, discount.Term{Namespace: t.Taxonomy, ID: discount.TermID(t.ID), Name: t.Name}); err != nil {
			return err
		}
	}

	slog.Info("upserting products", slog.Int("count", len(f.Products)))

	for _, p := range f.Products {
		product := toProduct(p)
		if err := cat.UpsertProduct(ctx, &product); err != nil {
			return err
		}
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func toProduct(p productJSON) catalog.Product {
	product := catalog.Product{
		ID:       p.ID,
		ParentID: p.ParentID,
		Name:     p.Name,
		Type:     catalog.Type(p.Type),
		PostType: catalog.PostTypeProduct,
		Regular:  p.RegularPrice,
		Price:    p.Price,
	}
	if product.Type == "" {
		product.Type = catalog.TypeSimple
	}
	if product.Type == catalog.TypeVariation {
		product.PostType = catalog.PostTypeVariation
	}
	if product.Price.IsZero() && product.Regular.Valid {
		product.Price = product.Regular.Decimal
	}
	for ns, ids := range p.Terms {
		for _, id := range ids {
			product.AddTerm(ns, discount.TermID(id))
		}
	}
	return product
}

// seedRules creates the fixture rules that do not exist yet, matched by name.
func seedRules(ctx context.Context, svc *discount.Service, rules []ruleJSON) error {
	existing, err := svc.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		names[r.Name] = struct{}{}
	}

	for _, r := range rules {
		if _, ok := names[r.Name]; ok {
			slog.Info("rule already exists", slog.String("name", r.Name))
			continue
		}

		rule, err := svc.Create(ctx, discount.CreateRequest{
			Name:         r.Name,
			DiscountType: discount.DiscountType(r.DiscountType),
			Value:        r.Value,
			TargetType:   discount.TargetType(r.TargetType),
			TargetValue:  r.TargetValue,
			Priority:     r.Priority,
		})
		if err != nil {
			return errors.Wrapf(err, "create rule %q", r.Name)
		}
		if r.Active != nil && !*r.Active {
			if err := svc.SetActive(ctx, rule.ID, false); err != nil {
				return err
			}
		}

		slog.Info("created rule",
			slog.Int64("id", rule.ID),
			slog.String("name", rule.Name),
			slog.String("target", svc.TargetLabel(ctx, rule)),
		)
	}
	return nil
}
