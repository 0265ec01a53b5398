package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

const (
	productColumns = `id, parent_id, name, type, post_type, regular_price, price`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	getVariationsSQL = `SELECT ` + productColumns + ` FROM products WHERE parent_id = $1 ORDER BY id`

	listProductIDsSQL = `SELECT id FROM products`

	getProductTermsSQL = `SELECT product_id, taxonomy, term_id FROM product_terms
		WHERE product_id = ANY($1) ORDER BY product_id, taxonomy, term_id`

	taxonomyExistsSQL = `SELECT EXISTS (SELECT 1 FROM taxonomies WHERE name = $1)`

	getTermSQL = `SELECT t.taxonomy, x.label, t.id, t.name
		FROM terms t JOIN taxonomies x ON x.name = t.taxonomy
		WHERE t.taxonomy = $1 AND t.id = $2`

	upsertTaxonomySQL = `INSERT INTO taxonomies (name, label) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET label = EXCLUDED.label`

	deleteTaxonomySQL = `DELETE FROM taxonomies WHERE name = $1`

	upsertTermSQL = `INSERT INTO terms (taxonomy, id, name) VALUES ($1, $2, $3)
		ON CONFLICT (taxonomy, id) DO UPDATE SET name = EXCLUDED.name`

	upsertProductSQL = `INSERT INTO products (id, parent_id, name, type, post_type, regular_price, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET parent_id = EXCLUDED.parent_id, name = EXCLUDED.name,
			type = EXCLUDED.type, post_type = EXCLUDED.post_type,
			regular_price = EXCLUDED.regular_price, price = EXCLUDED.price`

	assignTermSQL = `INSERT INTO product_terms (product_id, taxonomy, term_id)
		SELECT p.id, t.taxonomy, t.id FROM products p, terms t
		WHERE p.id = $1 AND t.taxonomy = $2 AND t.id = $3
		ON CONFLICT DO NOTHING`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ discount.Taxonomy  = (*CatalogRepository)(nil)
)

// Assignment places a product in a term.
type Assignment struct {
	ProductID int64
	Taxonomy  string
	TermID    discount.TermID
}

// CatalogRepository implements catalog.Repository and discount.Taxonomy
// backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// NamespaceExists reports whether a taxonomy is registered.
func (r *CatalogRepository) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, taxonomyExistsSQL, namespace).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking taxonomy %q: %w", namespace, err)
	}
	return exists, nil
}

// LookupTerm returns a term by namespace and id.
func (r *CatalogRepository) LookupTerm(ctx context.Context, namespace string, id discount.TermID) (discount.Term, bool, error) {
	rows, err := r.pool.Query(ctx, getTermSQL, namespace, int64(id))
	if err != nil {
		return discount.Term{}, false, fmt.Errorf("getting term %s:%d: %w", namespace, id, err)
	}

	term, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (discount.Term, error) {
		var (
			t      discount.Term
			termID int64
		)
		err := row.Scan(&t.Namespace, &t.NamespaceLabel, &termID, &t.Name)
		t.ID = discount.TermID(termID)
		return t, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Term{}, false, nil
		}
		return discount.Term{}, false, fmt.Errorf("getting term %s:%d: %w", namespace, id, err)
	}
	return term, true, nil
}

// GetByID returns a single product with its term memberships.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	products := []catalog.Product{p}
	if err := r.loadTerms(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given ids.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	if err := r.loadTerms(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// Variations returns the variations of a variable product.
func (r *CatalogRepository) Variations(ctx context.Context, parentID int64) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getVariationsSQL, parentID)
	if err != nil {
		return nil, fmt.Errorf("getting variations of %d: %w", parentID, err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting variations of %d: %w", parentID, err)
	}
	if err := r.loadTerms(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// ProductIDs returns every product id in the catalog.
func (r *CatalogRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, listProductIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing product ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// UpsertTaxonomy registers a taxonomy or updates its label.
func (r *CatalogRepository) UpsertTaxonomy(ctx context.Context, name, label string) error {
	if _, err := r.pool.Exec(ctx, upsertTaxonomySQL, name, label); err != nil {
		return fmt.Errorf("upserting taxonomy %q: %w", name, err)
	}
	return nil
}

// DeleteTaxonomy removes a taxonomy together with its terms and memberships.
func (r *CatalogRepository) DeleteTaxonomy(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, deleteTaxonomySQL, name); err != nil {
		return fmt.Errorf("deleting taxonomy %q: %w", name, err)
	}
	return nil
}

// UpsertTerm creates or renames a term.
func (r *CatalogRepository) UpsertTerm(ctx context.Context, term discount.Term) error {
	if _, err := r.pool.Exec(ctx, upsertTermSQL, term.Namespace, int64(term.ID), term.Name); err != nil {
		return fmt.Errorf("upserting term %s:%d: %w", term.Namespace, term.ID, err)
	}
	return nil
}

// UpsertProduct stores p and adds its term memberships.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.ParentID, p.Name, string(p.Type), p.PostType, p.Regular, p.Price,
	)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}

	var assignments []Assignment
	for ns, ids := range p.Terms {
		for _, id := range ids {
			assignments = append(assignments, Assignment{ProductID: p.ID, Taxonomy: ns, TermID: id})
		}
	}
	if _, err := r.AssignTerms(ctx, assignments); err != nil {
		return err
	}
	return nil
}

// AssignTerms inserts memberships in a single batch and returns how many
// were new. Memberships of unknown products or terms are skipped.
func (r *CatalogRepository) AssignTerms(ctx context.Context, assignments []Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, a := range assignments {
		batch.Queue(assignTermSQL, a.ProductID, a.Taxonomy, int64(a.TermID))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var inserted int64
	for _, a := range assignments {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("assigning product %d to %s:%d: %w", a.ProductID, a.Taxonomy, a.TermID, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// loadTerms fills term memberships. Variations also carry the terms of
// their parent product.
func (r *CatalogRepository) loadTerms(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(products)*2)
	for _, p := range products {
		ids = append(ids, p.ID)
		if p.ParentID != 0 {
			ids = append(ids, p.ParentID)
		}
	}

	rows, err := r.pool.Query(ctx, getProductTermsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading product terms: %w", err)
	}

	type membership struct {
		productID int64
		taxonomy  string
		termID    int64
	}
	memberships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (membership, error) {
		var m membership
		err := row.Scan(&m.productID, &m.taxonomy, &m.termID)
		return m, err
	})
	if err != nil {
		return fmt.Errorf("loading product terms: %w", err)
	}

	byProduct := make(map[int64][]membership)
	for _, m := range memberships {
		byProduct[m.productID] = append(byProduct[m.productID], m)
	}

	for i := range products {
		p := &products[i]
		for _, m := range byProduct[p.ID] {
			p.AddTerm(m.taxonomy, discount.TermID(m.termID))
		}
		if p.ParentID != 0 {
			for _, m := range byProduct[p.ParentID] {
				p.AddTerm(m.taxonomy, discount.TermID(m.termID))
			}
		}
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p       catalog.Product
		kind    string
		regular decimal.NullDecimal
		price   decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.ParentID, &p.Name, &kind, &p.PostType, &regular, &price)
	p.Type = catalog.Type(kind)
	p.Regular = regular
	p.Price = price
	return p, err
}
