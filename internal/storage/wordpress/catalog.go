package wordpress

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
)

const (
	metaRegularPrice    = "_regular_price"
	metaPrice           = "_price"
	productTypeTaxonomy = "product_type"
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ discount.Taxonomy  = (*CatalogRepository)(nil)
)

type postRow struct {
	ID         int64  `gorm:"column:ID"`
	PostTitle  string `gorm:"column:post_title"`
	PostType   string `gorm:"column:post_type"`
	PostParent int64  `gorm:"column:post_parent"`
}

type metaRow struct {
	PostID    int64  `gorm:"column:post_id"`
	MetaKey   string `gorm:"column:meta_key"`
	MetaValue string `gorm:"column:meta_value"`
}

type termRow struct {
	ObjectID int64  `gorm:"column:object_id"`
	Taxonomy string `gorm:"column:taxonomy"`
	TermID   int64  `gorm:"column:term_id"`
	Slug     string `gorm:"column:slug"`
	Name     string `gorm:"column:name"`
}

// CatalogRepository implements catalog.Repository and discount.Taxonomy over
// the WordPress posts and taxonomy tables.
type CatalogRepository struct {
	db     *gorm.DB
	tables Tables
	// labels holds display labels of registered taxonomies. A labelled
	// taxonomy exists even before it has terms.
	labels map[string]string
}

// NewCatalogRepository returns a CatalogRepository. labels maps taxonomy
// names registered by the shop to their display labels.
func NewCatalogRepository(db *gorm.DB, tables Tables, labels map[string]string) *CatalogRepository {
	return &CatalogRepository{db: db, tables: tables, labels: labels}
}

// NamespaceExists reports whether the taxonomy is registered or has terms.
func (r *CatalogRepository) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	if _, ok := r.labels[namespace]; ok {
		return true, nil
	}
	var n int64
	err := r.db.WithContext(ctx).
		Table(r.tables.TermTaxonomy()).
		Where("taxonomy = ?", namespace).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking taxonomy %q: %w", namespace, err)
	}
	return n > 0, nil
}

// LookupTerm returns a term by taxonomy and id.
func (r *CatalogRepository) LookupTerm(ctx context.Context, namespace string, id discount.TermID) (discount.Term, bool, error) {
	var row termRow
	err := r.db.WithContext(ctx).
		Table(r.tables.Terms()+" AS t").
		Select("tt.taxonomy, t.term_id, t.slug, t.name").
		Joins("JOIN "+r.tables.TermTaxonomy()+" AS tt ON tt.term_id = t.term_id").
		Where("tt.taxonomy = ? AND t.term_id = ?", namespace, int64(id)).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return discount.Term{}, false, nil
		}
		return discount.Term{}, false, fmt.Errorf("getting term %s:%d: %w", namespace, id, err)
	}
	return discount.Term{
		Namespace:      namespace,
		NamespaceLabel: r.label(namespace),
		ID:             id,
		Name:           row.Name,
	}, true, nil
}

// GetByID returns a product or variation.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	products, err := r.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, catalog.ErrNotFound
	}
	return &products[0], nil
}

// GetByIDs returns products and variations matching any of the given ids.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []postRow
	err := r.db.WithContext(ctx).
		Table(r.tables.Posts()).
		Select("ID, post_title, post_type, post_parent").
		Where("ID IN ? AND post_type IN ?", ids, []string{catalog.PostTypeProduct, catalog.PostTypeVariation}).
		Order("ID").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return r.load(ctx, posts)
}

// Variations returns the published variations of a variable product.
func (r *CatalogRepository) Variations(ctx context.Context, parentID int64) ([]catalog.Product, error) {
	var posts []postRow
	err := r.db.WithContext(ctx).
		Table(r.tables.Posts()).
		Select("ID, post_title, post_type, post_parent").
		Where("post_parent = ? AND post_type = ? AND post_status = ?", parentID, catalog.PostTypeVariation, "publish").
		Order("menu_order").
		Order("ID").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("getting variations of %d: %w", parentID, err)
	}
	return r.load(ctx, posts)
}

func (r *CatalogRepository) load(ctx context.Context, posts []postRow) ([]catalog.Product, error) {
	if len(posts) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(posts)*2)
	for _, p := range posts {
		ids = append(ids, p.ID)
		if p.PostParent != 0 {
			ids = append(ids, p.PostParent)
		}
	}

	var metas []metaRow
	err := r.db.WithContext(ctx).
		Table(r.tables.PostMeta()).
		Select("post_id, meta_key, meta_value").
		Where("post_id IN ? AND meta_key IN ?", ids, []string{metaRegularPrice, metaPrice}).
		Find(&metas).Error
	if err != nil {
		return nil, fmt.Errorf("loading product prices: %w", err)
	}

	var terms []termRow
	err = r.db.WithContext(ctx).
		Table(r.tables.TermRelationships()+" AS tr").
		Select("tr.object_id, tt.taxonomy, tt.term_id, t.slug, t.name").
		Joins("JOIN "+r.tables.TermTaxonomy()+" AS tt ON tt.term_taxonomy_id = tr.term_taxonomy_id").
		Joins("JOIN "+r.tables.Terms()+" AS t ON t.term_id = tt.term_id").
		Where("tr.object_id IN ?", ids).
		Order("tr.object_id").
		Order("tt.term_id").
		Find(&terms).Error
	if err != nil {
		return nil, fmt.Errorf("loading product terms: %w", err)
	}

	return assemble(posts, metas, terms), nil
}

func (r *CatalogRepository) label(namespace string) string {
	if l, ok := r.labels[namespace]; ok && l != "" {
		return l
	}
	return namespace
}

// assemble builds products from raw rows. Variations carry their parent's
// terms; the product type comes from the product_type taxonomy.
func assemble(posts []postRow, metas []metaRow, terms []termRow) []catalog.Product {
	prices := make(map[int64]map[string]string)
	for _, m := range metas {
		if prices[m.PostID] == nil {
			prices[m.PostID] = make(map[string]string)
		}
		prices[m.PostID][m.MetaKey] = m.MetaValue
	}

	byObject := make(map[int64][]termRow)
	for _, t := range terms {
		byObject[t.ObjectID] = append(byObject[t.ObjectID], t)
	}

	products := make([]catalog.Product, 0, len(posts))
	for _, post := range posts {
		p := catalog.Product{
			ID:       post.ID,
			ParentID: post.PostParent,
			Name:     post.PostTitle,
			PostType: post.PostType,
			Type:     catalog.TypeSimple,
		}
		if post.PostType == catalog.PostTypeVariation {
			p.Type = catalog.TypeVariation
		}

		if v, err := decimal.NewFromString(strings.TrimSpace(prices[post.ID][metaRegularPrice])); err == nil {
			p.Regular = decimal.NewNullDecimal(v)
		}
		if v, err := decimal.NewFromString(strings.TrimSpace(prices[post.ID][metaPrice])); err == nil {
			p.Price = v
		} else if p.Regular.Valid {
			p.Price = p.Regular.Decimal
		}

		own := byObject[post.ID]
		if post.PostParent != 0 {
			own = append(own, byObject[post.PostParent]...)
		}
		for _, t := range own {
			if t.Taxonomy == productTypeTaxonomy {
				if t.ObjectID == post.ID && p.Type != catalog.TypeVariation {
					p.Type = catalog.Type(t.Slug)
				}
				continue
			}
			p.AddTerm(t.Taxonomy, discount.TermID(t.TermID))
		}

		products = append(products, p)
	}
	return products
}
