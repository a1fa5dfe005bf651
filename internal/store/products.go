package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts a product together with its variants and sizes
func (q *Queries) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	err := sqlx.GetContext(ctx, q.db, product, `
		INSERT INTO products (id, name, slug, base_price, discount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, slug, base_price, discount, created_at, updated_at`,
		product.ID, product.Name, product.Slug, product.BasePrice, product.Discount)
	if err != nil {
		return convertErr(err, "create product %s", product.Slug)
	}

	for vi := range product.Variants {
		variant := &product.Variants[vi]
		if variant.ID == uuid.Nil {
			variant.ID = uuid.New()
		}
		variant.ProductID = product.ID
		variant.Position = vi

		_, err := q.db.ExecContext(ctx, `
			INSERT INTO product_variants (id, product_id, color, images, base_price, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			variant.ID, variant.ProductID, variant.Color, variant.Images, variant.BasePrice, variant.Position)
		if err != nil {
			return convertErr(err, "create variant %s", variant.Color)
		}

		for si := range variant.Sizes {
			size := &variant.Sizes[si]
			if size.ID == uuid.Nil {
				size.ID = uuid.New()
			}
			size.VariantID = variant.ID
			size.Position = si

			_, err := q.db.ExecContext(ctx, `
				INSERT INTO product_variant_sizes (id, variant_id, size, stock, price, position)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				size.ID, size.VariantID, size.Size, size.Stock, size.Price, size.Position)
			if err != nil {
				return convertErr(err, "create size %s/%s", variant.Color, size.Size)
			}
		}
	}

	return nil
}

// GetProductByID retrieves a product aggregate by ID
func (q *Queries) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, q.db, &product,
		"SELECT id, name, slug, base_price, discount, created_at, updated_at FROM products WHERE id = $1", id)
	if err != nil {
		return nil, convertErr(err, "product %s", id)
	}

	products := []models.Product{product}
	if err := q.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetProductsByIDs retrieves multiple product aggregates by IDs
func (q *Queries) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, slug, base_price, discount, created_at, updated_at FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = q.db.Rebind(query)

	var products []models.Product
	if err := sqlx.SelectContext(ctx, q.db, &products, query, args...); err != nil {
		return nil, convertErr(err, "products by ids")
	}

	if err := q.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (q *Queries) attachVariants(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	productIDs := make([]uuid.UUID, len(products))
	for i := range products {
		productIDs[i] = products[i].ID
	}

	query, args, err := sqlx.In(`
		SELECT id, product_id, color, images, base_price, position
		FROM product_variants WHERE product_id IN (?)
		ORDER BY position`, productIDs)
	if err != nil {
		return err
	}

	var variants []models.Variant
	if err := sqlx.SelectContext(ctx, q.db, &variants, q.db.Rebind(query), args...); err != nil {
		return convertErr(err, "variants")
	}
	if len(variants) == 0 {
		return nil
	}

	variantIDs := make([]uuid.UUID, len(variants))
	for i := range variants {
		variantIDs[i] = variants[i].ID
	}

	query, args, err = sqlx.In(`
		SELECT id, variant_id, size, stock, price, position
		FROM product_variant_sizes WHERE variant_id IN (?)
		ORDER BY position`, variantIDs)
	if err != nil {
		return err
	}

	var sizes []models.VariantSize
	if err := sqlx.SelectContext(ctx, q.db, &sizes, q.db.Rebind(query), args...); err != nil {
		return convertErr(err, "variant sizes")
	}

	sizesByVariant := make(map[uuid.UUID][]models.VariantSize, len(variants))
	for _, s := range sizes {
		sizesByVariant[s.VariantID] = append(sizesByVariant[s.VariantID], s)
	}

	productIndex := make(map[uuid.UUID]int, len(products))
	for i := range products {
		productIndex[products[i].ID] = i
	}
	for _, v := range variants {
		v.Sizes = sizesByVariant[v.ID]
		i := productIndex[v.ProductID]
		products[i].Variants = append(products[i].Variants, v)
	}
	return nil
}

// DecrementStock atomically takes qty units from one size. The stock check and the
// decrement are a single conditional UPDATE, so no two callers can both pass the check
// against the same units. Returns false when nothing matched (unknown item or not enough stock).
func (q *Queries) DecrementStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE product_variant_sizes AS s
		SET stock = s.stock - $4
		FROM product_variants AS v
		WHERE s.variant_id = v.id
		  AND v.product_id = $1
		  AND v.color = $2
		  AND s.size = $3
		  AND s.stock >= $4`,
		productID, color, size, qty)
	if err != nil {
		return false, convertErr(err, "decrement stock %s %s/%s", productID, color, size)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock rows affected: %w", err)
	}
	return affected == 1, nil
}

// RestoreStock unconditionally returns qty units to one size
func (q *Queries) RestoreStock(ctx context.Context, productID uuid.UUID, color, size string, qty int) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE product_variant_sizes AS s
		SET stock = s.stock + $4
		FROM product_variants AS v
		WHERE s.variant_id = v.id
		  AND v.product_id = $1
		  AND v.color = $2
		  AND s.size = $3`,
		productID, color, size, qty)
	return convertErr(err, "restore stock %s %s/%s", productID, color, size)
}
