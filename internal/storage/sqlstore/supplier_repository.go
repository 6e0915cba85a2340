package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
	"github.com/vladislavdragonenkov/salesorders/internal/query"
)

var supplierColumns = query.Columns{
	"id":          "s.id",
	"companyname": "s.companyname",
	"contactname": "s.contactname",
}

const getSupplierQuery = `
SELECT id, companyname, contactname, contacttitle, city, country, phone
FROM Supplier
WHERE id = ?`

type supplierRepository struct {
	store *Store
}

// NewSupplierRepository creates the SQL implementation of domain.SupplierRepository.
func NewSupplierRepository(store *Store) domain.SupplierRepository {
	return &supplierRepository{store: store}
}

// List returns suppliers with the sorted, comma separated names of their products.
func (r *supplierRepository) List(ctx context.Context, opts query.Options) (_ []domain.Supplier, err error) {
	defer r.store.observe("list_suppliers", time.Now(), &err)

	opts, err = opts.Normalize(query.Defaults(), supplierColumns)
	if err != nil {
		return nil, err
	}

	productList := "COALESCE(" + r.store.Dialect().StringAgg("p.productname", ", ") + ", '') AS productlist"
	stmt, args := query.NewSelect("s.id", "s.contactname", "s.companyname", productList).
		From("Supplier AS s").
		LeftJoin("Product AS p", "p.supplierid = s.id").
		Where(query.Contains(opts.Filter, "s.companyname", "s.contactname")).
		GroupBy("s.id").
		Sorted(opts, supplierColumns, "s.id").
		Build()

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.store.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0)
	for rows.Next() {
		var s domain.Supplier
		if err := rows.Scan(&s.ID, &s.ContactName, &s.CompanyName, &s.ProductList); err != nil {
			return nil, fmt.Errorf("scan supplier row: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supplier rows: %w", err)
	}
	return suppliers, nil
}

func (r *supplierRepository) Get(ctx context.Context, id int64) (_ domain.SupplierDetails, err error) {
	defer r.store.observe("get_supplier", time.Now(), &err)

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	var s domain.SupplierDetails
	err = r.store.QueryRow(ctx, getSupplierQuery, id).Scan(
		&s.ID, &s.CompanyName, &s.ContactName, &s.ContactTitle, &s.City, &s.Country, &s.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SupplierDetails{}, domain.ErrSupplierNotFound
		}
		return domain.SupplierDetails{}, fmt.Errorf("select supplier: %w", err)
	}
	return s, nil
}
