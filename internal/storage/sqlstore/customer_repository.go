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

var customerColumns = query.Columns{
	"id":          "c.id",
	"companyname": "c.companyname",
	"contactname": "c.contactname",
	"ordercount":  "ordercount",
}

const getCustomerQuery = `
SELECT id, companyname, contactname, contacttitle, address, city, region,
       postalcode, country, phone, fax
FROM Customer
WHERE id = ?`

type customerRepository struct {
	store *Store
}

// NewCustomerRepository creates the SQL implementation of domain.CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{store: store}
}

// List returns customers with the number of orders each has placed.
// Customers without orders are included with a zero count.
func (r *customerRepository) List(ctx context.Context, opts query.Options) (_ []domain.Customer, err error) {
	defer r.store.observe("list_customers", time.Now(), &err)

	opts, err = opts.Normalize(query.Defaults(), customerColumns)
	if err != nil {
		return nil, err
	}

	stmt, args := query.NewSelect("c.id", "c.contactname", "c.companyname", "COUNT(co.id) AS ordercount").
		From("Customer AS c").
		LeftJoin("CustomerOrder AS co", "c.id = co.customerid").
		Where(query.Contains(opts.Filter, "c.companyname", "c.contactname")).
		GroupBy("c.id").
		Sorted(opts, customerColumns, "c.id").
		Build()

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.store.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.ContactName, &c.CompanyName, &c.OrderCount); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (_ domain.CustomerDetails, err error) {
	defer r.store.observe("get_customer", time.Now(), &err)

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	var c domain.CustomerDetails
	err = r.store.QueryRow(ctx, getCustomerQuery, id).Scan(
		&c.ID, &c.CompanyName, &c.ContactName, &c.ContactTitle, &c.Address, &c.City, &c.Region,
		&c.PostalCode, &c.Country, &c.Phone, &c.Fax,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CustomerDetails{}, domain.ErrCustomerNotFound
		}
		return domain.CustomerDetails{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}
