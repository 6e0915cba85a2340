package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
	"github.com/vladislavdragonenkov/salesorders/internal/metrics"
	"github.com/vladislavdragonenkov/salesorders/internal/query"
)

// orderColumns is the allow-list of fields an order collection can be sorted by.
var orderColumns = query.Columns{
	"id":           "co.id",
	"customerid":   "co.customerid",
	"employeeid":   "co.employeeid",
	"shipcity":     "co.shipcity",
	"shipcountry":  "co.shipcountry",
	"shippeddate":  "co.shippeddate",
	"customername": "c.contactname",
	"employeename": "e.firstname",
}

var orderSummaryColumns = []string{
	"co.id",
	"co.customerid",
	"co.employeeid",
	"co.shipcity",
	"co.shipcountry",
	"co.shippeddate",
	"c.contactname AS customername",
	"e.firstname AS employeename",
}

const getOrderQuery = `
SELECT co.id, co.customerid, co.employeeid, co.orderdate, co.requireddate, co.shippeddate,
       co.shipvia, co.freight, co.shipname, co.shipaddress, co.shipcity, co.shipregion,
       co.shippostalcode, co.shipcountry,
       c.contactname AS customername, e.firstname AS employeename,
       COALESCE((SELECT SUM(od.unitprice * od.quantity * (1 - od.discount))
                 FROM OrderDetail AS od
                 WHERE od.orderid = co.id), 0) AS subtotal
FROM CustomerOrder AS co
LEFT JOIN Customer AS c ON co.customerid = c.id
LEFT JOIN Employee AS e ON co.employeeid = e.id
WHERE co.id = ?`

// Detail ids share the "<orderid>/" prefix, so ordering by length first
// yields numeric order of the sequence suffix.
const orderDetailsQuery = `
SELECT od.id, od.orderid, od.productid, od.unitprice, od.quantity, od.discount,
       od.unitprice * od.quantity AS price, p.productname
FROM OrderDetail AS od
LEFT JOIN Product AS p ON od.productid = p.id
WHERE od.orderid = ?
ORDER BY LENGTH(od.id), od.id`

const insertDetailQuery = `
INSERT INTO OrderDetail (id, orderid, productid, unitprice, quantity, discount)
VALUES (?, ?, ?, ?, ?, ?)`

const updateDetailQuery = `
UPDATE OrderDetail
SET productid = ?, unitprice = ?, quantity = ?, discount = ?
WHERE id = ? AND orderid = ?`

type orderRepository struct {
	store  *Store
	events domain.OrderEvents
	logger *log.Entry
}

// OrderRepositoryOption customizes the order repository.
type OrderRepositoryOption func(*orderRepository)

// WithOrderEvents publishes an event after every committed create, update and delete.
func WithOrderEvents(events domain.OrderEvents) OrderRepositoryOption {
	return func(r *orderRepository) {
		r.events = events
	}
}

// NewOrderRepository creates the SQL implementation of domain.OrderRepository.
func NewOrderRepository(store *Store, opts ...OrderRepositoryOption) domain.OrderRepository {
	r := &orderRepository{
		store:  store,
		logger: store.logger.WithField("repository", "orders"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *orderRepository) List(ctx context.Context, opts query.Options) ([]domain.OrderSummary, error) {
	return r.list(ctx, "list_orders", opts, query.Defaults())
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, opts query.Options) ([]domain.OrderSummary, error) {
	defaults := query.Defaults()
	defaults.Sort = "shippeddate"
	return r.list(ctx, "list_customer_orders", opts, defaults, query.Eq("co.customerid", customerID))
}

func (r *orderRepository) list(
	ctx context.Context,
	operation string,
	opts query.Options,
	defaults query.Options,
	conditions ...query.Condition,
) (_ []domain.OrderSummary, err error) {
	defer r.store.observe(operation, time.Now(), &err)

	opts, err = opts.Normalize(defaults, orderColumns)
	if err != nil {
		return nil, err
	}

	q := query.NewSelect(orderSummaryColumns...).
		From("CustomerOrder AS co").
		LeftJoin("Customer AS c", "co.customerid = c.id").
		LeftJoin("Employee AS e", "co.employeeid = e.id")
	for _, cond := range conditions {
		q.Where(cond)
	}
	q.Where(query.Contains(opts.Filter, "c.contactname", "c.companyname"))
	stmt, args := q.Sorted(opts, orderColumns, "co.id").Build()

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.store.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.OrderSummary, 0)
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.EmployeeID, &o.ShipCity, &o.ShipCountry,
			&o.ShippedDate, &o.CustomerName, &o.EmployeeName,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (_ domain.Order, err error) {
	defer r.store.observe("get_order", time.Now(), &err)

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	var o domain.Order
	err = r.store.QueryRow(ctx, getOrderQuery, id).Scan(
		&o.ID, &o.CustomerID, &o.EmployeeID, &o.OrderDate, &o.RequiredDate, &o.ShippedDate,
		&o.ShipVia, &o.Freight, &o.ShipName, &o.ShipAddress, &o.ShipCity, &o.ShipRegion,
		&o.ShipPostalCode, &o.ShipCountry,
		&o.CustomerName, &o.EmployeeName,
		&o.Subtotal,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	return o, nil
}

func (r *orderRepository) Details(ctx context.Context, id int64) (_ []domain.OrderDetail, err error) {
	defer r.store.observe("get_order_details", time.Now(), &err)

	ctx, cancel := r.store.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.store.Query(ctx, orderDetailsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("load order details: %w", err)
	}
	defer rows.Close()

	details := make([]domain.OrderDetail, 0)
	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(
			&d.ID, &d.OrderID, &d.ProductID, &d.UnitPrice, &d.Quantity, &d.Discount,
			&d.Price, &d.ProductName,
		); err != nil {
			return nil, fmt.Errorf("scan order detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order details: %w", err)
	}

	return details, nil
}

func (r *orderRepository) GetWithDetails(ctx context.Context, id int64) (domain.OrderWithDetails, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return domain.OrderWithDetails{}, err
	}
	details, err := r.Details(ctx, id)
	if err != nil {
		return domain.OrderWithDetails{}, err
	}
	return domain.OrderWithDetails{Order: order, Details: details}, nil
}

func (r *orderRepository) Create(ctx context.Context, fields domain.OrderFields, details []domain.NewOrderDetail) (_ int64, err error) {
	defer r.store.observe("create_order", time.Now(), &err)

	if err := fields.ValidateForCreate(); err != nil {
		return 0, err
	}
	if err := validateDetails(details); err != nil {
		return 0, err
	}

	columns, values := orderFieldColumns(fields)
	stmt := "INSERT INTO CustomerOrder (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders(len(columns)) + ")"

	var orderID int64
	err = r.store.WithTx(ctx, func(ctx context.Context, tx Querier) error {
		id, err := tx.InsertReturningID(ctx, stmt, values...)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		rows := make([]detailRow, len(details))
		for i, d := range details {
			rows[i] = detailRow{ID: detailID(id, i+1), NewOrderDetail: d}
		}
		if err := insertDetails(ctx, tx, id, rows); err != nil {
			return err
		}

		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.store.metrics.AddDetailRows(len(details))
	r.logger.WithFields(log.Fields{"order_id": orderID, "details": len(details)}).Debug("order created")
	r.publish(ctx, domain.NewOrderEvent(domain.OrderEventCreated, orderID, len(details)))
	return orderID, nil
}

func (r *orderRepository) Update(ctx context.Context, id int64, fields domain.OrderFields, changes []domain.DetailChange) (err error) {
	defer r.store.observe("update_order", time.Now(), &err)

	if fields.Empty() && len(changes) == 0 {
		return domain.ErrNothingToUpdate
	}
	if fields.CustomerID != nil && *fields.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	seen := make(map[string]bool, len(changes))
	for i, c := range changes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("detail %d: %w", i+1, err)
		}
		if c.ID == "" {
			continue
		}
		if seen[c.ID] {
			return fmt.Errorf("detail %d: %s: %w", i+1, c.ID, domain.ErrDetailDuplicate)
		}
		seen[c.ID] = true
	}

	err = r.store.WithTx(ctx, func(ctx context.Context, tx Querier) error {
		if err := updateOrderRow(ctx, tx, id, fields); err != nil {
			return err
		}
		return reconcileDetails(ctx, tx, id, changes)
	})
	if err != nil {
		return err
	}

	r.store.metrics.AddDetailRows(len(changes))
	r.publish(ctx, domain.NewOrderEvent(domain.OrderEventUpdated, id, len(changes)))
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id int64) (_ int64, err error) {
	defer r.store.observe("delete_order", time.Now(), &err)

	var removed int64
	err = r.store.WithTx(ctx, func(ctx context.Context, tx Querier) error {
		if _, err := tx.Exec(ctx, `DELETE FROM OrderDetail WHERE orderid = ?`, id); err != nil {
			return fmt.Errorf("delete order details: %w", err)
		}
		res, err := tx.Exec(ctx, `DELETE FROM CustomerOrder WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.publish(ctx, domain.NewOrderEvent(domain.OrderEventDeleted, id, 0))
	}
	return removed, nil
}

func (r *orderRepository) publish(ctx context.Context, event domain.OrderEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, event); err != nil {
		r.store.metrics.RecordEvent(metrics.OutcomeError)
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Warn("failed to publish order event")
		return
	}
	r.store.metrics.RecordEvent(metrics.OutcomeOK)
}

type detailRow struct {
	ID string
	domain.NewOrderDetail
}

// detailID composes the order id with the 1-based position of the detail within the order.
func detailID(orderID int64, seq int) string {
	return fmt.Sprintf("%d/%d", orderID, seq)
}

func validateDetails(details []domain.NewOrderDetail) error {
	for i, d := range details {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("detail %d: %w", i+1, err)
		}
	}
	return nil
}

// insertDetails issues the inserts concurrently; the transaction serializes
// them on its connection. The first failure is returned.
func insertDetails(ctx context.Context, tx Querier, orderID int64, rows []detailRow) error {
	var g errgroup.Group
	for _, row := range rows {
		g.Go(func() error {
			if _, err := tx.Exec(ctx, insertDetailQuery,
				row.ID, orderID, row.ProductID, row.UnitPrice, row.Quantity, row.Discount,
			); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("insert order detail %s: %w", row.ID, domain.ErrOrderDetailConflict)
				}
				return fmt.Errorf("insert order detail %s: %w", row.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func updateOrderRow(ctx context.Context, tx Querier, id int64, fields domain.OrderFields) error {
	if fields.Empty() {
		exists, err := orderExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return nil
	}

	columns, values := orderFieldColumns(fields)
	assignments := make([]string, len(columns))
	for i, col := range columns {
		assignments[i] = col + " = ?"
	}
	res, err := tx.Exec(ctx,
		"UPDATE CustomerOrder SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
		append(values, id)...,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func reconcileDetails(ctx context.Context, tx Querier, orderID int64, changes []domain.DetailChange) error {
	if len(changes) == 0 {
		return nil
	}

	var added []domain.NewOrderDetail
	g := new(errgroup.Group)
	for _, c := range changes {
		if c.ID == "" {
			added = append(added, c.NewOrderDetail)
			continue
		}
		g.Go(func() error {
			res, err := tx.Exec(ctx, updateDetailQuery,
				c.ProductID, c.UnitPrice, c.Quantity, c.Discount, c.ID, orderID,
			)
			if err != nil {
				return fmt.Errorf("update order detail %s: %w", c.ID, err)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("update order detail %s: %w", c.ID, domain.ErrOrderDetailNotFound)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}

	existing, err := detailIDs(ctx, tx, orderID)
	if err != nil {
		return err
	}
	rows := make([]detailRow, len(added))
	seq := len(existing)
	for i, d := range added {
		seq++
		for existing[detailID(orderID, seq)] {
			seq++
		}
		rows[i] = detailRow{ID: detailID(orderID, seq), NewOrderDetail: d}
	}
	return insertDetails(ctx, tx, orderID, rows)
}

func orderExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var found int64
	err := q.QueryRow(ctx, `SELECT id FROM CustomerOrder WHERE id = ?`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func detailIDs(ctx context.Context, q Querier, orderID int64) (map[string]bool, error) {
	rows, err := q.Query(ctx, `SELECT id FROM OrderDetail WHERE orderid = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order detail ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order detail id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order detail ids: %w", err)
	}
	return ids, nil
}

// orderFieldColumns lists the supplied fields only, in a fixed column order.
func orderFieldColumns(f domain.OrderFields) ([]string, []any) {
	var (
		columns []string
		values  []any
	)
	columns, values = appendField(columns, values, "customerid", f.CustomerID)
	columns, values = appendField(columns, values, "employeeid", f.EmployeeID)
	columns, values = appendField(columns, values, "orderdate", f.OrderDate)
	columns, values = appendField(columns, values, "requireddate", f.RequiredDate)
	columns, values = appendField(columns, values, "shippeddate", f.ShippedDate)
	columns, values = appendField(columns, values, "shipvia", f.ShipVia)
	columns, values = appendField(columns, values, "freight", f.Freight)
	columns, values = appendField(columns, values, "shipname", f.ShipName)
	columns, values = appendField(columns, values, "shipaddress", f.ShipAddress)
	columns, values = appendField(columns, values, "shipcity", f.ShipCity)
	columns, values = appendField(columns, values, "shipregion", f.ShipRegion)
	columns, values = appendField(columns, values, "shippostalcode", f.ShipPostalCode)
	columns, values = appendField(columns, values, "shipcountry", f.ShipCountry)
	return columns, values
}

func appendField[T any](columns []string, values []any, column string, v *T) ([]string, []any) {
	if v == nil {
		return columns, values
	}
	return append(columns, column), append(values, *v)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

var _ domain.OrderRepository = (*orderRepository)(nil)
