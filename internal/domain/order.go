package domain

import "time"

// OrderSummary is one row of an order collection.
type OrderSummary struct {
	ID           int64      `json:"id"`
	CustomerID   string     `json:"customerid"`
	EmployeeID   *int64     `json:"employeeid"`
	ShipCity     *string    `json:"shipcity"`
	ShipCountry  *string    `json:"shipcountry"`
	ShippedDate  *time.Time `json:"shippeddate"`
	CustomerName *string    `json:"customername"`
	EmployeeName *string    `json:"employeename"`
}

// Order is a single CustomerOrder enriched with customer and employee names
// and the subtotal aggregated over its details.
type Order struct {
	ID             int64      `json:"id"`
	CustomerID     string     `json:"customerid"`
	EmployeeID     *int64     `json:"employeeid"`
	OrderDate      *time.Time `json:"orderdate"`
	RequiredDate   *time.Time `json:"requireddate"`
	ShippedDate    *time.Time `json:"shippeddate"`
	ShipVia        *int64     `json:"shipvia"`
	Freight        *float64   `json:"freight"`
	ShipName       *string    `json:"shipname"`
	ShipAddress    *string    `json:"shipaddress"`
	ShipCity       *string    `json:"shipcity"`
	ShipRegion     *string    `json:"shipregion"`
	ShipPostalCode *string    `json:"shippostalcode"`
	ShipCountry    *string    `json:"shipcountry"`
	CustomerName   *string    `json:"customername"`
	EmployeeName   *string    `json:"employeename"`
	// Subtotal is Σ unitprice × quantity × (1 − discount); zero for an order without details.
	Subtotal float64 `json:"subtotal"`
}

// Shipped reports whether the order has a shipped date.
func (o Order) Shipped() bool {
	return o.ShippedDate != nil
}

// OrderDetail is one line item of an order.
type OrderDetail struct {
	ID          string  `json:"id"`
	OrderID     int64   `json:"orderid"`
	ProductID   int64   `json:"productid"`
	UnitPrice   float64 `json:"unitprice"`
	Quantity    int64   `json:"quantity"`
	Discount    float64 `json:"discount"`
	Price       float64 `json:"price"`
	ProductName *string `json:"productname"`
}

// OrderWithDetails pairs an order with its line items.
type OrderWithDetails struct {
	Order   Order         `json:"order"`
	Details []OrderDetail `json:"details"`
}

// OrderFields carries the writable CustomerOrder columns. A nil field was not
// supplied and is left out of the statement; a non-nil pointer to a zero value
// is written as that zero value.
type OrderFields struct {
	CustomerID     *string
	EmployeeID     *int64
	OrderDate      *time.Time
	RequiredDate   *time.Time
	ShippedDate    *time.Time
	ShipVia        *int64
	Freight        *float64
	ShipName       *string
	ShipAddress    *string
	ShipCity       *string
	ShipRegion     *string
	ShipPostalCode *string
	ShipCountry    *string
}

// Empty reports whether no field was supplied.
func (f OrderFields) Empty() bool {
	return f == OrderFields{}
}

// ValidateForCreate checks the fields a new order cannot do without.
func (f OrderFields) ValidateForCreate() error {
	if f.CustomerID == nil || *f.CustomerID == "" {
		return ErrCustomerRequired
	}
	return nil
}

// NewOrderDetail is a line item supplied when an order is created.
type NewOrderDetail struct {
	ProductID int64
	UnitPrice float64
	Quantity  int64
	Discount  float64
}

// Validate checks quantity, price and discount bounds.
func (d NewOrderDetail) Validate() error {
	if d.Quantity <= 0 {
		return ErrDetailQuantityInvalid
	}
	if d.UnitPrice < 0 {
		return ErrDetailPriceInvalid
	}
	if d.Discount < 0 || d.Discount >= 1 {
		return ErrDetailDiscountInvalid
	}
	return nil
}

// DetailChange reconciles one line item during an update. With an ID the
// matching detail is rewritten in place; without one a new detail is added.
type DetailChange struct {
	ID string
	NewOrderDetail
}

// Ptr returns a pointer to v, for filling OrderFields.
func Ptr[T any](v T) *T {
	return &v
}
