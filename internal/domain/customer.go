package domain

// Customer is a Customer row as listed, with its order count.
type Customer struct {
	ID          string  `json:"id"`
	ContactName *string `json:"contactname"`
	CompanyName *string `json:"companyname"`
	OrderCount  int64   `json:"ordercount"`
}

// CustomerDetails is a full Customer row.
type CustomerDetails struct {
	ID           string  `json:"id"`
	CompanyName  *string `json:"companyname"`
	ContactName  *string `json:"contactname"`
	ContactTitle *string `json:"contacttitle"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	Region       *string `json:"region"`
	PostalCode   *string `json:"postalcode"`
	Country      *string `json:"country"`
	Phone        *string `json:"phone"`
	Fax          *string `json:"fax"`
}

// Supplier is a Supplier row as listed, with the names of its products.
type Supplier struct {
	ID          int64   `json:"id"`
	ContactName *string `json:"contactname"`
	CompanyName *string `json:"companyname"`
	// ProductList holds product names sorted ascending and joined with ", ".
	ProductList string `json:"productlist"`
}

// SupplierDetails is a full Supplier row.
type SupplierDetails struct {
	ID           int64   `json:"id"`
	CompanyName  *string `json:"companyname"`
	ContactName  *string `json:"contactname"`
	ContactTitle *string `json:"contacttitle"`
	City         *string `json:"city"`
	Country      *string `json:"country"`
	Phone        *string `json:"phone"`
}
