package domain

import "errors"

var (
	// ErrCustomerRequired is returned when an order is created without a customer reference.
	ErrCustomerRequired = errors.New("customerid is required")
	// ErrDetailQuantityInvalid is returned when a line item quantity is not positive.
	ErrDetailQuantityInvalid = errors.New("order detail quantity must be greater than zero")
	// ErrDetailPriceInvalid is returned for a negative unit price.
	ErrDetailPriceInvalid = errors.New("order detail unit price must be non-negative")
	// ErrDetailDiscountInvalid is returned when discount falls outside [0, 1).
	ErrDetailDiscountInvalid = errors.New("order detail discount must be in [0, 1)")
	// ErrOrderNotFound is returned when no CustomerOrder row matches the id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderDetailNotFound is returned when an update references a detail the order does not own.
	ErrOrderDetailNotFound = errors.New("order detail not found")
	// ErrCustomerNotFound is returned when no Customer row matches the id.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrSupplierNotFound is returned when no Supplier row matches the id.
	ErrSupplierNotFound = errors.New("supplier not found")
	// ErrDetailDuplicate is returned when one update lists the same detail id twice.
	ErrDetailDuplicate = errors.New("order detail listed more than once")
	// ErrNoGeneratedID means an insert succeeded without yielding an identifier.
	ErrNoGeneratedID = errors.New("insertion did not return an identifier")
	// ErrNothingToUpdate is returned by an update that carries no fields and no details.
	ErrNothingToUpdate = errors.New("nothing to update")
	// ErrOrderDetailConflict is returned when a detail identifier is already taken,
	// typically by a concurrent update of the same order.
	ErrOrderDetailConflict = errors.New("order detail identifier already exists")
)

// IsNotFound reports whether err signals an absent entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrSupplierNotFound) ||
		errors.Is(err, ErrOrderDetailNotFound)
}
