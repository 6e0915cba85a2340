package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "order not found",
			err:  ErrOrderNotFound,
			want: true,
		},
		{
			name: "wrapped customer not found",
			err:  fmt.Errorf("get customer ALFKI: %w", ErrCustomerNotFound),
			want: true,
		},
		{
			name: "supplier not found",
			err:  ErrSupplierNotFound,
			want: true,
		},
		{
			name: "joined detail not found",
			err:  errors.Join(ErrOrderDetailNotFound, errors.New("additional context")),
			want: true,
		},
		{
			name: "validation error",
			err:  ErrCustomerRequired,
			want: false,
		},
		{
			name: "nothing to update",
			err:  ErrNothingToUpdate,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
