package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecipient checks that addr is a single well-formed email address.
func ValidateRecipient(addr string) error {
	if err := validate.Var(addr, "required,email"); err != nil {
		return ErrInvalidRecipient
	}
	return nil
}

// MaxCategoryLength matches the queued_messages.category column.
const MaxCategoryLength = 64

// ValidateCategory rejects categories the store cannot hold.
func ValidateCategory(category string) error {
	if err := validate.Var(category, "max=64"); err != nil {
		return fmt.Errorf("%w: category exceeds %d characters", ErrInvalidRequest, MaxCategoryLength)
	}
	return nil
}

func (r *EnqueueRequest) Validate() error {
	if err := ValidateRecipient(strings.TrimSpace(r.Recipient)); err != nil {
		return err
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ParsePriority parses a priority from a query string. Unlike enqueue, which
// clamps, a filter value outside the range is rejected.
func ParsePriority(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < PriorityHighest || p > PriorityLowest {
		return 0, ErrInvalidPriority
	}
	return p, nil
}
