package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidProvince   = errors.New("invalid_province")
	ErrInvalidTaxRate    = errors.New("invalid_tax_rate")
	ErrDuplicateProvince = errors.New("duplicate_province")
	ErrNotFound          = errors.New("not_found")
)
