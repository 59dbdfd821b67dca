package services

import (
	"fmt"
	"strconv"
	"strings"

	"bookstore/internal/models"
)

// ParseProductID accepts a positive base-10 integer and nothing else.
func ParseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", models.ErrValidation, raw)
	}
	return id, nil
}
