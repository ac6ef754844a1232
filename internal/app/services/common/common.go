// Package common holds helpers shared by the feature services.
package common

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
)

// StoreError converts a storage error into a service error. Errors that are
// already service errors pass through unchanged.
func StoreError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if se := svcerrors.GetServiceError(err); se != nil {
		return err
	}
	switch {
	case storage.IsNotFound(err):
		nf := svcerrors.NotFound(resource, id)
		nf.Err = err
		return nf
	case storage.IsConflict(err):
		return svcerrors.Wrap(err, svcerrors.CodeConflict, resource+" already exists", http.StatusConflict)
	default:
		return svcerrors.Internal("storage failure", err)
	}
}

// Owned returns a not-found error unless the record belongs to owner, so
// callers cannot probe other accounts' ids.
func Owned(owner, recordOwner, resource, id string) error {
	if strings.TrimSpace(owner) == "" {
		return svcerrors.Unauthorized("")
	}
	if owner != recordOwner {
		return svcerrors.NotFound(resource, id)
	}
	return nil
}

// Required trims value and fails when it is empty.
func Required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", svcerrors.InvalidInput(field + " is required").WithDetails("field", field)
	}
	return value, nil
}

// Rating validates a 0..max rating.
func Rating(value, max int) error {
	if value < 0 || value > max {
		return svcerrors.InvalidFormat("rating", "must be between 0 and "+strconv.Itoa(max))
	}
	return nil
}

// NonNegative rejects negative amounts.
func NonNegative(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return svcerrors.InvalidFormat(field, "must not be negative")
	}
	return nil
}

// Currency normalises an ISO 4217 code, falling back to def when empty.
func Currency(code, def string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return def, nil
	}
	if len(code) != 3 {
		return "", svcerrors.InvalidFormat("currency", "must be a three letter ISO 4217 code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", svcerrors.InvalidFormat("currency", "must be a three letter ISO 4217 code")
		}
	}
	return code, nil
}

// UniqueIDs trims ids and drops blanks and duplicates, keeping first
// occurrences in order. The result is never nil.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
