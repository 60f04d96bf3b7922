/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place. Every validation failure is returned BEFORE
  any mutation, so a caller that receives one of these can re-prompt the
  operator knowing nothing changed.

ERROR CATEGORIES:
  1. Validation errors - Bad cart, bad payment, bad catalog input
  2. Lookup errors - Referenced product/client does not exist
  3. Persistence errors - Nothing saved yet, or saved data failed to parse

USAGE:
  _, err := controller.CommitSale(items, pos.MethodCredit, "")
  if errors.Is(err, pos.ErrMissingClientReference) { ... }

  var stockErr *pos.InsufficientStockError
  if errors.As(err, &stockErr) { ... stockErr.ProductID ... }
*/
package pos

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a sale requests more units than
	// the product has. See InsufficientStockError for details.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrMissingClientReference is returned for a credit sale without a client.
	ErrMissingClientReference = errors.New("credit sale requires a client")

	// ErrUnknownClient is returned when a client id does not resolve.
	ErrUnknownClient = errors.New("unknown client")

	// ErrUnknownProduct is returned when a product id does not resolve.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrInvalidAmount is returned for payments that are not finite and > 0.
	ErrInvalidAmount = errors.New("amount must be a finite number greater than zero")

	ErrEmptyCart            = errors.New("sale has no items")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidProduct       = errors.New("invalid product")
	ErrInvalidClient        = errors.New("invalid client")
	ErrDuplicateID          = errors.New("duplicate id")

	// ErrJournalNotEmpty is returned by Reset once any sale or payment has
	// been journaled.
	ErrJournalNotEmpty = errors.New("journal is not empty")

	// ErrNoSavedState is returned by a Gateway when nothing has been saved yet.
	ErrNoSavedState = errors.New("no saved state")

	// ErrMalformedState is returned by a Gateway when saved data fails to parse.
	ErrMalformedState = errors.New("malformed persisted state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports the first product that could not cover the
// (aggregated) requested quantity.
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type UnknownClientError struct {
	ClientID ClientID
}

func (e *UnknownClientError) Error() string { return fmt.Sprintf("unknown client %q", e.ClientID) }
func (e *UnknownClientError) Unwrap() error { return ErrUnknownClient }

type UnknownProductError struct {
	ProductID ProductID
}

func (e *UnknownProductError) Error() string { return fmt.Sprintf("unknown product %q", e.ProductID) }
func (e *UnknownProductError) Unwrap() error { return ErrUnknownProduct }

// MalformedStateError wraps a decode failure from a Gateway. It is recovered
// locally by LoadOrBootstrap and never surfaced as fatal.
type MalformedStateError struct {
	Source string // e.g. "sqlite", "redis", "memory"
	Err    error
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("malformed persisted state (%s): %v", e.Source, e.Err)
}

func (e *MalformedStateError) Unwrap() []error { return []error{ErrMalformedState, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidationError returns true if the error is due to invalid operator
// input. State is guaranteed untouched when this returns true.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrMissingClientReference) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidProduct) ||
		errors.Is(err, ErrInvalidClient) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing product or client.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownClient) || errors.Is(err, ErrUnknownProduct)
}
