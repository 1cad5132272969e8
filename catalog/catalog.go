/*
Package catalog defines the service catalog: named, priced templates that
administrators attach to orders. A catalog item's funcao is the service
kind (and therefore the operator role) a service created from it requires;
its precoPadrao is the unit price used when none is supplied.

NORMALIZATION:
  Names are trimmed; kinds are trimmed and lowercased so they compare
  equal to role names. Normalization happens once at the package boundary,
  never in storage.

BULK IMPORT:
  Imports carry 1..500 items and run all-or-nothing inside one storage
  transaction. Items whose nome already exists are skipped, not errors;
  the caller learns how many rows were actually inserted.
*/
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxImportBatch caps a single bulk import.
const MaxImportBatch = 500

var (
	ErrItemNotFound  = errors.New("catalog item not found")
	ErrDuplicateName = errors.New("catalog item name already exists")
	ErrValidation    = errors.New("invalid catalog item")
)

// Item is one catalog entry.
type Item struct {
	ID           string
	Name         string // unique, human-facing
	Kind         string // service kind / required role, lowercased
	DefaultPrice decimal.Decimal
}

// Normalize trims the name and canonicalizes the kind.
func (it *Item) Normalize() {
	it.Name = strings.TrimSpace(it.Name)
	it.Kind = strings.ToLower(strings.TrimSpace(it.Kind))
}

// Validate checks the invariants every stored item satisfies. Callers
// normalize first.
func (it Item) Validate() error {
	if len(it.Name) < 3 {
		return fmt.Errorf("%w: nome must have at least 3 characters", ErrValidation)
	}
	if len(it.Kind) < 2 {
		return fmt.Errorf("%w: funcao must have at least 2 characters", ErrValidation)
	}
	if it.DefaultPrice.IsNegative() {
		return fmt.Errorf("%w: precoPadrao must be >= 0", ErrValidation)
	}
	return nil
}

// PrepareImport normalizes and validates a bulk import payload.
func PrepareImport(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: import requires at least one item", ErrValidation)
	}
	if len(items) > MaxImportBatch {
		return nil, fmt.Errorf("%w: import limited to %d items", ErrValidation, MaxImportBatch)
	}
	prepared := make([]Item, len(items))
	for i, it := range items {
		it.Normalize()
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		prepared[i] = it
	}
	return prepared, nil
}

// Store is the persistence surface the catalog API uses.
type Store interface {
	ListCatalogItems(ctx context.Context) ([]Item, error)
	GetCatalogItem(ctx context.Context, id string) (*Item, error)
	SaveCatalogItem(ctx context.Context, item Item) error
	UpdateCatalogItem(ctx context.Context, item Item) error
	DeleteCatalogItem(ctx context.Context, id string) error

	// ImportCatalogItems inserts the batch inside one transaction,
	// skipping items whose nome already exists. Returns the number of
	// rows inserted.
	ImportCatalogItems(ctx context.Context, items []Item) (int, error)
}
