package sync

import (
	"errors"
	"fmt"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// BillingSync replays bills. A bill references its customer and the stock
// items of its lines, so it is pushed after both.
type BillingSync = EntityService[remote.Billing, models.Billing]

func NewBillingSync(gw remote.Gateway[remote.Billing], store LocalStore[models.Billing], queue OperationQueue, opts ServiceOptions) *BillingSync {
	return newEntityService(EntityBilling, gw, store, queue, billingToLocal, validateBilling, opts)
}

func validateBilling(b remote.Billing) error {
	if b.ID == "" {
		return errors.New("billing id is required")
	}
	if b.CustomerID == "" {
		return errors.New("billing has no customer")
	}
	if len(b.Lines) == 0 {
		return errors.New("billing has no lines")
	}
	for i, l := range b.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("line %d: unit price cannot be negative", i+1)
		}
	}
	return nil
}
