package sync

import (
	"errors"
	"fmt"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

type TransactionSync = EntityService[remote.Transaction, models.Transaction]

func NewTransactionSync(gw remote.Gateway[remote.Transaction], store LocalStore[models.Transaction], queue OperationQueue, opts ServiceOptions) *TransactionSync {
	return newEntityService(EntityTransaction, gw, store, queue, transactionToLocal, validateTransaction, opts)
}

func validateTransaction(t remote.Transaction) error {
	switch {
	case t.ID == "":
		return errors.New("transaction id is required")
	case t.CustomerID == "":
		return errors.New("transaction has no customer")
	case t.Amount <= 0:
		return errors.New("amount must be positive")
	case t.Kind != "payment" && t.Kind != "refund":
		return fmt.Errorf("unknown transaction kind %q", t.Kind)
	}
	return nil
}
