package sync

import (
	"errors"
	"strings"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// CustomerSync replays customer mutations
type CustomerSync = EntityService[remote.Customer, models.Customer]

func NewCustomerSync(gw remote.Gateway[remote.Customer], store LocalStore[models.Customer], queue OperationQueue, opts ServiceOptions) *CustomerSync {
	return newEntityService(EntityCustomer, gw, store, queue, customerToLocal, validateCustomer, opts)
}

func validateCustomer(c remote.Customer) error {
	if c.ID == "" {
		return errors.New("customer id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("customer name is required")
	}
	return nil
}
