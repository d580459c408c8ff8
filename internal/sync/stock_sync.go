package sync

import (
	"errors"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

type StockSync = EntityService[remote.StockItem, models.StockItem]

func NewStockSync(gw remote.Gateway[remote.StockItem], store LocalStore[models.StockItem], queue OperationQueue, opts ServiceOptions) *StockSync {
	return newEntityService(EntityStock, gw, store, queue, stockToLocal, validateStock, opts)
}

func validateStock(s remote.StockItem) error {
	switch {
	case s.ID == "":
		return errors.New("stock id is required")
	case s.SKU == "" && s.Name == "":
		return errors.New("stock item needs a sku or a name")
	case s.UnitPrice < 0:
		return errors.New("unit price cannot be negative")
	}
	return nil
}
