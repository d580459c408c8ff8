package odoo

import (
	"encoding/json"
	"time"

	"github.com/xelth-com/bizsync/internal/remote"
)

// OdooString decodes Odoo's "false for empty" convention
type OdooString string

func (s *OdooString) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if str, ok := v.(string); ok {
		*s = OdooString(str)
	} else {
		*s = ""
	}
	return nil
}

// OdooFloat decodes numbers that Odoo may send as false
type OdooFloat float64

func (f *OdooFloat) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if n, ok := v.(float64); ok {
		*f = OdooFloat(n)
	} else {
		*f = 0
	}
	return nil
}

type partnerRow struct {
	Ref       OdooString `json:"ref"`
	Name      OdooString `json:"name"`
	Phone     OdooString `json:"phone"`
	Email     OdooString `json:"email"`
	Street    OdooString `json:"street"`
	Vat       OdooString `json:"vat"`
	Credit    OdooFloat  `json:"credit"`
	WriteDate OdooString `json:"write_date"`
}

func (r partnerRow) toCustomer() remote.Customer {
	c := remote.Customer{
		ID:                 string(r.Ref),
		Name:               string(r.Name),
		Phone:              string(r.Phone),
		Email:              string(r.Email),
		Address:            string(r.Street),
		TaxID:              string(r.Vat),
		OutstandingBalance: float64(r.Credit),
	}
	if t, err := time.Parse("2006-01-02 15:04:05", string(r.WriteDate)); err == nil {
		c.UpdatedAt = t.UTC()
	}
	return c
}
