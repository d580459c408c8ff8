package odoo

import (
	"context"
	"fmt"

	"github.com/xelth-com/bizsync/internal/remote"
)

const partnerModel = "res.partner"

var partnerFields = []string{"ref", "name", "phone", "email", "street", "vat", "credit", "write_date"}

// CustomerGateway stores customers as res.partner rows.
// The client-generated id travels in the partner's ref field; one Odoo
// database serves exactly one organization, so org is not sent.
type CustomerGateway struct {
	client *Client
}

var _ remote.Gateway[remote.Customer] = (*CustomerGateway)(nil)

func NewCustomerGateway(client *Client) *CustomerGateway {
	return &CustomerGateway{client: client}
}

func (g *CustomerGateway) Create(ctx context.Context, org string, rec remote.Customer) (remote.Customer, error) {
	values := partnerValues(rec)
	values["ref"] = rec.ID
	values["customer_rank"] = 1
	if _, err := g.client.Create(ctx, partnerModel, values); err != nil {
		return remote.Customer{}, fmt.Errorf("create partner %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (g *CustomerGateway) Update(ctx context.Context, org string, rec remote.Customer) (remote.Customer, error) {
	ids, err := g.lookup(ctx, rec.ID)
	if err != nil {
		return remote.Customer{}, err
	}
	if err := g.client.Write(ctx, partnerModel, ids, partnerValues(rec)); err != nil {
		return remote.Customer{}, fmt.Errorf("write partner %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (g *CustomerGateway) Delete(ctx context.Context, org, id string) error {
	ids, err := g.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := g.client.Unlink(ctx, partnerModel, ids); err != nil {
		return fmt.Errorf("unlink partner %s: %w", id, err)
	}
	return nil
}

func (g *CustomerGateway) ListAll(ctx context.Context, org string) ([]remote.Customer, error) {
	var rows []partnerRow
	domain := []interface{}{[]interface{}{"ref", "!=", false}}
	if err := g.client.SearchRead(ctx, partnerModel, domain, partnerFields, &rows); err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}

	out := make([]remote.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCustomer())
	}
	return out, nil
}

// lookup resolves our id to partner ids, NotFoundError when there are none
func (g *CustomerGateway) lookup(ctx context.Context, id string) ([]int64, error) {
	ids, err := g.client.Search(ctx, partnerModel, []interface{}{[]interface{}{"ref", "=", id}}, 1)
	if err != nil {
		return nil, fmt.Errorf("search partner %s: %w", id, err)
	}
	if len(ids) == 0 {
		return nil, &remote.NotFoundError{Resource: "customers", ID: id}
	}
	return ids, nil
}

func partnerValues(rec remote.Customer) map[string]interface{} {
	return map[string]interface{}{
		"name":   rec.Name,
		"phone":  rec.Phone,
		"email":  rec.Email,
		"street": rec.Address,
		"vat":    rec.TaxID,
	}
}
