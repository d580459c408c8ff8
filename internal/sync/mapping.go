package sync

import (
	"gorm.io/datatypes"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// Remote to local mappers. The organization comes from the call, the
// remote records do not carry it.

func customerToLocal(r remote.Customer, org string, status models.SyncStatus) models.Customer {
	return models.Customer{
		ID:                 r.ID,
		OrganizationID:     org,
		Name:               r.Name,
		Phone:              r.Phone,
		Email:              r.Email,
		Address:            r.Address,
		TaxID:              r.TaxID,
		OutstandingBalance: r.OutstandingBalance,
		UpdatedAt:          r.UpdatedAt,
		SyncState:          models.SyncState{SyncStatus: status},
	}
}

func staffToLocal(r remote.StaffMember, org string, status models.SyncStatus) models.StaffMember {
	return models.StaffMember{
		ID:             r.ID,
		OrganizationID: org,
		Name:           r.Name,
		Role:           r.Role,
		Phone:          r.Phone,
		MonthlySalary:  r.MonthlySalary,
		HourlyRate:     r.HourlyRate,
		JoinedAt:       r.JoinedAt,
		Active:         r.Active,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

func stockToLocal(r remote.StockItem, org string, status models.SyncStatus) models.StockItem {
	return models.StockItem{
		ID:             r.ID,
		OrganizationID: org,
		SKU:            r.SKU,
		Name:           r.Name,
		Unit:           r.Unit,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		ReorderLevel:   r.ReorderLevel,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

func billingToLocal(r remote.Billing, org string, status models.SyncStatus) models.Billing {
	lines := make([]models.BillingLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, models.BillingLine{
			StockItemID: l.StockItemID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return models.Billing{
		ID:             r.ID,
		OrganizationID: org,
		Number:         r.Number,
		CustomerID:     r.CustomerID,
		Status:         r.Status,
		Lines:          datatypes.JSONSlice[models.BillingLine](lines),
		Tax:            r.Tax,
		Total:          r.Total,
		IssuedAt:       r.IssuedAt,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

func transactionToLocal(r remote.Transaction, org string, status models.SyncStatus) models.Transaction {
	return models.Transaction{
		ID:             r.ID,
		OrganizationID: org,
		BillingID:      r.BillingID,
		CustomerID:     r.CustomerID,
		Kind:           r.Kind,
		Method:         r.Method,
		Amount:         r.Amount,
		Note:           r.Note,
		OccurredAt:     r.OccurredAt,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

func sessionToLocal(r remote.TeachingSession, org string, status models.SyncStatus) models.TeachingSession {
	return models.TeachingSession{
		ID:             r.ID,
		OrganizationID: org,
		StaffID:        r.StaffID,
		CustomerID:     r.CustomerID,
		Subject:        r.Subject,
		State:          r.State,
		ScheduledAt:    r.ScheduledAt,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		ApprovedAt:     r.ApprovedAt,
		ApprovedBy:     r.ApprovedBy,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

func attendanceToLocal(r remote.Attendance, org string, status models.SyncStatus) models.Attendance {
	return models.Attendance{
		ID:             r.ID,
		OrganizationID: org,
		StaffID:        r.StaffID,
		SessionID:      r.SessionID,
		Day:            r.Day,
		Status:         r.Status,
		CheckIn:        r.CheckIn,
		CheckOut:       r.CheckOut,
		UpdatedAt:      r.UpdatedAt,
		SyncState:      models.SyncState{SyncStatus: status},
	}
}

// Local to remote, used when recording a local write

func CustomerToRemote(c models.Customer) remote.Customer {
	return remote.Customer{
		ID:                 c.ID,
		Name:               c.Name,
		Phone:              c.Phone,
		Email:              c.Email,
		Address:            c.Address,
		TaxID:              c.TaxID,
		OutstandingBalance: c.OutstandingBalance,
		UpdatedAt:          c.UpdatedAt,
	}
}

func StaffToRemote(s models.StaffMember) remote.StaffMember {
	return remote.StaffMember{
		ID:            s.ID,
		Name:          s.Name,
		Role:          s.Role,
		Phone:         s.Phone,
		MonthlySalary: s.MonthlySalary,
		HourlyRate:    s.HourlyRate,
		JoinedAt:      s.JoinedAt,
		Active:        s.Active,
		UpdatedAt:     s.UpdatedAt,
	}
}

func StockToRemote(s models.StockItem) remote.StockItem {
	return remote.StockItem{
		ID:           s.ID,
		SKU:          s.SKU,
		Name:         s.Name,
		Unit:         s.Unit,
		Quantity:     s.Quantity,
		UnitPrice:    s.UnitPrice,
		ReorderLevel: s.ReorderLevel,
		UpdatedAt:    s.UpdatedAt,
	}
}

func BillingToRemote(b models.Billing) remote.Billing {
	lines := make([]remote.BillingLine, 0, len(b.Lines))
	for _, l := range b.Lines {
		lines = append(lines, remote.BillingLine{
			StockItemID: l.StockItemID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return remote.Billing{
		ID:         b.ID,
		Number:     b.Number,
		CustomerID: b.CustomerID,
		Status:     b.Status,
		Lines:      lines,
		Tax:        b.Tax,
		Total:      b.Total,
		IssuedAt:   b.IssuedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func TransactionToRemote(t models.Transaction) remote.Transaction {
	return remote.Transaction{
		ID:         t.ID,
		BillingID:  t.BillingID,
		CustomerID: t.CustomerID,
		Kind:       t.Kind,
		Method:     t.Method,
		Amount:     t.Amount,
		Note:       t.Note,
		OccurredAt: t.OccurredAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func SessionToRemote(s models.TeachingSession) remote.TeachingSession {
	return remote.TeachingSession{
		ID:          s.ID,
		StaffID:     s.StaffID,
		CustomerID:  s.CustomerID,
		Subject:     s.Subject,
		State:       s.State,
		ScheduledAt: s.ScheduledAt,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		ApprovedAt:  s.ApprovedAt,
		ApprovedBy:  s.ApprovedBy,
		UpdatedAt:   s.UpdatedAt,
	}
}

func AttendanceToRemote(a models.Attendance) remote.Attendance {
	return remote.Attendance{
		ID:        a.ID,
		StaffID:   a.StaffID,
		SessionID: a.SessionID,
		Day:       a.Day,
		Status:    a.Status,
		CheckIn:   a.CheckIn,
		CheckOut:  a.CheckOut,
		UpdatedAt: a.UpdatedAt,
	}
}
