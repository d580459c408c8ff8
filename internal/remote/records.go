package remote

import "time"

// Record is any remote-shaped record; the id is client generated
type Record interface {
	RecordID() string
}

// Customer as exchanged with the backend
type Customer struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone,omitempty"`
	Email              string    `json:"email,omitempty"`
	Address            string    `json:"address,omitempty"`
	TaxID              string    `json:"tax_id,omitempty"`
	OutstandingBalance float64   `json:"outstanding_balance"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c Customer) RecordID() string { return c.ID }

// StaffMember as exchanged with the backend
type StaffMember struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Phone         string    `json:"phone,omitempty"`
	MonthlySalary float64   `json:"monthly_salary"`
	HourlyRate    float64   `json:"hourly_rate"`
	JoinedAt      time.Time `json:"joined_at"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s StaffMember) RecordID() string { return s.ID }

// StockItem as exchanged with the backend
type StockItem struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	Quantity     float64   `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	ReorderLevel float64   `json:"reorder_level"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s StockItem) RecordID() string { return s.ID }

// BillingLine is one line of a remote bill
type BillingLine struct {
	StockItemID string  `json:"stock_item_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Billing as exchanged with the backend
type Billing struct {
	ID         string        `json:"id"`
	Number     string        `json:"number"`
	CustomerID string        `json:"customer_id"`
	Status     string        `json:"status"`
	Lines      []BillingLine `json:"lines"`
	Tax        float64       `json:"tax"`
	Total      float64       `json:"total"`
	IssuedAt   time.Time     `json:"issued_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (b Billing) RecordID() string { return b.ID }

// Transaction as exchanged with the backend
type Transaction struct {
	ID         string    `json:"id"`
	BillingID  string    `json:"billing_id,omitempty"`
	CustomerID string    `json:"customer_id"`
	Kind       string    `json:"kind"`
	Method     string    `json:"method"`
	Amount     float64   `json:"amount"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t Transaction) RecordID() string { return t.ID }

// TeachingSession as exchanged with the backend
type TeachingSession struct {
	ID          string     `json:"id"`
	StaffID     string     `json:"staff_id"`
	CustomerID  string     `json:"customer_id"`
	Subject     string     `json:"subject"`
	State       string     `json:"state"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s TeachingSession) RecordID() string { return s.ID }

// Attendance as exchanged with the backend
type Attendance struct {
	ID        string     `json:"id"`
	StaffID   string     `json:"staff_id"`
	SessionID string     `json:"session_id,omitempty"`
	Day       time.Time  `json:"day"`
	Status    string     `json:"status"`
	CheckIn   *time.Time `json:"check_in,omitempty"`
	CheckOut  *time.Time `json:"check_out,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (a Attendance) RecordID() string { return a.ID }
