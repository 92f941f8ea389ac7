package domain

import "time"

// Stock is keyed by (vintage, location). Invariant: quantity - reserved >= 0.
type Stock struct {
	ID               string    `json:"id"`
	VintageID        string    `json:"vintage_id"`
	Location         string    `json:"location"`
	Quantity         int       `json:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	CostPerBottle    float64   `json:"cost_per_bottle"`
	CurrentValue     float64   `json:"current_value"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Available is the quantity not held by an active reservation.
func (s *Stock) Available() int {
	return s.Quantity - s.ReservedQuantity
}

// LedgerEntryType enumerates the append-only ledger operation kinds.
type LedgerEntryType string

const (
	LedgerEntryIn        LedgerEntryType = "IN"
	LedgerEntryOut       LedgerEntryType = "OUT"
	LedgerEntryMove      LedgerEntryType = "MOVE"
	LedgerEntryReserve   LedgerEntryType = "RESERVE"
	LedgerEntryUnreserve LedgerEntryType = "UNRESERVE"
)

// LedgerEntry is an append-only record. Never mutated after creation.
type LedgerEntry struct {
	ID            string          `json:"id"`
	Type          LedgerEntryType `json:"type"`
	VintageID     string          `json:"vintage_id"`
	Location      string          `json:"location"`
	OtherLocation string          `json:"other_location,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitCost      *float64        `json:"unit_cost,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IntakeSourceType enumerates the accepted intake document shapes.
type IntakeSourceType string

const (
	IntakeSourceManual           IntakeSourceType = "manual"
	IntakeSourcePDFInvoice       IntakeSourceType = "pdf_invoice"
	IntakeSourceScannedDocument  IntakeSourceType = "scanned_document"
	IntakeSourceExcel            IntakeSourceType = "excel"
)

// IntakeItem is one parsed line item awaiting receipt into the ledger.
type IntakeItem struct {
	Name       string
	Producer   string
	Region     string
	WineType   WineType
	Year       int
	Quantity   int
	UnitCost   float64
	Location   string
}

// IntakeResult reports the outcome of a parsed intake document.
type IntakeResult struct {
	ID          string       `json:"id"`
	SourceType  IntakeSourceType `json:"source_type"`
	Items       []IntakeItem `json:"items"`
	RejectedRaw []string     `json:"rejected_raw,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
