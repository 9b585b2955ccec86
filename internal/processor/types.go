package processor

// Entity is the registration payload for an individual identity.
type Entity struct {
	Type       string     `json:"type"`
	Individual Individual `json:"individual"`
	Address    Address    `json:"address"`
}

type Individual struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// SourceAccount registers an ACH-funded account under a holder identity.
type SourceAccount struct {
	HolderID string `json:"holder_id"`
	ACH      ACH    `json:"ach"`
}

type ACH struct {
	Routing string `json:"routing"`
	Number  string `json:"number"`
	Type    string `json:"type"`
}

// DestAccount registers a liability (loan) account under a holder identity.
type DestAccount struct {
	HolderID  string    `json:"holder_id"`
	Liability Liability `json:"liability"`
}

type Liability struct {
	MchID         string `json:"mch_id"`
	AccountNumber string `json:"account_number"`
}

// Payment moves money from a source account to a destination account.
// Description carries the upload id so payments can be matched back to the
// document they came from.
type Payment struct {
	Amount      int64  `json:"amount"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Description string `json:"description"`
}

type EntityResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Individual   Individual        `json:"individual"`
	Address      Address           `json:"address"`
	Capabilities []string          `json:"capabilities"`
	Error        *string           `json:"error"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

type AccountResponse struct {
	ID           string            `json:"id"`
	HolderID     string            `json:"holder_id"`
	Type         string            `json:"type"`
	ACH          *ACH              `json:"ach"`
	Liability    *Liability        `json:"liability"`
	Status       string            `json:"status"`
	Capabilities []string          `json:"capabilities"`
	Error        *string           `json:"error"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

type PaymentResponse struct {
	ID                        string            `json:"id"`
	ReversalID                *string           `json:"reversal_id"`
	SourceTraceID             *string           `json:"source_trace_id"`
	DestinationTraceID        *string           `json:"destination_trace_id"`
	Source                    string            `json:"source"`
	Destination               string            `json:"destination"`
	Amount                    int64             `json:"amount"`
	Description               string            `json:"description"`
	Status                    string            `json:"status"`
	Error                     *string           `json:"error"`
	Metadata                  map[string]string `json:"metadata"`
	EstimatedCompletionDate   string            `json:"estimated_completion_date"`
	SourceSettlementDate      string            `json:"source_settlement_date"`
	DestinationSettlementDate string            `json:"destination_settlement_date"`
	Fee                       *int64            `json:"fee"`
	CreatedAt                 string            `json:"created_at"`
	UpdatedAt                 string            `json:"updated_at"`
}
