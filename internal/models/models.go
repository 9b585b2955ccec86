package models

import (
	"time"
)

// Upload statuses. An upload starts as Init, and flips exactly once to
// Finished or Failed when the pipeline is done with it.
const (
	UploadStatusInit     = "Init"
	UploadStatusFinished = "Finished"
	UploadStatusFailed   = "Failed"
)

// Upload is one ingested payroll document. Failed means the raw bytes could
// not be read; individual bad transaction blocks do not fail an upload.
type Upload struct {
	ID         int64      `json:"id"`
	Filename   string     `json:"filename"`
	Status     string     `json:"status"`
	Checksum   string     `json:"checksum,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Address is a payor mailing address, deduplicated by full-field equality.
type Address struct {
	ID    int64  `json:"id,omitempty"`
	Line1 string `json:"line1,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Zip   int64  `json:"zip,omitempty"`
}

// Employee is a pay recipient's employer-side identity. EmployeeID is the
// natural key from the document; ProcessorID is assigned by the payment
// processor on first registration and reused afterwards.
type Employee struct {
	EmployeeID  string `json:"employee_id,omitempty"`
	ProcessorID string `json:"processor_id,omitempty"`
	Branch      string `json:"branch,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DOB         string `json:"dob,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Payor funds transactions. Payors are a closed allow-list: rows are seeded
// operationally and an unseen payor id is a data error, never auto-created.
type Payor struct {
	PayorID       string `json:"payor_id,omitempty"`
	ProcessorID   string `json:"processor_id,omitempty"`
	Name          string `json:"name,omitempty"`
	DBA           string `json:"dba,omitempty"`
	EIN           string `json:"ein,omitempty"`
	AccountNumber int64  `json:"account_number,omitempty"`
	ABARouting    int64  `json:"aba_routing,omitempty"`
	AddressID     int64  `json:"address_id,omitempty"`
}

// Payee is the destination of a payment. Registration with the processor
// requires the already-resolved employee's processor id as the account holder.
type Payee struct {
	PayeeID           string `json:"payee_id,omitempty"`
	ProcessorID       string `json:"processor_id,omitempty"`
	LoanAccountNumber int64  `json:"loan_account_number,omitempty"`
}

// Transaction is one payment instruction extracted from a document. Amount is
// integer cents. Transactions are never deduplicated; repeats are legitimate.
type Transaction struct {
	ProcessorID string `json:"processor_id,omitempty"`
	EmployeeID  string `json:"employee_id,omitempty"`
	PayorID     string `json:"payor_id,omitempty"`
	PayeeID     string `json:"payee_id,omitempty"`
	UploadID    int64  `json:"upload_id,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
}

// DocumentJob is one unit of pipeline work: the raw bytes of an uploaded
// document plus the upload row it belongs to.
type DocumentJob struct {
	JobID    string
	UploadID int64
	Filename string
	Data     []byte
}
