package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pmerrell/payrun/internal/models"
)

// Store is the local persistence contract consumed by the resolver, the
// ingestion pipeline, and the HTTP layer. No operation spans more than one
// table; there is no cross-entity transactionality.
type Store interface {
	CreateUpload(ctx context.Context, filename, checksum string, startedAt time.Time) (int64, error)
	SetUploadChecksum(ctx context.Context, id int64, checksum string) error
	FinishUpload(ctx context.Context, id int64, status string, finishedAt time.Time) error
	GetUpload(ctx context.Context, id int64) (*models.Upload, error)
	ListUploads(ctx context.Context) ([]models.Upload, error)
	HasUploadWithChecksum(ctx context.Context, checksum string) (bool, error)

	FindEmployeesByEmployeeID(ctx context.Context, employeeID string) ([]models.Employee, error)
	FindEmployeesByProcessorIDs(ctx context.Context, processorIDs []string) ([]models.Employee, error)
	InsertEmployee(ctx context.Context, employee *models.Employee) error

	FindPayorsByPayorID(ctx context.Context, payorID string) ([]models.Payor, error)

	FindPayeesByPayeeID(ctx context.Context, payeeID string) ([]models.Payee, error)
	InsertPayee(ctx context.Context, payee *models.Payee) error

	FindAddresses(ctx context.Context, address models.Address) ([]models.Address, error)
	InsertAddress(ctx context.Context, address *models.Address) (int64, error)

	InsertTransaction(ctx context.Context, transaction *models.Transaction) error
	ListTransactionsByUpload(ctx context.Context, uploadID int64) ([]models.Transaction, error)
}

// PostgresStore implements Store over a DBTX (*sql.DB or *sql.Tx).
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateUpload(ctx context.Context, filename, checksum string, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO uploads (filename, status, checksum, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, filename, models.UploadStatusInit, checksum, startedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting upload record: %w", err)
	}

	return id, nil
}

func (s *PostgresStore) SetUploadChecksum(ctx context.Context, id int64, checksum string) error {
	query := `UPDATE uploads SET checksum = $1 WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, checksum, id); err != nil {
		return fmt.Errorf("error setting checksum for upload %d: %w", id, err)
	}

	return nil
}

func (s *PostgresStore) FinishUpload(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	query := `UPDATE uploads SET status = $1, finished_at = $2 WHERE id = $3`

	res, err := s.db.ExecContext(ctx, query, status, finishedAt, id)
	if err != nil {
		return fmt.Errorf("error updating upload %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for upload %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("upload %d not found", id)
	}

	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, id int64) (*models.Upload, error) {
	query := `SELECT id, filename, status, checksum, started_at, finished_at FROM uploads WHERE id = $1`

	var upload models.Upload
	var checksum sql.NullString
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&upload.ID, &upload.Filename, &upload.Status, &checksum, &upload.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying upload %d: %w", id, err)
	}

	upload.Checksum = checksum.String
	if finishedAt.Valid {
		upload.FinishedAt = &finishedAt.Time
	}

	return &upload, nil
}

func (s *PostgresStore) ListUploads(ctx context.Context) ([]models.Upload, error) {
	query := `SELECT id, filename, status, checksum, started_at, finished_at FROM uploads ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		var upload models.Upload
		var checksum sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&upload.ID, &upload.Filename, &upload.Status, &checksum, &upload.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("error scanning upload row: %w", err)
		}
		upload.Checksum = checksum.String
		if finishedAt.Valid {
			upload.FinishedAt = &finishedAt.Time
		}
		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}

func (s *PostgresStore) HasUploadWithChecksum(ctx context.Context, checksum string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM uploads WHERE checksum = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, checksum).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking upload checksum: %w", err)
	}

	return exists, nil
}

func (s *PostgresStore) FindEmployeesByEmployeeID(ctx context.Context, employeeID string) ([]models.Employee, error) {
	query := `
		SELECT employee_id, processor_id, branch, first_name, last_name, dob, phone_number
		FROM employees WHERE employee_id = $1`

	rows, err := s.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("error querying employees: %w", err)
	}
	defer rows.Close()

	return scanEmployees(rows)
}

func (s *PostgresStore) FindEmployeesByProcessorIDs(ctx context.Context, processorIDs []string) ([]models.Employee, error) {
	query := `
		SELECT employee_id, processor_id, branch, first_name, last_name, dob, phone_number
		FROM employees WHERE processor_id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, processorIDs)
	if err != nil {
		return nil, fmt.Errorf("error querying employees by processor id: %w", err)
	}
	defer rows.Close()

	return scanEmployees(rows)
}

func scanEmployees(rows *sql.Rows) ([]models.Employee, error) {
	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.EmployeeID, &e.ProcessorID, &e.Branch, &e.FirstName, &e.LastName, &e.DOB, &e.PhoneNumber); err != nil {
			return nil, fmt.Errorf("error scanning employee row: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *PostgresStore) InsertEmployee(ctx context.Context, employee *models.Employee) error {
	query := `
		INSERT INTO employees (employee_id, processor_id, branch, first_name, last_name, dob, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		employee.EmployeeID, employee.ProcessorID, employee.Branch,
		employee.FirstName, employee.LastName, employee.DOB, employee.PhoneNumber,
	)
	if err != nil {
		return fmt.Errorf("error inserting employee %s: %w", employee.EmployeeID, err)
	}

	return nil
}

func (s *PostgresStore) FindPayorsByPayorID(ctx context.Context, payorID string) ([]models.Payor, error) {
	query := `
		SELECT payor_id, processor_id, name, dba, ein, account_number, aba_routing, address_id
		FROM payors WHERE payor_id = $1`

	rows, err := s.db.QueryContext(ctx, query, payorID)
	if err != nil {
		return nil, fmt.Errorf("error querying payors: %w", err)
	}
	defer rows.Close()

	var payors []models.Payor
	for rows.Next() {
		var p models.Payor
		var accountNumber, abaRouting, addressID sql.NullInt64
		if err := rows.Scan(&p.PayorID, &p.ProcessorID, &p.Name, &p.DBA, &p.EIN, &accountNumber, &abaRouting, &addressID); err != nil {
			return nil, fmt.Errorf("error scanning payor row: %w", err)
		}
		p.AccountNumber = accountNumber.Int64
		p.ABARouting = abaRouting.Int64
		p.AddressID = addressID.Int64
		payors = append(payors, p)
	}

	return payors, rows.Err()
}

func (s *PostgresStore) FindPayeesByPayeeID(ctx context.Context, payeeID string) ([]models.Payee, error) {
	query := `SELECT payee_id, processor_id, loan_account_number FROM payees WHERE payee_id = $1`

	rows, err := s.db.QueryContext(ctx, query, payeeID)
	if err != nil {
		return nil, fmt.Errorf("error querying payees: %w", err)
	}
	defer rows.Close()

	var payees []models.Payee
	for rows.Next() {
		var p models.Payee
		if err := rows.Scan(&p.PayeeID, &p.ProcessorID, &p.LoanAccountNumber); err != nil {
			return nil, fmt.Errorf("error scanning payee row: %w", err)
		}
		payees = append(payees, p)
	}

	return payees, rows.Err()
}

func (s *PostgresStore) InsertPayee(ctx context.Context, payee *models.Payee) error {
	query := `INSERT INTO payees (payee_id, processor_id, loan_account_number) VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, payee.PayeeID, payee.ProcessorID, payee.LoanAccountNumber)
	if err != nil {
		return fmt.Errorf("error inserting payee %s: %w", payee.PayeeID, err)
	}

	return nil
}

func (s *PostgresStore) FindAddresses(ctx context.Context, address models.Address) ([]models.Address, error) {
	query := `
		SELECT id, line1, city, state, zip FROM addresses
		WHERE line1 = $1 AND city = $2 AND state = $3 AND zip = $4`

	rows, err := s.db.QueryContext(ctx, query, address.Line1, address.City, address.State, address.Zip)
	if err != nil {
		return nil, fmt.Errorf("error querying addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.Line1, &a.City, &a.State, &a.Zip); err != nil {
			return nil, fmt.Errorf("error scanning address row: %w", err)
		}
		addresses = append(addresses, a)
	}

	return addresses, rows.Err()
}

func (s *PostgresStore) InsertAddress(ctx context.Context, address *models.Address) (int64, error) {
	query := `INSERT INTO addresses (line1, city, state, zip) VALUES ($1, $2, $3, $4) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, address.Line1, address.City, address.State, address.Zip).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting address: %w", err)
	}

	return id, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (processor_id, employee_id, payor_id, payee_id, upload_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		transaction.ProcessorID, transaction.EmployeeID, transaction.PayorID,
		transaction.PayeeID, transaction.UploadID, transaction.Amount,
	)
	if err != nil {
		return fmt.Errorf("error inserting transaction for upload %d: %w", transaction.UploadID, err)
	}

	return nil
}

func (s *PostgresStore) ListTransactionsByUpload(ctx context.Context, uploadID int64) ([]models.Transaction, error) {
	query := `
		SELECT processor_id, employee_id, payor_id, payee_id, upload_id, amount
		FROM transactions WHERE upload_id = $1`

	rows, err := s.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for upload %d: %w", uploadID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ProcessorID, &t.EmployeeID, &t.PayorID, &t.PayeeID, &t.UploadID, &t.Amount); err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}
