// Package resolver decides, for each record extracted from a document,
// whether it is already registered with the payment processor. A miss
// registers the record remotely and writes the local row with the returned
// processor id; a hit reuses the stored id. There is no atomicity across the
// remote call and the local write.
package resolver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pmerrell/payrun/internal/database"
	"github.com/pmerrell/payrun/internal/models"
	"github.com/pmerrell/payrun/internal/processor"
)

// The processor sandbox only accepts normalized dob/phone/address values;
// document fields are free-form, so registration payloads carry fixed ones.
const (
	placeholderDOB   = "1997-03-18"
	placeholderPhone = "+15121231111"
	emailDomain      = "payroll.example.com"

	liabilityMchID = "mch_2"
)

// RegistrationClient is the slice of the processor API used during resolution.
type RegistrationClient interface {
	CreateEntity(ctx context.Context, entity processor.Entity) (*processor.EntityResponse, error)
	CreateDestAccount(ctx context.Context, account processor.DestAccount) (*processor.AccountResponse, error)
	CreatePayment(ctx context.Context, payment processor.Payment) (*processor.PaymentResponse, error)
}

type Resolver struct {
	store  database.Store
	client RegistrationClient
	log    zerolog.Logger
}

func New(store database.Store, client RegistrationClient, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, client: client, log: log}
}

// ResolveEmployee looks an employee up by its natural key, registers it as a
// processor identity on a miss, and leaves ProcessorID set either way.
func (r *Resolver) ResolveEmployee(ctx context.Context, employee *models.Employee) error {
	if employee.EmployeeID == "" {
		return &ValidationError{Reason: "employee is missing its employee id"}
	}

	existing, err := r.store.FindEmployeesByEmployeeID(ctx, employee.EmployeeID)
	if err != nil {
		return &StoreError{Op: "employee lookup", Err: err}
	}

	switch len(existing) {
	case 0:
		entity := entityFromEmployee(employee)
		response, err := r.client.CreateEntity(ctx, entity)
		if err != nil {
			return &RemoteError{Op: "entity registration", Err: err}
		}
		employee.ProcessorID = response.ID

		if err := r.store.InsertEmployee(ctx, employee); err != nil {
			return &StoreError{Op: "employee insert", Err: err}
		}

	case 1:
		r.log.Info().Str("employee_id", employee.EmployeeID).Str("processor_id", existing[0].ProcessorID).
			Msg("reusing existing employee registration")
		employee.ProcessorID = existing[0].ProcessorID

	default:
		r.log.Warn().Str("employee_id", employee.EmployeeID).Int("rows", len(existing)).
			Msg("duplicate employee rows for one natural key, reusing first")
		employee.ProcessorID = existing[0].ProcessorID
	}

	return nil
}

// ResolvePayor only accepts payors that already have a local row. Payors are
// a closed allow-list; an unseen payor id fails the transaction block.
func (r *Resolver) ResolvePayor(ctx context.Context, payor *models.Payor) error {
	if payor.PayorID == "" {
		return &ValidationError{Reason: "payor is missing its payor id"}
	}

	existing, err := r.store.FindPayorsByPayorID(ctx, payor.PayorID)
	if err != nil {
		return &StoreError{Op: "payor lookup", Err: err}
	}

	switch len(existing) {
	case 0:
		return &ValidationError{Reason: fmt.Sprintf("payor %s is not one of the known valid payors", payor.PayorID)}

	case 1:
		r.log.Info().Str("payor_id", payor.PayorID).Str("processor_id", existing[0].ProcessorID).
			Msg("reusing existing payor registration")
		payor.ProcessorID = existing[0].ProcessorID

	default:
		r.log.Warn().Str("payor_id", payor.PayorID).Int("rows", len(existing)).
			Msg("duplicate payor rows for one natural key, reusing first")
		payor.ProcessorID = existing[0].ProcessorID
	}

	return nil
}

// ResolvePayee registers a destination account under the already-resolved
// employee identity on a miss. holderProcessorID must be the employee's
// processor id.
func (r *Resolver) ResolvePayee(ctx context.Context, payee *models.Payee, holderProcessorID string) error {
	if payee.PayeeID == "" {
		return &ValidationError{Reason: "payee is missing its payee id"}
	}
	if holderProcessorID == "" {
		return &ValidationError{Reason: fmt.Sprintf("payee %s has no resolved employee to hold its account", payee.PayeeID)}
	}

	existing, err := r.store.FindPayeesByPayeeID(ctx, payee.PayeeID)
	if err != nil {
		return &StoreError{Op: "payee lookup", Err: err}
	}

	switch len(existing) {
	case 0:
		account := processor.DestAccount{
			HolderID: holderProcessorID,
			Liability: processor.Liability{
				MchID:         liabilityMchID,
				AccountNumber: strconv.FormatInt(payee.LoanAccountNumber, 10),
			},
		}
		response, err := r.client.CreateDestAccount(ctx, account)
		if err != nil {
			return &RemoteError{Op: "destination account registration", Err: err}
		}
		payee.ProcessorID = response.ID

		if err := r.store.InsertPayee(ctx, payee); err != nil {
			return &StoreError{Op: "payee insert", Err: err}
		}

	case 1:
		r.log.Info().Str("payee_id", payee.PayeeID).Str("processor_id", existing[0].ProcessorID).
			Msg("reusing existing payee registration")
		payee.ProcessorID = existing[0].ProcessorID

	default:
		r.log.Warn().Str("payee_id", payee.PayeeID).Int("rows", len(existing)).
			Msg("duplicate payee rows for one natural key, reusing first")
		payee.ProcessorID = existing[0].ProcessorID
	}

	return nil
}

// ResolveAddress deduplicates by full-field equality. Addresses never touch
// the processor; a miss is a local insert only.
func (r *Resolver) ResolveAddress(ctx context.Context, address *models.Address) error {
	existing, err := r.store.FindAddresses(ctx, *address)
	if err != nil {
		return &StoreError{Op: "address lookup", Err: err}
	}

	switch len(existing) {
	case 0:
		id, err := r.store.InsertAddress(ctx, address)
		if err != nil {
			return &StoreError{Op: "address insert", Err: err}
		}
		address.ID = id

	case 1:
		address.ID = existing[0].ID

	default:
		r.log.Warn().Int64("address_id", existing[0].ID).Int("rows", len(existing)).
			Msg("duplicate address rows, reusing first")
		address.ID = existing[0].ID
	}

	return nil
}

// PersistTransaction registers the payment with the processor and then writes
// the local row. Transactions are never deduplicated: the same employee,
// payee, payor and amount can legitimately repeat.
func (r *Resolver) PersistTransaction(ctx context.Context, transaction *models.Transaction) error {
	if transaction.Amount == 0 {
		return &ValidationError{Reason: "transaction has no amount"}
	}
	if transaction.PayorID == "" || transaction.PayeeID == "" {
		return &ValidationError{Reason: "transaction is missing a resolved payor or payee"}
	}

	payment := processor.Payment{
		Amount:      transaction.Amount,
		Source:      transaction.PayorID,
		Destination: transaction.PayeeID,
		Description: strconv.FormatInt(transaction.UploadID, 10),
	}
	response, err := r.client.CreatePayment(ctx, payment)
	if err != nil {
		return &RemoteError{Op: "payment creation", Err: err}
	}
	transaction.ProcessorID = response.ID

	if err := r.store.InsertTransaction(ctx, transaction); err != nil {
		return &StoreError{Op: "transaction insert", Err: err}
	}

	return nil
}

func entityFromEmployee(employee *models.Employee) processor.Entity {
	return processor.Entity{
		Type: "individual",
		Individual: processor.Individual{
			FirstName: employee.FirstName,
			LastName:  employee.LastName,
			DOB:       placeholderDOB,
			Email:     fmt.Sprintf("%s.%s@%s", employee.FirstName, employee.LastName, emailDomain),
			Phone:     placeholderPhone,
		},
		Address: processor.Address{
			Line1: "3300 N Interstate 35",
			City:  "Austin",
			State: "TX",
			Zip:   "78705",
		},
	}
}
