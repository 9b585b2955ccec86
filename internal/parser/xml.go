// Package parser turns a payroll document byte stream into transactions. It
// is a single forward pass over the token stream: nested record boundaries
// are recognized by element name, text content is dispatched by the lowercased
// name of the element currently open, and resolution of each sub-record is
// interleaved with parsing rather than deferred.
package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pmerrell/payrun/internal/models"
	"github.com/pmerrell/payrun/internal/resolver"
)

// Element names delimiting each record type in the document.
const (
	transactionElement = "Transaction"
	employeeElement    = "Employee"
	payorElement       = "Payor"
	payeeElement       = "Payee"
	addressElement     = "Address"
)

// Resolver receives each record as soon as its block closes. Implementations
// decide registered-vs-new and persist; see the resolver package.
type Resolver interface {
	ResolveEmployee(ctx context.Context, employee *models.Employee) error
	ResolvePayor(ctx context.Context, payor *models.Payor) error
	ResolvePayee(ctx context.Context, payee *models.Payee, holderProcessorID string) error
	ResolveAddress(ctx context.Context, address *models.Address) error
	PersistTransaction(ctx context.Context, transaction *models.Transaction) error
}

type Parser struct {
	resolver Resolver
	log      zerolog.Logger
}

func New(res Resolver, log zerolog.Logger) *Parser {
	return &Parser{resolver: res, log: log}
}

// Parse consumes the document stream and returns the transactions that were
// fully resolved and persisted. A failed transaction block is logged and
// skipped; a structural error in the stream itself aborts the parse, keeping
// whatever was already produced.
func (p *Parser) Parse(ctx context.Context, r io.Reader, uploadID int64) []*models.Transaction {
	decoder := xml.NewDecoder(r)
	var transactions []*models.Transaction

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			p.log.Info().Int64("upload_id", uploadID).Int("transactions", len(transactions)).
				Msg("end of document")
			break
		}
		if err != nil {
			p.log.Error().Err(err).Int64("upload_id", uploadID).Msg("error reading document, aborting parse")
			break
		}

		se, ok := token.(xml.StartElement)
		if !ok || se.Name.Local != transactionElement {
			continue
		}

		transaction, err := p.parseTransaction(ctx, decoder, uploadID)
		if err != nil {
			p.log.Error().Err(err).Int64("upload_id", uploadID).Msg("transaction block failed, skipping")
			continue
		}
		transactions = append(transactions, transaction)
	}

	return transactions
}

// parseTransaction reads one transaction block through its closing element,
// then resolves employee, payor and payee in order before registering the
// payment. Payee resolution needs the employee's processor id, so the chain
// is strictly sequential.
func (p *Parser) parseTransaction(ctx context.Context, decoder *xml.Decoder, uploadID int64) (*models.Transaction, error) {
	transaction := &models.Transaction{UploadID: uploadID}

	var employee *models.Employee
	var payor *models.Payor
	var payee *models.Payee

	curElement := ""
loop:
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading transaction block: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			curElement = t.Name.Local
			switch t.Name.Local {
			case employeeElement:
				e, err := p.parseEmployee(decoder)
				if err != nil {
					return nil, err
				}
				employee = e
			case payorElement:
				po, err := p.parsePayor(ctx, decoder)
				if err != nil {
					return nil, err
				}
				payor = po
			case payeeElement:
				pe, err := p.parsePayee(decoder)
				if err != nil {
					return nil, err
				}
				payee = pe
			}

		case xml.EndElement:
			if t.Name.Local == transactionElement {
				break loop
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch strings.ToLower(curElement) {
			case "amount":
				cents, err := parseAmount(text)
				if err != nil {
					return nil, err
				}
				transaction.Amount = cents
			default:
				p.log.Warn().Str("element", curElement).Str("value", text).
					Msg("transaction: unrecognized element")
			}
		}
	}

	if employee == nil {
		return nil, &resolver.ValidationError{Reason: "transaction block has no employee record"}
	}
	if payor == nil {
		return nil, &resolver.ValidationError{Reason: "transaction block has no payor record"}
	}
	if payee == nil {
		return nil, &resolver.ValidationError{Reason: "transaction block has no payee record"}
	}

	if err := p.resolver.ResolveEmployee(ctx, employee); err != nil {
		return nil, err
	}
	transaction.EmployeeID = employee.ProcessorID

	if err := p.resolver.ResolvePayor(ctx, payor); err != nil {
		return nil, err
	}
	transaction.PayorID = payor.ProcessorID

	if err := p.resolver.ResolvePayee(ctx, payee, employee.ProcessorID); err != nil {
		return nil, err
	}
	transaction.PayeeID = payee.ProcessorID

	if err := p.resolver.PersistTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	return transaction, nil
}

func (p *Parser) parseEmployee(decoder *xml.Decoder) (*models.Employee, error) {
	employee := &models.Employee{}

	curElement := ""
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading employee block: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			curElement = t.Name.Local

		case xml.EndElement:
			if t.Name.Local == employeeElement {
				return employee, nil
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch strings.ToLower(curElement) {
			case "employeeid":
				employee.EmployeeID = text
			case "branch":
				employee.Branch = text
			case "firstname":
				employee.FirstName = text
			case "lastname":
				employee.LastName = text
			case "dob":
				employee.DOB = text
			case "phonenumber":
				employee.PhoneNumber = text
			default:
				p.log.Warn().Str("element", curElement).Str("value", text).
					Msg("employee: unrecognized element")
			}
		}
	}
}

// parsePayor also handles the nested address record, the only two-level
// nesting in the format. The address is resolved as soon as its block closes
// so the payor can reference its row id.
func (p *Parser) parsePayor(ctx context.Context, decoder *xml.Decoder) (*models.Payor, error) {
	payor := &models.Payor{}

	curElement := ""
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading payor block: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == addressElement {
				address, err := p.parseAddress(decoder)
				if err != nil {
					return nil, err
				}
				if err := p.resolver.ResolveAddress(ctx, address); err != nil {
					return nil, err
				}
				payor.AddressID = address.ID
			}
			curElement = t.Name.Local

		case xml.EndElement:
			if t.Name.Local == payorElement {
				return payor, nil
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch strings.ToLower(curElement) {
			case "payorid":
				payor.PayorID = text
			case "name":
				payor.Name = text
			case "dba":
				payor.DBA = text
			case "ein":
				payor.EIN = text
			case "accountnumber":
				payor.AccountNumber, err = parseNumeric(curElement, text)
				if err != nil {
					return nil, err
				}
			case "abarouting":
				payor.ABARouting, err = parseNumeric(curElement, text)
				if err != nil {
					return nil, err
				}
			default:
				p.log.Warn().Str("element", curElement).Str("value", text).
					Msg("payor: unrecognized element")
			}
		}
	}
}

func (p *Parser) parsePayee(decoder *xml.Decoder) (*models.Payee, error) {
	payee := &models.Payee{}

	curElement := ""
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading payee block: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			curElement = t.Name.Local

		case xml.EndElement:
			if t.Name.Local == payeeElement {
				return payee, nil
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch strings.ToLower(curElement) {
			case "payeeid":
				payee.PayeeID = text
			case "loanaccountnumber":
				payee.LoanAccountNumber, err = parseNumeric(curElement, text)
				if err != nil {
					return nil, err
				}
			default:
				p.log.Warn().Str("element", curElement).Str("value", text).
					Msg("payee: unrecognized element")
			}
		}
	}
}

func (p *Parser) parseAddress(decoder *xml.Decoder) (*models.Address, error) {
	address := &models.Address{}

	curElement := ""
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading address block: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			curElement = t.Name.Local

		case xml.EndElement:
			if t.Name.Local == addressElement {
				return address, nil
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch strings.ToLower(curElement) {
			case "line1":
				address.Line1 = text
			case "city":
				address.City = text
			case "state":
				address.State = text
			case "zip":
				address.Zip, err = parseNumeric(curElement, text)
				if err != nil {
					return nil, err
				}
			default:
				p.log.Warn().Str("element", curElement).Str("value", text).
					Msg("address: unrecognized element")
			}
		}
	}
}

// parseAmount turns text like "$12.50" into integer cents by stripping the
// currency symbol, scaling by 100 and truncating.
func parseAmount(text string) (int64, error) {
	raw := strings.ReplaceAll(text, "$", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &resolver.ValidationError{Reason: fmt.Sprintf("amount %q is not a decimal value", text)}
	}
	return int64(value * 100), nil
}

func parseNumeric(element, text string) (int64, error) {
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &resolver.ValidationError{Reason: fmt.Sprintf("%s %q is not numeric", strings.ToLower(element), text)}
	}
	return value, nil
}
