package server

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pmerrell/payrun/internal/models"
	"github.com/pmerrell/payrun/internal/processor"
)

// ReportResponse summarizes one upload: amount totals folded per payor and
// per employee branch, plus the processor-side status of each payment whose
// description matches the upload.
type ReportResponse struct {
	UploadID        int64            `json:"upload_id"`
	Processing      bool             `json:"processing"`
	TotalsByPayor   map[string]int64 `json:"totals_by_payor"`
	TotalsByBranch  map[string]int64 `json:"totals_by_branch"`
	PaymentStatuses []PaymentStatus  `json:"payment_statuses"`
}

type PaymentStatus struct {
	ID                      string `json:"id"`
	Source                  string `json:"source"`
	Destination             string `json:"destination"`
	EstimatedCompletionDate string `json:"estimated_completion_date"`
	Status                  string `json:"status"`
	Amount                  int64  `json:"amount"`
}

func paymentStatusFromResponse(response processor.PaymentResponse) PaymentStatus {
	return PaymentStatus{
		ID:                      response.ID,
		Source:                  response.Source,
		Destination:             response.Destination,
		EstimatedCompletionDate: response.EstimatedCompletionDate,
		Status:                  response.Status,
		Amount:                  response.Amount,
	}
}

// buildReport folds the upload's transactions into per-payor and per-branch
// totals. Unlike ingestion, which skips bad blocks, a transaction referencing
// an employee that cannot be found fails the whole report.
func (h *PayrollService) buildReport(ctx context.Context, uploadID int64) (*ReportResponse, error) {
	report := &ReportResponse{
		UploadID:        uploadID,
		TotalsByPayor:   map[string]int64{},
		TotalsByBranch:  map[string]int64{},
		PaymentStatuses: []PaymentStatus{},
	}

	// The processor has no indexed lookup by description; list and filter.
	payments, err := h.payments.ListPayments(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list processor payments: %w", err)
	}

	description := strconv.FormatInt(uploadID, 10)
	for _, payment := range payments {
		if payment.Description == description {
			report.PaymentStatuses = append(report.PaymentStatuses, paymentStatusFromResponse(payment))
		}
	}

	upload, err := h.store.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	report.Processing = upload.Status != models.UploadStatusFinished

	transactions, err := h.store.ListTransactionsByUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(transactions) == 0 {
		return report, nil
	}

	employeeIDs := make([]string, 0, len(transactions))
	for _, transaction := range transactions {
		employeeIDs = append(employeeIDs, transaction.EmployeeID)
	}

	employees, err := h.store.FindEmployeesByProcessorIDs(ctx, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}
	employeesByID := make(map[string]models.Employee, len(employees))
	for _, employee := range employees {
		employeesByID[employee.ProcessorID] = employee
	}

	for _, transaction := range transactions {
		report.TotalsByPayor[transaction.PayorID] += transaction.Amount

		employee, ok := employeesByID[transaction.EmployeeID]
		if !ok {
			return nil, fmt.Errorf("transaction references unknown employee %s", transaction.EmployeeID)
		}
		report.TotalsByBranch[employee.Branch] += transaction.Amount
	}

	return report, nil
}
