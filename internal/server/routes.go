package server

import (
	"net/http"
)

func SetupRoutes(payrollService *PayrollService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transactions", payrollService.UploadDocuments)
	mux.HandleFunc("GET /transactions", payrollService.GetTransactions)
	mux.HandleFunc("GET /reports", payrollService.GetReport)
	mux.HandleFunc("GET /uploads", payrollService.GetUploads)

	return mux
}
