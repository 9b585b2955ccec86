package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmerrell/payrun/internal/models"
	"github.com/pmerrell/payrun/internal/processor"
)

// MockStore is a mock implementation of the database.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUpload(ctx context.Context, filename, checksum string, startedAt time.Time) (int64, error) {
	args := m.Called(ctx, filename, checksum, startedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SetUploadChecksum(ctx context.Context, id int64, checksum string) error {
	args := m.Called(ctx, id, checksum)
	return args.Error(0)
}

func (m *MockStore) FinishUpload(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	args := m.Called(ctx, id, status, finishedAt)
	return args.Error(0)
}

func (m *MockStore) GetUpload(ctx context.Context, id int64) (*models.Upload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Upload), args.Error(1)
}

func (m *MockStore) ListUploads(ctx context.Context) ([]models.Upload, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Upload), args.Error(1)
}

func (m *MockStore) HasUploadWithChecksum(ctx context.Context, checksum string) (bool, error) {
	args := m.Called(ctx, checksum)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FindEmployeesByEmployeeID(ctx context.Context, employeeID string) ([]models.Employee, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Employee), args.Error(1)
}

func (m *MockStore) FindEmployeesByProcessorIDs(ctx context.Context, processorIDs []string) ([]models.Employee, error) {
	args := m.Called(ctx, processorIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Employee), args.Error(1)
}

func (m *MockStore) InsertEmployee(ctx context.Context, employee *models.Employee) error {
	args := m.Called(ctx, employee)
	return args.Error(0)
}

func (m *MockStore) FindPayorsByPayorID(ctx context.Context, payorID string) ([]models.Payor, error) {
	args := m.Called(ctx, payorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payor), args.Error(1)
}

func (m *MockStore) FindPayeesByPayeeID(ctx context.Context, payeeID string) ([]models.Payee, error) {
	args := m.Called(ctx, payeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payee), args.Error(1)
}

func (m *MockStore) InsertPayee(ctx context.Context, payee *models.Payee) error {
	args := m.Called(ctx, payee)
	return args.Error(0)
}

func (m *MockStore) FindAddresses(ctx context.Context, address models.Address) ([]models.Address, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Address), args.Error(1)
}

func (m *MockStore) InsertAddress(ctx context.Context, address *models.Address) (int64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) InsertTransaction(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockStore) ListTransactionsByUpload(ctx context.Context, uploadID int64) ([]models.Transaction, error) {
	args := m.Called(ctx, uploadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

// stubPipeline answers Accept with canned uploads.
type stubPipeline struct {
	uploads []*models.Upload
	err     error
	calls   int
}

func (p *stubPipeline) Accept(ctx context.Context, filename string, r io.Reader) (*models.Upload, error) {
	io.Copy(io.Discard, r)
	if p.err != nil {
		return nil, p.err
	}
	upload := p.uploads[p.calls]
	p.calls++
	return upload, nil
}

// stubPayments answers ListPayments with a canned ledger.
type stubPayments struct {
	payments []processor.PaymentResponse
	err      error
}

func (p *stubPayments) ListPayments(ctx context.Context, filter map[string]string) ([]processor.PaymentResponse, error) {
	return p.payments, p.err
}

func newTestServer(store *MockStore, pipeline Pipeline, payments PaymentsLister) *httptest.Server {
	service := NewPayrollService(store, pipeline, payments, 1<<20, zerolog.Nop())
	return httptest.NewServer(SetupRoutes(service))
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadDocumentsAcceptsEachField(t *testing.T) {
	pipeline := &stubPipeline{uploads: []*models.Upload{
		{ID: 1, Filename: "a.xml", Status: models.UploadStatusInit},
		{ID: 2, Filename: "b.xml", Status: models.UploadStatusInit},
	}}
	server := newTestServer(new(MockStore), pipeline, &stubPayments{})
	defer server.Close()

	body, contentType := multipartBody(t, map[string]string{
		"a.xml": "<Payroll></Payroll>",
		"b.xml": "<Payroll></Payroll>",
	})

	res, err := http.Post(server.URL+"/transactions", contentType, body)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var uploads []models.Upload
	require.NoError(t, json.NewDecoder(res.Body).Decode(&uploads))
	assert.Len(t, uploads, 2)
	assert.Equal(t, 2, pipeline.calls)
}

func TestUploadDocumentsRejectsNonMultipart(t *testing.T) {
	server := newTestServer(new(MockStore), &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Post(server.URL+"/transactions", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUploadDocumentsPipelineFailure(t *testing.T) {
	pipeline := &stubPipeline{err: errors.New("queue unavailable")}
	server := newTestServer(new(MockStore), pipeline, &stubPayments{})
	defer server.Close()

	body, contentType := multipartBody(t, map[string]string{"a.xml": "data"})

	res, err := http.Post(server.URL+"/transactions", contentType, body)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestGetTransactions(t *testing.T) {
	store := new(MockStore)
	store.On("ListTransactionsByUpload", mock.Anything, int64(42)).
		Return([]models.Transaction{
			{ProcessorID: "pmt_1", UploadID: 42, Amount: 1250},
		}, nil)
	server := newTestServer(store, &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/transactions?upload_id=42")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var transactions []models.Transaction
	require.NoError(t, json.NewDecoder(res.Body).Decode(&transactions))
	require.Len(t, transactions, 1)
	assert.Equal(t, int64(1250), transactions[0].Amount)
}

func TestGetTransactionsRequiresUploadID(t *testing.T) {
	server := newTestServer(new(MockStore), &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/transactions")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(server.URL + "/transactions?upload_id=abc")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetUploads(t *testing.T) {
	store := new(MockStore)
	store.On("ListUploads", mock.Anything).Return([]models.Upload{
		{ID: 1, Filename: "a.xml", Status: models.UploadStatusFinished},
		{ID: 2, Filename: "b.xml", Status: models.UploadStatusInit},
	}, nil)
	server := newTestServer(store, &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/uploads")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var uploads []models.Upload
	require.NoError(t, json.NewDecoder(res.Body).Decode(&uploads))
	assert.Len(t, uploads, 2)
}

func TestGetReportFoldsTotals(t *testing.T) {
	store := new(MockStore)
	finishedAt := time.Now()
	store.On("GetUpload", mock.Anything, int64(9)).Return(&models.Upload{
		ID: 9, Status: models.UploadStatusFinished, FinishedAt: &finishedAt,
	}, nil)
	store.On("ListTransactionsByUpload", mock.Anything, int64(9)).Return([]models.Transaction{
		{ProcessorID: "pmt_1", EmployeeID: "ent_1", PayorID: "acc_p1", Amount: 1000, UploadID: 9},
		{ProcessorID: "pmt_2", EmployeeID: "ent_2", PayorID: "acc_p1", Amount: 500, UploadID: 9},
		{ProcessorID: "pmt_3", EmployeeID: "ent_1", PayorID: "acc_p2", Amount: 250, UploadID: 9},
	}, nil)
	store.On("FindEmployeesByProcessorIDs", mock.Anything, []string{"ent_1", "ent_2", "ent_1"}).
		Return([]models.Employee{
			{ProcessorID: "ent_1", Branch: "B1"},
			{ProcessorID: "ent_2", Branch: "B2"},
		}, nil)

	payments := &stubPayments{payments: []processor.PaymentResponse{
		{ID: "pmt_1", Description: "9", Status: "sent", Amount: 1000},
		{ID: "pmt_other", Description: "8", Status: "sent", Amount: 77},
		{ID: "pmt_2", Description: "9", Status: "pending", Amount: 500},
	}}

	server := newTestServer(store, &stubPipeline{}, payments)
	defer server.Close()

	res, err := http.Get(server.URL + "/reports?upload_id=9")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var report ReportResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&report))

	assert.Equal(t, int64(9), report.UploadID)
	assert.False(t, report.Processing)
	assert.Equal(t, int64(1500), report.TotalsByPayor["acc_p1"])
	assert.Equal(t, int64(250), report.TotalsByPayor["acc_p2"])
	assert.Equal(t, int64(1250), report.TotalsByBranch["B1"])
	assert.Equal(t, int64(500), report.TotalsByBranch["B2"])
	require.Len(t, report.PaymentStatuses, 2)
	assert.Equal(t, "pmt_1", report.PaymentStatuses[0].ID)
	assert.Equal(t, "pending", report.PaymentStatuses[1].Status)
}

func TestGetReportMarksUnfinishedUploadProcessing(t *testing.T) {
	store := new(MockStore)
	store.On("GetUpload", mock.Anything, int64(9)).Return(&models.Upload{
		ID: 9, Status: models.UploadStatusInit,
	}, nil)
	store.On("ListTransactionsByUpload", mock.Anything, int64(9)).Return([]models.Transaction{}, nil)

	server := newTestServer(store, &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/reports?upload_id=9")
	require.NoError(t, err)
	defer res.Body.Close()

	var report ReportResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&report))
	assert.True(t, report.Processing)
	assert.Empty(t, report.TotalsByPayor)
	assert.Empty(t, report.PaymentStatuses)
}

func TestGetReportUnknownUpload(t *testing.T) {
	store := new(MockStore)
	store.On("GetUpload", mock.Anything, int64(404)).
		Return(nil, fmt.Errorf("error querying upload 404: %w", sql.ErrNoRows))

	server := newTestServer(store, &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/reports?upload_id=404")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetReportFailsOnUnknownEmployee(t *testing.T) {
	store := new(MockStore)
	store.On("GetUpload", mock.Anything, int64(9)).Return(&models.Upload{
		ID: 9, Status: models.UploadStatusFinished,
	}, nil)
	store.On("ListTransactionsByUpload", mock.Anything, int64(9)).Return([]models.Transaction{
		{ProcessorID: "pmt_1", EmployeeID: "ent_ghost", PayorID: "acc_p1", Amount: 100, UploadID: 9},
	}, nil)
	store.On("FindEmployeesByProcessorIDs", mock.Anything, []string{"ent_ghost"}).
		Return([]models.Employee{}, nil)

	server := newTestServer(store, &stubPipeline{}, &stubPayments{})
	defer server.Close()

	res, err := http.Get(server.URL + "/reports?upload_id=9")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestGetReportProcessorFailure(t *testing.T) {
	server := newTestServer(new(MockStore), &stubPipeline{}, &stubPayments{err: errors.New("processor down")})
	defer server.Close()

	res, err := http.Get(server.URL + "/reports?upload_id=9")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
