package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/report"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOperatorID = uint(7)

var march2024 = models.Period{Year: 2024, Month: time.March}

func newReconciliationRouter(mockUC *MockReconciliationUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewReconciliationHandler(mockUC, matching.DefaultTolerance())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", testOperatorID) // Mock authenticated operator
		c.Next()
	})
	router.POST("/terminals/:id/reconciliations/:period", handler.Reconcile)
	router.GET("/terminals/:id/reconciliations", handler.ListReconciliations)
	router.GET("/terminals/:id/reconciliations/:period", handler.GetReconciliation)
	router.POST("/terminals/:id/reconciliations/:period/matching", handler.RunAutomaticMatching)
	router.POST("/terminals/:id/reconciliations/:period/matching/grouped", handler.RunGroupedMatching)
	router.GET("/terminals/:id/reconciliations/:period/divergences", handler.GetDivergences)
	router.GET("/terminals/:id/reconciliations/:period/export", handler.ExportReport)
	router.POST("/reconciliations/links", handler.LinkManually)
	router.DELETE("/reconciliations/links/:sale_id", handler.Unlink)
	router.POST("/divergences/:id/resolve", handler.ResolveDivergence)
	return router
}

func runResult() *usecases.RunResult {
	summary := models.NewPendingReconciliation(1, march2024)
	summary.TotalSales = decimal.RequireFromString("1234.50")
	summary.Status = models.ReconciliationStatusDivergent
	summary.PendingDivergences = 2
	return &usecases.RunResult{
		RunID:   "run-1",
		Summary: summary,
		Matches: []matching.Match{
			{SaleIDs: []uint{1}, ReceiptID: 10, Method: models.MatchMethodAutomatic},
			{SaleIDs: []uint{2, 3}, ReceiptID: 11, Method: models.MatchMethodGrouped},
		},
		NewDivergences: 2,
	}
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response dto.APIResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &response))
	assert.True(t, response.Success)
	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func toleranceIs(amount string, days int) interface{} {
	return mock.MatchedBy(func(tol *matching.Tolerance) bool {
		return tol != nil && tol.Days == days && tol.Amount.Equal(decimal.RequireFromString(amount))
	})
}

func TestReconciliationHandler_RunAutomaticMatching(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           string
		setupMock      func(*MockReconciliationUseCase)
		expectedStatus int
	}{
		{
			name: "defaults when no body",
			path: "/terminals/1/reconciliations/2024-03/matching",
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, (*matching.Tolerance)(nil), testOperatorID).
					Return(runResult(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "partial override keeps the default amount",
			path: "/terminals/1/reconciliations/2024-03/matching",
			body: `{"day_tolerance": 5}`,
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, toleranceIs("1", 5), testOperatorID).
					Return(runResult(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "full override",
			path: "/terminals/1/reconciliations/2024-03/matching",
			body: `{"amount_tolerance": "0.50", "day_tolerance": 0}`,
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, toleranceIs("0.50", 0), testOperatorID).
					Return(runResult(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "negative tolerance rejected by the use case",
			path: "/terminals/1/reconciliations/2024-03/matching",
			body: `{"amount_tolerance": "-1"}`,
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, mock.Anything, testOperatorID).
					Return(nil, utils.NewValidationError("tolerances must not be negative"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "day tolerance above the cap",
			path:           "/terminals/1/reconciliations/2024-03/matching",
			body:           `{"day_tolerance": 2000000000}`,
			setupMock:      func(mockUC *MockReconciliationUseCase) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative day tolerance",
			path:           "/terminals/1/reconciliations/2024-03/matching",
			body:           `{"day_tolerance": -1}`,
			setupMock:      func(mockUC *MockReconciliationUseCase) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			path:           "/terminals/1/reconciliations/2024-03/matching",
			body:           `{"day_tolerance":`,
			setupMock:      func(mockUC *MockReconciliationUseCase) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid period",
			path:           "/terminals/1/reconciliations/2024-13/matching",
			setupMock:      func(mockUC *MockReconciliationUseCase) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid terminal id",
			path:           "/terminals/abc/reconciliations/2024-03/matching",
			setupMock:      func(mockUC *MockReconciliationUseCase) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "run already in progress",
			path: "/terminals/1/reconciliations/2024-03/matching",
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, (*matching.Tolerance)(nil), testOperatorID).
					Return(nil, usecases.ErrReconciliationInProgress)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "terminal not found",
			path: "/terminals/9/reconciliations/2024-03/matching",
			setupMock: func(mockUC *MockReconciliationUseCase) {
				mockUC.On("RunAutomaticMatching", mock.Anything, uint(9), march2024, (*matching.Tolerance)(nil), testOperatorID).
					Return(nil, fmt.Errorf("terminal 9: %w", usecases.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUC := new(MockReconciliationUseCase)
			tt.setupMock(mockUC)

			resp := serve(newReconciliationRouter(mockUC), http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, resp.Code)
			if tt.expectedStatus == http.StatusOK {
				data := decodeData(t, resp)
				assert.Equal(t, "run-1", data["run_id"])
				assert.Equal(t, float64(3), data["matched_sales"])
				assert.Len(t, data["matches"], 2)

				summary := data["summary"].(map[string]interface{})
				assert.Equal(t, "DIVERGENT", summary["status"])
				assert.Equal(t, "R$ 1.234,50", summary["total_sales_brl"])
			}
			mockUC.AssertExpectations(t)
		})
	}
}

func TestReconciliationHandler_RunMatchingChunkedBody(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	mockUC.On("RunAutomaticMatching", mock.Anything, uint(1), march2024, toleranceIs("1", 4), testOperatorID).
		Return(runResult(), nil)

	req := httptest.NewRequest(http.MethodPost, "/terminals/1/reconciliations/2024-03/matching",
		io.NopCloser(strings.NewReader(`{"day_tolerance": 4}`)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	resp := httptest.NewRecorder()
	newReconciliationRouter(mockUC).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	mockUC.AssertExpectations(t)
}

func TestReconciliationHandler_RunGroupedMatching(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	mockUC.On("RunGroupedMatching", mock.Anything, uint(1), march2024, (*matching.Tolerance)(nil), testOperatorID).
		Return(runResult(), nil)

	resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/terminals/1/reconciliations/2024-03/matching/grouped", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	mockUC.AssertExpectations(t)
}

func TestReconciliationHandler_Reconcile(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	result := runResult()
	result.Matches = nil
	mockUC.On("Reconcile", mock.Anything, uint(1), march2024, testOperatorID).Return(result, nil)

	resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/terminals/1/reconciliations/2024-03", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	data := decodeData(t, resp)
	assert.Empty(t, data["matches"])
	assert.Equal(t, float64(2), data["new_divergences"])
	mockUC.AssertExpectations(t)
}

func TestReconciliationHandler_GetAndListReconciliations(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	summary := models.NewPendingReconciliation(1, march2024)
	mockUC.On("GetReconciliation", mock.Anything, uint(1), march2024).Return(summary, nil)
	mockUC.On("ListReconciliations", mock.Anything, uint(1), 2, 5).Return([]models.Reconciliation{*summary}, nil)
	router := newReconciliationRouter(mockUC)

	resp := serve(router, http.MethodGet, "/terminals/1/reconciliations/2024-03", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "PENDING", decodeData(t, resp)["status"])

	resp = serve(router, http.MethodGet, "/terminals/1/reconciliations?page=2&page_size=5", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	data := decodeData(t, resp)
	assert.Len(t, data["items"], 1)
	assert.Equal(t, map[string]interface{}{"page": float64(2), "page_size": float64(5)}, data["pagination"])

	mockUC.AssertExpectations(t)
}

func TestReconciliationHandler_GetDivergences(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		mockUC := new(MockReconciliationUseCase)
		divergence := models.Divergence{
			ID:             3,
			TerminalID:     1,
			Period:         "2024-03",
			Kind:           models.DivergenceKindAmountMismatch,
			RecordType:     models.RecordTypeSale,
			RecordID:       1,
			ExpectedAmount: decimal.RequireFromString("100.00"),
			FoundAmount:    decimal.RequireFromString("95.00"),
			Status:         models.DivergenceStatusPending,
		}
		mockUC.On("GetDivergences", mock.Anything, uint(1), march2024, models.DivergenceStatusPending).
			Return([]models.Divergence{divergence}, nil)

		resp := serve(newReconciliationRouter(mockUC), http.MethodGet, "/terminals/1/reconciliations/2024-03/divergences?status=PENDING", "")

		require.Equal(t, http.StatusOK, resp.Code)
		var response struct {
			Data []dto.DivergenceResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "WARNING", response.Data[0].Severity)
		assert.True(t, response.Data[0].Difference.Equal(decimal.RequireFromString("-5")))
		mockUC.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		mockUC := new(MockReconciliationUseCase)
		resp := serve(newReconciliationRouter(mockUC), http.MethodGet, "/terminals/1/reconciliations/2024-03/divergences?status=OPEN", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		mockUC.AssertNotCalled(t, "GetDivergences")
	})
}

func TestReconciliationHandler_ExportReport(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	mockUC.On("ExportReport", mock.Anything, uint(1), march2024).Return(bytes.NewBufferString("xlsx-bytes"), nil)

	resp := serve(newReconciliationRouter(mockUC), http.MethodGet, "/terminals/1/reconciliations/2024-03/export", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, report.ContentType, resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), report.FileName(1, "2024-03"))
	assert.Equal(t, "xlsx-bytes", resp.Body.String())
}

func TestReconciliationHandler_LinkManually(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		callsUseCase   bool
		err            error
		expectedStatus int
	}{
		{name: "linked", body: `{"sale_id": 1, "receipt_id": 10}`, callsUseCase: true, expectedStatus: http.StatusOK},
		{name: "already linked", body: `{"sale_id": 1, "receipt_id": 10}`, callsUseCase: true, err: usecases.ErrAlreadyLinked, expectedStatus: http.StatusConflict},
		{name: "terminal mismatch", body: `{"sale_id": 1, "receipt_id": 10}`, callsUseCase: true, err: usecases.ErrTerminalMismatch, expectedStatus: http.StatusBadRequest},
		{name: "missing receipt", body: `{"sale_id": 1}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUC := new(MockReconciliationUseCase)
			if tt.callsUseCase {
				call := mockUC.On("LinkManually", mock.Anything, uint(1), uint(10), testOperatorID)
				if tt.err != nil {
					call.Return(nil, tt.err)
				} else {
					call.Return(runResult(), nil)
				}
			}

			resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/reconciliations/links", tt.body)

			assert.Equal(t, tt.expectedStatus, resp.Code)
			mockUC.AssertExpectations(t)
		})
	}
}

func TestReconciliationHandler_Unlink(t *testing.T) {
	mockUC := new(MockReconciliationUseCase)
	mockUC.On("Unlink", mock.Anything, uint(4), testOperatorID).Return(usecases.ErrUnlinkNotSupported)

	resp := serve(newReconciliationRouter(mockUC), http.MethodDelete, "/reconciliations/links/4", "")

	assert.Equal(t, http.StatusNotImplemented, resp.Code)
	mockUC.AssertExpectations(t)
}

func TestReconciliationHandler_ResolveDivergence(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		mockUC := new(MockReconciliationUseCase)
		resolved := &models.Divergence{ID: 3, Kind: models.DivergenceKindUnmatchedTransaction}
		resolved.Resolve(models.ResolutionKindJustification, "chargeback", testOperatorID, time.Now())
		mockUC.On("ResolveDivergence", mock.Anything, uint(3), models.ResolutionKindJustification, "chargeback", testOperatorID).
			Return(resolved, nil)

		resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/divergences/3/resolve", `{"kind":"JUSTIFICATION","reason":"chargeback"}`)

		assert.Equal(t, http.StatusOK, resp.Code)
		data := decodeData(t, resp)
		assert.Equal(t, "RESOLVED", data["status"])
		assert.Equal(t, "INFO", data["severity"])
		mockUC.AssertExpectations(t)
	})

	t.Run("already resolved", func(t *testing.T) {
		mockUC := new(MockReconciliationUseCase)
		mockUC.On("ResolveDivergence", mock.Anything, uint(3), models.ResolutionKindManualAdjustment, "fixed", testOperatorID).
			Return(nil, usecases.ErrDivergenceResolved)

		resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/divergences/3/resolve", `{"kind":"MANUAL_ADJUSTMENT","reason":"fixed"}`)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		mockUC := new(MockReconciliationUseCase)

		resp := serve(newReconciliationRouter(mockUC), http.MethodPost, "/divergences/3/resolve", `{"kind":"IGNORE","reason":"x"}`)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		mockUC.AssertNotCalled(t, "ResolveDivergence")
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("sale 1: %w", usecases.ErrNotFound), http.StatusNotFound},
		{usecases.ErrAlreadyLinked, http.StatusConflict},
		{fmt.Errorf("%w: %w", usecases.ErrReconciliationInProgress, errors.New("concurrent update")), http.StatusConflict},
		{usecases.ErrDuplicateNSU, http.StatusConflict},
		{usecases.ErrDivergenceResolved, http.StatusConflict},
		{usecases.ErrUserExists, http.StatusConflict},
		{usecases.ErrTerminalExists, http.StatusConflict},
		{utils.NewValidationError("amount must be greater than 0"), http.StatusBadRequest},
		{usecases.ErrInvalidResolution, http.StatusBadRequest},
		{usecases.ErrInactiveTerminal, http.StatusBadRequest},
		{usecases.ErrUnlinkNotSupported, http.StatusNotImplemented},
		{errNotAuthenticated, http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
