package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/report"
	"github.com/limistah/conciliation-service/internal/usecases"
)

type ReconciliationHandler struct {
	reconciliationUseCase usecases.ReconciliationUseCase
	defaults              matching.Tolerance
}

// NewReconciliationHandler takes the configured tolerances used to fill
// partial overrides in matching requests.
func NewReconciliationHandler(reconciliationUseCase usecases.ReconciliationUseCase, defaults matching.Tolerance) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationUseCase: reconciliationUseCase,
		defaults:              defaults,
	}
}

type matchingRun func(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*usecases.RunResult, error)

// Reconcile godoc
//
//	@Summary		Reconcile a terminal period
//	@Description	Recompute totals, difference and rate for the period and flag pending records without a divergence
//	@Tags			reconciliations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	path		string	true	"Period YYYY-MM"
//	@Success		200		{object}	dto.APIResponse{data=dto.RunResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period} [post]
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	terminalID, period, ok := terminalPeriod(c)
	if !ok {
		return
	}
	operator, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	result, err := h.reconciliationUseCase.Reconcile(c.Request.Context(), terminalID, period, operator)
	if err != nil {
		respondError(c, err, "Failed to reconcile terminal")
		return
	}

	respondOK(c, http.StatusOK, "Reconciliation completed", dto.ToRunResponse(result))
}

// GetReconciliation godoc
//
//	@Summary		Get a period summary
//	@Tags			reconciliations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	path		string	true	"Period YYYY-MM"
//	@Success		200		{object}	dto.APIResponse{data=dto.ReconciliationResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period} [get]
func (h *ReconciliationHandler) GetReconciliation(c *gin.Context) {
	terminalID, period, ok := terminalPeriod(c)
	if !ok {
		return
	}

	summary, err := h.reconciliationUseCase.GetReconciliation(c.Request.Context(), terminalID, period)
	if err != nil {
		respondError(c, err, "Failed to get reconciliation")
		return
	}

	respondOK(c, http.StatusOK, "Reconciliation retrieved successfully", dto.ToReconciliationResponse(summary))
}

// ListReconciliations godoc
//
//	@Summary		List period summaries of a terminal
//	@Tags			reconciliations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int	true	"Terminal ID"
//	@Param			page		query		int	false	"Page number"
//	@Param			page_size	query		int	false	"Page size"
//	@Success		200			{object}	dto.APIResponse{data=dto.ListResponse{items=[]dto.ReconciliationResponse}}
//	@Failure		404			{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations [get]
func (h *ReconciliationHandler) ListReconciliations(c *gin.Context) {
	terminalID, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	page, pageSize := parsePagination(c)

	items, err := h.reconciliationUseCase.ListReconciliations(c.Request.Context(), terminalID, page, pageSize)
	if err != nil {
		respondError(c, err, "Failed to list reconciliations")
		return
	}

	respondOK(c, http.StatusOK, "Reconciliations retrieved successfully", dto.ListResponse{
		Items:      dto.ToReconciliationResponses(items),
		Pagination: dto.PaginationMeta{Page: page, PageSize: pageSize},
	})
}

// RunAutomaticMatching godoc
//
//	@Summary		Run automatic matching
//	@Description	Match pending sales and receipts by NSU reference and by amount and date tolerance
//	@Tags			reconciliations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int						true	"Terminal ID"
//	@Param			period		path		string					true	"Period YYYY-MM"
//	@Param			tolerances	body		dto.MatchingRequest		false	"Tolerance overrides"
//	@Success		200			{object}	dto.APIResponse{data=dto.RunResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		404			{object}	dto.ErrorResponse
//	@Failure		409			{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period}/matching [post]
func (h *ReconciliationHandler) RunAutomaticMatching(c *gin.Context) {
	h.runMatching(c, h.reconciliationUseCase.RunAutomaticMatching, "Automatic matching completed")
}

// RunGroupedMatching godoc
//
//	@Summary		Run grouped matching
//	@Description	Match one receipt against the summed sales of a single day
//	@Tags			reconciliations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int						true	"Terminal ID"
//	@Param			period		path		string					true	"Period YYYY-MM"
//	@Param			tolerances	body		dto.MatchingRequest		false	"Tolerance overrides"
//	@Success		200			{object}	dto.APIResponse{data=dto.RunResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		404			{object}	dto.ErrorResponse
//	@Failure		409			{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period}/matching/grouped [post]
func (h *ReconciliationHandler) RunGroupedMatching(c *gin.Context) {
	h.runMatching(c, h.reconciliationUseCase.RunGroupedMatching, "Grouped matching completed")
}

func (h *ReconciliationHandler) runMatching(c *gin.Context, run matchingRun, message string) {
	terminalID, period, ok := terminalPeriod(c)
	if !ok {
		return
	}

	// an empty body keeps the configured tolerances
	var req dto.MatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, err)
		return
	}

	operator, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	result, err := run(c.Request.Context(), terminalID, period, h.override(req), operator)
	if err != nil {
		respondError(c, err, "Matching failed")
		return
	}

	respondOK(c, http.StatusOK, message, dto.ToRunResponse(result))
}

// override returns nil when the request sets no tolerance.
func (h *ReconciliationHandler) override(req dto.MatchingRequest) *matching.Tolerance {
	if req.AmountTolerance == nil && req.DayTolerance == nil {
		return nil
	}
	tol := h.defaults
	if req.AmountTolerance != nil {
		tol.Amount = *req.AmountTolerance
	}
	if req.DayTolerance != nil {
		tol.Days = *req.DayTolerance
	}
	return &tol
}

// GetDivergences godoc
//
//	@Summary		List divergences of a period
//	@Tags			divergences
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	path		string	true	"Period YYYY-MM"
//	@Param			status	query		string	false	"PENDING or RESOLVED"
//	@Success		200		{object}	dto.APIResponse{data=[]dto.DivergenceResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period}/divergences [get]
func (h *ReconciliationHandler) GetDivergences(c *gin.Context) {
	terminalID, period, ok := terminalPeriod(c)
	if !ok {
		return
	}
	status, err := parseDivergenceStatus(c.Query("status"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	divergences, err := h.reconciliationUseCase.GetDivergences(c.Request.Context(), terminalID, period, status)
	if err != nil {
		respondError(c, err, "Failed to list divergences")
		return
	}

	respondOK(c, http.StatusOK, "Divergences retrieved successfully", dto.ToDivergenceResponses(divergences))
}

// ExportReport godoc
//
//	@Summary		Export a period report
//	@Description	Download the summary and divergences as an XLSX workbook
//	@Tags			reconciliations
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	path		string	true	"Period YYYY-MM"
//	@Success		200		{file}		file
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/reconciliations/{period}/export [get]
func (h *ReconciliationHandler) ExportReport(c *gin.Context) {
	terminalID, period, ok := terminalPeriod(c)
	if !ok {
		return
	}

	buf, err := h.reconciliationUseCase.ExportReport(c.Request.Context(), terminalID, period)
	if err != nil {
		respondError(c, err, "Failed to export report")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(terminalID, period.String())))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

// LinkManually godoc
//
//	@Summary		Link a sale and a receipt manually
//	@Description	Reconcile the pair regardless of tolerances. Repeating the same link changes nothing.
//	@Tags			reconciliations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			link	body		dto.ManualLinkRequest	true	"Sale and receipt"
//	@Success		200		{object}	dto.APIResponse{data=dto.RunResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Router			/reconciliations/links [post]
func (h *ReconciliationHandler) LinkManually(c *gin.Context) {
	var req dto.ManualLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	operator, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	result, err := h.reconciliationUseCase.LinkManually(c.Request.Context(), req.SaleID, req.ReceiptID, operator)
	if err != nil {
		respondError(c, err, "Failed to link records")
		return
	}

	respondOK(c, http.StatusOK, "Records linked successfully", dto.ToRunResponse(result))
}

// Unlink godoc
//
//	@Summary		Unlink a sale
//	@Description	Not supported: reconciled records cannot go back to pending
//	@Tags			reconciliations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			sale_id	path		int	true	"Sale ID"
//	@Failure		501		{object}	dto.ErrorResponse
//	@Router			/reconciliations/links/{sale_id} [delete]
func (h *ReconciliationHandler) Unlink(c *gin.Context) {
	saleID, err := parseID(c, "sale_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	operator, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	if err := h.reconciliationUseCase.Unlink(c.Request.Context(), saleID, operator); err != nil {
		respondError(c, err, "Failed to unlink sale")
		return
	}

	respondOK(c, http.StatusOK, "Sale unlinked successfully", nil)
}

// ResolveDivergence godoc
//
//	@Summary		Resolve a divergence
//	@Description	Close a divergence with a justification or a manual adjustment. Totals do not change.
//	@Tags			divergences
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int								true	"Divergence ID"
//	@Param			resolution	body		dto.ResolveDivergenceRequest	true	"Resolution"
//	@Success		200			{object}	dto.APIResponse{data=dto.DivergenceResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		404			{object}	dto.ErrorResponse
//	@Failure		409			{object}	dto.ErrorResponse
//	@Router			/divergences/{id}/resolve [post]
func (h *ReconciliationHandler) ResolveDivergence(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req dto.ResolveDivergenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	operator, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	divergence, err := h.reconciliationUseCase.ResolveDivergence(c.Request.Context(), id, models.ResolutionKind(req.Kind), req.Reason, operator)
	if err != nil {
		respondError(c, err, "Failed to resolve divergence")
		return
	}

	respondOK(c, http.StatusOK, "Divergence resolved successfully", dto.ToDivergenceResponse(divergence))
}

func terminalPeriod(c *gin.Context) (uint, models.Period, bool) {
	terminalID, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return 0, models.Period{}, false
	}
	period, err := parsePeriodParam(c)
	if err != nil {
		respondBadRequest(c, err)
		return 0, models.Period{}, false
	}
	return terminalID, period, true
}
