package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
)

type TerminalHandler struct {
	terminalUseCase usecases.TerminalUseCase
}

func NewTerminalHandler(terminalUseCase usecases.TerminalUseCase) *TerminalHandler {
	return &TerminalHandler{terminalUseCase: terminalUseCase}
}

// CreateTerminal godoc
//
//	@Summary		Register a terminal
//	@Description	Register a card terminal (maquininha) for reconciliation
//	@Tags			terminals
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			terminal	body		dto.CreateTerminalRequest	true	"Terminal data"
//	@Success		201			{object}	dto.APIResponse{data=dto.TerminalResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		409			{object}	dto.ErrorResponse
//	@Router			/terminals [post]
func (h *TerminalHandler) CreateTerminal(c *gin.Context) {
	var req dto.CreateTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	terminal, err := h.terminalUseCase.CreateTerminal(c.Request.Context(), &models.Terminal{
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Acquirer:     req.Acquirer,
		BankAccount:  req.BankAccount,
	})
	if err != nil {
		respondError(c, err, "Failed to create terminal")
		return
	}

	respondOK(c, http.StatusCreated, "Terminal created successfully", dto.ToTerminalResponse(terminal))
}

// ListTerminals godoc
//
//	@Summary		List terminals
//	@Tags			terminals
//	@Produce		json
//	@Security		BearerAuth
//	@Param			active		query		bool	false	"Only active terminals"
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	dto.APIResponse{data=dto.ListResponse{items=[]dto.TerminalResponse}}
//	@Router			/terminals [get]
func (h *TerminalHandler) ListTerminals(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	page, pageSize := parsePagination(c)

	terminals, err := h.terminalUseCase.ListTerminals(c.Request.Context(), activeOnly, page, pageSize)
	if err != nil {
		respondError(c, err, "Failed to list terminals")
		return
	}

	respondOK(c, http.StatusOK, "Terminals retrieved successfully", dto.ListResponse{
		Items:      dto.ToTerminalResponses(terminals),
		Pagination: dto.PaginationMeta{Page: page, PageSize: pageSize},
	})
}

// GetTerminal godoc
//
//	@Summary		Get a terminal
//	@Tags			terminals
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Terminal ID"
//	@Success		200	{object}	dto.APIResponse{data=dto.TerminalResponse}
//	@Failure		404	{object}	dto.ErrorResponse
//	@Router			/terminals/{id} [get]
func (h *TerminalHandler) GetTerminal(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	terminal, err := h.terminalUseCase.GetTerminal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Terminal not found")
		return
	}

	respondOK(c, http.StatusOK, "Terminal retrieved successfully", dto.ToTerminalResponse(terminal))
}

// DeactivateTerminal godoc
//
//	@Summary		Deactivate a terminal
//	@Description	Keep the terminal history but exclude it from matching runs
//	@Tags			terminals
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Terminal ID"
//	@Success		200	{object}	dto.APIResponse{data=dto.TerminalResponse}
//	@Failure		404	{object}	dto.ErrorResponse
//	@Router			/terminals/{id} [delete]
func (h *TerminalHandler) DeactivateTerminal(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	terminal, err := h.terminalUseCase.DeactivateTerminal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to deactivate terminal")
		return
	}

	respondOK(c, http.StatusOK, "Terminal deactivated successfully", dto.ToTerminalResponse(terminal))
}

// RegisterSales godoc
//
//	@Summary		Register terminal sales
//	@Description	Register a batch of sales captured by the terminal. NSUs must be unique per terminal.
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int							true	"Terminal ID"
//	@Param			sales	body		dto.RegisterSalesRequest	true	"Sales batch"
//	@Success		201		{object}	dto.APIResponse{data=[]dto.SaleResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/sales [post]
func (h *TerminalHandler) RegisterSales(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req dto.RegisterSalesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	sales := make([]models.TerminalSale, 0, len(req.Sales))
	for _, in := range req.Sales {
		sales = append(sales, in.ToSale())
	}

	created, err := h.terminalUseCase.RegisterSales(c.Request.Context(), id, sales)
	if err != nil {
		respondError(c, err, "Failed to register sales")
		return
	}

	respondOK(c, http.StatusCreated, "Sales registered successfully", dto.ToSaleResponses(created))
}

// ListSales godoc
//
//	@Summary		List terminal sales
//	@Tags			records
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	query		string	false	"Period YYYY-MM, defaults to the current month"
//	@Param			status	query		string	false	"PENDING or RECONCILED"
//	@Success		200		{object}	dto.APIResponse{data=[]dto.SaleResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/sales [get]
func (h *TerminalHandler) ListSales(c *gin.Context) {
	id, period, status, ok := h.recordQuery(c)
	if !ok {
		return
	}

	sales, err := h.terminalUseCase.ListSales(c.Request.Context(), id, period, status)
	if err != nil {
		respondError(c, err, "Failed to list sales")
		return
	}

	respondOK(c, http.StatusOK, "Sales retrieved successfully", dto.ToSaleResponses(sales))
}

// RegisterReceipts godoc
//
//	@Summary		Register bank receipts
//	@Description	Register a batch of bank statement credits for the terminal
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int							true	"Terminal ID"
//	@Param			receipts	body		dto.RegisterReceiptsRequest	true	"Receipts batch"
//	@Success		201			{object}	dto.APIResponse{data=[]dto.ReceiptResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		404			{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/receipts [post]
func (h *TerminalHandler) RegisterReceipts(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req dto.RegisterReceiptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	receipts := make([]models.BankReceipt, 0, len(req.Receipts))
	for _, in := range req.Receipts {
		receipts = append(receipts, in.ToReceipt())
	}

	created, err := h.terminalUseCase.RegisterReceipts(c.Request.Context(), id, receipts)
	if err != nil {
		respondError(c, err, "Failed to register receipts")
		return
	}

	respondOK(c, http.StatusCreated, "Receipts registered successfully", dto.ToReceiptResponses(created))
}

// ListReceipts godoc
//
//	@Summary		List bank receipts
//	@Tags			records
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Terminal ID"
//	@Param			period	query		string	false	"Period YYYY-MM, defaults to the current month"
//	@Param			status	query		string	false	"PENDING or RECONCILED"
//	@Success		200		{object}	dto.APIResponse{data=[]dto.ReceiptResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		404		{object}	dto.ErrorResponse
//	@Router			/terminals/{id}/receipts [get]
func (h *TerminalHandler) ListReceipts(c *gin.Context) {
	id, period, status, ok := h.recordQuery(c)
	if !ok {
		return
	}

	receipts, err := h.terminalUseCase.ListReceipts(c.Request.Context(), id, period, status)
	if err != nil {
		respondError(c, err, "Failed to list receipts")
		return
	}

	respondOK(c, http.StatusOK, "Receipts retrieved successfully", dto.ToReceiptResponses(receipts))
}

// recordQuery parses the terminal id, period and status shared by the record listings.
func (h *TerminalHandler) recordQuery(c *gin.Context) (uint, models.Period, models.RecordStatus, bool) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, err)
		return 0, models.Period{}, "", false
	}
	period, err := parsePeriodQuery(c)
	if err != nil {
		respondBadRequest(c, err)
		return 0, models.Period{}, "", false
	}
	status, err := parseRecordStatus(c.Query("status"))
	if err != nil {
		respondBadRequest(c, err)
		return 0, models.Period{}, "", false
	}
	return id, period, status, true
}
