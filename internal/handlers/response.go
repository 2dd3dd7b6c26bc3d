package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/middleware"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/limistah/conciliation-service/internal/utils"
)

var errNotAuthenticated = errors.New("user ID not found in context")

// statusFor maps use case errors to HTTP status codes
func statusFor(err error) int {
	var validationErr *utils.ValidationError
	switch {
	case errors.Is(err, errNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, usecases.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecases.ErrAlreadyLinked),
		errors.Is(err, usecases.ErrReconciliationInProgress),
		errors.Is(err, usecases.ErrDuplicateNSU),
		errors.Is(err, usecases.ErrDivergenceResolved),
		errors.Is(err, usecases.ErrUserExists),
		errors.Is(err, usecases.ErrTerminalExists):
		return http.StatusConflict
	case errors.As(err, &validationErr),
		errors.Is(err, usecases.ErrInvalidResolution),
		errors.Is(err, usecases.ErrTerminalMismatch),
		errors.Is(err, usecases.ErrInactiveTerminal):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrUnlinkNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, dto.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Success: false,
		Message: "Invalid request data",
		Error:   err.Error(),
	})
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", param)
	}
	return uint(id), nil
}

func parsePeriodParam(c *gin.Context) (models.Period, error) {
	return models.ParsePeriod(c.Param("period"))
}

// parsePeriodQuery reads ?period=YYYY-MM, defaulting to the current month.
func parsePeriodQuery(c *gin.Context) (models.Period, error) {
	raw := c.Query("period")
	if raw == "" {
		return models.CurrentPeriod(), nil
	}
	return models.ParsePeriod(raw)
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(utils.DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	_, pageSize = utils.Paginate(page, pageSize)
	return page, pageSize
}

func operatorID(c *gin.Context) (uint, error) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return 0, errNotAuthenticated
	}
	return id, nil
}

func parseRecordStatus(raw string) (models.RecordStatus, error) {
	status := models.RecordStatus(raw)
	switch status {
	case "", models.RecordStatusPending, models.RecordStatusReconciled:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q: expected PENDING or RECONCILED", raw)
}

func parseDivergenceStatus(raw string) (models.DivergenceStatus, error) {
	status := models.DivergenceStatus(raw)
	switch status {
	case "", models.DivergenceStatusPending, models.DivergenceStatusResolved:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q: expected PENDING or RESOLVED", raw)
}
