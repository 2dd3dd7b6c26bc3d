package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/limistah/conciliation-service/internal/auth"
	"github.com/limistah/conciliation-service/internal/dto"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
)

type AuthHandler struct {
	userUseCase usecases.UserUseCase
	jwtService  *auth.JWTService
}

func NewAuthHandler(userUseCase usecases.UserUseCase, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		userUseCase: userUseCase,
		jwtService:  jwtService,
	}
}

// Register godoc
//
//	@Summary		Register a new operator
//	@Description	Register a back-office operator with email and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			user	body		dto.CreateUserRequest	true	"Operator registration data"
//	@Success		201		{object}	dto.APIResponse{data=dto.UserResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		409		{object}	dto.ErrorResponse
//	@Failure		500		{object}	dto.ErrorResponse
//	@Router			/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user := &models.User{
		Name:  req.Name,
		Email: req.Email,
		Role:  models.UserRoleOperator,
	}

	if err := user.HashPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Success: false,
			Message: "Failed to process password",
			Error:   err.Error(),
		})
		return
	}

	createdUser, err := h.userUseCase.CreateUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	respondOK(c, http.StatusCreated, "User registered successfully", dto.ToUserResponse(createdUser))
}

// Login godoc
//
//	@Summary		Login operator
//	@Description	Authenticate an operator and return a JWT token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		dto.LoginRequest	true	"Operator login credentials"
//	@Success		200			{object}	dto.APIResponse{data=dto.LoginResponse}
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		401			{object}	dto.ErrorResponse
//	@Failure		500			{object}	dto.ErrorResponse
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := h.userUseCase.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil || user.IsSystemAccount() || user.CheckPassword(req.Password) != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Success: false,
			Message: "Invalid credentials",
			Error:   "email or password is incorrect",
		})
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Success: false,
			Message: "Failed to generate token",
			Error:   err.Error(),
		})
		return
	}

	respondOK(c, http.StatusOK, "Login successful", dto.LoginResponse{
		User:  dto.ToUserResponse(user),
		Token: token,
	})
}

// ChangePassword godoc
//
//	@Summary		Change operator password
//	@Description	Change the password for the authenticated operator
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			password	body		dto.ChangePasswordRequest	true	"Password change data"
//	@Success		200			{object}	dto.APIResponse
//	@Failure		400			{object}	dto.ErrorResponse
//	@Failure		401			{object}	dto.ErrorResponse
//	@Failure		500			{object}	dto.ErrorResponse
//	@Router			/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	userID, err := operatorID(c)
	if err != nil {
		respondError(c, err, "User not authenticated")
		return
	}

	user, err := h.userUseCase.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to get user")
		return
	}

	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Success: false,
			Message: "Current password is incorrect",
			Error:   "invalid current password",
		})
		return
	}

	if err := user.HashPassword(req.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Success: false,
			Message: "Failed to process new password",
			Error:   err.Error(),
		})
		return
	}

	if _, err := h.userUseCase.UpdateUser(c.Request.Context(), userID, user); err != nil {
		respondError(c, err, "Failed to update password")
		return
	}

	respondOK(c, http.StatusOK, "Password changed successfully", nil)
}

// RefreshToken godoc
//
//	@Summary		Refresh JWT token
//	@Description	Generate a new JWT token using the current valid token
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	dto.APIResponse{data=map[string]string}
//	@Failure		401	{object}	dto.ErrorResponse
//	@Router			/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Success: false,
			Message: "Authorization header is required",
			Error:   "missing authorization header",
		})
		return
	}

	newToken, err := h.jwtService.RefreshToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Success: false,
			Message: "Failed to refresh token",
			Error:   err.Error(),
		})
		return
	}

	respondOK(c, http.StatusOK, "Token refreshed successfully", map[string]string{"token": newToken})
}
