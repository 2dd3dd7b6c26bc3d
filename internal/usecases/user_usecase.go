package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/limistah/conciliation-service/internal/utils"
)

type userUseCase struct {
	repos *repositories.Repositories
}

// NewUserUseCase creates a new operator use case
func NewUserUseCase(repos *repositories.Repositories) UserUseCase {
	return &userUseCase{repos: repos}
}

func (uc *userUseCase) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.Email = utils.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.UserRoleOperator
	}
	if err := utils.ValidateStruct(user); err != nil {
		return nil, err
	}

	existingUser, err := uc.repos.User.GetByEmail(ctx, user.Email)
	if err == nil && existingUser != nil {
		return nil, ErrUserExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	if err := uc.repos.User.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (uc *userUseCase) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return uc.repos.User.GetByID(ctx, id)
}

func (uc *userUseCase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return uc.repos.User.GetByEmail(ctx, utils.NormalizeEmail(email))
}

func (uc *userUseCase) UpdateUser(ctx context.Context, id uint, updatedUser *models.User) (*models.User, error) {
	user, err := uc.repos.User.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if updatedUser.Name != "" {
		user.Name = updatedUser.Name
	}
	// Email and role are not editable here. Password arrives already hashed.
	if updatedUser.Password != "" {
		user.Password = updatedUser.Password
	}

	if err := uc.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetSystemUser returns the operator scheduled runs are attributed to
func (uc *userUseCase) GetSystemUser(ctx context.Context) (*models.User, error) {
	user, err := uc.repos.User.GetByEmail(ctx, models.SystemAccountEmail)
	if err != nil {
		return nil, fmt.Errorf("system user not found: %w", err)
	}
	return user, nil
}
