package usecases

import (
	"errors"

	"github.com/limistah/conciliation-service/internal/repositories"
)

var (
	ErrNotFound                 = repositories.ErrNotFound
	ErrUserExists               = errors.New("user with this email already exists")
	ErrTerminalExists           = errors.New("terminal with this serial number already exists")
	ErrInactiveTerminal         = errors.New("terminal is not active")
	ErrDuplicateNSU             = errors.New("duplicate NSU for terminal")
	ErrAlreadyLinked            = errors.New("record is already linked to another counterpart")
	ErrTerminalMismatch         = errors.New("sale and receipt belong to different terminals")
	ErrReconciliationInProgress = errors.New("reconciliation already in progress for terminal and period")
	ErrDivergenceResolved       = errors.New("divergence is already resolved")
	ErrInvalidResolution        = errors.New("invalid resolution: kind must be JUSTIFICATION or MANUAL_ADJUSTMENT and reason is required")
	ErrUnlinkNotSupported       = errors.New("unlinking reconciled records is not supported")
)
