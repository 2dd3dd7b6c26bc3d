package database

import (
	"errors"
	"fmt"

	"github.com/limistah/conciliation-service/internal/config"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryDSN = ":memory:"

// Initialize connects to the configured database, runs migrations and
// makes sure the system operator exists.
func Initialize(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("driver", cfg.Database.Driver).Info("Successfully connected to database")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := bootstrapSystemAccount(db, log); err != nil {
		return nil, fmt.Errorf("failed to bootstrap system account: %w", err)
	}

	if err := bootstrapAdmin(db, cfg.Admin, log); err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin operator: %w", err)
	}

	log.Info("Database connected and migrated successfully")
	return db, nil
}

// Migrate creates or updates the reconciliation schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Terminal{},
		&models.TerminalSale{},
		&models.BankReceipt{},
		&models.Divergence{},
		&models.Reconciliation{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func open(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default
	if cfg.App.Environment == "production" {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger,
	}

	switch cfg.Database.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
		)
		db, err := gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return db, nil

	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Database.Path), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
		}
		// every connection to :memory: gets its own empty database
		if cfg.Database.Path == memoryDSN {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("failed to get database instance: %w", err)
			}
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// OpenMemory returns a migrated in-memory SQLite database
func OpenMemory() (*gorm.DB, error) {
	cfg := &config.Config{
		App:      config.AppConfig{Environment: "production"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: memoryDSN},
	}
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// bootstrapSystemAccount creates the operator scheduled runs are attributed to
func bootstrapSystemAccount(db *gorm.DB, log logrus.FieldLogger) error {
	var existingUser models.User
	err := db.Where("email = ? AND is_system = ?", models.SystemAccountEmail, true).First(&existingUser).Error
	if err == nil {
		log.WithField("user_id", existingUser.ID).Info("System account already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for existing system account: %w", err)
	}

	systemUser := models.CreateSystemUser()
	if err := systemUser.HashPassword(systemUser.Password); err != nil {
		return fmt.Errorf("failed to hash system account password: %w", err)
	}
	if err := db.Create(systemUser).Error; err != nil {
		return fmt.Errorf("failed to create system user: %w", err)
	}

	log.WithField("user_id", systemUser.ID).Info("System account created")
	return nil
}

// bootstrapAdmin makes sure the configured operator exists with the ADMIN
// role. An existing operator is promoted and keeps its password.
func bootstrapAdmin(db *gorm.DB, cfg config.AdminConfig, log logrus.FieldLogger) error {
	email := utils.NormalizeEmail(cfg.Email)
	if email == "" {
		return nil
	}
	if email == models.SystemAccountEmail {
		return errors.New("admin email is reserved for the system account")
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.IsAdmin() {
			return nil
		}
		if err := db.Model(&existing).Update("role", models.UserRoleAdmin).Error; err != nil {
			return fmt.Errorf("failed to promote operator: %w", err)
		}
		log.WithField("user_id", existing.ID).Info("Operator promoted to admin")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}

	if len(cfg.Password) < 6 {
		return errors.New("ADMIN_PASSWORD must have at least 6 characters")
	}
	admin := models.NewAdminUser(cfg.Name, email)
	if err := admin.HashPassword(cfg.Password); err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	log.WithField("user_id", admin.ID).Info("Admin operator created")
	return nil
}
