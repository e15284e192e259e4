package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

// ===== SERVICE MANAGER CONFIGURATION =====

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	ExamService      ServiceConfig `json:"exam_service"`
	QuestionService  ServiceConfig `json:"question_service"`
	AttemptService   ServiceConfig `json:"attempt_service"`
	IntegrityService ServiceConfig `json:"integrity_service"`
	ResultsService   ServiceConfig `json:"results_service"`
	BankService      ServiceConfig `json:"bank_service"`
}

// ServiceConfig holds common configuration for services
type ServiceConfig struct {
	Enabled         bool            `json:"enabled"`
	Timeout         time.Duration   `json:"timeout"`
	RetryAttempts   int             `json:"retry_attempts"`
	ValidationLevel ValidationLevel `json:"validation_level"`
	RateLimit       *RateLimit      `json:"rate_limit,omitempty"`
}

// ValidationLevel defines how strict validation should be
type ValidationLevel string

const (
	ValidationLevelStrict   ValidationLevel = "strict"
	ValidationLevelModerate ValidationLevel = "moderate"
	ValidationLevelLenient  ValidationLevel = "lenient"
)

// RateLimit defines rate limiting configuration
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstSize         int `json:"burst_size"`
}

func DefaultServiceManagerConfig() *ServiceManagerConfig {
	defaultConfig := ServiceConfig{
		Enabled:         true,
		Timeout:         30 * time.Second,
		RetryAttempts:   3,
		ValidationLevel: ValidationLevelStrict,
	}

	return &ServiceManagerConfig{
		ExamService:      defaultConfig,
		QuestionService:  defaultConfig,
		AttemptService:   defaultConfig,
		IntegrityService: defaultConfig,
		ResultsService:   defaultConfig,
		BankService:      defaultConfig,
	}
}

// ===== SERVICE MANAGER IMPLEMENTATION =====

type serviceManager struct {
	config    *ServiceManagerConfig
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.Publisher

	mu          sync.RWMutex
	initialized bool

	examService      ExamService
	questionService  QuestionService
	attemptService   AttemptService
	integrityService IntegrityService
	resultsService   ResultsService
	bankService      QuestionBankService
}

func NewServiceManager(config *ServiceManagerConfig, db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.Publisher) ServiceManager {
	if config == nil {
		config = DefaultServiceManagerConfig()
	}

	return &serviceManager{
		config:    config,
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.Publisher) ServiceManager {
	return NewServiceManager(DefaultServiceManagerConfig(), db, repo, logger, v, publisher)
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if sm.config.ExamService.Enabled {
		sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	}
	if sm.config.QuestionService.Enabled {
		sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator)
	}
	if sm.config.AttemptService.Enabled {
		sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	}
	if sm.config.IntegrityService.Enabled {
		sm.integrityService = NewIntegrityService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	}
	if sm.config.ResultsService.Enabled {
		sm.resultsService = NewResultsService(sm.repo, sm.db, sm.logger)
	}
	if sm.config.BankService.Enabled {
		sm.bankService = NewQuestionBankService(sm.repo, sm.db, sm.logger, sm.validator)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized")

	return nil
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.questionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Integrity() IntegrityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.integrityService
}

func (sm *serviceManager) Results() ResultsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.resultsService
}

func (sm *serviceManager) Bank() QuestionBankService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.bankService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Warn("Failed to close event publisher", "error", err)
		}
	}

	sm.initialized = false
	return nil
}

// ===== FACTORY FUNCTIONS =====

// CreateProductionServiceManager creates a service manager configured for production
func CreateProductionServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.Publisher) ServiceManager {
	config := DefaultServiceManagerConfig()

	config.AttemptService.Timeout = 60 * time.Second
	config.AttemptService.RateLimit = &RateLimit{
		RequestsPerMinute: 120,
		BurstSize:         20,
	}
	config.IntegrityService.RateLimit = &RateLimit{
		RequestsPerMinute: 300,
		BurstSize:         50,
	}

	return NewServiceManager(config, db, repo, logger, v, publisher)
}

// CreateDevelopmentServiceManager creates a service manager configured for development
func CreateDevelopmentServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.Publisher) ServiceManager {
	config := DefaultServiceManagerConfig()

	for _, serviceConfig := range []*ServiceConfig{
		&config.ExamService,
		&config.QuestionService,
		&config.AttemptService,
		&config.IntegrityService,
		&config.ResultsService,
		&config.BankService,
	} {
		serviceConfig.ValidationLevel = ValidationLevelLenient
		serviceConfig.Timeout = 5 * time.Minute
	}

	return NewServiceManager(config, db, repo, logger, v, publisher)
}
