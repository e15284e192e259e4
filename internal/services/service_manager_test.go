package services

import (
	"context"
	"testing"

	"github.com/examstack/exam-service/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	repo := &mockRepository{}
	manager := NewDefaultServiceManager(nil, repo, discardLogger(), validator.New(), nil)

	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if manager.Exam() == nil || manager.Question() == nil || manager.Attempt() == nil ||
		manager.Integrity() == nil || manager.Results() == nil || manager.Bank() == nil {
		t.Error("Initialize() left a service unset")
	}

	if err := manager.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := manager.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServiceManager_PanicsBeforeInitialize(t *testing.T) {
	manager := NewDefaultServiceManager(nil, &mockRepository{}, discardLogger(), validator.New(), nil)

	defer func() {
		if recover() == nil {
			t.Error("Exam() did not panic before Initialize()")
		}
	}()
	manager.Exam()
}

func TestCreateProductionServiceManager(t *testing.T) {
	manager := CreateProductionServiceManager(nil, &mockRepository{}, discardLogger(), validator.New(), nil)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if manager.Attempt() == nil {
		t.Error("Initialize() left the attempt service unset")
	}
}

func TestCreateDevelopmentServiceManager(t *testing.T) {
	manager := CreateDevelopmentServiceManager(nil, &mockRepository{}, discardLogger(), validator.New(), nil)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if manager.Bank() == nil {
		t.Error("Initialize() left the bank service unset")
	}
}
