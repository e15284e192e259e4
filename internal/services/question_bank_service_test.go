package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

func TestNewQuestionBankService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
	}
	tests := []struct {
		name string
		args args
		want QuestionBankService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewQuestionBankService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator)
		})
	}
}

func newBankService(repo repositories.Repository) QuestionBankService {
	return NewQuestionBankService(repo, nil, discardLogger(), validator.New())
}

// folderTree wires GetFolder and CountFolders over a fixed set of folders.
func folderTree(repo *mockRepository, folders ...*models.BankFolder) {
	byID := make(map[uint]*models.BankFolder, len(folders))
	for _, folder := range folders {
		byID[folder.ID] = folder
	}
	repo.bank.getFolder = func(id uint) (*models.BankFolder, error) {
		folder, ok := byID[id]
		if !ok {
			return nil, gorm.ErrRecordNotFound
		}
		copied := *folder
		return &copied, nil
	}
	repo.bank.countFolders = func(ownerID string) (int64, error) {
		return int64(len(folders)), nil
	}
}

func bankFolder(id uint, parentID *uint, ownerID string) *models.BankFolder {
	return &models.BankFolder{ID: id, Name: "Folder", OwnerID: ownerID, ParentID: parentID}
}

func TestCreateFolder(t *testing.T) {
	repo := &mockRepository{}
	folderTree(repo, bankFolder(1, nil, "teacher-1"))
	repo.bank.createFolder = func(folder *models.BankFolder) error {
		folder.ID = 5
		return nil
	}

	svc := newBankService(repo)
	folder, err := svc.CreateFolder(context.Background(), &CreateFolderRequest{
		Name:     "Calculus",
		ParentID: uintPtr(1),
	}, "teacher-1")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}

	if folder.ID != 5 || folder.OwnerID != "teacher-1" || *folder.ParentID != 1 {
		t.Errorf("CreateFolder() folder = %+v", folder)
	}
}

func TestCreateFolder_ParentChecks(t *testing.T) {
	repo := &mockRepository{}
	folderTree(repo, bankFolder(1, nil, "teacher-2"))

	svc := newBankService(repo)

	_, err := svc.CreateFolder(context.Background(), &CreateFolderRequest{
		Name:     "Calculus",
		ParentID: uintPtr(1),
	}, "teacher-1")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("CreateFolder() with foreign parent error = %v, want permission error", err)
	}

	_, err = svc.CreateFolder(context.Background(), &CreateFolderRequest{
		Name:     "Calculus",
		ParentID: uintPtr(99),
	}, "teacher-1")
	if !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("CreateFolder() with missing parent error = %v, want %v", err, ErrFolderNotFound)
	}
}

func TestUpdateFolder_CycleDetection(t *testing.T) {
	// 1 <- 2 <- 3
	repo := &mockRepository{}
	folderTree(repo,
		bankFolder(1, nil, "teacher-1"),
		bankFolder(2, uintPtr(1), "teacher-1"),
		bankFolder(3, uintPtr(2), "teacher-1"),
	)

	svc := newBankService(repo)

	tests := []struct {
		name     string
		folderID uint
		parentID uint
		wantErr  error
	}{
		{name: "own parent", folderID: 1, parentID: 1, wantErr: ErrFolderCycle},
		{name: "direct child", folderID: 1, parentID: 2, wantErr: ErrFolderCycle},
		{name: "deep descendant", folderID: 1, parentID: 3, wantErr: ErrFolderCycle},
		{name: "sideways move", folderID: 3, parentID: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateFolder(context.Background(), tt.folderID, &UpdateFolderRequest{
				ParentID: uintPtr(tt.parentID),
			}, "teacher-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateFolder() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateFolder_CorruptedChainTerminates(t *testing.T) {
	// 2 and 3 point at each other; the walk must stop at the folder count.
	repo := &mockRepository{}
	folderTree(repo,
		bankFolder(1, nil, "teacher-1"),
		bankFolder(2, uintPtr(3), "teacher-1"),
		bankFolder(3, uintPtr(2), "teacher-1"),
	)

	svc := newBankService(repo)
	_, err := svc.UpdateFolder(context.Background(), 1, &UpdateFolderRequest{
		ParentID: uintPtr(2),
	}, "teacher-1")
	if !errors.Is(err, ErrFolderCycle) {
		t.Errorf("UpdateFolder() error = %v, want %v", err, ErrFolderCycle)
	}
}

func TestDeleteFolder_ReparentsContents(t *testing.T) {
	repo := &mockRepository{}
	folderTree(repo,
		bankFolder(1, nil, "teacher-1"),
		bankFolder(2, uintPtr(1), "teacher-1"),
		bankFolder(3, uintPtr(2), "teacher-1"),
	)
	repo.bank.listFolders = func(ownerID string) ([]*models.BankFolder, error) {
		return []*models.BankFolder{
			bankFolder(1, nil, "teacher-1"),
			bankFolder(2, uintPtr(1), "teacher-1"),
			bankFolder(3, uintPtr(2), "teacher-1"),
		}, nil
	}
	repo.bank.listQuestions = func(ownerID string, folderID *uint) ([]*models.BankQuestion, error) {
		return []*models.BankQuestion{
			{ID: 7, OwnerID: "teacher-1", FolderID: uintPtr(2)},
		}, nil
	}

	reparentedFolders := map[uint]*uint{}
	repo.bank.updateFolder = func(folder *models.BankFolder) error {
		reparentedFolders[folder.ID] = folder.ParentID
		return nil
	}
	var movedQuestion *models.BankQuestion
	repo.bank.updateQuestion = func(question *models.BankQuestion) error {
		movedQuestion = question
		return nil
	}
	var deletedID uint
	repo.bank.deleteFolder = func(id uint) error {
		deletedID = id
		return nil
	}

	svc := newBankService(repo)
	if err := svc.DeleteFolder(context.Background(), 2, "teacher-1"); err != nil {
		t.Fatalf("DeleteFolder() error = %v", err)
	}

	if deletedID != 2 {
		t.Errorf("DeleteFolder() deleted folder %d, want 2", deletedID)
	}
	if parent, ok := reparentedFolders[3]; !ok || parent == nil || *parent != 1 {
		t.Errorf("DeleteFolder() child folder reparent = %v", reparentedFolders)
	}
	if movedQuestion == nil || movedQuestion.FolderID == nil || *movedQuestion.FolderID != 1 {
		t.Errorf("DeleteFolder() question reparent = %+v", movedQuestion)
	}
}

func TestCreateBankQuestion_OptionRules(t *testing.T) {
	svc := newBankService(&mockRepository{})

	tests := []struct {
		name    string
		options []models.QuestionOption
		correct string
		wantErr error
	}{
		{
			name: "duplicate option ids",
			options: []models.QuestionOption{
				{ID: "a", Text: "First"},
				{ID: "a", Text: "Second"},
			},
			correct: "a",
			wantErr: ErrDuplicateOptionID,
		},
		{
			name: "correct option missing",
			options: []models.QuestionOption{
				{ID: "a", Text: "First"},
				{ID: "b", Text: "Second"},
			},
			correct: "c",
			wantErr: ErrInvalidCorrectOption,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateQuestion(context.Background(), &CreateBankQuestionRequest{
				Text:          "Pick one",
				Options:       tt.options,
				CorrectOption: tt.correct,
				Marks:         1,
			}, "teacher-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateQuestion() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCopyToExam(t *testing.T) {
	bankQuestion := &models.BankQuestion{
		ID:            4,
		OwnerID:       "teacher-1",
		Text:          "Pick one",
		Options:       encodedOptions("a", "b"),
		CorrectOption: "a",
		Marks:         2,
	}

	t.Run("copies into draft exam", func(t *testing.T) {
		var created *models.Question
		repo := &mockRepository{
			bank: mockBankRepo{
				getQuestion: func(id uint) (*models.BankQuestion, error) { return bankQuestion, nil },
			},
			exam: mockExamRepo{
				getByID: func(id uint) (*models.Exam, error) {
					return &models.Exam{ID: 2, Status: models.ExamDraft, CreatedBy: "teacher-1"}, nil
				},
			},
			question: mockQuestionRepo{
				countByExam: func(examID uint) (int64, error) { return 2, nil },
				create: func(question *models.Question) error {
					question.ID = 21
					created = question
					return nil
				},
			},
		}

		svc := newBankService(repo)
		resp, err := svc.CopyToExam(context.Background(), 4, 2, "teacher-1")
		if err != nil {
			t.Fatalf("CopyToExam() error = %v", err)
		}

		if created.ExamID != 2 || created.DisplayOrder != 3 || created.CorrectOption != "a" {
			t.Errorf("CopyToExam() created = %+v", created)
		}
		if len(resp.Options) != 2 {
			t.Errorf("CopyToExam() options = %d, want 2", len(resp.Options))
		}
	})

	t.Run("rejects published exam", func(t *testing.T) {
		repo := &mockRepository{
			bank: mockBankRepo{
				getQuestion: func(id uint) (*models.BankQuestion, error) { return bankQuestion, nil },
			},
			exam: mockExamRepo{
				getByID: func(id uint) (*models.Exam, error) {
					return &models.Exam{ID: 2, Status: models.ExamPublished, CreatedBy: "teacher-1"}, nil
				},
			},
		}

		svc := newBankService(repo)
		if _, err := svc.CopyToExam(context.Background(), 4, 2, "teacher-1"); !errors.Is(err, ErrExamNotEditable) {
			t.Errorf("CopyToExam() error = %v, want %v", err, ErrExamNotEditable)
		}
	})

	t.Run("rejects foreign bank question", func(t *testing.T) {
		repo := &mockRepository{
			bank: mockBankRepo{
				getQuestion: func(id uint) (*models.BankQuestion, error) { return bankQuestion, nil },
			},
		}

		svc := newBankService(repo)
		_, err := svc.CopyToExam(context.Background(), 4, 2, "teacher-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("CopyToExam() error = %v, want permission error", err)
		}
	})
}
