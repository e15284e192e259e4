package models

import (
	"time"

	"gorm.io/datatypes"
)

// BankFolder organizes a teacher's personal question bank as a tree with
// parent references.
type BankFolder struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	OwnerID  string `json:"owner_id" gorm:"not null;index;size:255"`
	ParentID *uint  `json:"parent_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Parent   *BankFolder  `json:"-" gorm:"foreignKey:ParentID"`
	Children []BankFolder `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Owner    User         `json:"-" gorm:"foreignKey:OwnerID"`
}

// BankQuestion is a reusable question owned by a teacher, independent of any
// exam. Copying one into an exam creates a detached Question row.
type BankQuestion struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	OwnerID  string `json:"owner_id" gorm:"not null;index;size:255"`
	FolderID *uint  `json:"folder_id" gorm:"index"`

	Text          string         `json:"text" gorm:"type:text;not null" validate:"required"`
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb;not null"`
	CorrectOption string         `json:"correct_option" gorm:"not null;size:64"`
	Marks         float64        `json:"marks" gorm:"not null" validate:"required,gt=0"`
	NegativeMarks *float64       `json:"negative_marks" validate:"omitempty,min=0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Folder *BankFolder `json:"-" gorm:"foreignKey:FolderID"`
	Owner  User        `json:"-" gorm:"foreignKey:OwnerID"`
}

func (BankFolder) TableName() string {
	return "bank_folders"
}

func (BankQuestion) TableName() string {
	return "bank_questions"
}
