package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]Claim, error)
	ListByType(ctx context.Context, claimType string) ([]Claim, error)
	FindByID(ctx context.Context, id int64) (*Claim, error)
	MilestoneExists(ctx context.Context, step string, projectID int64) (bool, error)
	Create(ctx context.Context, c *Claim) error
	UpdateColumns(ctx context.Context, id int64, cols map[string]any) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Attachments owns the files stored against a claim.
type Attachments interface {
	// DeleteForClaim removes the file rows inside tx and returns a cleanup
	// that deletes the stored artifacts once tx has committed.
	DeleteForClaim(ctx context.Context, tx *gorm.DB, claimID int64) (func(context.Context), error)
}

type Service interface {
	List(ctx context.Context) ([]Claim, error)
	Get(ctx context.Context, id string) (*Claim, error)
	Create(ctx context.Context, edit Edit) (*Claim, error)
	Update(ctx context.Context, id string, edit Edit) (*Claim, error)
	Delete(ctx context.Context, id string) error
	DCRDuplicates(ctx context.Context) (DuplicateReport, error)
}

// DuplicateReport lists every DCR that repeats an earlier one with the same
// project, step and HT amount.
type DuplicateReport struct {
	Total      int     `json:"total"`
	Duplicates []Claim `json:"duplicates"`
}
