package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"gorm.io/gorm"
)

const (
	CategoryInvoice = "invoice"
	CategoryClaim   = "claim"
)

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrFileRequired = errors.New("file_required")
	ErrFileTooLarge = errors.New("file_too_large")
	ErrClaimMissing = errors.New("claim_not_found")
	ErrNotFound     = errors.New("not_found")
)

// ClaimFile is a document attached to a claim. URL points at the stored
// artifact; StoredName is its key in the object store.
type ClaimFile struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClaimID    int64     `gorm:"not null;index" json:"claimId"`
	Category   string    `gorm:"type:text;not null;default:invoice" json:"category"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	StoredName string    `gorm:"column:stored_name;type:text;not null" json:"storedName"`
	Size       int64     `gorm:"not null;default:0" json:"size"`
	MimeType   string    `gorm:"column:mime_type;type:text" json:"mimeType"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	UploadedAt time.Time `gorm:"column:uploaded_at;not null;index" json:"uploadedAt"`
}

func (ClaimFile) TableName() string { return "claim_files" }

// NormalizeCategory maps anything but "claim" to invoice.
func NormalizeCategory(category string) string {
	if category == CategoryClaim {
		return CategoryClaim
	}
	return CategoryInvoice
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByClaim(ctx context.Context, claimID int64) ([]ClaimFile, error)
	ListAll(ctx context.Context) ([]ClaimFile, error)
	FindByID(ctx context.Context, id int64) (*ClaimFile, error)
	Create(ctx context.Context, f *ClaimFile) error
	Delete(ctx context.Context, id int64) error
	DeleteByClaim(ctx context.Context, claimID int64) ([]ClaimFile, error)
	DeleteAll(ctx context.Context) ([]ClaimFile, error)
}

type UploadRequest struct {
	ClaimID  string
	Name     string
	Size     int64
	MimeType string
	Category string
	Body     io.Reader
}

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*ClaimFile, error)
	List(ctx context.Context, claimID string) ([]ClaimFile, error)
	Delete(ctx context.Context, claimID, fileID string) error
	// Open streams the stored artifact of f.
	Open(ctx context.Context, f ClaimFile) (io.ReadCloser, error)
	// Purge removes every file row inside tx and returns a cleanup that
	// deletes the stored artifacts after commit.
	Purge(ctx context.Context, tx *gorm.DB) (func(context.Context), error)
}
