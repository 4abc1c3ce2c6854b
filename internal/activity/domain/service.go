package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/rfacto/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorEmail string `form:"actor"`
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
}

type Service interface {
	// Record appends an entry attributed to the caller found in ctx.
	Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidAction    = errors.New("invalid_action")
)
