package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/rfacto/pkg/optional"
)

// Resolver maps a jurisdiction to its rate. It never fails: an empty or
// unknown province yields fallback.
type Resolver interface {
	ResolveRate(ctx context.Context, province string, fallback float64) float64
}

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context) (int, error)
}

type CreateRequest struct {
	Province string          `json:"province"`
	Rate     optional.Number `json:"rate"`
}

type UpdateRequest struct {
	ID       string                          `json:"-"`
	Province optional.Value[string]          `json:"province,omitzero"`
	Rate     optional.Value[optional.Number] `json:"rate,omitzero"`
}

type Response struct {
	ID        int64     `json:"id"`
	Province  string    `json:"province"`
	Rate      float64   `json:"rate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
