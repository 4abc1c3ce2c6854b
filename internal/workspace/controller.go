// Package workspace holds the client-side application state: the claims,
// projects and tax rates loaded from the API, and the edits being autosaved.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smallbiznis/rfacto/internal/autosave"
	"github.com/smallbiznis/rfacto/internal/authorization"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"go.uber.org/zap"
)

var (
	ErrUnknownClaim = errors.New("unknown_claim")
	ErrReadOnly     = errors.New("read_only")
)

// Gateway is the REST API as seen by the workspace.
type Gateway interface {
	ListClaims(ctx context.Context) ([]claimdomain.Claim, error)
	ListProjects(ctx context.Context) ([]projectdomain.Response, error)
	ListTaxes(ctx context.Context) ([]taxdomain.Response, error)
	UpdateClaim(ctx context.Context, id int64, edit claimdomain.Edit) (*claimdomain.Claim, error)
}

// Controller owns the loaded records. Edits go through the patch builder and
// the autosave scheduler; a successful save merges the sent patch into the
// record, never the server echo. A failed save puts its edit back under any
// newer pending edit, so the next flush sends it again.
type Controller struct {
	gateway   Gateway
	log       *zap.Logger
	role      authorization.Role
	scheduler *autosave.Scheduler

	mu       sync.Mutex
	claims   []claimdomain.Claim
	index    map[int64]int
	projects map[string]projectdomain.Response
	byID     map[int64]projectdomain.Response
	rates    map[string]float64
	pending  map[int64]claimdomain.Edit
	sending  map[int64]claimdomain.Edit
}

func New(gateway Gateway, clk clock.Clock, log *zap.Logger, cfg autosave.Config, role authorization.Role) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		gateway: gateway,
		log:     log.Named("workspace"),
		role:    role,
		index:   map[int64]int{},
		pending: map[int64]claimdomain.Edit{},
		sending: map[int64]claimdomain.Edit{},
	}
	c.scheduler = autosave.New(c, clk, log, cfg, autosave.Hooks{
		OnSaved: c.merge,
		OnError: c.restore,
	})
	return c
}

// Scheduler exposes the autosave scheduler for status display.
func (c *Controller) Scheduler() *autosave.Scheduler {
	return c.scheduler
}

// Load replaces the state with a fresh read. Pending edits are flushed
// first so the read reflects them.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.scheduler.FlushAll(ctx); err != nil {
		c.log.Warn("flush before reload had failures", zap.Error(err))
	}

	claims, err := c.gateway.ListClaims(ctx)
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}
	projects, err := c.gateway.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	taxes, err := c.gateway.ListTaxes(ctx)
	if err != nil {
		return fmt.Errorf("list taxes: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = claims
	c.index = make(map[int64]int, len(claims))
	for i := range claims {
		c.index[claims[i].ID] = i
	}
	c.projects = make(map[string]projectdomain.Response, len(projects))
	c.byID = make(map[int64]projectdomain.Response, len(projects))
	for _, p := range projects {
		c.projects[p.Code] = p
		c.byID[p.ID] = p
	}
	c.rates = make(map[string]float64, len(taxes))
	for _, t := range taxes {
		c.rates[taxdomain.NormalizeProvince(t.Province)] = t.Rate
	}
	return nil
}

// Edit records a user edit on claim id and schedules it. Edits to the same
// claim made within the debounce window are merged into one save.
func (c *Controller) Edit(id int64, edit claimdomain.Edit) error {
	if !c.role.AtLeast(authorization.RoleUser) {
		return ErrReadOnly
	}

	c.mu.Lock()
	if _, ok := c.index[id]; !ok {
		c.mu.Unlock()
		return ErrUnknownClaim
	}
	c.pending[id] = c.pending[id].Merge(edit)
	c.mu.Unlock()

	c.scheduler.Schedule(id, func(ctx context.Context) (claimdomain.Patch, error) {
		return c.build(ctx, id)
	})
	return nil
}

// Commit saves claim id immediately, as on Enter or when the row loses focus.
func (c *Controller) Commit(ctx context.Context, id int64) error {
	return c.scheduler.Flush(ctx, id)
}

// FlushAll saves everything pending. Exports and reloads call it first.
func (c *Controller) FlushAll(ctx context.Context) error {
	return c.scheduler.FlushAll(ctx)
}

// Claims returns a copy of the loaded claims in list order.
func (c *Controller) Claims() []claimdomain.Claim {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]claimdomain.Claim(nil), c.claims...)
}

func (c *Controller) Claim(id int64) (claimdomain.Claim, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return claimdomain.Claim{}, false
	}
	return c.claims[i], true
}

func (c *Controller) Status(id int64) autosave.Status {
	return c.scheduler.Status(id)
}

// HasUnsaved reports whether discarding the state now would lose edits.
func (c *Controller) HasUnsaved() bool {
	return c.scheduler.HasUnsaved()
}

func (c *Controller) Close() {
	c.scheduler.Close()
}

// SaveClaim sends the patch through the gateway.
func (c *Controller) SaveClaim(ctx context.Context, id int64, patch claimdomain.Patch) error {
	_, err := c.gateway.UpdateClaim(ctx, id, patch.Edit())
	return err
}

// build moves the pending edit for id to the in-flight set, then turns it
// into a patch against the record as it stands now.
func (c *Controller) build(ctx context.Context, id int64) (claimdomain.Patch, error) {
	c.mu.Lock()
	edit := c.pending[id]
	delete(c.pending, id)
	c.sending[id] = edit
	i, ok := c.index[id]
	var current claimdomain.Claim
	if ok {
		current = c.claims[i]
	}
	c.mu.Unlock()
	if !ok {
		return claimdomain.Patch{}, ErrUnknownClaim
	}

	return claimdomain.BuildPatch(ctx, &current, edit, c, claimdomain.BuildOptions{})
}

func (c *Controller) merge(id int64, patch claimdomain.Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sending, id)
	i, ok := c.index[id]
	if !ok {
		return
	}
	record := &c.claims[i]
	patch.Apply(record)
	if record.Project == nil && record.ProjectID != nil {
		if p, ok := c.byID[*record.ProjectID]; ok {
			record.Project = &projectdomain.Project{ID: p.ID, Code: p.Code, Label: p.Label, TaxProvince: p.TaxProvince}
		}
	}
}

// restore puts the edit of a failed save back into the pending set. Fields
// edited again since then keep their newer value.
func (c *Controller) restore(id int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	failed, ok := c.sending[id]
	if !ok {
		return
	}
	delete(c.sending, id)
	c.pending[id] = failed.Merge(c.pending[id])
	c.log.Debug("edit kept after failed save", zap.Int64("claim_id", id), zap.Error(err))
}

// ProjectByCode resolves against the loaded projects.
func (c *Controller) ProjectByCode(_ context.Context, code string) (*claimdomain.ProjectRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[code]
	if !ok {
		return nil, nil
	}
	ref := &claimdomain.ProjectRef{ID: p.ID, Code: p.Code}
	if p.TaxProvince != nil {
		ref.TaxProvince = *p.TaxProvince
	}
	return ref, nil
}

// ResolveRate looks up the loaded tax table; unknown provinces yield fallback.
func (c *Controller) ResolveRate(_ context.Context, province string, fallback float64) float64 {
	province = taxdomain.NormalizeProvince(province)
	if province == "" {
		return fallback
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate, ok := c.rates[province]; ok {
		return rate
	}
	return fallback
}
