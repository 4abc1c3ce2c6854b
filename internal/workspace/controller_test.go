package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/rfacto/internal/autosave"
	"github.com/smallbiznis/rfacto/internal/authorization"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type update struct {
	id   int64
	edit claimdomain.Edit
}

type fakeGateway struct {
	mu      sync.Mutex
	claims  []claimdomain.Claim
	updates []update
	fail    error
	gate    chan struct{}
	started chan int64
}

func (g *fakeGateway) ListClaims(context.Context) ([]claimdomain.Claim, error) {
	return g.claims, nil
}

func (g *fakeGateway) ListProjects(context.Context) ([]projectdomain.Response, error) {
	province := "NS1"
	return []projectdomain.Response{
		{ID: 7, Code: "C228", Label: "Hull 228", TaxProvince: &province},
	}, nil
}

func (g *fakeGateway) ListTaxes(context.Context) ([]taxdomain.Response, error) {
	return []taxdomain.Response{
		{Province: "QC", Rate: 0.14975},
		{Province: "NS1", Rate: 0.15},
	}, nil
}

func (g *fakeGateway) UpdateClaim(ctx context.Context, id int64, edit claimdomain.Edit) (*claimdomain.Claim, error) {
	g.mu.Lock()
	g.updates = append(g.updates, update{id: id, edit: edit})
	gate, fail, started := g.gate, g.fail, g.started
	g.mu.Unlock()

	if started != nil {
		started <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	// the echo deliberately differs so tests can tell it was ignored
	return &claimdomain.Claim{ID: id, Description: ptr("server echo")}, nil
}

func (g *fakeGateway) setFail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

func (g *fakeGateway) sent() []update {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]update(nil), g.updates...)
}

func ptr[T any](v T) *T { return &v }

func setupController(t *testing.T, role authorization.Role) (*Controller, *fakeGateway, *clock.FakeClock) {
	t.Helper()
	gw := &fakeGateway{claims: []claimdomain.Claim{
		{ID: 1, Type: claimdomain.TypeMilestone, Step: ptr("5.1"), AmountHT: 200, Description: ptr("hull")},
		{ID: 2, Type: claimdomain.TypeDCR, AmountHT: 50, TaxRate: 0.05, AmountTTC: 52.5},
	}}
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	c := New(gw, clk, zap.NewNop(), autosave.Config{Debounce: 600 * time.Millisecond, RequestTimeout: time.Second}, role)
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background()))
	return c, gw, clk
}

func TestEditsInWindowBecomeOneUpdate(t *testing.T) {
	c, gw, clk := setupController(t, authorization.RoleUser)

	require.NoError(t, c.Edit(1, claimdomain.Edit{Description: optional.Set("hull refit")}))
	clk.Advance(100 * time.Millisecond)
	require.NoError(t, c.Edit(1, claimdomain.Edit{Province: optional.Set("QC")}))
	clk.Advance(100 * time.Millisecond)
	require.NoError(t, c.Edit(1, claimdomain.Edit{Status: optional.Set(claimdomain.StatusInvoiced)}))
	assert.Equal(t, autosave.Pending, c.Status(1).State)

	clk.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return c.Status(1).State == autosave.Saved }, 2*time.Second, 5*time.Millisecond)

	sent := gw.sent()
	require.Len(t, sent, 1)
	edit := sent[0].edit
	assert.Equal(t, "hull refit", edit.Description.Or(""))
	assert.Equal(t, "QC", edit.Province.Or(""))
	assert.Equal(t, claimdomain.StatusInvoiced, edit.Status.Or(""))
	assert.Equal(t, optional.Number(0.14975), edit.TaxRate.Or(0))
	assert.InDelta(t, 229.95, float64(edit.AmountTTC.Or(0)), 1e-9)
	assert.False(t, edit.Step.IsSet())

	record, ok := c.Claim(1)
	require.True(t, ok)
	assert.Equal(t, "hull refit", *record.Description)
	assert.Equal(t, "5.1", *record.Step)
	assert.InDelta(t, 229.95, record.AmountTTC, 1e-9)
}

func TestProjectEditRelinksProject(t *testing.T) {
	c, gw, _ := setupController(t, authorization.RoleAdmin)

	require.NoError(t, c.Edit(2, claimdomain.Edit{ProjectCode: optional.Set("C228")}))
	require.NoError(t, c.Commit(context.Background(), 2))

	sent := gw.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "C228", sent[0].edit.ProjectCode.Or(""))
	assert.Equal(t, "NS1", sent[0].edit.Province.Or(""))

	record, _ := c.Claim(2)
	require.NotNil(t, record.Project)
	assert.Equal(t, "C228", record.Project.Code)
	assert.Equal(t, 0.15, record.TaxRate)
	assert.InDelta(t, 57.5, record.AmountTTC, 1e-9)
}

func TestReadOnlyRoleCannotEdit(t *testing.T) {
	c, gw, _ := setupController(t, authorization.RoleLecture)

	err := c.Edit(1, claimdomain.Edit{Description: optional.Set("x")})
	require.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, c.FlushAll(context.Background()))
	assert.Empty(t, gw.sent())
	assert.False(t, c.HasUnsaved())
}

func TestEditUnknownClaim(t *testing.T) {
	c, _, _ := setupController(t, authorization.RoleUser)
	require.ErrorIs(t, c.Edit(99, claimdomain.Edit{Description: optional.Set("x")}), ErrUnknownClaim)
}

func TestLoadFlushesPendingEditsFirst(t *testing.T) {
	c, gw, _ := setupController(t, authorization.RoleUser)

	require.NoError(t, c.Edit(2, claimdomain.Edit{AmountHT: optional.Set(optional.Number(100))}))
	assert.True(t, c.HasUnsaved())

	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, gw.sent(), 1)
	assert.False(t, c.HasUnsaved())
}

func waitUpdate(t *testing.T, gw *fakeGateway) {
	t.Helper()
	select {
	case <-gw.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
}

func waitSaved(t *testing.T, c *Controller, id int64) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Status(id).State == autosave.Saved }, 2*time.Second, 5*time.Millisecond)
}

func TestFailedSaveKeepsEditForNextFlush(t *testing.T) {
	c, gw, _ := setupController(t, authorization.RoleUser)
	gw.setFail(errors.New("502 bad gateway"))

	require.NoError(t, c.Edit(1, claimdomain.Edit{AmountHT: optional.Set(optional.Number(999))}))
	require.Error(t, c.Commit(context.Background(), 1))
	assert.Equal(t, autosave.Error, c.Status(1).State)
	assert.True(t, c.HasUnsaved())

	record, _ := c.Claim(1)
	assert.Equal(t, 200.0, record.AmountHT)

	// committing again resends the same edit
	require.Error(t, c.Commit(context.Background(), 1))
	sent := gw.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, optional.Number(999), sent[1].edit.AmountHT.Or(0))

	gw.setFail(nil)
	require.NoError(t, c.Edit(1, claimdomain.Edit{Description: optional.Set("x")}))
	require.NoError(t, c.Commit(context.Background(), 1))

	sent = gw.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, optional.Number(999), sent[2].edit.AmountHT.Or(0))
	assert.Equal(t, "x", sent[2].edit.Description.Or(""))

	record, _ = c.Claim(1)
	assert.Equal(t, 999.0, record.AmountHT)
	assert.Equal(t, "x", *record.Description)
	assert.Equal(t, autosave.Saved, c.Status(1).State)
	assert.False(t, c.HasUnsaved())
}

func TestEditDuringSaveIsBuiltOnMergedRecord(t *testing.T) {
	c, gw, clk := setupController(t, authorization.RoleUser)
	gw.gate = make(chan struct{})
	gw.started = make(chan int64, 4)

	require.NoError(t, c.Edit(1, claimdomain.Edit{AmountHT: optional.Set(optional.Number(300))}))
	clk.Advance(600 * time.Millisecond)
	waitUpdate(t, gw)

	require.NoError(t, c.Edit(1, claimdomain.Edit{Province: optional.Set("QC")}))
	clk.Advance(600 * time.Millisecond)

	// the record only moves once the first save succeeds
	record, _ := c.Claim(1)
	assert.Equal(t, 200.0, record.AmountHT)

	close(gw.gate)
	waitUpdate(t, gw)
	waitSaved(t, c, 1)

	sent := gw.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, optional.Number(300), sent[0].edit.AmountHT.Or(0))
	assert.False(t, sent[0].edit.Province.IsSet())

	second := sent[1].edit
	assert.Equal(t, "QC", second.Province.Or(""))
	assert.False(t, second.AmountHT.IsSet())
	assert.InDelta(t, 344.925, float64(second.AmountTTC.Or(0)), 1e-9)

	record, _ = c.Claim(1)
	assert.Equal(t, 300.0, record.AmountHT)
	assert.Equal(t, "QC", *record.Province)
	assert.InDelta(t, 344.925, record.AmountTTC, 1e-9)
}

func TestFailedSaveMergesUnderNewerEdit(t *testing.T) {
	c, gw, clk := setupController(t, authorization.RoleUser)
	gw.gate = make(chan struct{})
	gw.started = make(chan int64, 4)
	gw.setFail(errors.New("503 unavailable"))

	require.NoError(t, c.Edit(1, claimdomain.Edit{
		AmountHT:    optional.Set(optional.Number(300)),
		Description: optional.Set("old"),
	}))
	clk.Advance(600 * time.Millisecond)
	waitUpdate(t, gw)

	require.NoError(t, c.Edit(1, claimdomain.Edit{Description: optional.Set("new")}))

	gw.setFail(nil)
	close(gw.gate)
	require.Eventually(t, func() bool { return len(gw.sent()) == 1 && c.Status(1).State == autosave.Pending }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Commit(context.Background(), 1))
	sent := gw.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, optional.Number(300), sent[1].edit.AmountHT.Or(0))
	assert.Equal(t, "new", sent[1].edit.Description.Or(""))
}
