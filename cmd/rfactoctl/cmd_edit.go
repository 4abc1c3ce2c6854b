package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/autosave"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/logger"
	"github.com/smallbiznis/rfacto/internal/workspace"
	"github.com/smallbiznis/rfacto/pkg/apiclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	errNotAuthenticated = errors.New("the API did not accept the token")
	errSavesFailed      = errors.New("some claims failed to save")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type editOptions struct {
	File     string `validate:"required"`
	API      string `validate:"required,url"`
	Token    string
	Debounce time.Duration `validate:"gte=0"`
}

// editStep is one entry of the edits file. Wait pauses before the edit, so a
// file can reproduce typing bursts that fall in or out of the debounce window.
type editStep struct {
	ID     int64            `json:"id" validate:"required,gt=0"`
	Fields claimdomain.Edit `json:"fields"`
	Commit bool             `json:"commit"`
	Wait   string           `json:"wait"`

	wait time.Duration
}

func runEdit(cmd *cobra.Command, _ []string) error {
	log, err := logger.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg := autosave.FromAppConfig(config.Load())
	if editOpts.Debounce > 0 {
		cfg.Debounce = editOpts.Debounce
	}

	client, err := apiclient.New(editOpts.API, editOpts.Token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return editClaims(ctx, client, clock.New(), log, cfg, editOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func editClaims(
	ctx context.Context,
	client *apiclient.Client,
	clk clock.Clock,
	log *zap.Logger,
	cfg autosave.Config,
	opts editOptions,
	out io.Writer,
	errOut io.Writer,
) error {
	if err := validate.Struct(opts); err != nil {
		return err
	}
	steps, err := loadEditSteps(opts.File)
	if err != nil {
		return err
	}

	identity, err := client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}
	if identity == nil {
		return errNotAuthenticated
	}
	if !identity.Role.AtLeast(authorization.RoleUser) {
		return fmt.Errorf("%w: role %s is read only", workspace.ErrReadOnly, identity.Role)
	}

	ws := workspace.New(client, clk, log, cfg, identity.Role)
	if err := ws.Load(ctx); err != nil {
		return err
	}

	touched := replay(ctx, ws, steps, log, errOut)

	// Unload guard: nothing pending may be dropped, even after Ctrl-C.
	if ctx.Err() != nil && ws.HasUnsaved() {
		fmt.Fprintf(errOut, "interrupted with %d unsaved claim(s), saving before exit\n", len(ws.Scheduler().Unsaved()))
	}
	ws.Close()
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.RequestTimeout+5*time.Second)
	defer cancel()
	if err := ws.FlushAll(flushCtx); err != nil {
		log.Debug("flush before exit had failures", zap.Error(err))
	}

	return report(ws, touched, out)
}

func replay(ctx context.Context, ws *workspace.Controller, steps []editStep, log *zap.Logger, errOut io.Writer) []int64 {
	var touched []int64
	for i, step := range steps {
		if step.wait > 0 {
			select {
			case <-time.After(step.wait):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return touched
		}

		if err := ws.Edit(step.ID, step.Fields); err != nil {
			fmt.Fprintf(errOut, "edit %d (claim %d): %v\n", i+1, step.ID, err)
			continue
		}
		if !slices.Contains(touched, step.ID) {
			touched = append(touched, step.ID)
		}
		if step.Commit {
			if err := ws.Commit(ctx, step.ID); err != nil {
				log.Debug("commit failed", zap.Int64("claim_id", step.ID), zap.Error(err))
			}
		}
	}
	return touched
}

func report(ws *workspace.Controller, ids []int64, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLAIM\tSTATUS\tDETAIL")
	failed := 0
	for _, id := range ids {
		status := ws.Status(id)
		detail := ""
		if status.Err != nil {
			failed++
			detail = status.Err.Error()
		} else if c, ok := ws.Claim(id); ok {
			detail = fmt.Sprintf("TTC %.2f", c.AmountTTC)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", id, status.State, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSavesFailed, failed, len(ids))
	}
	return nil
}

func loadEditSteps(path string) ([]editStep, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var steps []editStep
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range steps {
		if err := validate.Struct(steps[i]); err != nil {
			return nil, fmt.Errorf("edit %d: %w", i+1, err)
		}
		if steps[i].Wait != "" {
			d, err := time.ParseDuration(steps[i].Wait)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("edit %d: invalid wait %q", i+1, steps[i].Wait)
			}
			steps[i].wait = d
		}
	}
	return steps, nil
}
