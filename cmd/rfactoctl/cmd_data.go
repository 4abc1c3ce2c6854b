package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errResetNotConfirmed = errors.New("reset not confirmed: pass --yes")

func runSeedTaxes(cmd *cobra.Command, _ []string) error {
	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		n, err := s.Taxes.Seed(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]int{"seeded": n})
	})
}

func runBackupExport(cmd *cobra.Command, _ []string) error {
	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		doc, err := s.Backup.Export(ctx)
		if err != nil {
			return err
		}
		if backupOut == "" {
			return printJSON(cmd.OutOrStdout(), doc)
		}
		f, err := os.Create(backupOut)
		if err != nil {
			return err
		}
		if err := printJSON(f, doc); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		s.Log.Info("backup written", zap.String("file", backupOut), zap.Int("claims", len(doc.Claims)))
		return nil
	})
}

func runBackupImport(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var doc backupdomain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", backupdomain.ErrInvalidBackup, err)
	}

	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		result, err := s.Backup.Import(ctx, doc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func runBackupSnapshot(cmd *cobra.Command, _ []string) error {
	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		name, err := s.Backup.Snapshot(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{"file": name})
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !confirmReset {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "RESET")
		if err != nil {
			return err
		}
		if !ok {
			return errResetNotConfirmed
		}
	}

	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		result, err := s.Backup.Reset(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func runImportPaymentClaims(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		result, err := s.PaymentClaims.Import(ctx, f, replacePaymentClaims)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

// confirm asks the operator to type word. Without a terminal on stdin it
// refuses, so scripts must pass --yes.
func confirm(in io.Reader, out io.Writer, word string) (bool, error) {
	if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false, nil
	}
	fmt.Fprintf(out, "This deletes every claim, file, team member, tax and project.\nType %s to continue: ", word)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(line) == word, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
