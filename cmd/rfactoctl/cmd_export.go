package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runAuditExport(cmd *cobra.Command, _ []string) error {
	out := auditOut
	if out == "" {
		out = "audit-" + time.Now().UTC().Format("20060102-150405") + ".zip"
	}

	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		tmp, err := os.CreateTemp(filepath.Dir(out), ".audit-*.zip")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		manifest, err := s.Exporter.AuditZip(ctx, tmp, auditIDs)
		if err != nil {
			_ = tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmp.Name(), out); err != nil {
			return err
		}

		s.Log.Info("audit bundle written",
			zap.String("file", out),
			zap.Int("claims", manifest.NbClaims),
			zap.Int("files", manifest.NbFilesExported),
		)
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"file":            out,
			"nbClaims":        manifest.NbClaims,
			"nbFilesExported": manifest.NbFilesExported,
		})
	})
}

func runPaymentClaimPDF(cmd *cobra.Command, _ []string) error {
	return withServices(cmd.Context(), func(ctx context.Context, s services) error {
		doc, err := s.Exporter.PaymentClaimPDF(ctx)
		if err != nil {
			return err
		}
		out := pdfOut
		if out == "" {
			out = doc.Name
		}
		if err := os.WriteFile(out, doc.Body, 0o644); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"file": out, "bytes": len(doc.Body)})
	})
}
