package main

import (
	"os"
	"os/user"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	actor    string

	replacePaymentClaims bool
	confirmReset         bool
	backupOut            string
	auditIDs             []int64
	auditOut             string
	pdfOut               string

	editOpts editOptions
)

var (
	rootCmd = &cobra.Command{
		Use:           "rfactoctl",
		Short:         "Operate an rfacto database and edit claims through the API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Reference data ---
	seedTaxesCmd = &cobra.Command{
		Use:   "seed-taxes",
		Short: "Insert the default provincial tax rates when the table is empty",
		Args:  cobra.NoArgs,
		RunE:  runSeedTaxes, // Defined in cmd_data.go
	}

	// --- Backups ---
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Export, import or snapshot the whole database as JSON",
	}
	backupExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup to stdout or --out",
		Args:  cobra.NoArgs,
		RunE:  runBackupExport, // Defined in cmd_data.go
	}
	backupImportCmd = &cobra.Command{
		Use:   "import [backup.json]",
		Short: "DANGER: Replace every record with the content of a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackupImport, // Defined in cmd_data.go
	}
	backupSnapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Write a backup file into BACKUP_DIR",
		Args:  cobra.NoArgs,
		RunE:  runBackupSnapshot, // Defined in cmd_data.go
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "DANGER: Delete files, claims, team members, taxes and projects",
		Args:  cobra.NoArgs,
		RunE:  runReset, // Defined in cmd_data.go
	}

	// --- Imports ---
	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import data from files",
	}
	importPaymentClaimsCmd = &cobra.Command{
		Use:   "payment-claims [file.csv]",
		Short: "Append payment-claim rows from a ; or , separated file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportPaymentClaims, // Defined in cmd_data.go
	}

	// --- Exports ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Audit bundle exports",
	}
	auditExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the audit ZIP for the selected claims",
		Args:  cobra.NoArgs,
		RunE:  runAuditExport, // Defined in cmd_export.go
	}
	pdfCmd = &cobra.Command{
		Use:   "pdf",
		Short: "Render the payment-claim PDF",
		Args:  cobra.NoArgs,
		RunE:  runPaymentClaimPDF, // Defined in cmd_export.go
	}

	// --- API client ---
	editCmd = &cobra.Command{
		Use:   "edit",
		Short: "Apply a file of claim edits through the API with autosave",
		Long: `edit loads the claims, projects and tax rates from the API, then replays
each edit of the file through the patch builder and the autosave scheduler.
Edits to the same claim that arrive within the debounce window are sent as
one update. Pending edits are flushed before exit, including on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runEdit, // Defined in cmd_edit.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "Email recorded in the activity log for database commands")

	backupExportCmd.Flags().StringVarP(&backupOut, "out", "o", "", "Output file (default: stdout)")
	resetCmd.Flags().BoolVar(&confirmReset, "yes", false, "Required to confirm the deletion of all data when not on a terminal")
	importPaymentClaimsCmd.Flags().BoolVar(&replacePaymentClaims, "replace", false, "Replace the stored rows instead of appending")

	auditExportCmd.Flags().Int64SliceVar(&auditIDs, "ids", nil, "Claim ids to include, comma separated (default: every claim)")
	auditExportCmd.Flags().StringVarP(&auditOut, "out", "o", "", "Output file (default: audit-<timestamp>.zip)")
	pdfCmd.Flags().StringVarP(&pdfOut, "out", "o", "", "Output file (default: the generated name)")

	editCmd.Flags().StringVarP(&editOpts.File, "file", "f", "", "JSON file of edits")
	editCmd.Flags().StringVar(&editOpts.API, "api", envOr("RFACTO_API_URL", "http://localhost:8080"), "Base URL of the rfacto API")
	editCmd.Flags().StringVar(&editOpts.Token, "token", os.Getenv("RFACTO_TOKEN"), "Bearer token")
	editCmd.Flags().DurationVar(&editOpts.Debounce, "debounce", 0, "Override AUTOSAVE_DEBOUNCE")
	_ = editCmd.MarkFlagRequired("file")

	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupSnapshotCmd)
	importCmd.AddCommand(importPaymentClaimsCmd)
	auditCmd.AddCommand(auditExportCmd)

	rootCmd.AddCommand(seedTaxesCmd, backupCmd, resetCmd, importCmd, auditCmd, pdfCmd, editCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultActor() string {
	if v := os.Getenv("RFACTO_ACTOR"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username + "@rfactoctl"
	}
	return "rfactoctl"
}
