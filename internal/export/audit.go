package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var auditCSVHeader = []string{
	"id", "ref", "step", "internalName", "clientName", "projet", "type", "date",
	"province", "taxRate", "amountHT", "amountTTC", "invoiceNumber", "status",
}

// AuditClaim is one claim as written to audit.json.
type AuditClaim struct {
	ID            int64   `json:"id"`
	Step          *string `json:"step"`
	Type          string  `json:"type"`
	Project       *string `json:"projet"`
	Description   *string `json:"description"`
	InternalName  *string `json:"internalName"`
	ClientName    *string `json:"clientName"`
	Ref           *string `json:"ref"`
	Date          *string `json:"date"`
	Province      *string `json:"province"`
	TaxRate       string  `json:"taxRate"`
	AmountHT      float64 `json:"amountHT"`
	AmountTTC     float64 `json:"amountTTC"`
	InvoiceNumber *string `json:"invoiceNumber"`
	Status        *string `json:"status"`
}

// ExportedFile maps a stored invoice to its name inside the bundle. FinalName
// is nil when the artifact could not be read.
type ExportedFile struct {
	ClaimID    int64   `json:"claimId"`
	SourceName string  `json:"sourceName"`
	SourceURL  string  `json:"sourceUrl"`
	FinalName  *string `json:"finalName"`
	Size       *int64  `json:"size,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// AuditManifest is the content of audit.json.
type AuditManifest struct {
	GeneratedAt     time.Time      `json:"generatedAt"`
	NbClaims        int            `json:"nbClaims"`
	Claims          []AuditClaim   `json:"claims"`
	NbFilesExported int            `json:"nbFilesExported"`
	FilesExported   []ExportedFile `json:"filesExported"`
}

type fetched struct {
	file filedomain.ClaimFile
	body []byte
	err  error
}

// AuditZip writes the audit bundle for claimIDs, or for every claim when
// claimIDs is empty.
func (s *Service) AuditZip(ctx context.Context, w io.Writer, claimIDs []int64) (*AuditManifest, error) {
	all, err := s.claims.List(ctx)
	if err != nil {
		return nil, err
	}
	selected := selectClaims(all, claimIDs)
	if len(selected) == 0 {
		return nil, ErrNoClaims
	}
	order := make([]int64, len(all))
	for i, c := range all {
		order[i] = c.ID
	}

	invoices, err := s.invoicesFor(ctx, selected)
	if err != nil {
		return nil, err
	}
	results := s.fetchAll(ctx, invoices)

	now := s.clock.Now().UTC()
	manifest := &AuditManifest{
		GeneratedAt:   now,
		NbClaims:      len(selected),
		Claims:        make([]AuditClaim, 0, len(selected)),
		FilesExported: make([]ExportedFile, 0, len(results)),
	}
	for _, c := range selected {
		manifest.Claims = append(manifest.Claims, auditClaim(c))
	}

	zw := zip.NewWriter(w)

	csvBody, err := auditCSV(selected)
	if err != nil {
		return nil, err
	}
	if err := writeEntry(zw, "audit.csv", csvBody, now); err != nil {
		return nil, err
	}

	byID := make(map[int64]claimdomain.Claim, len(selected))
	for _, c := range selected {
		byID[c.ID] = c
	}
	counters := make(map[int64]int)
	logs := make([]string, 0, len(results))
	if _, err := zw.CreateHeader(&zip.FileHeader{Name: "factures/", Modified: now}); err != nil {
		return nil, err
	}
	for _, r := range results {
		f := r.file
		entry := ExportedFile{ClaimID: f.ClaimID, SourceName: f.Name, SourceURL: f.URL}
		if r.err != nil {
			entry.Error = r.err.Error()
			manifest.FilesExported = append(manifest.FilesExported, entry)
			logs = append(logs, fmt.Sprintf("[ERR] claim:%d name:%s url:%s -> %s", f.ClaimID, f.Name, f.URL, r.err))
			continue
		}

		claim := byID[f.ClaimID]
		ref := deref(claim.ReferenceCode)
		if ref == "" {
			ref = ClaimRef(order, claim.ID)
		}
		counters[f.ClaimID]++
		name := invoiceFileName(f.ClaimID, ref, deref(claim.InvoiceNumber), f.Name, counters[f.ClaimID])
		if err := writeEntry(zw, "factures/"+name, r.body, f.UploadedAt); err != nil {
			return nil, err
		}

		size := f.Size
		if size == 0 {
			size = int64(len(r.body))
		}
		entry.FinalName, entry.Size = &name, &size
		manifest.FilesExported = append(manifest.FilesExported, entry)
		manifest.NbFilesExported++
		logs = append(logs, fmt.Sprintf("[OK] claim:%d name:%s url:%s", f.ClaimID, f.Name, f.URL))
	}

	if len(logs) > 0 {
		if err := writeEntry(zw, "audit-files.log", []byte(strings.Join(logs, "\n")), now); err != nil {
			return nil, err
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeEntry(zw, "audit.json", manifestJSON, now); err != nil {
		return nil, err
	}
	recap := auditRecap(selected, len(invoices), now)
	if err := writeEntry(zw, "audit-recap.txt", []byte(recap), now); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	s.log.Info("audit bundle generated",
		zap.Int("claims", manifest.NbClaims),
		zap.Int("files_exported", manifest.NbFilesExported),
		zap.Int("files_failed", len(results)-manifest.NbFilesExported),
	)
	s.audit(ctx, activitydomain.ActionExportAudit, map[string]any{
		"claims":         manifest.NbClaims,
		"files_exported": manifest.NbFilesExported,
	})
	return manifest, nil
}

func selectClaims(all []claimdomain.Claim, ids []int64) []claimdomain.Claim {
	if len(ids) == 0 {
		return all
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]claimdomain.Claim, 0, len(ids))
	for _, c := range all {
		if _, ok := wanted[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// invoicesFor returns the invoice-category files of the selected claims in
// claim order.
func (s *Service) invoicesFor(ctx context.Context, claims []claimdomain.Claim) ([]filedomain.ClaimFile, error) {
	files, err := s.files.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byClaim := make(map[int64][]filedomain.ClaimFile)
	for _, f := range files {
		if filedomain.NormalizeCategory(f.Category) != filedomain.CategoryInvoice {
			continue
		}
		byClaim[f.ClaimID] = append(byClaim[f.ClaimID], f)
	}
	var out []filedomain.ClaimFile
	for _, c := range claims {
		out = append(out, byClaim[c.ID]...)
	}
	return out, nil
}

// fetchAll reads every artifact with bounded parallelism. A failed read is
// recorded on its result and does not abort the bundle.
func (s *Service) fetchAll(ctx context.Context, files []filedomain.ClaimFile) []fetched {
	results := make([]fetched, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, f := range files {
		g.Go(func() error {
			body, err := s.read(gctx, f)
			results[i] = fetched{file: f, body: body, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) read(ctx context.Context, f filedomain.ClaimFile) ([]byte, error) {
	rc, err := s.opener.Open(ctx, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func auditClaim(c claimdomain.Claim) AuditClaim {
	var project, date *string
	if code := c.ProjectCode(); code != "" {
		project = &code
	}
	if c.InvoiceDate != nil {
		d := c.InvoiceDate.Format(time.RFC3339)
		date = &d
	}
	ht, ttc := amounts(c)
	return AuditClaim{
		ID:            c.ID,
		Step:          c.Step,
		Type:          c.Type,
		Project:       project,
		Description:   c.Description,
		InternalName:  nonEmpty(c.InternalName),
		ClientName:    nonEmpty(c.ClientName),
		Ref:           nonEmpty(c.ReferenceCode),
		Date:          date,
		Province:      nonEmpty(c.Province),
		TaxRate:       percent(c.TaxRate),
		AmountHT:      ht,
		AmountTTC:     ttc,
		InvoiceNumber: nonEmpty(c.InvoiceNumber),
		Status:        nonEmpty(c.Status),
	}
}

func auditCSV(claims []claimdomain.Claim) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(auditCSVHeader); err != nil {
		return nil, err
	}
	for _, c := range claims {
		ht, ttc := amounts(c)
		date := ""
		if c.InvoiceDate != nil {
			date = c.InvoiceDate.Format(time.DateOnly)
		}
		record := []string{
			strconv.FormatInt(c.ID, 10),
			deref(c.ReferenceCode),
			csvText(c.Step),
			csvText(c.InternalName),
			csvText(c.ClientName),
			c.ProjectCode(),
			c.Type,
			date,
			deref(c.Province),
			percent(c.TaxRate),
			decimal.NewFromFloat(ht).StringFixed(2),
			decimal.NewFromFloat(ttc).StringFixed(2),
			deref(c.InvoiceNumber),
			deref(c.Status),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return bytes.TrimRight(buf.Bytes(), "\n"), w.Error()
}

// amounts derives TTC as HT plus tax, ignoring any stored override.
func amounts(c claimdomain.Claim) (float64, float64) {
	ht := decimal.NewFromFloat(c.AmountHT)
	tax := ht.Mul(decimal.NewFromFloat(c.TaxRate))
	return ht.InexactFloat64(), ht.Add(tax).InexactFloat64()
}

func percent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(0)
}

func writeEntry(zw *zip.Writer, name string, body []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func csvText(v *string) string {
	return strings.ReplaceAll(deref(v), ";", ",")
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nonEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
