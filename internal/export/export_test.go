package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubClaims struct {
	claimdomain.Service
	items []claimdomain.Claim
}

func (s stubClaims) List(context.Context) ([]claimdomain.Claim, error) { return s.items, nil }

type stubFileRepo struct {
	filedomain.Repository
	items []filedomain.ClaimFile
}

func (s stubFileRepo) ListAll(context.Context) ([]filedomain.ClaimFile, error) { return s.items, nil }

type stubOpener struct {
	filedomain.Service
	bodies map[string]string
}

func (s stubOpener) Open(_ context.Context, f filedomain.ClaimFile) (io.ReadCloser, error) {
	body, ok := s.bodies[f.StoredName]
	if !ok {
		return nil, errors.New("not_found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (stubOpener) Purge(context.Context, *gorm.DB) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

type stubSettings struct {
	settingsdomain.Service
	settings *settingsdomain.Settings
	rows     []settingsdomain.PaymentClaimRow
}

func (s stubSettings) Ensure(context.Context) (*settingsdomain.Settings, error) { return s.settings, nil }

func (s stubSettings) PaymentClaimRows(context.Context) ([]settingsdomain.PaymentClaimRow, error) {
	return s.rows, nil
}

func strPtr(v string) *string { return &v }

func fixtureClaims() []claimdomain.Claim {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	return []claimdomain.Claim{
		{
			ID: 1, Type: claimdomain.TypeMilestone, Step: strPtr("1.1; lot A"),
			Project:       &projectdomain.Project{Code: "C228"},
			Province:      strPtr("QC"),
			TaxRate:       0.14975,
			AmountHT:      1000,
			AmountTTC:     1,
			InvoiceDate:   &date,
			InvoiceNumber: strPtr("F-001"),
			Status:        strPtr(claimdomain.StatusInvoiced),
			InternalName:  strPtr("Coque; étape"),
		},
		{ID: 2, Type: claimdomain.TypeDCR, TaxRate: 0.05, AmountHT: 200, ReferenceCode: strPtr("Réf 9")},
		{ID: 3, Type: claimdomain.TypeDCR, AmountHT: 50},
	}
}

func newTestService(claims []claimdomain.Claim, files []filedomain.ClaimFile, bodies map[string]string) *Service {
	return NewService(Params{
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)),
		Claims:      stubClaims{items: claims},
		Files:       stubFileRepo{items: files},
		FileService: stubOpener{bodies: bodies},
	})
}

func readZip(t *testing.T, raw []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(body)
	}
	return out
}

func TestAuditZip(t *testing.T) {
	files := []filedomain.ClaimFile{
		{ID: 10, ClaimID: 1, Category: filedomain.CategoryInvoice, Name: "Facture été.PDF", StoredName: "a", URL: "/uploads/a"},
		{ID: 11, ClaimID: 1, Category: filedomain.CategoryInvoice, Name: "second.pdf", StoredName: "b", URL: "/uploads/b"},
		{ID: 12, ClaimID: 1, Category: filedomain.CategoryClaim, Name: "claim.pdf", StoredName: "c", URL: "/uploads/c"},
		{ID: 13, ClaimID: 2, Category: filedomain.CategoryInvoice, Name: "gone.pdf", StoredName: "missing", URL: "/uploads/missing"},
		{ID: 14, ClaimID: 3, Category: filedomain.CategoryInvoice, Name: "scan", StoredName: "d", URL: "/uploads/d"},
	}
	svc := newTestService(fixtureClaims(), files, map[string]string{"a": "AAA", "b": "BB", "c": "C", "d": "D"})

	var buf bytes.Buffer
	manifest, err := svc.AuditZip(context.Background(), &buf, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.NbClaims)
	assert.Equal(t, 3, manifest.NbFilesExported)
	require.Len(t, manifest.FilesExported, 4)

	entries := readZip(t, buf.Bytes())
	assert.Equal(t, "AAA", entries["factures/claim-1-ref-Claim-001-inv-F-001-01.pdf"])
	assert.Equal(t, "BB", entries["factures/claim-1-ref-Claim-001-inv-F-001-02.pdf"])
	assert.Equal(t, "D", entries["factures/claim-3-ref-Claim-003-01"])
	assert.NotContains(t, entries, "factures/claim-1-ref-Claim-001-inv-F-001-03.pdf")

	lines := strings.Split(entries["audit.csv"], "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id;ref;step;internalName;clientName;projet;type;date;province;taxRate;amountHT;amountTTC;invoiceNumber;status", lines[0])
	assert.Equal(t, "1;;1.1, lot A;Coque, étape;;C228;milestone;2025-03-14;QC;15;1000.00;1149.75;F-001;Facturé", lines[1])
	assert.Equal(t, "2;Réf 9;;;;;dcr;;;5;200.00;210.00;;", lines[2])

	assert.Contains(t, entries["audit-files.log"], "[OK] claim:1 name:Facture été.PDF url:/uploads/a")
	assert.Contains(t, entries["audit-files.log"], "[ERR] claim:2 name:gone.pdf url:/uploads/missing -> not_found")

	var decoded AuditManifest
	require.NoError(t, json.Unmarshal([]byte(entries["audit.json"]), &decoded))
	assert.Equal(t, 3, decoded.NbFilesExported)
	assert.Equal(t, "15", decoded.Claims[0].TaxRate)
	assert.Equal(t, 1149.75, decoded.Claims[0].AmountTTC)

	recap := entries["audit-recap.txt"]
	assert.Contains(t, recap, "Nombre de claims: 3")
	assert.Contains(t, recap, "Total Montant HT: 1,250.00 $")
	assert.Contains(t, recap, "Total Montant TTC: 1,409.75 $")
	assert.Contains(t, recap, "Non défini:\n  - Nombre: 2")
}

func TestAuditZipRequiresClaims(t *testing.T) {
	svc := newTestService(fixtureClaims(), nil, nil)
	_, err := svc.AuditZip(context.Background(), io.Discard, []int64{99})
	assert.ErrorIs(t, err, ErrNoClaims)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"":                    "fichier",
		"Facture été.pdf":     "Facture_ete.pdf",
		"..hidden":            "hidden",
		"a  /  b":             "a_b",
		"claim-1-ref-Réf 9":   "claim-1-ref-Ref_9",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClaimRef(t *testing.T) {
	all := []int64{4, 8, 15}
	assert.Equal(t, "Claim-002", ClaimRef(all, 8))
	assert.Equal(t, "Claim-003", ClaimRef(all, 99))
}

func TestPaymentClaimPDF(t *testing.T) {
	one, rate := 1, 0.05
	rows := []settingsdomain.PaymentClaimRow{
		{Description: "Hull work", ClaimNumber: &one, Amount: 1000, TaxRate: &rate},
		{Description: "Subtotal", Amount: 1000, Subtotal: true},
	}
	rows[0].Compute()

	svc := newTestService(nil, nil, nil)
	svc.settings = stubSettings{
		settings: &settingsdomain.Settings{ContractNumber: strPtr("CN 2024/01"), ContractHT: 5000},
		rows:     rows,
	}

	doc, err := svc.PaymentClaimPDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "payment-claim-cn-2024-01-2.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}
