package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"go.uber.org/zap"
)

// PaymentClaimData is everything the payment-claim PDF prints.
type PaymentClaimData struct {
	ContractNumber  string
	ContractHT      float64
	ContractTTC     float64
	NextClaimNumber int
	IssueDate       string
	Rows            []settingsdomain.PaymentClaimRow
	Totals          settingsdomain.Totals
}

// PaymentClaimPDF renders the payment-claim table stored in settings.
func (s *Service) PaymentClaimPDF(ctx context.Context) (*Document, error) {
	settings, err := s.settings.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.settings.PaymentClaimRows(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	data := PaymentClaimData{
		ContractNumber:  deref(settings.ContractNumber),
		ContractHT:      settings.ContractHT,
		ContractTTC:     settings.ContractTTC,
		NextClaimNumber: settingsdomain.NextClaimNumber(rows),
		IssueDate:       now.Format("2006-01-02"),
		Rows:            rows,
		Totals:          settingsdomain.SumRows(rows),
	}
	body, err := RenderPaymentClaim(data)
	if err != nil {
		return nil, fmt.Errorf("render payment claim: %w", err)
	}

	name := "payment-claim"
	if contract := slug.Make(data.ContractNumber); contract != "" {
		name += "-" + contract
	}
	name += "-" + strconv.Itoa(data.NextClaimNumber) + ".pdf"

	s.log.Info("payment claim rendered", zap.String("name", name), zap.Int("rows", len(rows)))
	return &Document{Name: name, ContentType: "application/pdf", Body: body, GeneratedAt: now}, nil
}

func RenderPaymentClaim(data PaymentClaimData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Payment claim", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	contract := data.ContractNumber
	if contract == "" {
		contract = "-"
	}
	m.AddRow(20,
		col.New(6).Add(
			text.New("Contract: "+contract, props.Text{Top: 0}),
			text.New("Claim number: "+strconv.Itoa(data.NextClaimNumber), props.Text{Top: 4}),
			text.New("Date: "+data.IssueDate, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Contract HT: "+formatMoney(data.ContractHT)+" $", props.Text{Align: align.Right}),
			text.New("Contract TTC: "+formatMoney(data.ContractTTC)+" $", props.Text{Top: 4, Align: align.Right}),
		),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	right := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(10,
		text.NewCol(5, "Description", header),
		text.NewCol(1, "#", right),
		text.NewCol(2, "Amount", right),
		text.NewCol(1, "Rate", right),
		text.NewCol(1, "Tax", right),
		text.NewCol(2, "Total to date", right),
	)
	m.AddRow(1, line.NewCol(12))

	for _, row := range data.Rows {
		cell := props.Text{Size: 9}
		if row.Subtotal {
			cell.Style = fontstyle.Bold
		}
		num := cell
		num.Align = align.Right

		claimNumber := ""
		if row.ClaimNumber != nil {
			claimNumber = strconv.Itoa(*row.ClaimNumber)
		}
		m.AddRow(8,
			text.NewCol(5, row.Description, cell),
			text.NewCol(1, claimNumber, num),
			text.NewCol(2, formatMoney(row.Amount), num),
			text.NewCol(1, optionalPercent(row.TaxRate), num),
			text.NewCol(1, optionalMoney(row.TaxAmount), num),
			text.NewCol(2, optionalMoney(row.TotalToDate), num),
		)
	}

	m.AddRow(1, line.NewCol(12))
	totals := []struct {
		label string
		value float64
	}{
		{"Amount", data.Totals.Amount},
		{"Tax", data.Totals.TaxAmount},
		{"Total", data.Totals.Total},
	}
	for _, t := range totals {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, t.label, props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(2, formatMoney(t.value), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func optionalMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return formatMoney(*v)
}

func optionalPercent(v *float64) string {
	if v == nil {
		return ""
	}
	return money.Sprintf("%.3f%%", *v*100)
}
