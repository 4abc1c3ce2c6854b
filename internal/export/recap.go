package export

import (
	"fmt"
	"strings"
	"time"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var money = message.NewPrinter(language.English)

const (
	recapRule  = "════════════════════════════════════════════════════════════"
	unknownTag = "N/A"
)

func formatMoney(v float64) string {
	return money.Sprintf("%.2f", v)
}

type statusTotals struct {
	count    int
	totalHT  float64
	totalTTC float64
}

// auditRecap renders audit-recap.txt: totals, a breakdown by status in first
// seen order and the claim list.
func auditRecap(claims []claimdomain.Claim, files int, now time.Time) string {
	var b strings.Builder
	b.WriteString("╔" + recapRule + "╗\n")
	b.WriteString("║         DOSSIER D'AUDIT - RÉCAPITULATIF DES CLAIMS         ║\n")
	b.WriteString("╚" + recapRule + "╝\n\n")

	fmt.Fprintf(&b, "Date de création: %s\n", now.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "Nombre de claims: %d\n", len(claims))
	fmt.Fprintf(&b, "Nombre de fichiers: %d\n\n", files)

	var totalHT, totalTTC float64
	var order []string
	byStatus := make(map[string]*statusTotals)
	for _, c := range claims {
		ht, ttc := amounts(c)
		totalHT += ht
		totalTTC += ttc

		status := deref(c.Status)
		if status == "" {
			status = "Non défini"
		}
		t, ok := byStatus[status]
		if !ok {
			t = &statusTotals{}
			byStatus[status] = t
			order = append(order, status)
		}
		t.count++
		t.totalHT += ht
		t.totalTTC += ttc
	}

	b.WriteString("─ RÉSUMÉ FINANCIER ─\n")
	fmt.Fprintf(&b, "Total Montant HT: %s $\n", formatMoney(totalHT))
	fmt.Fprintf(&b, "Total Montant TTC: %s $\n\n", formatMoney(totalTTC))

	b.WriteString("─ PAR STATUT ─\n")
	for _, status := range order {
		t := byStatus[status]
		fmt.Fprintf(&b, "\n%s:\n", status)
		fmt.Fprintf(&b, "  - Nombre: %d\n", t.count)
		fmt.Fprintf(&b, "  - Montant HT: %s $\n", formatMoney(t.totalHT))
		fmt.Fprintf(&b, "  - Montant TTC: %s $\n", formatMoney(t.totalTTC))
	}

	b.WriteString("\n─ LISTE DES CLAIMS ─\n")
	for i, c := range claims {
		ht, ttc := amounts(c)
		date := unknownTag
		if c.InvoiceDate != nil {
			date = c.InvoiceDate.Format(time.DateOnly)
		}
		fmt.Fprintf(&b, "\n%d. %s - %s\n", i+1, orDefault(deref(c.Step), unknownTag), c.Type)
		fmt.Fprintf(&b, "   Projet: %s\n", orDefault(c.ProjectCode(), unknownTag))
		fmt.Fprintf(&b, "   Date: %s\n", date)
		fmt.Fprintf(&b, "   Description: %s\n", orDefault(deref(c.Description), "-"))
		fmt.Fprintf(&b, "   Montant HT: %s $ | TTC: %s $\n", formatMoney(ht), formatMoney(ttc))
		fmt.Fprintf(&b, "   Statut: %s\n", orDefault(deref(c.Status), unknownTag))
		fmt.Fprintf(&b, "   Facture: %s\n", orDefault(deref(c.InvoiceNumber), unknownTag))
	}

	b.WriteString("\n╔" + recapRule + "╗\n")
	b.WriteString("║                    FIN DU RÉCAPITULATIF                    ║\n")
	b.WriteString("╚" + recapRule + "╝\n")
	return b.String()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
