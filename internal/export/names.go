package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

var (
	unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

const maxFileNameLen = 200

// SanitizeFileName transliterates accents and replaces anything outside
// [A-Za-z0-9._-] so the name is safe inside a ZIP on every platform.
func SanitizeFileName(name string) string {
	if name == "" {
		name = "fichier"
	}
	out := unidecode.Unidecode(name)
	out = unsafeFileChars.ReplaceAllString(out, "_")
	out = underscoreRuns.ReplaceAllString(out, "_")
	out = strings.TrimLeft(out, ".")
	if len(out) > maxFileNameLen {
		out = out[:maxFileNameLen]
	}
	return out
}

// ClaimRef is the fallback reference of a claim without one: its 1-based
// position in the full list, or the list length when absent.
func ClaimRef(all []int64, id int64) string {
	pos := len(all)
	for i, candidate := range all {
		if candidate == id {
			pos = i + 1
			break
		}
	}
	return fmt.Sprintf("Claim-%03d", pos)
}

// invoiceFileName builds claim-<id>-ref-<ref>-inv-<inv>-NN.<ext>.
func invoiceFileName(claimID int64, ref, invoice, original string, seq int) string {
	ext := ""
	if dot := strings.LastIndex(original, "."); dot > -1 {
		ext = strings.ToLower(SanitizeFileName(original[dot+1:]))
	}

	parts := []string{fmt.Sprintf("claim-%d", claimID)}
	if ref != "" {
		parts = append(parts, "ref-"+SanitizeFileName(ref))
	}
	if invoice != "" {
		parts = append(parts, "inv-"+SanitizeFileName(invoice))
	}
	parts = append(parts, fmt.Sprintf("%02d", seq))

	name := strings.Join(parts, "-")
	if ext != "" {
		name += "." + ext
	}
	return SanitizeFileName(name)
}
