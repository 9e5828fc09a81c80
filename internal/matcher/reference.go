package matcher

import (
	"regexp"
	"strings"

	"taxfiler-matching-service/internal/models"
)

// Reference scoring ladder. Containment mirrors vendor scoring: a note
// that contains the full invoice number is stronger evidence than an
// invoice number containing the whole note.
const (
	referenceExactScore       = 1.0
	referenceNoteContainsNo   = 0.8
	referenceNoContainsNote   = 0.7
	referenceDigitRunMaxScore = 0.6
	referencePatternMaxScore  = 0.4

	// minReferenceLength rejects tokens too short to identify anything
	minReferenceLength = 3

	// voucherMatchedThreshold is the single-document score above which
	// an extracted voucher counts as satisfied by some document
	voucherMatchedThreshold = 0.7
)

// referencePlaceholders are tokens produced by upstream extraction when
// no real reference exists. They never match anything.
var referencePlaceholders = map[string]bool{
	"na":      true,
	"null":    true,
	"none":    true,
	"unknown": true,
	"keine":   true,
}

var (
	// voucherLabelPattern strips common German and English invoice
	// label prefixes from extracted tokens ("Rechnung 4711", "RG-Nr.
	// 4711", "Invoice No 4711").
	voucherLabelPattern = regexp.MustCompile(`(?i)\b(rechnungsnummer|rechnungs-?nr\.?|rechnung|rg-?nr\.?|belegnummer|beleg|invoice\s+no\.?|invoice)\b[\s:#]*`)

	// voucherSeparatorPattern splits free text on list separators,
	// including the German conjunctions used in payment notes
	voucherSeparatorPattern = regexp.MustCompile(`(?i)\s*(?:,|;|&|\+|\bund\b|\bsowie\b|\band\b)\s*`)

	// voucherRangePattern recognizes the "A bis B" range form; only the
	// endpoints are taken, not the implied sequence
	voucherRangePattern = regexp.MustCompile(`(?i)^(\S+)\s+bis\s+(\S+)$`)

	digitRunPattern = regexp.MustCompile(`\d+`)
)

// ExtractVoucherNumbers parses free text for one or more reference-like
// tokens. It recognizes comma, semicolon, "and"/"&"/"+" separators and
// their German equivalents, the "A bis B" range form, and common
// invoice label prefixes. Results are deduplicated case-insensitively,
// preserving first-seen order. Blank input yields an empty slice.
func ExtractVoucherNumbers(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = voucherLabelPattern.ReplaceAllString(text, " ")

	var vouchers []string
	seen := make(map[string]bool)

	add := func(token string) {
		token = strings.Trim(token, " \t.,:;-_/")
		if !isUsableReference(token) {
			return
		}
		key := strings.ToLower(token)
		if seen[key] {
			return
		}
		seen[key] = true
		vouchers = append(vouchers, token)
	}

	for _, part := range voucherSeparatorPattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if m := voucherRangePattern.FindStringSubmatch(part); m != nil {
			add(m[1])
			add(m[2])
			continue
		}

		add(part)
	}

	return vouchers
}

// isUsableReference rejects blank strings, placeholder tokens, and
// tokens too short to identify a document.
func isUsableReference(reference string) bool {
	normalized := normalizeReference(reference)
	if len(normalized) < minReferenceLength {
		return false
	}

	return !referencePlaceholders[normalized]
}

// normalizeReference lowercases and removes everything that is not a
// letter or digit, so "INV-001" and "inv 001" compare equal.
func normalizeReference(reference string) string {
	var b strings.Builder
	b.Grow(len(reference))
	for _, r := range strings.ToLower(reference) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r > 127 {
			// Keep non-ASCII letters after generic normalization
			for _, n := range NormalizeString(string(r)) {
				if n != ' ' {
					b.WriteRune(n)
				}
			}
		}
	}
	return b.String()
}

// CalculateReferenceScore scores the transaction's free-text note
// against the document's invoice number, in [0.0, 1.0]. Exact
// normalized equality scores 1.0, containment 0.8/0.7, a shared longest
// digit run up to 0.6 scaled by run length, and generic edit similarity
// up to 0.4. Placeholder or too-short references always score 0.0.
func CalculateReferenceScore(transaction *models.FinancialTransaction, document *models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || document == nil || config == nil {
		return 0.0
	}

	return scoreReferencePair(transaction.Note, document.InvoiceNumber)
}

// CalculateMultiReferenceScore scores a document set against all
// voucher numbers extracted from the transaction note. Each document's
// best single score against any voucher forms the candidate pool; the
// maximum becomes the base score, and a bonus proportional to the
// fraction of vouchers satisfied by some document is added, capped at
// 1.0. When no vouchers can be extracted, the whole note is scored
// against each document instead.
func CalculateMultiReferenceScore(transaction *models.FinancialTransaction, documents []*models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || len(documents) == 0 || config == nil {
		return 0.0
	}

	vouchers := ExtractVoucherNumbers(transaction.Note)

	if len(vouchers) == 0 {
		best := 0.0
		for _, doc := range documents {
			if doc == nil {
				continue
			}
			if score := scoreReferencePair(transaction.Note, doc.InvoiceNumber); score > best {
				best = score
			}
		}
		return best
	}

	base := 0.0
	matchedVouchers := 0

	for _, voucher := range vouchers {
		voucherBest := 0.0
		for _, doc := range documents {
			if doc == nil {
				continue
			}
			if score := scoreReferencePair(voucher, doc.InvoiceNumber); score > voucherBest {
				voucherBest = score
			}
		}

		if voucherBest > base {
			base = voucherBest
		}
		if voucherBest >= voucherMatchedThreshold {
			matchedVouchers++
		}
	}

	bonus := config.ReferenceMatchBonus * float64(matchedVouchers) / float64(len(vouchers))

	score := base + bonus
	if score > 1.0 {
		score = 1.0
	}

	return score
}

// scoreReferencePair applies the reference scoring ladder to one
// reference string and one invoice number.
func scoreReferencePair(reference, invoiceNumber string) float64 {
	if !isUsableReference(reference) || !isUsableReference(invoiceNumber) {
		return 0.0
	}

	ref := normalizeReference(reference)
	inv := normalizeReference(invoiceNumber)

	if ref == inv {
		return referenceExactScore
	}

	if strings.Contains(ref, inv) {
		return referenceNoteContainsNo
	}

	if strings.Contains(inv, ref) {
		return referenceNoContainsNote
	}

	if score := scoreDigitRuns(ref, inv); score > 0.0 {
		return score
	}

	return referencePatternMaxScore * StringSimilarity(reference, invoiceNumber)
}

// scoreDigitRuns compares the longest digit run of each reference.
// Equal runs of at least three digits score up to 0.6, scaled by run
// length; six or more shared digits reach the full 0.6.
func scoreDigitRuns(a, b string) float64 {
	runA := longestDigitRun(a)
	runB := longestDigitRun(b)

	if len(runA) < minReferenceLength || runA != runB {
		return 0.0
	}

	scale := float64(len(runA)) / 6.0
	if scale > 1.0 {
		scale = 1.0
	}

	return referenceDigitRunMaxScore * scale
}

func longestDigitRun(s string) string {
	longest := ""
	for _, run := range digitRunPattern.FindAllString(s, -1) {
		if len(run) > len(longest) {
			longest = run
		}
	}
	return longest
}
