// Command generate produces sample datasets for exercising the
// taxmatcher CLI: a transactions JSON file, a documents JSON file, and
// a German-style CSV statement export. The generated data covers the
// interesting matching cases: exact matches, Skonto-discounted
// payments, split payments across several invoices, and noise records
// that should stay unmatched.
//
// Usage:
//
//	go run generate.go -output-dir ../generated -transactions 50
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"taxfiler-matching-service/internal/models"
)

var vendors = []string{
	"REWE Markt GmbH",
	"Stadtwerke München",
	"Schmidt & Partner GmbH",
	"Bürobedarf Müller",
	"Hosting Provider AG",
	"Druckerei Weber KG",
}

func main() {
	var (
		outputDir = flag.String("output-dir", "../generated", "output directory for generated files")
		count     = flag.Int("transactions", 40, "number of matched transaction/document pairs")
		noise     = flag.Int("noise", 10, "number of unmatched transactions and documents")
		seed      = flag.Int64("seed", 42, "random seed for reproducible datasets")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	transactions, documents := buildDataset(rng, *count, *noise)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if err := writeJSON(filepath.Join(*outputDir, "transactions.json"), transactions); err != nil {
		log.Fatalf("Failed to write transactions: %v", err)
	}
	if err := writeJSON(filepath.Join(*outputDir, "documents.json"), documents); err != nil {
		log.Fatalf("Failed to write documents: %v", err)
	}
	if err := writeStatementCSV(filepath.Join(*outputDir, "statement.csv"), transactions); err != nil {
		log.Fatalf("Failed to write statement: %v", err)
	}

	fmt.Printf("Generated %d transactions and %d documents in %s\n",
		len(transactions), len(documents), *outputDir)
}

func buildDataset(rng *rand.Rand, count, noise int) ([]*models.FinancialTransaction, []*models.TaxDocument) {
	var transactions []*models.FinancialTransaction
	var documents []*models.TaxDocument

	baseDate := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		vendor := vendors[rng.Intn(len(vendors))]
		invoiceNumber := fmt.Sprintf("RG-2024-%04d", i+1)
		total := decimal.NewFromInt(int64(rng.Intn(95000)+500)).Div(decimal.NewFromInt(100))
		invoiceDate := baseDate.AddDate(0, 0, rng.Intn(300))

		doc := &models.TaxDocument{
			ID:            fmt.Sprintf("DOC-%04d", i+1),
			Total:         total,
			InvoiceDate:   invoiceDate,
			InvoiceNumber: invoiceNumber,
			VendorName:    vendor,
			Unconnected:   true,
		}

		paid := total
		note := fmt.Sprintf("Rechnung %s", invoiceNumber)
		switch i % 5 {
		case 1:
			// Skonto case: paid within the discount window
			doc.SkontoPercent = decimal.NewFromInt(2)
			paid = total.Mul(decimal.NewFromFloat(0.98)).Round(2)
			note = fmt.Sprintf("Rechnung %s abzgl. 2%% Skonto", invoiceNumber)
		case 2:
			// Split payment: second invoice paid with the same transfer
			second := &models.TaxDocument{
				ID:            fmt.Sprintf("DOC-%04d-B", i+1),
				Total:         decimal.NewFromInt(int64(rng.Intn(20000)+500)).Div(decimal.NewFromInt(100)),
				InvoiceDate:   invoiceDate,
				InvoiceNumber: invoiceNumber + "-B",
				VendorName:    vendor,
				Unconnected:   true,
			}
			documents = append(documents, second)
			paid = total.Add(second.Total)
			note = fmt.Sprintf("Rechnungen %s und %s", invoiceNumber, second.InvoiceNumber)
		}

		documents = append(documents, doc)
		transactions = append(transactions, &models.FinancialTransaction{
			ID:               fmt.Sprintf("TX-%04d", i+1),
			GrossAmount:      paid.Neg(),
			ValueDate:        invoiceDate.AddDate(0, 0, rng.Intn(10)),
			CounterpartyName: vendor,
			Note:             note,
			TaxRelevant:      true,
		})
	}

	for i := 0; i < noise; i++ {
		transactions = append(transactions, &models.FinancialTransaction{
			ID:               fmt.Sprintf("TX-NOISE-%03d", i+1),
			GrossAmount:      decimal.NewFromInt(int64(rng.Intn(5000) + 100)).Div(decimal.NewFromInt(100)).Neg(),
			ValueDate:        baseDate.AddDate(0, 0, rng.Intn(300)),
			CounterpartyName: "Privatentnahme",
			Note:             "keine Rechnung",
			TaxRelevant:      true,
		})
		documents = append(documents, &models.TaxDocument{
			ID:            fmt.Sprintf("DOC-NOISE-%03d", i+1),
			Total:         decimal.NewFromInt(int64(rng.Intn(5000) + 100)).Div(decimal.NewFromInt(100)),
			InvoiceDate:   baseDate.AddDate(0, 0, rng.Intn(300)),
			InvoiceNumber: fmt.Sprintf("X-%03d", i+1),
			VendorName:    "Fremdfirma GmbH",
			Unconnected:   true,
		})
	}

	return transactions, documents
}

func writeJSON(path string, payload interface{}) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func writeStatementCSV(path string, transactions []*models.FinancialTransaction) error {
	var sb strings.Builder
	sb.WriteString("Referenz;Wertstellung;Betrag;Verwendungszweck;Beguenstigter/Zahlungspflichtiger\n")
	for _, t := range transactions {
		amount := strings.ReplaceAll(t.GrossAmount.StringFixed(2), ".", ",")
		sb.WriteString(fmt.Sprintf("%s;%s;%s;%s;%s\n",
			t.ID,
			t.ValueDate.Format("02.01.2006"),
			amount,
			t.Note,
			t.CounterpartyName))
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
