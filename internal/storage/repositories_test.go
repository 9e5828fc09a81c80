package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return db
}

func storedTransaction(id, amount, date string, taxRelevant bool) *models.FinancialTransaction {
	valueDate, _ := time.Parse("2006-01-02", date)
	return &models.FinancialTransaction{
		ID:               id,
		GrossAmount:      decimal.RequireFromString(amount),
		ValueDate:        valueDate,
		CounterpartyName: "REWE Markt GmbH",
		Note:             "Rechnung INV-001",
		TaxRelevant:      taxRelevant,
	}
}

func storedDocument(id, total string) *models.TaxDocument {
	invoiceDate, _ := time.Parse("2006-01-02", "2024-03-14")
	return &models.TaxDocument{
		ID:            id,
		Total:         decimal.RequireFromString(total),
		InvoiceDate:   invoiceDate,
		InvoiceNumber: "INV-001",
		VendorName:    "REWE Markt GmbH",
		Unconnected:   true,
	}
}

func TestDatabasePing(t *testing.T) {
	db := openTestDatabase(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestTransactionRoundtrip(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	original := storedTransaction("TX001", "-119.00", "2024-03-15", true)
	if err := db.Transactions().Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := db.Transactions().GetByID(ctx, "TX001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !loaded.GrossAmount.Equal(original.GrossAmount) {
		t.Errorf("Amount changed in storage: %s vs %s", loaded.GrossAmount, original.GrossAmount)
	}
	if loaded.ValueDate.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("Value date changed in storage: %v", loaded.ValueDate)
	}
	if loaded.Note != original.Note {
		t.Errorf("Note changed in storage: %q", loaded.Note)
	}
}

func TestTransactionGetByIDNotFound(t *testing.T) {
	db := openTestDatabase(t)

	_, err := db.Transactions().GetByID(context.Background(), "TX404")
	if err == nil {
		t.Fatal("Missing transaction should yield an error")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestTransactionSaveUpserts(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	transaction := storedTransaction("TX001", "-119.00", "2024-03-15", true)
	if err := db.Transactions().Save(ctx, transaction); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	transaction.Note = "updated note"
	if err := db.Transactions().Save(ctx, transaction); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := db.Transactions().GetByID(ctx, "TX001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if loaded.Note != "updated note" {
		t.Errorf("Save should update the existing row, got %q", loaded.Note)
	}
}

func TestTransactionListRelevant(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	vat := storedTransaction("TX-VAT", "-50.00", "2024-02-01", false)
	vat.VatRelevant = true
	transactions := []*models.FinancialTransaction{
		storedTransaction("TX-TAX", "-119.00", "2024-03-15", true),
		vat,
		storedTransaction("TX-NONE", "-10.00", "2024-01-01", false),
	}
	if err := db.Transactions().SaveAll(ctx, transactions); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	relevant, err := db.Transactions().ListRelevant(ctx)
	if err != nil {
		t.Fatalf("ListRelevant failed: %v", err)
	}
	if len(relevant) != 2 {
		t.Fatalf("Expected 2 relevant transactions, got %d", len(relevant))
	}
	// Newest value date first
	if relevant[0].ID != "TX-TAX" || relevant[1].ID != "TX-VAT" {
		t.Errorf("Unexpected order: %s, %s", relevant[0].ID, relevant[1].ID)
	}
}

func TestTransactionListUnmatched(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	transactions := []*models.FinancialTransaction{
		storedTransaction("TX-MATCHED", "-119.00", "2024-03-15", true),
		storedTransaction("TX-OPEN", "-50.00", "2024-03-10", true),
		storedTransaction("TX-OUTSIDE", "-20.00", "2023-12-01", true),
	}
	if err := db.Transactions().SaveAll(ctx, transactions); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	if err := db.Documents().Save(ctx, storedDocument("DOC-1", "119.00")); err != nil {
		t.Fatalf("Save document failed: %v", err)
	}
	err := db.Attachments().Create(ctx, &models.Attachment{
		TransactionID: "TX-MATCHED",
		DocumentID:    "DOC-1",
		AttachedBy:    models.ActorAutomatic,
		Automatic:     true,
	})
	if err != nil {
		t.Fatalf("Create attachment failed: %v", err)
	}

	from, _ := time.Parse("2006-01-02", "2024-01-01")
	to, _ := time.Parse("2006-01-02", "2024-12-31")
	unmatched, err := db.Transactions().ListUnmatched(ctx, from, to)
	if err != nil {
		t.Fatalf("ListUnmatched failed: %v", err)
	}
	if len(unmatched) != 1 || unmatched[0].ID != "TX-OPEN" {
		ids := make([]string, 0, len(unmatched))
		for _, tx := range unmatched {
			ids = append(ids, tx.ID)
		}
		t.Errorf("Expected only TX-OPEN, got %v", ids)
	}

	// Zero bounds disable the period filter
	unmatched, err = db.Transactions().ListUnmatched(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListUnmatched without bounds failed: %v", err)
	}
	if len(unmatched) != 2 {
		t.Errorf("Expected 2 unmatched transactions without bounds, got %d", len(unmatched))
	}
}

func TestDocumentRoundtrip(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	original := storedDocument("DOC-1", "119.00")
	original.SkontoPercent = decimal.RequireFromString("2")
	if err := db.Documents().Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := db.Documents().GetByID(ctx, "DOC-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !loaded.Total.Equal(original.Total) {
		t.Errorf("Total changed in storage: %s", loaded.Total)
	}
	if !loaded.SkontoPercent.Equal(original.SkontoPercent) {
		t.Errorf("Skonto changed in storage: %s", loaded.SkontoPercent)
	}
	if !loaded.HasInvoiceDate() {
		t.Error("Invoice date should survive the roundtrip")
	}
	if loaded.HasFolderDate() {
		t.Error("Absent folder date should stay absent")
	}
	if !loaded.Unconnected {
		t.Error("Document should start unconnected")
	}
}

func TestDocumentMarkConnected(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	docs := []*models.TaxDocument{
		storedDocument("DOC-1", "119.00"),
		storedDocument("DOC-2", "50.00"),
	}
	if err := db.Documents().SaveAll(ctx, docs); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	if err := db.Documents().MarkConnected(ctx, []string{"DOC-1"}); err != nil {
		t.Fatalf("MarkConnected failed: %v", err)
	}

	unconnected, err := db.Documents().ListUnconnected(ctx)
	if err != nil {
		t.Fatalf("ListUnconnected failed: %v", err)
	}
	if len(unconnected) != 1 || unconnected[0].ID != "DOC-2" {
		t.Errorf("Expected only DOC-2 unconnected, got %d documents", len(unconnected))
	}

	all, err := db.Documents().ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 documents total, got %d", len(all))
	}
}

func TestAttachmentCreateFillsDefaults(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	attachment := &models.Attachment{
		TransactionID: "TX001",
		DocumentID:    "DOC-1",
		AttachedBy:    models.ActorAutomatic,
		Automatic:     true,
	}
	if err := db.Attachments().Create(ctx, attachment); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if attachment.ID == "" {
		t.Error("Create should assign an ID")
	}
	if attachment.AttachedAt.IsZero() {
		t.Error("Create should stamp the attachment time")
	}

	exists, err := db.Attachments().Exists(ctx, "TX001", "DOC-1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Created attachment should exist")
	}
}

func TestAttachmentDuplicatePair(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	first := &models.Attachment{TransactionID: "TX001", DocumentID: "DOC-1", AttachedBy: "alice"}
	if err := db.Attachments().Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	duplicate := &models.Attachment{TransactionID: "TX001", DocumentID: "DOC-1", AttachedBy: "bob"}
	err := db.Attachments().Create(ctx, duplicate)
	if err == nil {
		t.Fatal("Duplicate pair should be rejected")
	}
	if !errors.IsDuplicateAttachment(err) {
		t.Errorf("Expected duplicate attachment error, got %v", err)
	}
}

func TestAttachmentCreateAllAtomic(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	existing := &models.Attachment{TransactionID: "TX001", DocumentID: "DOC-1", AttachedBy: "alice"}
	if err := db.Attachments().Create(ctx, existing); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	batch := []*models.Attachment{
		{TransactionID: "TX001", DocumentID: "DOC-2", AttachedBy: "alice"},
		{TransactionID: "TX001", DocumentID: "DOC-1", AttachedBy: "alice"}, // duplicate
	}
	if err := db.Attachments().CreateAll(ctx, batch); err == nil {
		t.Fatal("Batch containing a duplicate should fail")
	}

	attachments, err := db.Attachments().ListByTransaction(ctx, "TX001")
	if err != nil {
		t.Fatalf("ListByTransaction failed: %v", err)
	}
	if len(attachments) != 1 {
		t.Errorf("Failed batch must leave no partial writes, got %d attachments", len(attachments))
	}
}

func TestAttachmentDelete(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	attachment := &models.Attachment{TransactionID: "TX001", DocumentID: "DOC-1", AttachedBy: "alice"}
	if err := db.Attachments().Create(ctx, attachment); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := db.Attachments().Delete(ctx, "TX001", "DOC-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := db.Attachments().Exists(ctx, "TX001", "DOC-1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Deleted attachment should not exist")
	}

	if err := db.Attachments().Delete(ctx, "TX001", "DOC-1"); err == nil {
		t.Error("Deleting a missing attachment should fail")
	}
}
