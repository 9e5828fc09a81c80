package assigner

import (
	"context"
	"testing"
)

func TestAutoAssignAttachesBestCandidate(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-OTHER", "500.00", "2023-01-01", "OLD-99", "Stadtwerke"),
		testDocument(t, "DOC-MATCH", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.Processed != 1 || summary.Assigned != 1 {
		t.Errorf("Expected 1 processed and 1 assigned, got %d/%d", summary.Processed, summary.Assigned)
	}
	if len(summary.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(summary.Results))
	}

	result := summary.Results[0]
	if result.Outcome != OutcomeAssigned {
		t.Errorf("Expected outcome %s, got %s", OutcomeAssigned, result.Outcome)
	}
	if len(result.DocumentIDs) != 1 || result.DocumentIDs[0] != "DOC-MATCH" {
		t.Errorf("Expected DOC-MATCH attached, got %v", result.DocumentIDs)
	}
	if result.Score <= 0 {
		t.Error("Assigned result should carry a positive score")
	}

	if len(attachments.attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(attachments.attachments))
	}
	attachment := attachments.attachments[0]
	if !attachment.Automatic {
		t.Error("Batch attachments should be flagged automatic")
	}
	if !documents.connected["DOC-MATCH"] {
		t.Error("Attached document should be marked connected")
	}
}

func TestAutoAssignSkipsAlreadyAttachedTransactions(t *testing.T) {
	// Two equally good documents for one transaction. The first run
	// attaches one; a second run must leave the transaction alone
	// instead of handing it the other document.
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
		testDocument(t, "DOC-2", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	first, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("first AutoAssign failed: %v", err)
	}
	if first.Assigned != 1 {
		t.Fatalf("Expected 1 assignment on the first run, got %d", first.Assigned)
	}

	second, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("second AutoAssign failed: %v", err)
	}
	if second.Processed != 0 || second.Assigned != 0 {
		t.Errorf("Second run should not process the attached transaction, got %d processed / %d assigned",
			second.Processed, second.Assigned)
	}

	existing, err := attachments.ListByTransaction(context.Background(), "TX001")
	if err != nil {
		t.Fatalf("ListByTransaction failed: %v", err)
	}
	if len(existing) != 1 {
		t.Errorf("Expected TX001 to keep exactly 1 attachment, got %d", len(existing))
	}
}

func TestAutoAssignEarlierTransactionWinsDocument(t *testing.T) {
	// Both transactions match the single document equally well. The one
	// listed first claims it; the second is skipped, not failed.
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
		testTransaction(t, "TX002", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.Assigned != 1 || summary.Skipped != 1 {
		t.Errorf("Expected 1 assigned and 1 skipped, got %d/%d", summary.Assigned, summary.Skipped)
	}

	byID := make(map[string]*TransactionResult)
	for _, result := range summary.Results {
		byID[result.TransactionID] = result
	}
	if byID["TX001"].Outcome != OutcomeAssigned {
		t.Errorf("TX001 should win the document, got %s", byID["TX001"].Outcome)
	}
	if byID["TX002"].Outcome != OutcomeSkipped {
		t.Errorf("TX002 should be skipped, got %s", byID["TX002"].Outcome)
	}
	if byID["TX002"].Reason == "" {
		t.Error("Skipped result should explain why")
	}
	if len(attachments.attachments) != 1 {
		t.Errorf("Expected exactly 1 attachment, got %d", len(attachments.attachments))
	}
}

func TestAutoAssignNoMatch(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-42.00", "2024-03-15", "Umbrella Corp", ""),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "900.00", "2021-06-01", "X-1", "Stadtwerke"),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.NoMatch != 1 {
		t.Errorf("Expected 1 no-match, got %d", summary.NoMatch)
	}
	if summary.Results[0].Outcome != OutcomeNoMatch {
		t.Errorf("Expected outcome %s, got %s", OutcomeNoMatch, summary.Results[0].Outcome)
	}
	if len(attachments.attachments) != 0 {
		t.Error("No-match run must not create attachments")
	}
}

func TestAutoAssignDryRun(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
		testTransaction(t, "TX002", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	attachments := newFakeAttachmentStore()
	config := DefaultConfig()
	config.DryRun = true
	service := newTestService(t, config, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.Assigned != 1 || summary.Skipped != 1 {
		t.Errorf("Dry run should report the same outcomes, got %d/%d", summary.Assigned, summary.Skipped)
	}
	if len(attachments.attachments) != 0 {
		t.Error("Dry run must not create attachments")
	}
	if documents.connected["DOC-1"] {
		t.Error("Dry run must not mark documents connected")
	}
}

func TestAutoAssignMultipleFindsCombination(t *testing.T) {
	// Neither document qualifies on its own (no vendor or date signal,
	// partial amount), but together they cover the transaction exactly
	// and both invoice numbers appear in the note.
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-150.00", "2024-03-15", "Umbrella Corp",
			"Rechnungen INV-A1 und INV-B2"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-A", "100.00", "", "INV-A1", ""),
		testDocument(t, "DOC-B", "50.00", "", "INV-B2", ""),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssignMultiple(context.Background())
	if err != nil {
		t.Fatalf("AutoAssignMultiple failed: %v", err)
	}

	if summary.Combinations != 1 || summary.Assigned != 1 {
		t.Errorf("Expected 1 combination assignment, got assigned=%d combinations=%d",
			summary.Assigned, summary.Combinations)
	}

	result := summary.Results[0]
	if result.Outcome != OutcomeAssignedCombination {
		t.Fatalf("Expected outcome %s, got %s (%s)", OutcomeAssignedCombination, result.Outcome, result.Reason)
	}
	if len(result.DocumentIDs) != 2 {
		t.Errorf("Expected 2 documents in the combination, got %v", result.DocumentIDs)
	}
	if len(attachments.attachments) != 2 {
		t.Errorf("Expected 2 attachments, got %d", len(attachments.attachments))
	}
	if !documents.connected["DOC-A"] || !documents.connected["DOC-B"] {
		t.Error("Combination documents should be marked connected")
	}
}

func TestAutoAssignMultipleRejectsBadSum(t *testing.T) {
	// The documents sum 40% past the transaction amount, so no
	// combination validates.
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-100.00", "2024-03-15", "Umbrella Corp",
			"Rechnungen INV-A1 und INV-B2"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-A", "90.00", "", "INV-A1", ""),
		testDocument(t, "DOC-B", "50.00", "", "INV-B2", ""),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssignMultiple(context.Background())
	if err != nil {
		t.Fatalf("AutoAssignMultiple failed: %v", err)
	}

	if summary.Assigned != 0 {
		t.Errorf("Expected no assignment, got %d", summary.Assigned)
	}
	if len(attachments.attachments) != 0 {
		t.Error("Invalid combinations must not be attached")
	}
}

func TestAutoAssignWithoutCombinationsLeavesSplitPayment(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-150.00", "2024-03-15", "Umbrella Corp",
			"Rechnungen INV-A1 und INV-B2"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-A", "100.00", "", "INV-A1", ""),
		testDocument(t, "DOC-B", "50.00", "", "INV-B2", ""),
	)
	attachments := newFakeAttachmentStore()
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.Assigned != 0 || summary.NoMatch != 1 {
		t.Errorf("Combinations are opt-in, got assigned=%d no_match=%d", summary.Assigned, summary.NoMatch)
	}
}

func TestAutoAssignAttachFailure(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	attachments := newFakeAttachmentStore()
	attachments.failCreate = true
	service := newTestService(t, nil, transactions, documents, attachments)

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("Expected 1 failure, got %d", summary.Failed)
	}
	if summary.Results[0].Outcome != OutcomeFailed {
		t.Errorf("Expected outcome %s, got %s", OutcomeFailed, summary.Results[0].Outcome)
	}
	if len(summary.Issues) == 0 {
		t.Error("Failure should be recorded in the issues list")
	}
}

func TestAutoAssignCancelled(t *testing.T) {
	transactions := newFakeTransactionStore(
		testTransaction(t, "TX001", "-119.00", "2024-03-15", "REWE", "Rechnung INV-001"),
	)
	documents := newFakeDocumentStore(
		testDocument(t, "DOC-1", "119.00", "2024-03-14", "INV-001", "REWE Markt GmbH"),
	)
	service := newTestService(t, nil, transactions, documents, newFakeAttachmentStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := service.AutoAssign(ctx); err == nil {
		t.Error("Cancelled context should abort the run")
	}
}

func TestAutoAssignEmptyInputs(t *testing.T) {
	service := newTestService(t, nil, newFakeTransactionStore(), newFakeDocumentStore(), newFakeAttachmentStore())

	summary, err := service.AutoAssign(context.Background())
	if err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}
	if summary.Processed != 0 || len(summary.Results) != 0 {
		t.Errorf("Empty inputs should produce an empty summary, got %+v", summary)
	}
}
