package assigner

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taxfiler-matching-service/internal/matcher"
	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
	"taxfiler-matching-service/pkg/logger"
)

// AssignmentOutcome classifies what happened to one transaction in a
// batch run.
type AssignmentOutcome string

const (
	// OutcomeAssigned means a single best document was attached.
	OutcomeAssigned AssignmentOutcome = "assigned"

	// OutcomeAssignedCombination means a document set was attached.
	OutcomeAssignedCombination AssignmentOutcome = "assigned_combination"

	// OutcomeNoMatch means no candidate reached the minimum score.
	OutcomeNoMatch AssignmentOutcome = "no_match"

	// OutcomeSkipped means every viable candidate was already claimed
	// earlier in the same run.
	OutcomeSkipped AssignmentOutcome = "skipped"

	// OutcomeFailed means attachment creation failed.
	OutcomeFailed AssignmentOutcome = "failed"
)

// TransactionResult records the batch outcome for one transaction.
type TransactionResult struct {
	TransactionID string            `json:"transaction_id"`
	Outcome       AssignmentOutcome `json:"outcome"`
	DocumentIDs   []string          `json:"document_ids,omitempty"`
	Score         float64           `json:"score,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// BatchSummary aggregates one automatic assignment run.
type BatchSummary struct {
	Processed    int                  `json:"processed"`
	Assigned     int                  `json:"assigned"`
	Combinations int                  `json:"combinations"`
	NoMatch      int                  `json:"no_match"`
	Skipped      int                  `json:"skipped"`
	Failed       int                  `json:"failed"`
	Duration     time.Duration        `json:"duration"`
	Results      []*TransactionResult `json:"results"`
	Issues       []string             `json:"issues,omitempty"`
}

// scoredTransaction carries the scoring-phase output for one
// transaction into the serialized attach phase.
type scoredTransaction struct {
	index       int
	transaction *models.FinancialTransaction
	candidates  []*matcher.MatchCandidate
	err         error
}

// AutoAssign scores every tax or VAT relevant transaction against the
// unconnected documents and attaches the single best candidate per
// transaction. Scoring runs on the configured number of workers; the
// attach phase is serialized and checks for cancellation between
// transactions. A document assigned earlier in the run is not offered
// to later transactions.
func (s *Service) AutoAssign(ctx context.Context) (*BatchSummary, error) {
	return s.autoAssign(ctx, false)
}

// AutoAssignMultiple behaves like AutoAssign but, for transactions
// where no single document qualifies, also tries document combinations
// (split payments, invoices paid together). Combinations are seeded by
// voucher numbers extracted from the transaction note, then extended by
// amount-sum proximity, and must pass multi-amount validation before
// being attached.
func (s *Service) AutoAssignMultiple(ctx context.Context) (*BatchSummary, error) {
	return s.autoAssign(ctx, true)
}

func (s *Service) autoAssign(ctx context.Context, combinations bool) (*BatchSummary, error) {
	start := time.Now()

	relevant, err := s.transactions.ListRelevant(ctx)
	if err != nil {
		return nil, err
	}

	// Only transactions without an attachment take part. A re-run must
	// not hand a second document to an already matched transaction.
	transactions := make([]*models.FinancialTransaction, 0, len(relevant))
	for _, txn := range relevant {
		existing, err := s.attachments.ListByTransaction(ctx, txn.ID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			continue
		}
		transactions = append(transactions, txn)
	}

	documents, err := s.documents.ListUnconnected(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"relevant":     len(relevant),
		"transactions": len(transactions),
		"documents":    len(documents),
		"combinations": combinations,
		"dry_run":      s.config.DryRun,
	}).Info("Automatic assignment started")

	scored, err := s.scoreAll(ctx, transactions, documents)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{
		Results: make([]*TransactionResult, 0, len(scored)),
	}

	// Attach phase: serialized, deterministic, documents claimed in
	// order so earlier transactions win ties for the same document.
	claimed := make(map[string]bool)
	for _, st := range scored {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, errors.Wrap(err, errors.CategoryMatching, errors.CodeProcessingError,
				"automatic assignment cancelled")
		}

		summary.Processed++

		if st.err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues, st.err.Error())
			summary.Results = append(summary.Results, &TransactionResult{
				TransactionID: st.transaction.ID,
				Outcome:       OutcomeFailed,
				Reason:        st.err.Error(),
			})
			continue
		}

		result := s.attachBest(ctx, st, documents, claimed, combinations)
		summary.Results = append(summary.Results, result)

		switch result.Outcome {
		case OutcomeAssigned:
			summary.Assigned++
		case OutcomeAssignedCombination:
			summary.Assigned++
			summary.Combinations++
		case OutcomeNoMatch:
			summary.NoMatch++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
			if result.Reason != "" {
				summary.Issues = append(summary.Issues, result.Reason)
			}
		}
	}

	summary.Duration = time.Since(start)

	s.logger.WithFields(logger.Fields{
		"processed":    summary.Processed,
		"assigned":     summary.Assigned,
		"combinations": summary.Combinations,
		"no_match":     summary.NoMatch,
		"skipped":      summary.Skipped,
		"failed":       summary.Failed,
		"duration":     summary.Duration.Round(time.Millisecond).String(),
	}).Info("Automatic assignment finished")

	return summary, nil
}

// scoreAll runs the scoring phase on a worker pool. Results come back
// in input order regardless of which worker finished first.
func (s *Service) scoreAll(ctx context.Context, transactions []*models.FinancialTransaction, documents []*models.TaxDocument) ([]*scoredTransaction, error) {
	scored := make([]*scoredTransaction, len(transactions))
	jobs := make(chan int)

	progress := logger.NewProgressTracker(s.logger, "scoring", len(transactions), s.config.ProgressInterval)

	var wg sync.WaitGroup
	workers := s.config.Concurrency
	if workers > len(transactions) && len(transactions) > 0 {
		workers = len(transactions)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				st := &scoredTransaction{
					index:       i,
					transaction: transactions[i],
				}
				st.candidates = s.engine.RankMatches(transactions[i], documents)
				if limit := s.engine.Config.MaxCandidateDocuments; limit > 0 && len(st.candidates) > limit {
					st.candidates = st.candidates[:limit]
				}
				scored[i] = st
				progress.Increment(1)
			}
		}()
	}

	for i := range transactions {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, errors.Wrap(ctx.Err(), errors.CategoryMatching, errors.CodeProcessingError,
				"scoring phase cancelled")
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	progress.Finish()

	// Jobs submitted before cancellation may leave trailing nil slots.
	results := make([]*scoredTransaction, 0, len(scored))
	for _, st := range scored {
		if st != nil {
			results = append(results, st)
		}
	}
	return results, nil
}

// attachBest picks and attaches the best unclaimed candidate for one
// transaction, falling back to combinations when enabled.
func (s *Service) attachBest(ctx context.Context, st *scoredTransaction, documents []*models.TaxDocument, claimed map[string]bool, combinations bool) *TransactionResult {
	result := &TransactionResult{TransactionID: st.transaction.ID}

	var best *matcher.MatchCandidate
	hadCandidates := len(st.candidates) > 0
	for _, candidate := range st.candidates {
		if claimed[candidate.Document.ID] {
			continue
		}
		best = candidate
		break
	}

	if best != nil {
		result.Outcome = OutcomeAssigned
		result.DocumentIDs = []string{best.Document.ID}
		result.Score = best.Breakdown.Composite

		if !s.config.DryRun {
			if err := s.attach(ctx, st.transaction, []*models.TaxDocument{best.Document}, true); err != nil {
				result.Outcome = OutcomeFailed
				result.Reason = err.Error()
				return result
			}
		}
		claimed[best.Document.ID] = true
		return result
	}

	if combinations {
		combo := s.bestCombination(st.transaction, documents, claimed)
		if combo != nil {
			result.Outcome = OutcomeAssignedCombination
			result.Score = combo.Composite
			for _, doc := range combo.Documents {
				result.DocumentIDs = append(result.DocumentIDs, doc.ID)
			}

			if !s.config.DryRun {
				if err := s.attach(ctx, st.transaction, combo.Documents, true); err != nil {
					result.Outcome = OutcomeFailed
					result.Reason = err.Error()
					return result
				}
			}
			for _, doc := range combo.Documents {
				claimed[doc.ID] = true
			}
			return result
		}
	}

	if hadCandidates {
		result.Outcome = OutcomeSkipped
		result.Reason = "all qualifying documents were assigned to earlier transactions"
	} else {
		result.Outcome = OutcomeNoMatch
		result.Reason = "no document reached the minimum match score"
	}
	return result
}

// bestCombination searches document sets for one transaction. Documents
// whose invoice numbers match voucher numbers from the transaction note
// form the seed set; beyond that, subsets of the closest-scoring
// candidates are enumerated up to the configured combination size. A
// combination must pass multi-amount validation and reach the minimum
// match score.
func (s *Service) bestCombination(transaction *models.FinancialTransaction, documents []*models.TaxDocument, claimed map[string]bool) *matcher.CombinationScore {
	available := make([]*models.TaxDocument, 0, len(documents))
	for _, doc := range documents {
		if doc == nil || claimed[doc.ID] {
			continue
		}
		if !doc.Unconnected && !s.engine.Config.IncludeConnectedDocuments {
			continue
		}
		available = append(available, doc)
	}
	if len(available) < 2 {
		return nil
	}

	minScore := s.engine.Config.MinimumMatchScore
	var best *matcher.CombinationScore

	consider := func(set []*models.TaxDocument) {
		validation := matcher.ValidateMultipleAmounts(transaction.AbsoluteAmount(), set)
		if !validation.IsValid {
			return
		}
		score := s.engine.ScoreCombination(transaction, set)
		if score.Composite < minScore {
			return
		}
		if best == nil || score.Composite > best.Composite {
			copied := make([]*models.TaxDocument, len(set))
			copy(copied, set)
			score.Documents = copied
			best = &score
		}
	}

	// Voucher-seeded set first: if the note names several invoices and
	// they are all present, that exact set is the natural candidate.
	if seed := s.voucherSet(transaction, available); len(seed) >= 2 {
		consider(seed)
		if best != nil {
			return best
		}
	}

	pool := s.combinationPool(transaction, available)

	maxSize := s.engine.Config.MaxCombinationDocuments
	if maxSize < 2 {
		maxSize = 2
	}
	if maxSize > len(pool) {
		maxSize = len(pool)
	}

	set := make([]*models.TaxDocument, 0, maxSize)
	var enumerate func(start, size int)
	enumerate = func(start, size int) {
		if len(set) == size {
			consider(set)
			return
		}
		for i := start; i < len(pool); i++ {
			set = append(set, pool[i])
			enumerate(i+1, size)
			set = set[:len(set)-1]
		}
	}
	for size := 2; size <= maxSize; size++ {
		enumerate(0, size)
	}

	return best
}

// voucherSet returns the documents whose invoice numbers match voucher
// numbers extracted from the transaction note.
func (s *Service) voucherSet(transaction *models.FinancialTransaction, documents []*models.TaxDocument) []*models.TaxDocument {
	vouchers := matcher.ExtractVoucherNumbers(transaction.Note)
	if len(vouchers) < 2 {
		return nil
	}

	var set []*models.TaxDocument
	for _, voucher := range vouchers {
		for _, doc := range documents {
			if doc.InvoiceNumber == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(doc.InvoiceNumber), voucher) {
				set = append(set, doc)
				break
			}
		}
	}
	return set
}

// combinationPool orders the available documents by individual score
// against the transaction and caps the pool so subset enumeration stays
// bounded.
func (s *Service) combinationPool(transaction *models.FinancialTransaction, documents []*models.TaxDocument) []*models.TaxDocument {
	type scoredDoc struct {
		doc   *models.TaxDocument
		score float64
	}

	pool := make([]scoredDoc, 0, len(documents))
	for _, doc := range documents {
		breakdown := s.engine.ScoreDocument(transaction, doc)
		pool = append(pool, scoredDoc{doc: doc, score: breakdown.Composite})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].score > pool[j].score
	})

	limit := s.engine.Config.MaxCandidateDocuments
	if limit <= 0 || limit > len(pool) {
		limit = len(pool)
	}

	docs := make([]*models.TaxDocument, limit)
	for i := 0; i < limit; i++ {
		docs[i] = pool[i].doc
	}
	return docs
}
