// Package assigner orchestrates the matching workflow: it loads
// candidates from storage, ranks them with the matching engine, and
// creates attachments for confident matches. Scoring is pure and runs
// concurrently; attachment creation is serialized so a document is
// never claimed by two transactions in the same run.
package assigner

import (
	"context"
	"time"

	"taxfiler-matching-service/internal/matcher"
	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
	"taxfiler-matching-service/pkg/logger"
)

// TransactionStore is the transaction access the service needs.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (*models.FinancialTransaction, error)
	ListRelevant(ctx context.Context) ([]*models.FinancialTransaction, error)
}

// DocumentStore is the document access the service needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.TaxDocument, error)
	ListUnconnected(ctx context.Context) ([]*models.TaxDocument, error)
	MarkConnected(ctx context.Context, ids []string) error
}

// AttachmentStore is the attachment access the service needs. CreateAll
// must be atomic: on any failure no attachment of the batch is kept.
type AttachmentStore interface {
	Create(ctx context.Context, a *models.Attachment) error
	CreateAll(ctx context.Context, attachments []*models.Attachment) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*models.Attachment, error)
	Exists(ctx context.Context, transactionID, documentID string) (bool, error)
}

// Config holds service-level settings on top of the matching
// configuration.
type Config struct {
	// Matching is the engine configuration. Nil falls back to defaults.
	Matching *matcher.MatchingConfig

	// Concurrency is the number of scoring workers for batch runs.
	Concurrency int

	// DryRun scores and reports without writing attachments.
	DryRun bool

	// Actor is recorded on attachments created by this service.
	Actor string

	// ProgressInterval controls how often batch progress is logged.
	ProgressInterval time.Duration
}

// DefaultConfig returns service defaults for automatic batch runs.
func DefaultConfig() *Config {
	return &Config{
		Matching:         matcher.DefaultMatchingConfig(),
		Concurrency:      4,
		Actor:            models.ActorAutomatic,
		ProgressInterval: 5 * time.Second,
	}
}

// Validate validates the service configuration.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "assigner.concurrency",
			[]string{"concurrency must be positive"})
	}
	if c.Actor == "" {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "assigner.actor",
			[]string{"actor must not be empty"})
	}
	if c.Matching != nil {
		if err := c.Matching.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Service wires the matching engine to storage.
type Service struct {
	engine       *matcher.Engine
	transactions TransactionStore
	documents    DocumentStore
	attachments  AttachmentStore
	config       *Config
	logger       logger.Logger
}

// NewService creates an assignment service. A nil config falls back to
// the defaults.
func NewService(transactions TransactionStore, documents DocumentStore, attachments AttachmentStore, config *Config) (*Service, error) {
	if transactions == nil || documents == nil || attachments == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "stores", nil, nil).
			WithSuggestion("provide transaction, document, and attachment stores")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if config.Matching == nil {
		config.Matching = matcher.DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		engine:       matcher.NewEngine(config.Matching),
		transactions: transactions,
		documents:    documents,
		attachments:  attachments,
		config:       config,
		logger:       logger.GetGlobalLogger().WithComponent("assigner"),
	}, nil
}

// FindMatches ranks the unconnected documents against one transaction
// and returns the candidates, best first, capped at the configured
// candidate limit.
func (s *Service) FindMatches(ctx context.Context, transactionID string) ([]*matcher.MatchCandidate, error) {
	transaction, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	documents, err := s.documents.ListUnconnected(ctx)
	if err != nil {
		return nil, err
	}

	candidates := s.engine.RankMatches(transaction, documents)
	if limit := s.engine.Config.MaxCandidateDocuments; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.logger.WithFields(logger.Fields{
		"transaction_id": transactionID,
		"documents":      len(documents),
		"candidates":     len(candidates),
	}).Debug("Ranked match candidates")

	return candidates, nil
}

// AssignDocuments attaches the given documents to the transaction after
// validating that their Skonto-adjusted total plausibly covers the
// transaction amount. The attachments are created atomically; a
// validation failure or any duplicate leaves storage unchanged.
func (s *Service) AssignDocuments(ctx context.Context, transactionID string, documentIDs []string) (*matcher.MultipleAmountValidationResult, error) {
	if len(documentIDs) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "document_ids", nil, nil).
			WithSuggestion("select at least one document to assign")
	}

	transaction, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	documents := make([]*models.TaxDocument, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := s.documents.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}

	validation := matcher.ValidateMultipleAmounts(transaction.AbsoluteAmount(), documents)
	for _, warning := range validation.Warnings {
		s.logger.WithField("transaction_id", transactionID).Warn(warning)
	}
	if !validation.IsValid {
		return validation, errors.MatchingError(errors.CodeProcessingError, "multi-document assignment", nil).
			WithContext("transaction_id", transactionID).
			WithContext("warnings", validation.Warnings).
			WithSuggestion("review the selected documents against the transaction amount")
	}

	if s.config.DryRun {
		s.logger.WithField("transaction_id", transactionID).Info("Dry run, skipping attachment creation")
		return validation, nil
	}

	if err := s.attach(ctx, transaction, documents, false); err != nil {
		return validation, err
	}

	return validation, nil
}

// Unassign removes the attachment between a transaction and a document
// when the store supports deletion.
type attachmentDeleter interface {
	Delete(ctx context.Context, transactionID, documentID string) error
}

// Unassign removes an existing attachment. The document stays stored
// and becomes available for matching again.
func (s *Service) Unassign(ctx context.Context, transactionID, documentID string) error {
	deleter, ok := s.attachments.(attachmentDeleter)
	if !ok {
		return errors.InternalError("unassign", nil).
			WithSuggestion("the configured attachment store does not support deletion")
	}
	if err := deleter.Delete(ctx, transactionID, documentID); err != nil {
		return err
	}

	s.logger.WithFields(logger.Fields{
		"transaction_id": transactionID,
		"document_id":    documentID,
	}).Info("Attachment removed")
	return nil
}

// attach creates the attachments for one transaction atomically and
// marks the documents as connected.
func (s *Service) attach(ctx context.Context, transaction *models.FinancialTransaction, documents []*models.TaxDocument, automatic bool) error {
	attachments := make([]*models.Attachment, 0, len(documents))
	docIDs := make([]string, 0, len(documents))
	for _, doc := range documents {
		attachments = append(attachments, &models.Attachment{
			TransactionID: transaction.ID,
			DocumentID:    doc.ID,
			AttachedBy:    s.config.Actor,
			Automatic:     automatic,
		})
		docIDs = append(docIDs, doc.ID)
	}

	if err := s.attachments.CreateAll(ctx, attachments); err != nil {
		return err
	}

	if err := s.documents.MarkConnected(ctx, docIDs); err != nil {
		return err
	}

	s.logger.WithFields(logger.Fields{
		"transaction_id": transaction.ID,
		"documents":      len(documents),
		"automatic":      automatic,
	}).Info("Documents attached")

	return nil
}

// Engine exposes the underlying matching engine, mainly for reporting.
func (s *Service) Engine() *matcher.Engine {
	return s.engine
}
