package storage

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionRepository provides read and write access to the
// transactions table.
type TransactionRepository struct {
	db *gorm.DB
}

// Save inserts or updates a transaction.
func (r *TransactionRepository) Save(ctx context.Context, t *models.FinancialTransaction) error {
	if err := t.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "transaction", t.ID, err)
	}

	result := r.db.WithContext(ctx).Save(transactionRecordFrom(t))
	if result.Error != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "save transaction", result.Error).
			WithContext("transaction_id", t.ID)
	}
	return nil
}

// SaveAll inserts or updates a batch of transactions in one database
// transaction.
func (r *TransactionRepository) SaveAll(ctx context.Context, txns []*models.FinancialTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range txns {
			if err := t.Validate(); err != nil {
				return errors.ValidationError(errors.CodeInvalidData, "transaction", t.ID, err)
			}
			if err := tx.Save(transactionRecordFrom(t)).Error; err != nil {
				return errors.StorageError(errors.CodeStorageUnavailable, "save transaction", err).
					WithContext("transaction_id", t.ID)
			}
		}
		return nil
	})
}

// GetByID returns the transaction with the given ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.FinancialTransaction, error) {
	var rec transactionRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&rec)
	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.StorageError(errors.CodeTransactionNotFound, id, nil)
		}
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "load transaction", result.Error)
	}
	return rec.toModel(), nil
}

// ListRelevant returns tax or VAT relevant transactions ordered by
// value date, newest first.
func (r *TransactionRepository) ListRelevant(ctx context.Context) ([]*models.FinancialTransaction, error) {
	var recs []transactionRecord
	result := r.db.WithContext(ctx).
		Where("tax_relevant = ? OR vat_relevant = ?", true, true).
		Order("value_date DESC, id ASC").
		Find(&recs)
	if result.Error != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "list transactions", result.Error)
	}
	return transactionModels(recs), nil
}

// ListUnmatched returns transactions in the period that have no
// attachments. Both bounds are inclusive; zero times disable a bound.
func (r *TransactionRepository) ListUnmatched(ctx context.Context, from, to time.Time) ([]*models.FinancialTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("id NOT IN (?)", r.db.Model(&attachmentRecord{}).Select("transaction_id"))

	if !from.IsZero() {
		query = query.Where("value_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("value_date <= ?", to)
	}

	var recs []transactionRecord
	result := query.Order("value_date ASC, id ASC").Find(&recs)
	if result.Error != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "list unmatched transactions", result.Error)
	}
	return transactionModels(recs), nil
}

func transactionModels(recs []transactionRecord) []*models.FinancialTransaction {
	txns := make([]*models.FinancialTransaction, len(recs))
	for i := range recs {
		txns[i] = recs[i].toModel()
	}
	return txns
}

// DocumentRepository provides read and write access to the documents
// table.
type DocumentRepository struct {
	db *gorm.DB
}

// Save inserts or updates a document.
func (r *DocumentRepository) Save(ctx context.Context, d *models.TaxDocument) error {
	if err := d.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "document", d.ID, err)
	}

	result := r.db.WithContext(ctx).Save(documentRecordFrom(d))
	if result.Error != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "save document", result.Error).
			WithContext("document_id", d.ID)
	}
	return nil
}

// SaveAll inserts or updates a batch of documents in one database
// transaction.
func (r *DocumentRepository) SaveAll(ctx context.Context, docs []*models.TaxDocument) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range docs {
			if err := d.Validate(); err != nil {
				return errors.ValidationError(errors.CodeInvalidData, "document", d.ID, err)
			}
			if err := tx.Save(documentRecordFrom(d)).Error; err != nil {
				return errors.StorageError(errors.CodeStorageUnavailable, "save document", err).
					WithContext("document_id", d.ID)
			}
		}
		return nil
	})
}

// GetByID returns the document with the given ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.TaxDocument, error) {
	var rec documentRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&rec)
	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.StorageError(errors.CodeDocumentNotFound, id, nil)
		}
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "load document", result.Error)
	}
	return rec.toModel(), nil
}

// ListUnconnected returns documents not yet linked to any transaction,
// ordered by invoice date, newest first.
func (r *DocumentRepository) ListUnconnected(ctx context.Context) ([]*models.TaxDocument, error) {
	var recs []documentRecord
	result := r.db.WithContext(ctx).
		Where("unconnected = ?", true).
		Order("invoice_date DESC, id ASC").
		Find(&recs)
	if result.Error != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "list unconnected documents", result.Error)
	}
	return documentModels(recs), nil
}

// ListAll returns every stored document ordered by ID.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]*models.TaxDocument, error) {
	var recs []documentRecord
	result := r.db.WithContext(ctx).Order("id ASC").Find(&recs)
	if result.Error != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "list documents", result.Error)
	}
	return documentModels(recs), nil
}

// MarkConnected flips the unconnected flag for the given documents.
func (r *DocumentRepository) MarkConnected(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&documentRecord{}).
		Where("id IN ?", ids).
		Update("unconnected", false)
	if result.Error != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "mark documents connected", result.Error)
	}
	return nil
}

func documentModels(recs []documentRecord) []*models.TaxDocument {
	docs := make([]*models.TaxDocument, len(recs))
	for i := range recs {
		docs[i] = recs[i].toModel()
	}
	return docs
}

// AttachmentRepository provides read and write access to the
// attachments table. The composite unique index on (transaction_id,
// document_id) makes duplicate attachment attempts fail at the driver
// level; Create translates that into a duplicate attachment error.
type AttachmentRepository struct {
	db *gorm.DB
}

// Create links a document to a transaction. AttachedAt and the ID are
// filled in when unset.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if err := a.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "attachment", a.TransactionID, err)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttachedAt.IsZero() {
		a.AttachedAt = time.Now().UTC()
	}

	rec := &attachmentRecord{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		DocumentID:    a.DocumentID,
		AttachedAt:    a.AttachedAt,
		AttachedBy:    a.AttachedBy,
		Automatic:     a.Automatic,
	}

	result := r.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return errors.DuplicateAttachmentError(a.TransactionID, a.DocumentID)
		}
		return errors.StorageError(errors.CodeStorageUnavailable, "create attachment", result.Error).
			WithContext("transaction_id", a.TransactionID).
			WithContext("document_id", a.DocumentID)
	}
	return nil
}

// CreateAll links several documents to a transaction atomically. If any
// single link fails, none are kept.
func (r *AttachmentRepository) CreateAll(ctx context.Context, attachments []*models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &AttachmentRepository{db: tx}
		for _, a := range attachments {
			if err := repo.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the attachment between a transaction and a document.
func (r *AttachmentRepository) Delete(ctx context.Context, transactionID, documentID string) error {
	result := r.db.WithContext(ctx).
		Where("transaction_id = ? AND document_id = ?", transactionID, documentID).
		Delete(&attachmentRecord{})
	if result.Error != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "delete attachment", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.StorageError(errors.CodeAttachmentNotFound,
			transactionID+"/"+documentID, nil)
	}
	return nil
}

// ListByTransaction returns all attachments for a transaction.
func (r *AttachmentRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*models.Attachment, error) {
	var recs []attachmentRecord
	result := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("attached_at ASC").
		Find(&recs)
	if result.Error != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "list attachments", result.Error)
	}

	attachments := make([]*models.Attachment, len(recs))
	for i := range recs {
		attachments[i] = recs[i].toModel()
	}
	return attachments, nil
}

// Exists reports whether the pair is already attached.
func (r *AttachmentRepository) Exists(ctx context.Context, transactionID, documentID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&attachmentRecord{}).
		Where("transaction_id = ? AND document_id = ?", transactionID, documentID).
		Count(&count)
	if result.Error != nil {
		return false, errors.StorageError(errors.CodeStorageUnavailable, "check attachment", result.Error)
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
