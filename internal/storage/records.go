package storage

import (
	"time"

	"taxfiler-matching-service/internal/models"

	"github.com/shopspring/decimal"
)

// transactionRecord is the transactions table row. Domain types stay
// free of persistence tags; conversion lives here.
type transactionRecord struct {
	ID               string          `gorm:"type:varchar(64);primaryKey"`
	GrossAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	ValueDate        time.Time       `gorm:"type:date;not null;index"`
	CounterpartyName string          `gorm:"type:varchar(255)"`
	SenderReceiver   string          `gorm:"type:varchar(255)"`
	Note             string          `gorm:"type:text"`
	TaxRelevant      bool            `gorm:"default:false"`
	VatRelevant      bool            `gorm:"default:false"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

func (transactionRecord) TableName() string {
	return "transactions"
}

func (r *transactionRecord) toModel() *models.FinancialTransaction {
	return &models.FinancialTransaction{
		ID:               r.ID,
		GrossAmount:      r.GrossAmount,
		ValueDate:        r.ValueDate,
		CounterpartyName: r.CounterpartyName,
		SenderReceiver:   r.SenderReceiver,
		Note:             r.Note,
		TaxRelevant:      r.TaxRelevant,
		VatRelevant:      r.VatRelevant,
	}
}

func transactionRecordFrom(t *models.FinancialTransaction) *transactionRecord {
	return &transactionRecord{
		ID:               t.ID,
		GrossAmount:      t.GrossAmount,
		ValueDate:        t.ValueDate,
		CounterpartyName: t.CounterpartyName,
		SenderReceiver:   t.SenderReceiver,
		Note:             t.Note,
		TaxRelevant:      t.TaxRelevant,
		VatRelevant:      t.VatRelevant,
	}
}

// documentRecord is the documents table row. Zero monetary values mean
// the extraction pipeline found nothing, matching the domain convention.
type documentRecord struct {
	ID            string          `gorm:"type:varchar(64);primaryKey"`
	Total         decimal.Decimal `gorm:"type:decimal(15,2)"`
	SubTotal      decimal.Decimal `gorm:"type:decimal(15,2)"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(15,2)"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2)"`
	InvoiceDate   *time.Time      `gorm:"type:date;index"`
	FolderDate    *time.Time      `gorm:"type:date"`
	InvoiceNumber string          `gorm:"type:varchar(128);index"`
	VendorName    string          `gorm:"type:varchar(255);index"`
	SkontoPercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	Unconnected   bool            `gorm:"not null;default:true;index"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (documentRecord) TableName() string {
	return "documents"
}

func (r *documentRecord) toModel() *models.TaxDocument {
	doc := &models.TaxDocument{
		ID:            r.ID,
		Total:         r.Total,
		SubTotal:      r.SubTotal,
		TaxAmount:     r.TaxAmount,
		TaxRate:       r.TaxRate,
		InvoiceNumber: r.InvoiceNumber,
		VendorName:    r.VendorName,
		SkontoPercent: r.SkontoPercent,
		Unconnected:   r.Unconnected,
	}
	if r.InvoiceDate != nil {
		doc.InvoiceDate = *r.InvoiceDate
	}
	if r.FolderDate != nil {
		doc.FolderDate = *r.FolderDate
	}
	return doc
}

func documentRecordFrom(d *models.TaxDocument) *documentRecord {
	rec := &documentRecord{
		ID:            d.ID,
		Total:         d.Total,
		SubTotal:      d.SubTotal,
		TaxAmount:     d.TaxAmount,
		TaxRate:       d.TaxRate,
		InvoiceNumber: d.InvoiceNumber,
		VendorName:    d.VendorName,
		SkontoPercent: d.SkontoPercent,
		Unconnected:   d.Unconnected,
	}
	if d.HasInvoiceDate() {
		t := d.InvoiceDate
		rec.InvoiceDate = &t
	}
	if d.HasFolderDate() {
		t := d.FolderDate
		rec.FolderDate = &t
	}
	return rec
}

// attachmentRecord links a transaction to a document. The composite
// unique index backs the one-attachment-per-pair invariant.
type attachmentRecord struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	TransactionID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_attachment_pair;index"`
	DocumentID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_attachment_pair;index"`
	AttachedAt    time.Time `gorm:"not null"`
	AttachedBy    string    `gorm:"type:varchar(64);not null"`
	Automatic     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (attachmentRecord) TableName() string {
	return "attachments"
}

func (r *attachmentRecord) toModel() *models.Attachment {
	return &models.Attachment{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		DocumentID:    r.DocumentID,
		AttachedAt:    r.AttachedAt,
		AttachedBy:    r.AttachedBy,
		Automatic:     r.Automatic,
	}
}
