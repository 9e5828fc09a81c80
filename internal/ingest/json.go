package ingest

import (
	"encoding/json"
	"io"
	"os"

	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
)

// LoadTransactionsFile reads a JSON array of transactions from a file.
func LoadTransactionsFile(path string) ([]*models.FinancialTransaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open transactions file", err).
			WithContext("path", path)
	}
	defer file.Close()

	return LoadTransactions(file)
}

// LoadTransactions reads a JSON array of transactions. Every record is
// validated; the first invalid one aborts the load so a partial batch
// is never handed to storage.
func LoadTransactions(r io.Reader) ([]*models.FinancialTransaction, error) {
	var transactions []*models.FinancialTransaction
	if err := decodeArray(r, &transactions); err != nil {
		return nil, err
	}

	for i, transaction := range transactions {
		if err := transaction.Validate(); err != nil {
			return nil, errors.ValidationError(errors.CodeInvalidData, "transaction", transaction.ID, err).
				WithContext("index", i)
		}
	}
	return transactions, nil
}

// LoadDocumentsFile reads a JSON array of tax documents from a file.
func LoadDocumentsFile(path string) ([]*models.TaxDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open documents file", err).
			WithContext("path", path)
	}
	defer file.Close()

	return LoadDocuments(file)
}

// LoadDocuments reads a JSON array of tax documents.
func LoadDocuments(r io.Reader) ([]*models.TaxDocument, error) {
	var documents []*models.TaxDocument
	if err := decodeArray(r, &documents); err != nil {
		return nil, err
	}

	for i, doc := range documents {
		if err := doc.Validate(); err != nil {
			return nil, errors.ValidationError(errors.CodeInvalidData, "document", doc.ID, err).
				WithContext("index", i)
		}
	}
	return documents, nil
}

func decodeArray(r io.Reader, target interface{}) error {
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(target); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "json input", nil, err).
			WithSuggestion("the file must contain a JSON array of records")
	}
	return nil
}
