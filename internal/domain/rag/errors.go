package rag

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("no text could be extracted")
	ErrInvalidSummaryType  = errors.New("summary type must be small, medium or detailed")
	ErrEmbeddingCount      = errors.New("embedding count does not match input")
)
