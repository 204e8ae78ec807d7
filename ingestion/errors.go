package ingestion

import "errors"

var (
	// ErrLoaderRequired is returned when a document loader is not provided.
	ErrLoaderRequired = errors.New("document loader required")

	// ErrWriterRequired is returned when a document writer is not provided.
	ErrWriterRequired = errors.New("document writer required")

	// ErrRepositoryRequired is returned when an ingestion repository is not provided.
	ErrRepositoryRequired = errors.New("ingestion repository required")

	// ErrSupervisorRequired is returned when a task supervisor is not provided.
	ErrSupervisorRequired = errors.New("task supervisor required")

	// ErrSupervisorBusy is returned when no worker frees up before a task's timeout.
	ErrSupervisorBusy = errors.New("no ingestion worker available")

	// ErrNotPDF is returned for files without a .pdf extension.
	ErrNotPDF = errors.New("only PDF files are supported")
)
