package embedding

import "errors"

var (
	// ErrTransportRequired is returned when NewClient is called without a transport.
	ErrTransportRequired = errors.New("embedding transport is required")

	// ErrInvalidBatchSize is returned for batch sizes below 1.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")
)
