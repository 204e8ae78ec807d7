package core

import (
	"errors"
	"testing"
)

func TestParseConversationID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid uuid", input: "0b6cbd2c-6b8e-4a49-9a4b-5b0f7f2f1c11", wantErr: nil},
		{name: "surrounding whitespace", input: "  0b6cbd2c-6b8e-4a49-9a4b-5b0f7f2f1c11 ", wantErr: nil},
		{name: "not a uuid", input: "not-a-uuid", wantErr: ErrInvalidIdentifier},
		{name: "empty", input: "", wantErr: ErrInvalidIdentifier},
		{name: "truncated", input: "0b6cbd2c-6b8e-4a49", wantErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseConversationID(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ParseConversationID() unexpected error: %v", err)
				}
				if id.String() != "0b6cbd2c-6b8e-4a49-9a4b-5b0f7f2f1c11" {
					t.Errorf("ParseConversationID() = %s", id)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseConversationID() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	if err := ValidateQuestion("what is a vector?"); err != nil {
		t.Errorf("ValidateQuestion() unexpected error: %v", err)
	}
	for _, q := range []string{"", "   ", "\n\t"} {
		if err := ValidateQuestion(q); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("ValidateQuestion(%q) error = %v, want %v", q, err, ErrEmptyQuestion)
		}
	}
}

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		vector  []float32
		dim     int
		wantErr error
	}{
		{name: "matching dimension", vector: make([]float32, 768), dim: 768},
		{name: "short vector", vector: make([]float32, 767), dim: 768, wantErr: ErrDimensionMismatch},
		{name: "empty vector", vector: nil, dim: 3, wantErr: ErrDimensionMismatch},
		{name: "check disabled", vector: make([]float32, 5), dim: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vector, tt.dim)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateVector() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePagination(t *testing.T) {
	tests := []struct {
		name        string
		skip, limit int
		wantErr     error
	}{
		{name: "first page", skip: 0, limit: 10},
		{name: "upper bound", skip: 50, limit: 100},
		{name: "negative skip", skip: -1, limit: 10, wantErr: ErrInvalidPagination},
		{name: "zero limit", skip: 0, limit: 0, wantErr: ErrInvalidPagination},
		{name: "limit too large", skip: 0, limit: 101, wantErr: ErrInvalidPagination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePagination(tt.skip, tt.limit, 100)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePagination() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
