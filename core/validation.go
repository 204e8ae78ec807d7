// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseConversationID validates a conversation identifier.
// Anything that is not a UUID is rejected with ErrInvalidIdentifier.
func ParseConversationID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a UUID", ErrInvalidIdentifier, s)
	}
	return id, nil
}

// ValidateQuestion rejects blank questions.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// ValidateVector checks that vector has exactly dim components.
// A dim of zero or less disables the check.
func ValidateVector(vector []float32, dim int) error {
	if dim > 0 && len(vector) != dim {
		return fmt.Errorf("%w: expected %d, received %d", ErrDimensionMismatch, dim, len(vector))
	}
	return nil
}

// ValidatePagination checks document listing bounds.
//
// Rules:
//   - skip must not be negative
//   - limit must be between 1 and maxLimit inclusive
func ValidatePagination(skip, limit, maxLimit int) error {
	if skip < 0 {
		return fmt.Errorf("%w: skip %d is negative", ErrInvalidPagination, skip)
	}
	if limit < 1 || limit > maxLimit {
		return fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidPagination, limit, maxLimit)
	}
	return nil
}
