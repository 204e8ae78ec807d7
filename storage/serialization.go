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


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
)

// Records are encoded field by field with mus-go: strings length-prefixed,
// integers as varints, vector components as raw float32. A nil vector is
// written with length -1 so it survives a round trip as nil.

// MarshalDocument serializes a DocumentRecord to bytes.
func MarshalDocument(record *core.DocumentRecord) ([]byte, error) {
	meta, err := marshalMetadata(record.Metadata)
	if err != nil {
		return nil, err
	}
	id := record.ID.String()

	size := ord.String.Size(id) + ord.String.Size(record.Content) + vectorSize(record.Embedding) + ord.String.Size(meta)
	w := &writer{bs: make([]byte, size)}
	w.str(id)
	w.str(record.Content)
	w.vector(record.Embedding)
	w.str(meta)
	return w.bs, nil
}

// UnmarshalDocument deserializes a DocumentRecord from bytes.
func UnmarshalDocument(data []byte) (*core.DocumentRecord, error) {
	r := &reader{bs: data}
	id := r.uuid()
	content := r.str()
	embedding := r.vector()
	meta := r.metadata()
	if r.err != nil {
		return nil, fmt.Errorf("%w: document: %w", ErrSerializationFailed, r.err)
	}
	return &core.DocumentRecord{ID: id, Content: content, Embedding: embedding, Metadata: meta}, nil
}

// MarshalTurn serializes a ConversationTurn to bytes.
func MarshalTurn(turn *core.ConversationTurn) []byte {
	id := turn.ConversationID.String()
	created := turn.CreatedAt.UnixMicro()

	size := ord.String.Size(id) + ord.String.Size(turn.Question) + ord.String.Size(turn.Answer) + varint.Int64.Size(created)
	w := &writer{bs: make([]byte, size)}
	w.str(id)
	w.str(turn.Question)
	w.str(turn.Answer)
	w.int64(created)
	return w.bs
}

// UnmarshalTurn deserializes a ConversationTurn from bytes.
func UnmarshalTurn(data []byte) (*core.ConversationTurn, error) {
	r := &reader{bs: data}
	turn := &core.ConversationTurn{
		ConversationID: r.uuid(),
		Question:       r.str(),
		Answer:         r.str(),
		CreatedAt:      r.time(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: turn: %w", ErrSerializationFailed, r.err)
	}
	return turn, nil
}

// MarshalIngestion serializes an IngestionRecord to bytes.
func MarshalIngestion(record *core.IngestionRecord) ([]byte, error) {
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: ingestion metadata: %w", ErrSerializationFailed, err)
	}
	id := record.ID.String()
	ingested := record.IngestedAt.UnixMicro()

	size := ord.String.Size(id) + ord.String.Size(record.Filename) + varint.Int64.Size(ingested) + ord.String.Size(string(meta))
	w := &writer{bs: make([]byte, size)}
	w.str(id)
	w.str(record.Filename)
	w.int64(ingested)
	w.str(string(meta))
	return w.bs, nil
}

// UnmarshalIngestion deserializes an IngestionRecord from bytes.
func UnmarshalIngestion(data []byte) (*core.IngestionRecord, error) {
	r := &reader{bs: data}
	record := &core.IngestionRecord{
		ID:         r.uuid(),
		Filename:   r.str(),
		IngestedAt: r.time(),
	}
	meta := r.str()
	if r.err == nil {
		r.err = json.Unmarshal([]byte(meta), &record.Metadata)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: ingestion: %w", ErrSerializationFailed, r.err)
	}
	return record, nil
}

func marshalMetadata(meta core.Metadata) (string, error) {
	if meta == nil {
		return "", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return string(b), nil
}

func vectorSize(v []float32) int {
	if v == nil {
		return varint.Int.Size(-1)
	}
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

type writer struct {
	bs []byte
	n  int
}

func (w *writer) str(s string) {
	w.n += ord.String.Marshal(s, w.bs[w.n:])
}

func (w *writer) int64(v int64) {
	w.n += varint.Int64.Marshal(v, w.bs[w.n:])
}

func (w *writer) vector(v []float32) {
	if v == nil {
		w.n += varint.Int.Marshal(-1, w.bs[w.n:])
		return
	}
	w.n += varint.Int.Marshal(len(v), w.bs[w.n:])
	for _, f := range v {
		w.n += raw.Float32.Marshal(f, w.bs[w.n:])
	}
}

// reader stops at the first error; later calls return zero values.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) uuid() uuid.UUID {
	s := r.str()
	if r.err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	r.err = err
	return id
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return time.UnixMicro(v).UTC()
}

func (r *reader) vector() []float32 {
	if r.err != nil {
		return nil
	}
	length, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	if err != nil {
		r.err = err
		return nil
	}
	if length < 0 {
		return nil
	}
	if length > (len(r.bs)-r.n)/4 {
		r.err = fmt.Errorf("vector length %d exceeds remaining data", length)
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
		if err != nil {
			r.err = err
			return nil
		}
		v[i] = f
	}
	return v
}

func (r *reader) metadata() core.Metadata {
	s := r.str()
	if r.err != nil || s == "" {
		return nil
	}
	var meta core.Metadata
	r.err = json.Unmarshal([]byte(s), &meta)
	return meta
}
