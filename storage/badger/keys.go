package badger

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

const (
	documentPrefix  = "doc:"
	documentSeq     = "seq:doc"
	historyPrefix   = "hist:"
	historySeq      = "seq:hist"
	ingestionPrefix = "ing:"
)

// makeDocumentKey generates a key for a document by insertion sequence.
// Format: prefix|seq, so prefix iteration yields insertion order.
func makeDocumentKey(seq uint64) []byte {
	buf := make([]byte, len(documentPrefix)+8)
	offset := copy(buf, documentPrefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeHistoryKey generates a composite key for a conversation turn.
// Format: prefix|conversationID|createdAt|seq
// BigEndian keeps lexicographic order equal to chronological order; seq
// breaks ties between turns created in the same microsecond.
func makeHistoryKey(conversationID uuid.UUID, createdAt time.Time, seq uint64) []byte {
	buf := make([]byte, len(historyPrefix)+16+16)
	offset := copy(buf, historyPrefix)
	offset += copy(buf[offset:], conversationID[:])
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeConversationPrefix generates the partial key covering one conversation.
func makeConversationPrefix(conversationID uuid.UUID) []byte {
	buf := make([]byte, len(historyPrefix)+16)
	offset := copy(buf, historyPrefix)
	copy(buf[offset:], conversationID[:])
	return buf
}

// makeIngestionKey generates a key for an ingestion record.
// Format: prefix|ingestedAt|id
func makeIngestionKey(ingestedAt time.Time, id uuid.UUID) []byte {
	buf := make([]byte, len(ingestionPrefix)+8+16)
	offset := copy(buf, ingestionPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ingestedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id[:])
	return buf
}
