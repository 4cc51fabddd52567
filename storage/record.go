package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/CefBoud/kafkanet/serde"
	"github.com/CefBoud/kafkanet/types"
)

// RecordHeaderSize is checksum 4 + length 4
const RecordHeaderSize = 8

var (
	// ErrShortRecord is returned when fewer bytes remain than the record header or its payload need
	ErrShortRecord = errors.New("incomplete record")
	// ErrChecksumMismatch is returned when the stored checksum does not match the payload
	ErrChecksumMismatch = errors.New("record checksum mismatch")
	// ErrMalformedRecord is returned when a record passes its checksum but its payload can't be decoded
	ErrMalformedRecord = errors.New("malformed record payload")
)

// EncodeRecord frames a message as [checksum:4][length:4][payload]
func EncodeRecord(msg types.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	encoder := serde.NewEncoder()
	encoder.PutInt32(crc32.ChecksumIEEE(payload))
	encoder.PutInt32(uint32(len(payload)))
	encoder.PutBytes(payload)
	return encoder.Bytes(), nil
}

// DecodeRecord decodes the record at the start of b and returns it with the number of bytes it used
func DecodeRecord(b []byte) (types.Message, int, error) {
	var msg types.Message
	if len(b) < RecordHeaderSize {
		return msg, 0, ErrShortRecord
	}
	decoder := serde.NewDecoder(b)
	storedCRC := decoder.UInt32()
	length := decoder.Int32()
	if length < 0 || decoder.Remaining() < int(length) {
		return msg, 0, ErrShortRecord
	}
	payload := decoder.GetNBytes(int(length))
	if crc32.ChecksumIEEE(payload) != storedCRC {
		return msg, 0, ErrChecksumMismatch
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, 0, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return msg, decoder.Offset, nil
}
