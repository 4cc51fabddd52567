package storage

import (
	"errors"
	"hash/crc32"
	"testing"
	"time"

	"github.com/CefBoud/kafkanet/serde"
	"github.com/CefBoud/kafkanet/types"
)

func TestRecordRoundTrip(t *testing.T) {
	msg := types.Message{Key: "k", Value: "héllo", Offset: 41, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 5, time.UTC)}
	record, err := EncodeRecord(msg)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	decoder := serde.NewDecoder(record)
	decoder.UInt32()
	if length := decoder.UInt32(); int(length) != len(record)-RecordHeaderSize {
		t.Fatalf("length field = %d, want %d", length, len(record)-RecordHeaderSize)
	}

	got, n, err := DecodeRecord(append(record, 0xFF, 0xFF))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if n != len(record) {
		t.Errorf("consumed %d bytes, want %d", n, len(record))
	}
	if got.Key != msg.Key || got.Value != msg.Value || got.Offset != msg.Offset || !got.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("decoded %+v, want %+v", got, msg)
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	record, err := EncodeRecord(types.Message{Key: "a", Value: "b"})
	if err != nil {
		t.Fatal(err)
	}
	flipped := append([]byte{}, record...)
	flipped[len(flipped)-2] ^= 0x01

	badPayload := serde.NewEncoder()
	badPayload.PutInt32(crc32.ChecksumIEEE([]byte("{")))
	badPayload.PutInt32(1)
	badPayload.PutBytes([]byte("{"))

	negative := serde.NewEncoder()
	negative.PutInt32(0)
	negative.PutInt32(uint32(0xFFFFFFFF))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortRecord},
		{"partial header", record[:5], ErrShortRecord},
		{"partial payload", record[:len(record)-1], ErrShortRecord},
		{"negative length", negative.Bytes(), ErrShortRecord},
		{"checksum", flipped, ErrChecksumMismatch},
		{"bad json", badPayload.Bytes(), ErrMalformedRecord},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, n, err := DecodeRecord(tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if n != 0 {
				t.Errorf("consumed %d bytes on error", n)
			}
		})
	}
}
