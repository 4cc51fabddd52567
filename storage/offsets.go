package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"github.com/CefBoud/kafkanet/serde"
	"github.com/CefBoud/kafkanet/types"
	"github.com/CefBoud/kafkanet/utils"
)

// OffsetsFileName is the bolt file holding committed consumer offsets, under the storage root
const OffsetsFileName = "consumer-offsets.db"

// ErrGroupRequired is returned when committing or fetching without a group id
var ErrGroupRequired = errors.New("group id is required")

// OffsetStore persists the offsets committed by consumer groups. One bucket per group.
type OffsetStore struct {
	db *bolt.DB
}

// OpenOffsetStore opens or creates the offset store at path
func OpenOffsetStore(path string) (*OffsetStore, error) {
	if err := utils.EnsurePath(path, false); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open offset store %v: %w", path, err)
	}
	return &OffsetStore{db: db}, nil
}

func offsetKey(key types.GroupOffsetKey) []byte {
	return []byte(fmt.Sprintf("%s/%d", key.TopicName, key.PartitionIndex))
}

// Commit stores offset as the group's position for the partition
func (s *OffsetStore) Commit(key types.GroupOffsetKey, offset int64) error {
	if key.Group == "" {
		return ErrGroupRequired
	}
	encoder := serde.NewEncoder()
	encoder.PutInt64(uint64(offset))
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(key.Group))
		if err != nil {
			return err
		}
		return bucket.Put(offsetKey(key), encoder.Bytes())
	})
}

// Fetch returns the committed offset, or types.NoCommittedOffset if the group never committed one
func (s *OffsetStore) Fetch(key types.GroupOffsetKey) (int64, error) {
	if key.Group == "" {
		return types.NoCommittedOffset, ErrGroupRequired
	}
	offset := types.NoCommittedOffset
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(key.Group))
		if bucket == nil {
			return nil
		}
		value := bucket.Get(offsetKey(key))
		if len(value) != 8 {
			return nil
		}
		decoder := serde.NewDecoder(value)
		offset = int64(decoder.UInt64())
		return nil
	})
	return offset, err
}

// Close closes the underlying bolt database
func (s *OffsetStore) Close() error {
	return s.db.Close()
}
