package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"

	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/storage"
	"github.com/CefBoud/kafkanet/types"
)

// Broker is the registry of topics stored under StorageRoot. Every topic lives in
// StorageRoot/<topic>/<partition>/ and the directory tree is the source of truth on restart.
type Broker struct {
	ID          int
	StorageRoot string

	topics   sync.Map // topic name -> *Topic
	createMu sync.Mutex
	offsets  *storage.OffsetStore
}

// NewBroker creates the storage root if needed and loads the topics found under it
func NewBroker(id int, storageRoot string) (*Broker, error) {
	if err := os.MkdirAll(storageRoot, 0750); err != nil {
		return nil, fmt.Errorf("could not create storage root %v: %w", storageRoot, err)
	}
	b := &Broker{ID: id, StorageRoot: storageRoot}
	if err := b.loadTopics(); err != nil {
		b.Close()
		return nil, err
	}
	offsets, err := storage.OpenOffsetStore(filepath.Join(storageRoot, storage.OffsetsFileName))
	if err != nil {
		b.Close()
		return nil, err
	}
	b.offsets = offsets
	return b, nil
}

// loadTopics rebuilds a topic for every directory holding numerically-named partition directories
func (b *Broker) loadTopics() error {
	entries, err := os.ReadDir(b.StorageRoot)
	if err != nil {
		return fmt.Errorf("could not list storage root %v: %w", b.StorageRoot, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || ValidateTopicName(entry.Name()) != nil {
			continue
		}
		partitionCount, err := countPartitionDirs(filepath.Join(b.StorageRoot, entry.Name()))
		if err != nil {
			return err
		}
		if partitionCount == 0 {
			log.Debug("skipping %v: no partition directories", entry.Name())
			continue
		}
		topic, err := newTopic(b.StorageRoot, entry.Name(), partitionCount)
		if err != nil {
			return err
		}
		b.topics.Store(topic.Name, topic)
		log.Info("loaded topic %v with %d partitions", topic.Name, partitionCount)
	}
	return nil
}

func countPartitionDirs(topicDir string) (int, error) {
	entries, err := os.ReadDir(topicDir)
	if err != nil {
		return 0, fmt.Errorf("could not list topic directory %v: %w", topicDir, err)
	}
	count, maxIndex := 0, -1
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		index, err := strconv.Atoi(entry.Name())
		if err != nil || index < 0 {
			continue
		}
		count++
		if index > maxIndex {
			maxIndex = index
		}
	}
	// the highest index fixes the partition count, missing partitions reopen empty
	if maxIndex+1 != count {
		log.Warn("%v: partition directories are not contiguous (%d found, highest index %d), recreating %d empty partitions",
			topicDir, count, maxIndex, maxIndex+1-count)
	}
	return maxIndex + 1, nil
}

// CreateTopic creates the topic if it doesn't exist yet. An existing topic is
// returned as is and its partition count never changes.
func (b *Broker) CreateTopic(name string, partitionCount int) (*Topic, error) {
	if topic, ok := b.GetTopic(name); ok {
		return topic, nil
	}
	if err := ValidateTopicName(name); err != nil {
		return nil, err
	}
	if partitionCount < 1 {
		return nil, ErrInvalidPartitions
	}

	b.createMu.Lock()
	defer b.createMu.Unlock()
	if topic, ok := b.GetTopic(name); ok {
		return topic, nil
	}
	topic, err := newTopic(b.StorageRoot, name, partitionCount)
	if err != nil {
		return nil, err
	}
	b.topics.Store(name, topic)
	log.Info("created topic %v with %d partitions", name, partitionCount)
	return topic, nil
}

// GetTopic returns the topic and whether it exists
func (b *Broker) GetTopic(name string) (*Topic, bool) {
	v, ok := b.topics.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Topic), true
}

// Topics returns every topic sorted by name
func (b *Broker) Topics() []*Topic {
	var topics []*Topic
	b.topics.Range(func(_, v any) bool {
		topics = append(topics, v.(*Topic))
		return true
	})
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics
}

// PublishToTopic publishes to the topic, creating it with a single partition if it doesn't exist
func (b *Broker) PublishToTopic(name, key, value string) (uint32, types.Message, error) {
	topic, err := b.CreateTopic(name, 1)
	if err != nil {
		return 0, types.Message{}, err
	}
	return topic.Publish(key, value)
}

// CommitOffset stores the group's position for a partition
func (b *Broker) CommitOffset(key types.GroupOffsetKey, offset int64) error {
	return b.offsets.Commit(key, offset)
}

// FetchOffset returns the group's committed position for a partition, or types.NoCommittedOffset
func (b *Broker) FetchOffset(key types.GroupOffsetKey) (int64, error) {
	return b.offsets.Fetch(key)
}

// Close closes every partition log and the offset store
func (b *Broker) Close() error {
	var result *multierror.Error
	for _, topic := range b.Topics() {
		if err := topic.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if b.offsets != nil {
		if err := b.offsets.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing offset store: %w", err))
		}
	}
	return result.ErrorOrNil()
}
