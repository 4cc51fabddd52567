package broker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/CefBoud/kafkanet/storage"
	"github.com/CefBoud/kafkanet/types"
)

// maxTopicNameLength mirrors Kafka's limit
const maxTopicNameLength = 249

var (
	// ErrTopicNotFound is returned when a topic doesn't exist on the broker
	ErrTopicNotFound = errors.New("topic not found")
	// ErrPartitionOutOfRange is returned when a partition index is outside [0, partitionCount)
	ErrPartitionOutOfRange = errors.New("partition does not exist")
	// ErrInvalidPartitions is returned when creating a topic with fewer than one partition
	ErrInvalidPartitions = errors.New("number of partitions is below 1")
	// ErrInvalidTopicName is returned when a topic name can't be used as a directory name
	ErrInvalidTopicName = errors.New("invalid topic name")
)

// Topic is a fixed set of partition logs sharing a name
type Topic struct {
	Name       string
	partitions []*storage.Partition
}

// ValidateTopicName checks that name is usable as a single directory under the storage root
func ValidateTopicName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidTopicName, name)
	case len(name) > maxTopicNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidTopicName, maxTopicNameLength)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidTopicName, name)
	}
	return nil
}

// newTopic opens every partition of the topic, each replaying its own log
func newTopic(storageRoot, name string, partitionCount int) (*Topic, error) {
	if partitionCount < 1 {
		return nil, ErrInvalidPartitions
	}
	t := &Topic{Name: name, partitions: make([]*storage.Partition, 0, partitionCount)}
	for i := 0; i < partitionCount; i++ {
		p, err := storage.OpenPartition(storageRoot, name, uint32(i))
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("error opening partition %v-%v: %w", name, i, err)
		}
		t.partitions = append(t.partitions, p)
	}
	return t, nil
}

// PartitionCount returns the number of partitions, fixed at creation
func (t *Topic) PartitionCount() int {
	return len(t.partitions)
}

// Publish routes the message by key and appends it to that partition
func (t *Topic) Publish(key, value string) (uint32, types.Message, error) {
	index := PartitionForKey(key, len(t.partitions))
	msg, err := t.partitions[index].Append(key, value)
	return uint32(index), msg, err
}

// GetPartition returns the partition at index
func (t *Topic) GetPartition(index int) (*storage.Partition, error) {
	if index < 0 || index >= len(t.partitions) {
		return nil, fmt.Errorf("%w: %v-%v (topic has %d partitions)", ErrPartitionOutOfRange, t.Name, index, len(t.partitions))
	}
	return t.partitions[index], nil
}

// Partitions returns the partitions ordered by index
func (t *Topic) Partitions() []*storage.Partition {
	return append([]*storage.Partition(nil), t.partitions...)
}

// Close closes every partition log of the topic
func (t *Topic) Close() error {
	var result *multierror.Error
	for _, p := range t.partitions {
		if err := p.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing %v: %w", p, err))
		}
	}
	return result.ErrorOrNil()
}
