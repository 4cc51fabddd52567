package types

// GroupID represents the identifier of a consumer group.
type GroupID string

// GroupOffsetKey represents the key of a committed offset for a group.
type GroupOffsetKey struct {
	Group          GroupID
	TopicName      string
	PartitionIndex uint32
}

// NoCommittedOffset is returned when a group never committed for a partition.
const NoCommittedOffset int64 = -1
