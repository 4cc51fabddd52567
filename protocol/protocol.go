package protocol

import "github.com/CefBoud/kafkanet/types"

// Request type tags, the first byte of every request frame
const (
	ProduceKey      types.RequestType = 0x01
	ConsumeKey      types.RequestType = 0x02
	CreateTopicKey  types.RequestType = 0x03
	MetadataKey     types.RequestType = 0x04
	OffsetCommitKey types.RequestType = 0x05
	OffsetFetchKey  types.RequestType = 0x06
)

// DefaultMaxRequestBytes bounds the payload length accepted for a single frame
const DefaultMaxRequestBytes = 16 << 20

// ProduceRequest appends one message to a topic, routed by Key
type ProduceRequest struct {
	Topic string
	Key   string
	Value string
}

// ProduceResult is the Data of a successful produce response
type ProduceResult struct {
	Partition uint32
	Offset    int64
}

// ConsumeRequest reads up to MaxMessages messages from Offset onwards
type ConsumeRequest struct {
	Topic       string
	Partition   int32
	Offset      int64
	MaxMessages int32
}

// CreateTopicRequest creates a topic if it doesn't exist
type CreateTopicRequest struct {
	Topic      string
	Partitions int32
}

// MetadataRequest has no fields. Cluster metadata isn't served, the response Data is always "[]".
type MetadataRequest struct{}

// OffsetCommitRequest stores a consumer group's position for one partition
type OffsetCommitRequest struct {
	Group     string
	Topic     string
	Partition int32
	Offset    int64
}

// OffsetFetchRequest asks for a consumer group's committed position
type OffsetFetchRequest struct {
	Group     string
	Topic     string
	Partition int32
}

// OffsetResult is the Data of offset commit and fetch responses.
// Offset is types.NoCommittedOffset when the group never committed.
type OffsetResult struct {
	Offset int64
}

// Response is the payload of every response frame
type Response struct {
	Success bool
	Error   string `json:",omitempty"`
	Data    string
}
