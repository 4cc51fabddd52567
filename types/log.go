package types

import "time"

// Message is a single record stored in a partition. The JSON field names are the
// on-disk and on-wire names and must not change.
type Message struct {
	Key       string
	Value     string
	Offset    int64
	Timestamp time.Time
}

// NewMessage returns an unassigned message stamped with the current UTC time.
func NewMessage(key, value string) Message {
	return Message{Key: key, Value: value, Timestamp: time.Now().UTC()}
}
