package broker

import "github.com/cespare/xxhash/v2"

// PartitionForKey routes a key to a partition index. The result only depends on
// the key and partitionCount. Empty keys always go to partition 0.
func PartitionForKey(key string, partitionCount int) int {
	if key == "" || partitionCount <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(partitionCount))
}
