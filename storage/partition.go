package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/btree"

	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/types"
	"github.com/CefBoud/kafkanet/utils"
)

// LogFileName is the name of the log file inside every partition directory
const LogFileName = "log.dat"

const btreeDegree = 32

// ErrPartitionClosed is returned by Append once the partition has been closed
var ErrPartitionClosed = errors.New("partition is closed")

type logFile interface {
	io.WriterAt
	Sync() error
	Truncate(size int64) error
	Close() error
}

// Partition is an append-only log of messages for one topic partition.
// All appended and recovered messages are kept in memory, ordered by offset.
type Partition struct {
	TopicName string
	Index     uint32

	path       string
	file       logFile
	size       int64 // position right after the last valid record
	nextOffset int64
	messages   *btree.BTreeG[types.Message]
	sync.RWMutex
}

// GetPartitionDir returns storageRoot/topic/index
func GetPartitionDir(storageRoot, topic string, index uint32) string {
	return filepath.Join(storageRoot, topic, strconv.Itoa(int(index)))
}

func messageLess(a, b types.Message) bool {
	return a.Offset < b.Offset
}

// OpenPartition opens (creating it if needed) the partition log and replays it
func OpenPartition(storageRoot, topic string, index uint32) (*Partition, error) {
	dir := GetPartitionDir(storageRoot, topic, index)
	if err := utils.EnsurePath(dir, true); err != nil {
		return nil, fmt.Errorf("error creating partition directory %v: %w", dir, err)
	}
	path := filepath.Join(dir, LogFileName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening log file %v: %w", path, err)
	}
	p := &Partition{
		TopicName: topic,
		Index:     index,
		path:      path,
		file:      file,
		messages:  btree.NewG[types.Message](btreeDegree, messageLess),
	}
	if err := p.recover(file); err != nil {
		file.Close()
		return nil, err
	}
	return p, nil
}

// recover replays the log until the first corrupt or incomplete record, then
// truncates the file there so later appends stay reachable on the next replay.
func (p *Partition) recover(file *os.File) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("error reading log file %v: %w", p.path, err)
	}
	position := 0
	for position < len(data) {
		msg, n, err := DecodeRecord(data[position:])
		if err != nil {
			log.Warn("partition %v: %v at byte %d (next offset %d), dropping %d trailing bytes",
				p, err, position, p.nextOffset, len(data)-position)
			if err := file.Truncate(int64(position)); err != nil {
				return fmt.Errorf("error truncating corrupt tail of %v: %w", p.path, err)
			}
			break
		}
		p.messages.ReplaceOrInsert(msg)
		p.nextOffset = msg.Offset + 1
		position += n
	}
	p.size = int64(position)
	log.Debug("loaded partition %v: %d messages, next offset %d", p, p.messages.Len(), p.nextOffset)
	return nil
}

// Append assigns the next offset to a new message, persists it and makes it
// readable. If the write can't be forced to disk, the file is truncated back
// and neither the offset counter nor the cache move.
func (p *Partition) Append(key, value string) (types.Message, error) {
	p.Lock()
	defer p.Unlock()
	if p.file == nil {
		return types.Message{}, ErrPartitionClosed
	}

	msg := types.NewMessage(key, value)
	msg.Offset = p.nextOffset
	record, err := EncodeRecord(msg)
	if err != nil {
		return types.Message{}, err
	}
	_, err = p.file.WriteAt(record, p.size)
	if err == nil {
		err = p.file.Sync()
	}
	if err != nil {
		log.Error("partition %v: failed to persist offset %d: %v", p, msg.Offset, err)
		if terr := p.file.Truncate(p.size); terr != nil {
			log.Error("partition %v: rollback truncate failed: %v", p, terr)
		}
		return types.Message{}, fmt.Errorf("append to %v: %w", p, err)
	}

	p.size += int64(len(record))
	p.nextOffset++
	p.messages.ReplaceOrInsert(msg)
	return msg, nil
}

// Read returns up to maxCount messages with offset >= startOffset in ascending order
func (p *Partition) Read(startOffset int64, maxCount int) []types.Message {
	messages := []types.Message{}
	if maxCount <= 0 {
		return messages
	}
	p.RLock()
	defer p.RUnlock()
	p.messages.AscendGreaterOrEqual(types.Message{Offset: startOffset}, func(m types.Message) bool {
		messages = append(messages, m)
		return len(messages) < maxCount
	})
	return messages
}

// HighWatermark returns one past the last assigned offset
func (p *Partition) HighWatermark() int64 {
	p.RLock()
	defer p.RUnlock()
	return p.nextOffset
}

// Path returns the location of the partition's log file
func (p *Partition) Path() string {
	return p.path
}

// Close releases the log file. Reads keep serving the cached messages.
func (p *Partition) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// String provides a string representation of the partition, combining the topic name and partition index.
func (p *Partition) String() string {
	return fmt.Sprintf("%v-%v", p.TopicName, p.Index)
}
