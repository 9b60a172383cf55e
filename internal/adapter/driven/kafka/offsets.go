package kafka

import (
	"sync"

	kgo "github.com/segmentio/kafka-go"
)

type partitionKey struct {
	topic     string
	partition int
}

// partitionOffsets holds the fetched offsets of one partition that are not
// committed yet, in fetch order, and which of them have been acknowledged.
type partitionOffsets struct {
	pending []int64
	acked   map[int64]bool
}

// offsetTracker turns out-of-order acknowledgements from concurrent workers
// into in-order commits. A partition is only committed up to the last offset
// whose predecessors have all been acknowledged.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

// fetched records m as handed out to a worker. An offset at or below the last
// tracked one means the partition was rewound by a rebalance, so its earlier
// bookkeeping is discarded.
func (t *offsetTracker) fetched(m kgo.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := partitionKey{topic: m.Topic, partition: m.Partition}
	p, ok := t.partitions[key]
	if !ok || (len(p.pending) > 0 && m.Offset <= p.pending[len(p.pending)-1]) {
		p = &partitionOffsets{acked: make(map[int64]bool)}
		t.partitions[key] = p
	}
	p.pending = append(p.pending, m.Offset)
}

// acked marks m as handled. It returns the message to commit, if the
// acknowledgement extended the contiguous handled prefix of its partition.
func (t *offsetTracker) acked(m kgo.Message) (kgo.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partitionKey{topic: m.Topic, partition: m.Partition}]
	if !ok || !p.tracks(m.Offset) {
		return kgo.Message{}, false
	}
	p.acked[m.Offset] = true

	committed := int64(-1)
	for len(p.pending) > 0 && p.acked[p.pending[0]] {
		committed = p.pending[0]
		delete(p.acked, committed)
		p.pending = p.pending[1:]
	}
	if committed < 0 {
		return kgo.Message{}, false
	}
	return kgo.Message{Topic: m.Topic, Partition: m.Partition, Offset: committed}, true
}

func (p *partitionOffsets) tracks(offset int64) bool {
	for _, o := range p.pending {
		if o == offset {
			return true
		}
	}
	return false
}
