package puzzle

import "sync"

// Publisher receives every record the Gate successfully persists.
type Publisher interface {
	Publish(rec ProgressRecord)
}

// Broker fans progress records out to per-user subscribers. It is the
// push-based subscription that lets a driver hold the freshest record
// without polling the store.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan ProgressRecord]struct{}
	buffer int
}

// NewBroker creates a Broker whose subscriber channels hold buffer records.
// A subscriber that falls behind misses intermediate records but always
// receives the latest one.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		subs:   make(map[string]map[chan ProgressRecord]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for userID's records. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(userID string) (<-chan ProgressRecord, func()) {
	ch := make(chan ProgressRecord, b.buffer)

	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[chan ProgressRecord]struct{})
		b.subs[userID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish implements Publisher. It never blocks: when a subscriber's buffer
// is full the oldest pending record is dropped in favour of rec.
func (b *Broker) Publish(rec ProgressRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[rec.UserID] {
		out := rec.Clone()
		select {
		case ch <- out:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- out:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Broker) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
