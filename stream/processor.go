package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CefBoud/kafkanet/client"
	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/types"
)

// DefaultPollTimeout is how long the processor's loop waits when a poll returned nothing
const DefaultPollTimeout = 100 * time.Millisecond

var (
	// ErrAlreadyStarted is returned by Start while the loop is running
	ErrAlreadyStarted = errors.New("processor already started")
	// ErrProcessorStopped is returned by Start after Stop
	ErrProcessorStopped = errors.New("processor stopped")
)

// Processor turns a ConsumerClient into a push Stream. A single background loop
// polls the consumer and publishes every message to the stream's subscribers.
type Processor struct {
	PollTimeout time.Duration

	consumer *client.ConsumerClient
	messages *hub[types.Message]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	// set while the loop is inside a subscriber callback
	delivering atomic.Bool
}

// NewProcessor wraps consumer. The processor owns it from now on and stops it on Stop.
func NewProcessor(consumer *client.ConsumerClient) *Processor {
	return &Processor{
		PollTimeout: DefaultPollTimeout,
		consumer:    consumer,
		messages:    newHub[types.Message](),
	}
}

// FromTopic subscribes the consumer to name and returns the stream of its messages
func (p *Processor) FromTopic(name string) Stream[types.Message] {
	p.consumer.Subscribe(name)
	return p.messages.stream()
}

// Start launches the polling loop. It runs until Stop or until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrProcessorStopped
	}
	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		_, err := p.consumer.Poll(ctx, p.PollTimeout, p.deliver)
		if err == nil {
			continue
		}
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, client.ErrConsumerStopped):
			return
		case errors.Is(err, client.ErrClientClosed):
			log.Error("stream processor on %v: consumer closed, stopping", p.consumer.Topic())
			return
		}
		log.Warn("stream processor on %v: poll failed: %v", p.consumer.Topic(), err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.PollTimeout):
		}
	}
}

func (p *Processor) deliver(msg types.Message) {
	p.delivering.Store(true)
	defer p.delivering.Store(false)
	p.messages.publish(msg)
}

// Stop cancels the loop, ends every subscription and stops the consumer. No
// callback starts once Stop returns. Stop may be called from a subscriber: it
// then returns without waiting and the loop exits when the callback returns,
// which is also the case for a callback already running when Stop is called.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		if !p.delivering.Load() {
			<-done
		}
	}
	p.messages.close()
	p.consumer.Stop()
}
