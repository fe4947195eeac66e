package event

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Handler consumes one message payload. Errors are logged by the bus and
// never travel back to the publisher; correctness after a failed handler is
// the reconciliation loops' job.
type Handler func(ctx context.Context, payload []byte) error

// Bus is the producer/consumer contract between this service and the
// external verify/rollback workers. Any durable at-least-once queue can sit
// behind it; per-key ordering is not required.
type Bus interface {
	Publish(ctx context.Context, topic string, message any) error
	Subscribe(topic string, h Handler)
}

type envelope struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Body  json.RawMessage `json:"body"`
}

// InProcBus fans messages out to every subscriber of a topic on dedicated
// goroutines. Delivery is at-least-once within the process lifetime; it is
// the wiring used by main and by tests.
type InProcBus struct {
	mu   sync.RWMutex
	subs map[string][]chan envelope
	wg   sync.WaitGroup
}

func NewInProcBus() *InProcBus {
	return &InProcBus{subs: map[string][]chan envelope{}}
}

func (b *InProcBus) Publish(_ context.Context, topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	env := envelope{ID: uuid.NewString(), Topic: topic, Body: body}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		ch <- env
	}
	return nil
}

func (b *InProcBus) Subscribe(topic string, h Handler) {
	ch := make(chan envelope, 64)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for env := range ch {
			if err := h(context.Background(), env.Body); err != nil {
				log.Printf("event: handler failed topic=%s id=%s err=%v", env.Topic, env.ID, err)
			}
		}
	}()
}

// Close stops delivery; messages already queued are still handed out.
func (b *InProcBus) Close() {
	b.mu.Lock()
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = map[string][]chan envelope{}
	b.mu.Unlock()
	b.wg.Wait()
}
