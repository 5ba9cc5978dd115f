package livequery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// Notifier carries change notifications from writers to watching hubs.
type Notifier interface {
	Publish(ctx context.Context, change models.Change) error
	// Listen streams changes until ctx is done, then closes the channel.
	Listen(ctx context.Context) (<-chan models.Change, error)
}

type memoryListener struct {
	ch  chan models.Change
	ctx context.Context
}

// MemoryNotifier fans changes out inside one process.
type MemoryNotifier struct {
	mu        sync.Mutex
	listeners map[int]*memoryListener
	nextID    int
	buffer    int
}

func NewMemoryNotifier(buffer int) *MemoryNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryNotifier{listeners: make(map[int]*memoryListener), buffer: buffer}
}

// Publish hands change to every listener, waiting on slow ones.
func (n *MemoryNotifier) Publish(ctx context.Context, change models.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners {
		select {
		case l.ch <- change:
		case <-l.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (n *MemoryNotifier) Listen(ctx context.Context) (<-chan models.Change, error) {
	l := &memoryListener{ch: make(chan models.Change, n.buffer), ctx: ctx}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners, id)
		close(l.ch)
		n.mu.Unlock()
	}()
	return l.ch, nil
}

// RedisNotifier publishes changes on a Redis pub/sub channel so every API
// instance refreshes its subscriptions.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = "scholarbridge:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, change models.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Listen(ctx context.Context) (<-chan models.Change, error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan models.Change, 64)
	go func() {
		defer close(out)
		defer pubsub.Close() //nolint:errcheck
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decodeChange(msg.Payload)
				if err != nil {
					n.logger.Warn("drop malformed change", zap.String("channel", n.channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeChange(payload string) (models.Change, error) {
	var change models.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return models.Change{}, err
	}
	if change.Collection == "" {
		return models.Change{}, fmt.Errorf("change without collection")
	}
	return change, nil
}
