// Package valkeyrelay shares feed events between gateway instances that
// sit on the same database, over valkey pub/sub.
package valkeyrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/models"
)

const (
	channelPrefix  = "chat:feed:"
	publishTimeout = 2 * time.Second
	forwardBuffer  = 1024
)

// Channel is the pub/sub channel events of key travel on.
func Channel(key string) string { return channelPrefix + key }

type envelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

// Relay is a feed.Broker whose publishes also reach every other instance.
// Forwarding is asynchronous: Publish queues the event and the loop
// started by Run sends the queue in order.
type Relay struct {
	*feed.Broker
	client valkey.Client
	origin string
	queue  chan models.Event
	log    *slog.Logger
}

// Dial connects to a valkey server at addr.
func Dial(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	return client, nil
}

func New(client valkey.Client, broker *feed.Broker, log *slog.Logger) *Relay {
	return &Relay{
		Broker: broker,
		client: client,
		origin: uuid.NewString(),
		queue:  make(chan models.Event, forwardBuffer),
		log:    log,
	}
}

// Publish delivers ev locally and queues it for the other instances when
// the local broker took it. It never waits on valkey; when the queue is
// full the event is not forwarded and remote subscribers fill the gap
// from the store on the next event.
func (r *Relay) Publish(ev models.Event) bool {
	if !r.Broker.Publish(ev) {
		return false
	}
	select {
	case r.queue <- ev:
	default:
		r.log.Warn("relay queue full, event not forwarded", "key", ev.Key, "seq", ev.Seq)
	}
	return true
}

// Run forwards queued events and feeds remote events into the local
// broker until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("feed relay started", "origin", r.origin)
	ctx, cancel := context.WithCancel(ctx)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		r.forward(ctx)
	}()
	defer func() {
		cancel()
		<-forwarded
	}()

	cmd := r.client.B().Psubscribe().Pattern(channelPrefix + "*").Build()
	err := r.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
		r.inject(msg.Message)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.send(ctx, ev)
		}
	}
}

func (r *Relay) send(ctx context.Context, ev models.Event) {
	payload, err := json.Marshal(envelope{Origin: r.origin, Event: ev})
	if err != nil {
		r.log.Error("encode feed event", "key", ev.Key, "seq", ev.Seq, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	cmd := r.client.B().Publish().Channel(Channel(ev.Key)).Message(string(payload)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.log.Warn("relay publish failed", "key", ev.Key, "seq", ev.Seq, "err", err)
	}
}

func (r *Relay) inject(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("dropping malformed relay message", "err", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.Broker.Publish(env.Event)
}

func (r *Relay) Close() { r.client.Close() }
