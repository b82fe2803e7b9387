package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	backoffCeiling      = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type store interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending() (int64, error)
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher is the slice of *pubsub.Publisher the relay needs. Messages
// carry an ordering key, so a failed key must be resumed before it accepts
// new messages.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          store
	PubSub      topicSource
	Events      eventStore
	DeadLetters deadLetterStore
	Registry    eventResolver
	Metrics     *metrics.OutboxMetrics
	// overrides PubSub.Publisher in tests
	PublisherFor func(topic string) topicPublisher
}

// Relay moves committed outbox rows onto Pub/Sub. A batch is claimed inside
// one transaction, every message is handed to its publisher before any result
// is awaited, and each row is then settled on its own outcome.
type Relay struct {
	logg         *logger.Logger
	db           store
	pubsub       topicSource
	events       eventStore
	deadLetters  deadLetterStore
	registry     eventResolver
	metrics      *metrics.OutboxMetrics
	publisherFor func(topic string) topicPublisher

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dead letter repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:         p.Logger,
		db:           p.DB,
		pubsub:       p.PubSub,
		events:       p.Events,
		deadLetters:  p.DeadLetters,
		registry:     p.Registry,
		metrics:      p.Metrics,
		publisherFor: p.PublisherFor,
		batchSize:    positiveOr(p.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(p.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval: defaultPollInterval,
	}
	if ms := p.Config.Outbox.PollIntervalMS; ms > 0 {
		r.pollInterval = time.Duration(ms) * time.Millisecond
	}
	if r.publisherFor == nil {
		r.publisherFor = r.pubsubPublisher
	}
	return r, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (r *Relay) pubsubPublisher(topic string) topicPublisher {
	p := r.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	return orderedPublisher{p}
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next one; an empty poll waits one interval and a failed batch backs off
// exponentially up to backoffCeiling.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	pace := pacing{base: r.pollInterval, ceiling: backoffCeiling}
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		claimed, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = pace.grow()
		case claimed > 0:
			pace.reset()
			r.refreshBacklog(ctx)
			continue
		default:
			pace.reset()
			r.metrics.SetBacklog(0)
			wait = r.pollInterval
		}
		if err := sleepCtx(ctx, jittered(wait)); err != nil {
			return err
		}
	}
}

func (r *Relay) refreshBacklog(ctx context.Context) {
	n, err := r.events.CountPending()
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
		return
	}
	r.metrics.SetBacklog(n)
}

// delivery is one claimed row on its way through a batch.
type delivery struct {
	event    models.OutboxEvent
	topic    string
	pub      topicPublisher
	result   publishResult
	err      error
	terminal bool
}

// relayBatch claims up to batchSize rows and returns how many it settled.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		batch := make([]*delivery, len(rows))
		for i, row := range rows {
			batch[i] = r.dispatch(publishCtx, row)
		}
		for _, d := range batch {
			if d.result != nil {
				_, d.err = d.result.Get(publishCtx)
			}
		}
		for _, d := range batch {
			if err := r.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// dispatch resolves the row and hands it to its topic publisher without
// waiting for the broker.
func (r *Relay) dispatch(ctx context.Context, row models.OutboxEvent) *delivery {
	d := &delivery{event: row}
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		d.err = err
		d.terminal = registry.IsNonRetryable(err)
		return d
	}
	d.topic = resolved.Descriptor.Topic
	d.pub = r.publisherFor(d.topic)
	if d.pub == nil {
		d.err = fmt.Errorf("no publisher for topic %q", d.topic)
		d.terminal = true
		return d
	}
	d.result = d.pub.Publish(ctx, &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if d.result == nil {
		d.err = fmt.Errorf("publisher for topic %q returned no result", d.topic)
		d.terminal = true
	}
	return d
}

// settle records the outcome of one delivery. Only storage errors abort the
// batch; publish failures are written back to the row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
		"topic":          d.topic,
	})

	if d.err == nil {
		if err := r.events.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		r.metrics.CountDelivery(d.topic, metrics.DeliveryPublished)
		r.logg.Info(ctx, "outbox event published")
		return nil
	}

	if d.pub != nil {
		d.pub.ResumePublish(d.event.AggregateID.String())
	}
	if d.terminal || registry.IsNonRetryable(d.err) {
		return r.deadLetter(ctx, tx, d.event, enums.OutboxDLQReasonNonRetryable, d.err, d.topic)
	}
	if d.event.AttemptCount+1 >= r.maxAttempts {
		return r.deadLetter(ctx, tx, d.event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", d.event.AttemptCount+1, d.err), d.topic)
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", d.err.Error()), "outbox publish failed, will retry")
	if err := r.events.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", d.event.ID, err)
	}
	r.metrics.CountDelivery(d.topic, metrics.DeliveryRetried)
	return nil
}

// deadLetter copies the row into outbox_dlq and parks it at the attempt
// ceiling so the fetch query skips it.
func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	ctx = r.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": cause.Error()})
	r.logg.Warn(ctx, "outbox event moved to dead letters")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dead letter %s: %w", event.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park outbox row %s: %w", event.ID, err)
	}
	r.metrics.CountDelivery(topic, metrics.DeliveryDeadLetter)
	return nil
}

// pacing doubles the wait after each failed batch.
type pacing struct {
	base, ceiling, current time.Duration
}

func (p *pacing) grow() time.Duration {
	if p.current <= 0 {
		p.current = p.base
	}
	p.current = min(p.current*2, p.ceiling)
	return p.current
}

func (p *pacing) reset() {
	p.current = 0
}

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// orderedPublisher adapts *pubsub.Publisher so its result satisfies
// publishResult.
type orderedPublisher struct {
	*gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
