package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"quizrush/internal/pkg/config"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/redis/go-redis/v9"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
)

// RedisPublisher appends submission-request events to a Redis stream.
// A stream is a single totally-ordered log, so per-quiz ordering holds
// for free; the message key is still recorded for parity with
// partitioned transports.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, cfg config.PipelineConfig) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: cfg.Stream,
	}
}

var _ shared.EventPublisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, ev shared.SubmissionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(err, "failed to marshal submission event")
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			fieldKey:     ev.QuizID.String(),
			fieldPayload: string(payload),
		},
	}).Err()
	if err != nil {
		return errs.Wrap(err, "failed to publish submission event")
	}
	return nil
}

// RedisReader consumes the stream through a consumer group with manual,
// batch-granularity acknowledgment. Entries stay pending until XACK, so
// a crash mid-batch redelivers the whole batch: on startup the reader
// drains its own pending entries list before asking for new entries.
type RedisReader struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	logger   *slog.Logger

	// recovered flips once the pending entries list is drained. Only the
	// consumer goroutine touches it.
	recovered bool
}

func NewRedisReader(client *redis.Client, cfg config.PipelineConfig, logger *slog.Logger) *RedisReader {
	return &RedisReader{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		block:    cfg.BlockTimeout,
		logger:   logger,
	}
}

var _ shared.EventReader = (*RedisReader)(nil)

// EnsureGroup creates the consumer group if it does not exist yet.
func (r *RedisReader) EnsureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errs.Wrap(err, "failed to create consumer group")
	}
	return nil
}

// ReadBatch returns this consumer's unacknowledged deliveries first.
// With `>` alone a batch read before a crash would sit in the pending
// entries list forever, the restarted consumer never seeing it again.
func (r *RedisReader) ReadBatch(ctx context.Context, max int) ([]shared.Delivery, error) {
	if !r.recovered {
		deliveries, err := r.readPending(ctx, max)
		if err != nil {
			return nil, err
		}
		if len(deliveries) > 0 {
			r.logger.Info("recovered unacknowledged deliveries",
				"consumer", r.consumer, "count", len(deliveries))
			return deliveries, nil
		}
		r.recovered = true
	}

	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    int64(max),
		Block:    r.block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "failed to read from stream")
	}
	return r.decode(res), nil
}

// readPending reads from this consumer's pending entries list, oldest
// first. An empty result means the list is drained.
func (r *RedisReader) readPending(ctx context.Context, max int) ([]shared.Delivery, error) {
	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, "0"},
		Count:    int64(max),
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "failed to read pending entries")
	}
	return r.decode(res), nil
}

func (r *RedisReader) decode(res []redis.XStream) []shared.Delivery {
	var deliveries []shared.Delivery
	for _, s := range res {
		for _, msg := range s.Messages {
			d := shared.Delivery{Stream: s.Stream, EntryID: msg.ID}

			raw, ok := msg.Values[fieldPayload].(string)
			if !ok {
				d.DecodeErr = errs.New("stream entry has no payload field")
			} else if err := json.Unmarshal([]byte(raw), &d.Event); err != nil {
				d.DecodeErr = errs.Wrap(err, "failed to unmarshal submission event")
			}

			deliveries = append(deliveries, d)
		}
	}
	return deliveries
}

func (r *RedisReader) Ack(ctx context.Context, entryIDs ...string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.stream, r.group, entryIDs...).Err(); err != nil {
		return errs.Wrap(err, "failed to ack batch")
	}
	return nil
}

// RedisDeadLetterSink appends dead-letter records to a separate stream,
// keyed by the failed request id for operator lookup.
type RedisDeadLetterSink struct {
	client *redis.Client
	stream string
}

func NewRedisDeadLetterSink(client *redis.Client, cfg config.PipelineConfig) *RedisDeadLetterSink {
	return &RedisDeadLetterSink{
		client: client,
		stream: cfg.DeadLetterStream,
	}
}

var _ shared.DeadLetterSink = (*RedisDeadLetterSink)(nil)

func (s *RedisDeadLetterSink) PublishDeadLetter(ctx context.Context, rec shared.DeadLetterRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(err, "failed to marshal dead letter record")
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			fieldKey:     rec.Event.RequestID,
			fieldPayload: string(payload),
		},
	}).Err()
	if err != nil {
		return errs.Wrap(err, "failed to publish dead letter record")
	}
	return nil
}
