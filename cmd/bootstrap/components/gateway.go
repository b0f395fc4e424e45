package components

import (
	"quizrush/internal/infra/lock"
	"quizrush/internal/infra/quota"
	"quizrush/internal/infra/stream"
	"quizrush/internal/usecase/shared"

	"go.uber.org/fx"
)

// GatewayModule wires the Redis-backed coordination ports: the quota
// counter, the distributed lock, and the submission stream.
var GatewayModule = fx.Module("gateway",
	fx.Provide(
		fx.Annotate(
			quota.NewRedisStore,
			fx.As(new(shared.QuotaStore)),
		),
		fx.Annotate(
			lock.NewRedsyncLock,
			fx.As(new(shared.DistributedLock)),
		),
		fx.Annotate(
			stream.NewRedisPublisher,
			fx.As(new(shared.EventPublisher)),
		),
		// The concrete reader stays visible so the worker module can
		// create the consumer group on startup.
		stream.NewRedisReader,
		func(r *stream.RedisReader) shared.EventReader { return r },
		fx.Annotate(
			stream.NewRedisDeadLetterSink,
			fx.As(new(shared.DeadLetterSink)),
		),
	),
)
