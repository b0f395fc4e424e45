package components

import (
	"context"

	"quizrush/internal/infra/stream"
	"quizrush/internal/worker"

	"go.uber.org/fx"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(
		worker.NewConsumer,
		worker.NewReconciler,
	),
	fx.Invoke(
		startConsumer,
		startReconciler,
	),
)

func startConsumer(lc fx.Lifecycle, consumer *worker.Consumer, reader *stream.RedisReader) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := reader.EnsureGroup(startCtx); err != nil {
				cancel()
				return err
			}
			go consumer.Run(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func startReconciler(lc fx.Lifecycle, reconciler *worker.Reconciler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go reconciler.Run(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}
