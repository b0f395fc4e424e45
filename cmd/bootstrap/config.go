package bootstrap

import (
	"quizrush/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		func(cfg config.Config) config.LockConfig { return cfg.Lock },
		func(cfg config.Config) config.QuotaConfig { return cfg.Quota },
		func(cfg config.Config) config.PipelineConfig { return cfg.Pipeline },
		func(cfg config.Config) config.ReconcileConfig { return cfg.Reconcile },
	),
)
