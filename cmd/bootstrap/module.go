package bootstrap

import (
	"quizrush/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	DBModule,
	RedisModule,
	components.PersistenceModule,
	components.GatewayModule,
	components.UseCaseModule,
	components.WorkerModule,
	components.HandlerModule,
)
