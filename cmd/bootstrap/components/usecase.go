package components

import (
	"quizrush/internal/pkg/clock"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewAllocationCommands,
		commands.NewAsyncSubmitCommands,
		commands.NewSeedCommands,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewSubmissionQueries,
	),
)
