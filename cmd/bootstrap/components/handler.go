package components

import (
	"quizrush/internal/handler"
	"quizrush/internal/handler/api"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewSubmissionHandler,
		api.NewAdminHandler,
	),
	fx.Invoke(handler.NewRouter),
)
