package components

import (
	"quizrush/internal/infra/repository"
	"quizrush/internal/infra/uow"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/queries"
	"quizrush/internal/usecase/shared"
	"quizrush/internal/worker"

	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		fx.Annotate(
			uow.NewPostgresTxManager,
			fx.As(new(shared.TxManager)),
		),
		// Quiz ledger
		fx.Annotate(
			repository.NewQuizRepository,
			fx.As(new(commands.QuizRepository)),
			fx.As(new(worker.QuizRepository)),
			fx.As(new(worker.ReconcileQuizRepository)),
		),
		// Members
		fx.Annotate(
			repository.NewMemberRepository,
			fx.As(new(commands.MemberRepository)),
			fx.As(new(worker.MemberRepository)),
		),
		// Submissions, write and read side
		fx.Annotate(
			repository.NewSubmissionRepository,
			fx.As(new(commands.SubmissionRepository)),
			fx.As(new(worker.SubmissionRepository)),
			fx.As(new(queries.SubmissionReadStore)),
		),
	),
)
