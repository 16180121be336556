package analytics

import (
	"context"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/database"
	"github.com/sirupsen/logrus"
)

// Service is the analytics query layer: compile, execute, normalize.
// Every query is stateless and independent; the service is safe for
// concurrent use.
type Service struct {
	compiler *Compiler
	executor *Executor
	logger   *logrus.Logger
}

// NewService wires the query layer over the document store.
func NewService(store database.Store, cfg config.QueryConfig, logger *logrus.Logger) *Service {
	return &Service{
		compiler: NewCompiler(cfg),
		executor: NewExecutor(store, cfg, logger),
		logger:   logger,
	}
}

// Query compiles and runs one specification and returns the tabular
// result. InvalidSpecError means the spec never reached the store;
// ExecutionError means the store failed or timed out.
func (s *Service) Query(ctx context.Context, spec QuerySpec) (Table, error) {
	plan, err := s.compiler.Compile(spec)
	if err != nil {
		return Table{}, err
	}
	records, err := s.executor.Execute(ctx, plan)
	if err != nil {
		return Table{}, err
	}
	return Normalize(plan, records), nil
}
