// Package agent coordinates knowledge ingestion, persistence and answering
// for research agents.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/budget"
	"github.com/mohammad-safakhou/researcher/internal/engine"
	"github.com/mohammad-safakhou/researcher/internal/knowledge"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/internal/telemetry"
	"github.com/mohammad-safakhou/researcher/internal/tools"
)

// ErrNameRequired is returned when an agent is created without a name.
var ErrNameRequired = errors.New("name is required")

// NotFoundTurn answers queries addressed to an unknown agent.
var NotFoundTurn = engine.Turn{Role: engine.RoleSystem, Content: "Agent not found."}

type Options struct {
	Store       store.Store
	Accumulator *knowledge.Accumulator
	Composer    knowledge.Composer
	Engines     engine.Factory
	Tools       tools.Set
	Locker      Locker
	Metrics     *telemetry.Metrics
	Logger      *zap.Logger
}

type Service struct {
	store    store.Store
	acc      *knowledge.Accumulator
	composer knowledge.Composer
	engines  engine.Factory
	tools    tools.Set
	locker   Locker
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

func NewService(opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Engines == nil {
		opts.Engines = engine.Unavailable(engine.ErrNotConfigured)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:    opts.Store,
		acc:      opts.Accumulator,
		composer: opts.Composer,
		engines:  opts.Engines,
		tools:    opts.Tools,
		locker:   opts.Locker,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
}

func (s *Service) CreateAgent(ctx context.Context, name string) (store.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Agent{}, ErrNameRequired
	}
	a, err := s.store.Create(ctx, name, nil)
	if err != nil {
		return store.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	s.log.Info("agent created", zap.String("agent_id", a.ID), zap.String("name", a.Name))
	return a, nil
}

func (s *Service) GetAgent(ctx context.Context, id string) (store.Agent, error) {
	return s.store.Get(ctx, id)
}

// DeleteAgent removes the agent and all of its knowledge. Unknown ids are not an error.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if err := store.ValidateID(id); err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("agent deleted", zap.String("agent_id", id))
	return nil
}

// AddFiles ingests uploads into the agent's file knowledge. The batch is
// committed whole or not at all.
func (s *Service) AddFiles(ctx context.Context, id string, uploads []knowledge.FileUpload) (knowledge.Batch, error) {
	return s.ingest(ctx, id, knowledge.ScopeFiles, func(current int) (knowledge.Batch, error) {
		return s.acc.AddFiles(ctx, uploads, current)
	})
}

// AddWebsites ingests web pages into the agent's website knowledge.
func (s *Service) AddWebsites(ctx context.Context, id string, links []string) (knowledge.Batch, error) {
	return s.ingest(ctx, id, knowledge.ScopeWebsites, func(current int) (knowledge.Batch, error) {
		return s.acc.AddWebsites(ctx, links, current)
	})
}

func (s *Service) ingest(ctx context.Context, id string, scope knowledge.Scope, run func(current int) (knowledge.Batch, error)) (knowledge.Batch, error) {
	if err := store.ValidateID(id); err != nil {
		return knowledge.Batch{}, err
	}
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return knowledge.Batch{}, err
	}
	defer unlock()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return knowledge.Batch{}, err
	}
	batch, err := run(a.TotalTokens())
	if err != nil {
		s.metrics.IngestBatch(string(scope), ingestOutcome(err), 0)
		s.log.Warn("knowledge batch rejected",
			zap.String("agent_id", id), zap.String("scope", string(scope)), zap.Error(err))
		return knowledge.Batch{}, err
	}
	if len(batch.Records) == 0 {
		return batch, nil
	}

	switch scope {
	case knowledge.ScopeFiles:
		err = s.store.AppendFiles(ctx, id, batch.Records, a.Revision)
	case knowledge.ScopeWebsites:
		err = s.store.AppendWebsites(ctx, id, batch.Records, a.Revision)
	}
	if err != nil {
		s.metrics.IngestBatch(string(scope), telemetry.OutcomeError, 0)
		return knowledge.Batch{}, err
	}
	s.metrics.IngestBatch(string(scope), telemetry.OutcomeOK, batch.Tokens())
	s.log.Info("knowledge committed",
		zap.String("agent_id", id), zap.String("scope", string(scope)),
		zap.Int("records", len(batch.Records)), zap.Int("total_tokens", batch.Total))
	return batch, nil
}

func ingestOutcome(err error) string {
	var (
		unsupported *knowledge.ErrUnsupportedFormat
		invalid     *knowledge.ErrInvalidURL
		failed      *knowledge.ErrExtractionFailed
		limit       *budget.ErrTokenLimitExceeded
	)
	if errors.As(err, &unsupported) || errors.As(err, &invalid) || errors.As(err, &failed) || errors.As(err, &limit) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeError
}

// Search ranks passages of the agent's knowledge against query.
func (s *Service) Search(ctx context.Context, id, query string, k int) ([]knowledge.Hit, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return knowledge.Search(a.Files, a.Websites, query, k)
}

// Query records the message and answers it with a fresh engine built from the
// agent's current knowledge. Unknown agents get NotFoundTurn.
func (s *Service) Query(ctx context.Context, id, message string) (engine.Turn, error) {
	started := time.Now()
	a, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.Query(telemetry.OutcomeNotFound, 0)
		return NotFoundTurn, nil
	}
	if err != nil {
		return engine.Turn{}, err
	}
	if err := s.store.AppendMessage(ctx, id, message); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Query(telemetry.OutcomeNotFound, 0)
			return NotFoundTurn, nil
		}
		return engine.Turn{}, err
	}

	instructions := s.composer.Compose(a.Files, a.Websites)
	eng := s.engines(instructions, s.tools)
	log := s.log.With(zap.String("agent_id", id))
	log.Info("research started", zap.String("query", engine.Preview(message)),
		zap.Int("knowledge_tokens", a.TotalTokens()))

	turn, err := engine.Final(ctx, eng, message, log)
	if err != nil {
		s.metrics.Query(telemetry.OutcomeError, 0)
		return engine.Turn{}, err
	}
	s.metrics.Query(telemetry.OutcomeOK, time.Since(started))
	return turn, nil
}
