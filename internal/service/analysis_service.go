package service

import (
	"context"
	"log"
	"sync"
	"time"

	"kolscope/internal/domain"
	"kolscope/internal/impact"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// PriceResolver produces price points and picks trading pairs. Satisfied by
// resolver.Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, token string, target time.Time, label string, pair *domain.TradingPair) (*domain.PricePoint, error)
	SelectBestPair(ctx context.Context, token string, refTime time.Time) *domain.TradingPair
}

type ImpactRepository interface {
	Upsert(ctx context.Context, res *domain.ImpactResult) error
	ListByToken(ctx context.Context, token string, limit int) ([]*domain.ImpactResult, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.ImpactResult, error)
	ListPendingFollowups(ctx context.Context, limit int) ([]*domain.ImpactResult, error)
}

// Notifier pushes high-impact results to the outside world. Nil-safe: the
// service treats a nil notifier as "alerts disabled".
type Notifier interface {
	NotifyHighImpact(res *domain.ImpactResult)
}

// AnalysisService turns token mentions into persisted impact results.
type AnalysisService struct {
	tracer        trace.Tracer
	resolver      PriceResolver
	repo          ImpactRepository
	notifier      Notifier
	workers       int
	highImpactPct decimal.Decimal
}

func NewAnalysisService(
	tracer trace.Tracer,
	resolver PriceResolver,
	repo ImpactRepository,
	notifier Notifier,
	workers int,
	highImpactPct float64,
) *AnalysisService {
	if workers < 1 {
		workers = 1
	}
	return &AnalysisService{
		tracer:        tracer,
		resolver:      resolver,
		repo:          repo,
		notifier:      notifier,
		workers:       workers,
		highImpactPct: decimal.NewFromFloat(highImpactPct),
	}
}

// AnalyzeMention resolves every timeframe for one mention and persists the
// result. Per-mention failures are recorded on the result, not returned: only
// storage errors surface to the caller.
func (s *AnalysisService) AnalyzeMention(ctx context.Context, m domain.Mention) (*domain.ImpactResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze-mention")
	defer span.End()

	res := &domain.ImpactResult{
		Token:     m.Token,
		TweetID:   m.TweetID,
		Author:    m.Author,
		TweetText: m.Text,
		TweetTime: m.PostedAt.UTC(),
		Points:    make(map[string]*domain.PricePoint),
	}

	pair := s.resolver.SelectBestPair(ctx, m.Token, m.PostedAt)
	if pair == nil {
		log.Printf("no pairs found for %s (tweet %s)", m.Token, m.TweetID)
		res.Err = "no pairs found"
		return res, s.persist(ctx, res)
	}

	res.TokenName = pair.BaseToken.Name
	res.TokenAddress = pair.BaseToken.Address
	res.PairAddress = pair.PairAddress
	res.ChainID = pair.ChainID
	res.DexID = pair.DexID
	res.PairURL = pair.URL
	res.MarketCap = pair.MarketCap
	res.FDV = pair.FDV
	res.PairCreatedAt = pair.CreatedAt

	for _, tf := range domain.Timeframes {
		target := m.PostedAt.Add(tf.Offset)
		point, err := s.resolver.Resolve(ctx, m.Token, target, tf.Label, pair)
		if err != nil {
			log.Printf("resolve %s %s: %v", m.Token, tf.Label, err)
			continue
		}
		res.Points[tf.Label] = point
		if point.Source == domain.SourceFutureDate {
			res.PendingFollowups = true
		}
	}

	res.Changes = impact.Changes(res.Points)

	if s.notifier != nil && s.isHighImpact(res) {
		s.notifier.NotifyHighImpact(res)
	}

	return res, s.persist(ctx, res)
}

// AnalyzeBatch fans mentions out over a bounded worker pool. Results come
// back in input order; a nil slot marks a mention whose result could not be
// stored.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, mentions []domain.Mention) []*domain.ImpactResult {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze-batch")
	defer span.End()

	results := make([]*domain.ImpactResult, len(mentions))
	sem := make(chan struct{}, s.workers)

	var wg sync.WaitGroup
	for i, m := range mentions {
		wg.Add(1)
		go func(i int, m domain.Mention) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.AnalyzeMention(ctx, m)
			if err != nil {
				log.Printf("analyze %s (tweet %s): %v", m.Token, m.TweetID, err)
				return
			}
			results[i] = res
		}(i, m)
	}
	wg.Wait()

	return results
}

func (s *AnalysisService) ImpactsByToken(ctx context.Context, token string, limit int) ([]*domain.ImpactResult, error) {
	return s.repo.ListByToken(ctx, token, limit)
}

func (s *AnalysisService) RecentImpacts(ctx context.Context, limit int) ([]*domain.ImpactResult, error) {
	return s.repo.ListRecent(ctx, limit)
}

// ResolvePendingFollowups re-analyzes stored results whose later timeframes
// were still in the future. Returns how many rows it reprocessed.
func (s *AnalysisService) ResolvePendingFollowups(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.resolve-pending-followups")
	defer span.End()

	pending, err := s.repo.ListPendingFollowups(ctx, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, old := range pending {
		m := domain.Mention{
			TweetID:  old.TweetID,
			Author:   old.Author,
			Text:     old.TweetText,
			PostedAt: old.TweetTime,
			Token:    old.Token,
		}
		if _, err := s.AnalyzeMention(ctx, m); err != nil {
			log.Printf("followup %s (tweet %s): %v", old.Token, old.TweetID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (s *AnalysisService) isHighImpact(res *domain.ImpactResult) bool {
	for _, change := range res.Changes {
		if change != nil && impact.IsHighImpact(*change, s.highImpactPct) {
			return true
		}
	}
	return false
}

func (s *AnalysisService) persist(ctx context.Context, res *domain.ImpactResult) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Upsert(ctx, res)
}
