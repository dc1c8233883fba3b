package repository

import (
	"context"
	"encoding/json"
	"time"

	"kolscope/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createImpactResultsTable = `
CREATE TABLE IF NOT EXISTS impact_results (
    id                BIGSERIAL   PRIMARY KEY,
    token             TEXT        NOT NULL,
    token_name        TEXT,
    token_address     TEXT,
    tweet_id          TEXT        NOT NULL,
    author            TEXT,
    tweet_text        TEXT,
    tweet_time        TIMESTAMPTZ NOT NULL,
    pair_address      TEXT,
    chain_id          TEXT,
    dex_id            TEXT,
    pair_url          TEXT,
    market_cap        NUMERIC,
    fdv               NUMERIC,
    pair_created_at   TIMESTAMPTZ,
    points            JSONB       NOT NULL DEFAULT '{}'::jsonb,
    changes           JSONB       NOT NULL DEFAULT '{}'::jsonb,
    pending_followups BOOLEAN     NOT NULL DEFAULT FALSE,
    error             TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (token, tweet_id)
);

CREATE INDEX IF NOT EXISTS idx_impact_results_token_time
    ON impact_results (token, tweet_time DESC);

CREATE INDEX IF NOT EXISTS idx_impact_results_pending
    ON impact_results (pending_followups) WHERE pending_followups;
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ImpactRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewImpactRepository(pool PgxPool, tracer trace.Tracer) *ImpactRepository {
	return &ImpactRepository{pool: pool, tracer: tracer}
}

func (r *ImpactRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "impact-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createImpactResultsTable)
	return err
}

// Upsert inserts or refreshes one result keyed by (token, tweet_id). Re-runs
// of the same mention overwrite the previous row in place.
func (r *ImpactRepository) Upsert(ctx context.Context, res *domain.ImpactResult) error {
	_, span := r.tracer.Start(ctx, "impact-repo.upsert")
	defer span.End()

	points, err := json.Marshal(res.Points)
	if err != nil {
		return err
	}
	changes, err := json.Marshal(res.Changes)
	if err != nil {
		return err
	}

	var pairCreatedAt *time.Time
	if !res.PairCreatedAt.IsZero() {
		pairCreatedAt = &res.PairCreatedAt
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO impact_results (
		     token, token_name, token_address, tweet_id, author, tweet_text,
		     tweet_time, pair_address, chain_id, dex_id, pair_url,
		     market_cap, fdv, pair_created_at, points, changes,
		     pending_followups, error
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (token, tweet_id) DO UPDATE SET
		     token_name = EXCLUDED.token_name,
		     token_address = EXCLUDED.token_address,
		     author = EXCLUDED.author,
		     tweet_text = EXCLUDED.tweet_text,
		     tweet_time = EXCLUDED.tweet_time,
		     pair_address = EXCLUDED.pair_address,
		     chain_id = EXCLUDED.chain_id,
		     dex_id = EXCLUDED.dex_id,
		     pair_url = EXCLUDED.pair_url,
		     market_cap = EXCLUDED.market_cap,
		     fdv = EXCLUDED.fdv,
		     pair_created_at = EXCLUDED.pair_created_at,
		     points = EXCLUDED.points,
		     changes = EXCLUDED.changes,
		     pending_followups = EXCLUDED.pending_followups,
		     error = EXCLUDED.error,
		     updated_at = now()`,
		res.Token, nullable(res.TokenName), nullable(res.TokenAddress),
		res.TweetID, nullable(res.Author), nullable(res.TweetText),
		res.TweetTime, nullable(res.PairAddress), nullable(res.ChainID),
		nullable(res.DexID), nullable(res.PairURL), res.MarketCap, res.FDV,
		pairCreatedAt, points, changes, res.PendingFollowups, nullable(res.Err),
	)
	return err
}

func (r *ImpactRepository) ListByToken(ctx context.Context, token string, limit int) ([]*domain.ImpactResult, error) {
	_, span := r.tracer.Start(ctx, "impact-repo.list-by-token")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		selectImpactColumns+`
		 WHERE token = $1
		 ORDER BY tweet_time DESC
		 LIMIT $2`,
		token, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImpactRows(rows)
}

func (r *ImpactRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ImpactResult, error) {
	_, span := r.tracer.Start(ctx, "impact-repo.list-recent")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		selectImpactColumns+`
		 ORDER BY updated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImpactRows(rows)
}

// ListPendingFollowups returns results still waiting on future-dated
// timeframes, oldest mention first so long-overdue rows resolve before
// fresh ones.
func (r *ImpactRepository) ListPendingFollowups(ctx context.Context, limit int) ([]*domain.ImpactResult, error) {
	_, span := r.tracer.Start(ctx, "impact-repo.list-pending-followups")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		selectImpactColumns+`
		 WHERE pending_followups
		 ORDER BY tweet_time ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImpactRows(rows)
}

const selectImpactColumns = `SELECT id, token, token_name, token_address, tweet_id, author, tweet_text,
	     tweet_time, pair_address, chain_id, dex_id, pair_url, market_cap, fdv,
	     pair_created_at, points, changes, pending_followups, error,
	     created_at, updated_at
	 FROM impact_results`

func scanImpactRows(rows pgx.Rows) ([]*domain.ImpactResult, error) {
	var results []*domain.ImpactResult
	for rows.Next() {
		res := &domain.ImpactResult{}
		var (
			tokenName, tokenAddress, author, tweetText   *string
			pairAddress, chainID, dexID, pairURL, errMsg *string
			pairCreatedAt                                *time.Time
			points, changes                              []byte
		)
		if err := rows.Scan(
			&res.ID, &res.Token, &tokenName, &tokenAddress, &res.TweetID,
			&author, &tweetText, &res.TweetTime, &pairAddress, &chainID,
			&dexID, &pairURL, &res.MarketCap, &res.FDV, &pairCreatedAt,
			&points, &changes, &res.PendingFollowups, &errMsg,
			&res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		res.TokenName = deref(tokenName)
		res.TokenAddress = deref(tokenAddress)
		res.Author = deref(author)
		res.TweetText = deref(tweetText)
		res.PairAddress = deref(pairAddress)
		res.ChainID = deref(chainID)
		res.DexID = deref(dexID)
		res.PairURL = deref(pairURL)
		res.Err = deref(errMsg)
		if pairCreatedAt != nil {
			res.PairCreatedAt = pairCreatedAt.UTC()
		}
		res.TweetTime = res.TweetTime.UTC()
		if err := json.Unmarshal(points, &res.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(changes, &res.Changes); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
