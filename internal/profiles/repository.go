package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/cache"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const profileCacheTTL = 10 * time.Minute

// Repository is the postgres-backed Store with an optional Redis
// cache-aside layer. Cache failures never fail a call.
type Repository struct {
	pool    *pgxpool.Pool
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, logger: zap.NewNop()}
}

func NewRepositoryWithCache(pool *pgxpool.Pool, c *cache.Cache, metrics *observability.Metrics, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, cache: c, metrics: metrics, logger: logger}
}

// CacheKeyPattern matches every cached profile.
const CacheKeyPattern = "profile:*"

func CacheKey(participantID int64) string {
	return fmt.Sprintf("profile:%d", participantID)
}

const profileColumns = `participant_id, name, age, interests, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.ParticipantID, &p.Name, &p.Age, &p.Interests, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("profile not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) Get(ctx context.Context, participantID int64) (*Profile, error) {
	p, hit, err := cache.GetOrLoad(ctx, r.cache, CacheKey(participantID), profileCacheTTL,
		func(ctx context.Context) (*Profile, error) {
			start := time.Now()
			defer func() { r.metrics.RecordDBQuery("get_profile", time.Since(start)) }()

			return scanProfile(r.pool.QueryRow(ctx,
				`SELECT `+profileColumns+` FROM profiles WHERE participant_id = $1`,
				participantID,
			))
		})
	if r.cache != nil && err == nil {
		r.metrics.RecordCacheHit("profile", hit)
	}
	return p, err
}

// Save inserts or replaces the profile and refreshes its timestamps from
// the database.
func (r *Repository) Save(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (participant_id, name, age, interests)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id) DO UPDATE
		SET name = EXCLUDED.name,
			age = EXCLUDED.age,
			interests = EXCLUDED.interests
		RETURNING created_at, updated_at
	`

	start := time.Now()
	err := r.pool.QueryRow(ctx, query, p.ParticipantID, p.Name, p.Age, p.Interests).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	r.metrics.RecordDBQuery("save_profile", time.Since(start))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, CacheKey(p.ParticipantID), p, profileCacheTTL); err != nil {
			r.logger.Debug("profile cache write failed", zap.Int64("participant_id", p.ParticipantID), zap.Error(err))
			_ = r.cache.Invalidate(ctx, CacheKey(p.ParticipantID))
		}
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}
