package dashboard

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dr-electrique/rapport-server/cache"
	"github.com/dr-electrique/rapport-server/database/repo/rapports"
)

// Overview 仪表板聚合
// One payload for the whole dashboard: today's and this week's activity
// plus the per-project rollups.
type Overview struct {
	Today       rapports.Stats           `json:"today"`
	Week        rapports.Stats           `json:"week"`
	Projects    []rapports.ProjectRollup `json:"projects"`
	TotalPhotos int64                    `json:"total_photos"`
	GeneratedAt string                   `json:"generated_at"`
}

// StatsStore is the rapport aggregation surface the dashboard needs.
type StatsStore interface {
	StatsSince(ctx context.Context, since string) (*rapports.Stats, error)
	ProjectRollups(ctx context.Context) ([]rapports.ProjectRollup, error)
}

// PhotoCounter counts persisted photos.
type PhotoCounter interface {
	TotalCount(ctx context.Context) (int64, error)
}

// Service assembles the dashboard overview.
type Service struct {
	stats  StatsStore
	photos PhotoCounter
	cache  cache.Provider
	ttl    time.Duration
	now    func() time.Time
}

// NewService 创建仪表板服务
func NewService(stats StatsStore, photos PhotoCounter, cacheProvider cache.Provider, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		stats:  stats,
		photos: photos,
		cache:  cacheProvider,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Overview returns the aggregated dashboard payload, served from cache
// when fresh.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	key := cache.Dashboard.Build("overview")

	if s.cache != nil {
		var cached Overview
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !cache.IsCacheMiss(err) {
			log.Printf("[Dashboard] cache read failed: %v", err)
		}
	}

	overview, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, overview, s.ttl); err != nil {
			log.Printf("[Dashboard] cache write failed: %v", err)
		}
	}

	return overview, nil
}

// Invalidate drops the cached overview, called after a submission lands.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Dashboard.Build("overview")); err != nil {
		log.Printf("[Dashboard] cache invalidation failed: %v", err)
	}
}

// build fans the four aggregate queries out concurrently.
func (s *Service) build(ctx context.Context) (*Overview, error) {
	now := s.now()
	overview := &Overview{
		GeneratedAt: now.Format(time.RFC3339),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.stats.StatsSince(gctx, now.Format("2006-01-02"))
		if err != nil {
			return err
		}
		overview.Today = *stats
		return nil
	})

	g.Go(func() error {
		stats, err := s.stats.StatsSince(gctx, weekStart(now))
		if err != nil {
			return err
		}
		overview.Week = *stats
		return nil
	})

	g.Go(func() error {
		rollups, err := s.stats.ProjectRollups(gctx)
		if err != nil {
			return err
		}
		overview.Projects = rollups
		return nil
	})

	g.Go(func() error {
		count, err := s.photos.TotalCount(gctx)
		if err != nil {
			return err
		}
		overview.TotalPhotos = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

// weekStart returns the Monday of the current week (YYYY-MM-DD).
func weekStart(now time.Time) string {
	day := int(now.Weekday())
	diff := day - 1
	if day == 0 { // Sunday belongs to the week that started six days ago
		diff = 6
	}
	return now.AddDate(0, 0, -diff).Format("2006-01-02")
}
