package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// IngredientService serves the read-only ingredient catalog. Prefix searches
// run on every keystroke of the recipe form, so results are cached per
// lower-cased prefix for a short TTL.
type IngredientService struct {
	repo   repository.IngredientRepository
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type cachedSearch struct {
	items   []model.Ingredient
	expires time.Time
}

// NewIngredientService builds the service. A cacheSize <= 0 or ttl <= 0
// disables caching.
func NewIngredientService(repo repository.IngredientRepository, cacheSize int, ttl time.Duration, logger *slog.Logger) (*IngredientService, error) {
	s := &IngredientService{repo: repo, ttl: ttl, now: time.Now, logger: logger}
	if cacheSize > 0 && ttl > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("service/ingredient: creating cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Search returns ingredients whose name starts with prefix, ignoring case,
// ordered by name. An empty prefix returns the whole catalog.
func (s *IngredientService) Search(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	key := strings.ToLower(strings.TrimSpace(prefix))

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			entry := v.(cachedSearch)
			if s.now().Before(entry.expires) {
				return entry.items, nil
			}
			s.cache.Remove(key)
		}
	}

	items, err := s.repo.SearchIngredients(ctx, key)
	if err != nil {
		s.logger.Error("failed to search ingredients",
			slog.String("prefix", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/ingredient: searching: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(key, cachedSearch{items: items, expires: s.now().Add(s.ttl)})
	}
	return items, nil
}

func (s *IngredientService) Get(ctx context.Context, id int64) (*model.Ingredient, error) {
	ing, err := s.repo.GetIngredientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/ingredient: %w", err)
	}
	return ing, nil
}
