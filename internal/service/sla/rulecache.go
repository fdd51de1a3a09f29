package sla

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
)

const ruleCacheKey = "active_rules"

// RuleCache fronts the escalation-rule repository with a TTL cache.
// Rules are read-only configuration, so a short staleness window is
// acceptable and saves one query per case per sweep.
type RuleCache struct {
	repo  repository.EscalationRepository
	cache *gocache.Cache
}

func NewRuleCache(repo repository.EscalationRepository, ttl time.Duration) *RuleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RuleCache{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (rc *RuleCache) ActiveRules(ctx context.Context) ([]*model.EscalationRule, error) {
	if v, ok := rc.cache.Get(ruleCacheKey); ok {
		return v.([]*model.EscalationRule), nil
	}
	rules, err := rc.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	rc.cache.Set(ruleCacheKey, rules, gocache.DefaultExpiration)
	return rules, nil
}

// Invalidate drops the cached rule set; the next read reloads it.
func (rc *RuleCache) Invalidate() {
	rc.cache.Delete(ruleCacheKey)
}
