package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/policy"
	"github.com/casepilot/casepilot/store"
	"github.com/casepilot/casepilot/tools"
)

// Service coordinates investigations: the turn loop, tool dispatch with
// caching, verdict interception, policy evaluation, critic review, and
// replay sessions.
type Service struct {
	store        store.Store
	llm          llm.Completion
	registry     *tools.Registry
	catalog      *tools.Catalog
	cache        *cache.ResultCache
	policyEngine *policy.Engine
	config       *config.Config
	validate     *validator.Validate
}

func New(st store.Store, client llm.Completion, registry *tools.Registry, catalog *tools.Catalog, resultCache *cache.ResultCache, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:        st,
		llm:          client,
		registry:     registry,
		catalog:      catalog,
		cache:        resultCache,
		policyEngine: policyEngine,
		config:       cfg,
		validate:     validator.New(),
	}
}

// CacheStats exposes cache counters for the health endpoint.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
