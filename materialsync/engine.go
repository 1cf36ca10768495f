package materialsync

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// GraphClient is the slice of the platform client the engine needs. The
// production implementation is *shopify.Client; tests inject a fake.
type GraphClient interface {
	Execute(ctx context.Context, query string, variables map[string]any, out any) error
}

// Engine reconciles dependent variant stock against canonical variants.
// All platform access goes through the injected GraphClient; the engine
// keeps no state between passes.
type Engine struct {
	api    GraphClient
	logger *logrus.Logger

	locationID  string // numeric Shopify location id
	familyTitle string // product title marker for the dependent family
	familySlug  string // search-predicate form of familyTitle
	skuPrefix   string // canonical variants are named <prefix><code>
	lockTTL     time.Duration
	matcher     LineMatcher
}

func NewEngine(api GraphClient, logger *logrus.Logger) *Engine {
	familyTitle := strings.TrimSpace(os.Getenv("PRODUCT_FAMILY_TITLE"))
	if familyTitle == "" {
		familyTitle = "Color Run"
	}
	skuPrefix := strings.TrimSpace(os.Getenv("CANONICAL_SKU_PREFIX"))
	if skuPrefix == "" {
		skuPrefix = "Color-"
	}
	lockTTL := time.Duration(intFromEnv("SYNC_LOCK_TTL_SECONDS", 60)) * time.Second

	return &Engine{
		api:         api,
		logger:      logger,
		locationID:  strings.TrimSpace(os.Getenv("LOCATION_ID")),
		familyTitle: familyTitle,
		familySlug:  strings.ReplaceAll(strings.ToLower(familyTitle), " ", "-"),
		skuPrefix:   skuPrefix,
		lockTTL:     lockTTL,
		matcher:     SubstringMatcher{},
	}
}

// SetMatcher swaps the line-item classifier. The default is first-match-wins
// substring matching.
func (e *Engine) SetMatcher(m LineMatcher) {
	if m != nil {
		e.matcher = m
	}
}

func (e *Engine) locationGID() string {
	return LocationGIDPrefix + e.locationID
}

// lockMaterial takes the advisory lock serializing mutations for one
// material's canonical record. The lock client is re-fetched per call so
// the engine picks up Redis once it connects; nil means lockless mode.
// The periodic pass does not wait for a held lock; the webhook path
// retries briefly because a sale decrement should not be dropped over a
// short overlap with the reconciler.
func (e *Engine) lockMaterial(ctx context.Context, code string, wait bool) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	opts := &redislock.Options{}
	if wait {
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100)
	}
	return locker.Obtain(ctx, "materialsync:material:"+code, e.lockTTL, opts)
}

func releaseLock(lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(context.Background())
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
