package admission

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"visor/internal/domain"
)

const (
	// quotaRetryHint is surfaced when a user is over the daily quota. The
	// window is a calendar day; an hour is a nudge, not a promise.
	quotaRetryHint = time.Hour
	// readRetryHint is the transient hint for an unreadable upload.
	readRetryHint = 5 * time.Minute
	// cooldownPruneAge is how old a per-user stamp must be before the
	// maintenance pass drops it. Stamps this old cannot affect Check.
	cooldownPruneAge = time.Hour

	defaultMaintenanceInterval = 10 * time.Minute
)

// Analyzer performs the provider call for an admitted request. The returned
// outcome is terminal: success, provider quota exhaustion, or a classified
// provider error. Implementations never see quota, cooldown, or cache state.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest, image []byte, contentType string) domain.Outcome
}

// ImageSource supplies the raw image payload. Sources must be reopenable: the
// gate reads once for fingerprinting and again for the provider call.
type ImageSource interface {
	Open() (io.ReadCloser, error)
	ContentType() string
}

// FileSource adapts an upload already saved to disk.
type FileSource struct {
	Path string
	MIME string
}

func (f FileSource) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// ContentType returns the detected MIME type, defaulting to JPEG when the
// upload pipeline could not tell.
func (f FileSource) ContentType() string {
	if f.MIME == "" {
		return "image/jpeg"
	}
	return f.MIME
}

// Config carries the tunables for the admission pipeline.
type Config struct {
	DailyQuotaLimit    int
	GlobalCooldown     time.Duration
	UserCooldown       time.Duration
	MaxCacheEntries    int
	CacheEvictionBatch int
	// ProviderTimeout bounds one full provider attempt sequence. Zero means
	// no gate-imposed deadline beyond the caller's context.
	ProviderTimeout time.Duration
}

// Gate owns the three admission stores and composes them with the provider
// analyzer. Each store carries its own lock; no lock is ever held across the
// provider round trip, and the quota-cooldown-cache sequence is not atomic as
// a whole. Two concurrent first requests for the same image can both reach
// the provider; that duplication is accepted.
type Gate struct {
	quota    *QuotaTracker
	cooldown *CooldownGate
	cache    *ResultCache
	analyzer Analyzer
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewGate builds a gate with fresh, empty stores.
func NewGate(cfg Config, analyzer Analyzer, logger zerolog.Logger) *Gate {
	return &Gate{
		quota:    NewQuotaTracker(cfg.DailyQuotaLimit),
		cooldown: NewCooldownGate(cfg.GlobalCooldown, cfg.UserCooldown),
		cache:    NewResultCache(cfg.MaxCacheEntries, cfg.CacheEvictionBatch),
		analyzer: analyzer,
		timeout:  cfg.ProviderTimeout,
		logger:   logger,
	}
}

// Analyze runs the full admission pipeline for one request: quota, cooldown,
// cache, provider. State changes follow the pipeline rules exactly: cache
// hits are free, successes are cached and charged, failed attempts touch only
// the global cooldown, and provider quota exhaustion changes nothing.
func (g *Gate) Analyze(ctx context.Context, req domain.AnalysisRequest, src ImageSource) domain.Outcome {
	if req.UserID != "" {
		allowed, used, limit := g.quota.Check(req.UserID)
		if !allowed {
			g.logger.Warn().
				Str("user_id", req.UserID).
				Int("used", used).
				Int("limit", limit).
				Msg("gate: daily quota exceeded")
			return domain.Outcome{
				Kind:       domain.OutcomeQuotaExceeded,
				Message:    fmt.Sprintf("Daily quota exceeded. You've used %d of %d requests today. Quota resets at midnight UTC.", used, limit),
				RetryAfter: quotaRetryHint,
				Used:       used,
				Limit:      limit,
			}
		}
	}

	if ok, wait, reason := g.cooldown.Check(req.UserID); !ok {
		return domain.Outcome{
			Kind:       domain.OutcomeCooldown,
			Message:    reason,
			RetryAfter: wait,
		}
	}

	key, haveKey := g.requestKey(req, src)
	if haveKey {
		if entry, ok := g.cache.Get(key); ok {
			g.logger.Debug().Str("image_hash", shortHash(key.Hash)).Msg("gate: cache hit")
			return domain.Outcome{
				Kind:       domain.OutcomeSuccess,
				Text:       entry.Text,
				Confidence: entry.Confidence,
				Elapsed:    entry.Elapsed,
				Cached:     true,
				ImageHash:  key.Hash,
			}
		}
	}

	image, err := readSource(src)
	if err != nil {
		g.logger.Error().Err(err).Msg("gate: image read failed")
		g.cooldown.Record("")
		return domain.Outcome{
			Kind:       domain.OutcomeProviderError,
			Message:    "Could not read the uploaded image.",
			RetryAfter: readRetryHint,
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	outcome := g.analyzer.Analyze(ctx, req, image, src.ContentType())
	if haveKey {
		outcome.ImageHash = key.Hash
	}
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		if haveKey {
			g.cache.Put(key, CachedResult{
				Text:       outcome.Text,
				Confidence: outcome.Confidence,
				Elapsed:    outcome.Elapsed,
			})
		}
		g.cooldown.Record(req.UserID)
		if req.UserID != "" {
			count := g.quota.Increment(req.UserID)
			g.logger.Info().
				Str("user_id", req.UserID).
				Int("count", count).
				Int("limit", g.quota.Limit()).
				Str("model", outcome.ModelUsed).
				Msg("gate: call admitted")
		}
	case domain.OutcomeQuotaExceeded:
		// Provider-account quota. Charging the user or stamping cooldowns
		// would only distort state the provider already rejected.
	default:
		g.cooldown.Record("")
	}
	return outcome
}

// requestKey fingerprints the image and builds the composite cache key.
// Fingerprint failures disable caching for this call but never abort it.
func (g *Gate) requestKey(req domain.AnalysisRequest, src ImageSource) (CacheKey, bool) {
	rc, err := src.Open()
	if err != nil {
		g.logger.Warn().Err(err).Msg("gate: fingerprint open failed, proceeding uncached")
		return CacheKey{}, false
	}
	defer rc.Close()

	hash, err := Fingerprint(rc)
	if err != nil {
		g.logger.Warn().Err(err).Msg("gate: fingerprint failed, proceeding uncached")
		return CacheKey{}, false
	}
	return KeyFor(hash, req), true
}

// Standing reports a user's quota and cooldown position without mutating
// either store.
type Standing struct {
	UserID   string
	Used     int
	Limit    int
	HasQuota bool
	CanCall  bool
	Wait     time.Duration
	Message  string
	Cooldown time.Duration
}

// Standing answers the per-user quota endpoint.
func (g *Gate) Standing(userID string) Standing {
	hasQuota, used, limit := g.quota.Check(userID)
	canCall, wait, message := g.cooldown.Check(userID)
	return Standing{
		UserID:   userID,
		Used:     used,
		Limit:    limit,
		HasQuota: hasQuota,
		CanCall:  canCall,
		Wait:     wait,
		Message:  message,
		Cooldown: g.cooldown.GlobalInterval(),
	}
}

// Status is the monitoring snapshot of the three stores.
type Status struct {
	LastCallAt      time.Time
	SinceLastCall   time.Duration
	CooldownActive  bool
	GlobalCooldown  time.Duration
	ActiveUsers     int
	CacheSize       int
	ResetDate       string
	TotalDailyCalls int
	DailyLimit      int
	UserBreakdown   map[string]int
}

// Status aggregates the stores for operational dashboards. Read-only.
func (g *Gate) Status() Status {
	last, active := g.cooldown.Snapshot()
	total, byUser, resetDate := g.quota.Snapshot()

	st := Status{
		LastCallAt:      last,
		GlobalCooldown:  g.cooldown.GlobalInterval(),
		ActiveUsers:     active,
		CacheSize:       g.cache.Len(),
		ResetDate:       resetDate,
		TotalDailyCalls: total,
		DailyLimit:      g.quota.Limit(),
		UserBreakdown:   byUser,
	}
	if !last.IsZero() {
		st.SinceLastCall = time.Since(last)
		st.CooldownActive = st.SinceLastCall < st.GlobalCooldown
	}
	return st
}

// ResetCooldown clears the global and per-user cooldown stamps and returns
// the previous global timestamp. Quota counts are untouched.
func (g *Gate) ResetCooldown() time.Time {
	prev := g.cooldown.Reset()
	g.logger.Info().Time("previous_last_call", prev).Msg("gate: cooldown reset")
	return prev
}

// Maintain runs one maintenance pass: sweep the cache if oversized and prune
// stale per-user cooldown stamps. Safe to run concurrently with traffic.
func (g *Gate) Maintain() {
	if dropped := g.cache.Sweep(); dropped > 0 {
		g.logger.Info().Int("dropped", dropped).Msg("gate: oversized cache cleared")
	}
	if removed := g.cooldown.Prune(cooldownPruneAge); removed > 0 {
		g.logger.Info().Int("removed", removed).Msg("gate: stale cooldowns pruned")
	}
}

// RunMaintenance calls Maintain on the given interval until ctx is done.
func (g *Gate) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Maintain()
		}
	}
}

func readSource(src ImageSource) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
