package quota

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/kv"
	"github.com/songer666/jobs-ai/internal/models"
)

// Kind is a resource that is counted per user and calendar day.
type Kind string

const (
	KindInterview        Kind = "interview"
	KindQuestion         Kind = "question"
	KindResumeGeneration Kind = "resume_generation"
	KindResumeAnalysis   Kind = "resume_analysis"
)

// Unlimited is reported as limit and remaining for privileged callers.
const Unlimited = -1

const keyPrefix = "rate_limit:"

func Kinds() []Kind {
	return []Kind{KindInterview, KindQuestion, KindResumeGeneration, KindResumeAnalysis}
}

var exhaustedMessages = map[Kind]string{
	KindInterview:        "Today's AI interview limit has been used up (%d per day), please come back tomorrow",
	KindQuestion:         "Today's question generation limit has been used up (%d per day), please come back tomorrow",
	KindResumeGeneration: "Today's resume generation limit has been used up (%d per day), please come back tomorrow",
	KindResumeAnalysis:   "Today's resume analysis limit has been used up (%d per day), please come back tomorrow",
}

type Result struct {
	Kind      Kind
	Allowed   bool
	Used      int
	Limit     int
	Remaining int
	ResetAt   time.Time
	Message   string
}

// Counter keeps per-user daily counters in the TTL store. Counters expire at the
// next local midnight of the configured location.
type Counter struct {
	store      kv.Store
	limits     map[Kind]int
	location   *time.Location
	privileged []string
	now        func() time.Time
}

func NewCounter(store kv.Store, cfg config.QuotaConfig) *Counter {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Counter{
		store: store,
		limits: map[Kind]int{
			KindInterview:        cfg.InterviewsPerDay,
			KindQuestion:         cfg.QuestionsPerDay,
			KindResumeGeneration: cfg.ResumeGenerationsPerDay,
			KindResumeAnalysis:   cfg.ResumeAnalysesPerDay,
		},
		location:   loc,
		privileged: cfg.PrivilegedRoles,
		now:        time.Now,
	}
}

// WithClock replaces the time source, used by tests to cross day boundaries.
func (c *Counter) WithClock(now func() time.Time) *Counter {
	c.now = now
	return c
}

// Limit returns the configured daily limit for kind.
func (c *Counter) Limit(kind Kind) int {
	return c.limits[kind]
}

// Unlimited reports whether the caller bypasses every daily limit.
func (c *Counter) Unlimited(caller models.Caller) bool {
	return caller.HasRole(c.privileged)
}

// Key returns the counter key for user and kind on the current local day.
func (c *Counter) Key(userID string, kind Kind) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, kind, userID, c.now().In(c.location).Format("2006-01-02"))
}

// Check reports whether the caller may consume one more unit of kind today. It never writes.
func (c *Counter) Check(ctx context.Context, caller models.Caller, kind Kind) (Result, error) {
	now := c.now().In(c.location)
	res := Result{Kind: kind, ResetAt: nextMidnight(now)}
	if c.Unlimited(caller) {
		res.Allowed = true
		res.Limit = Unlimited
		res.Remaining = Unlimited
		res.Message = "unlimited"
		return res, nil
	}

	used, err := c.used(ctx, caller.ID, kind)
	if err != nil {
		return res, err
	}
	limit := c.limits[kind]
	res.Used = used
	res.Limit = limit
	if used >= limit {
		res.Message = fmt.Sprintf(exhaustedMessages[kind], limit)
		return res, nil
	}
	res.Allowed = true
	res.Remaining = limit - used
	res.Message = fmt.Sprintf("%d remaining today", res.Remaining)
	return res, nil
}

// Increment adds one unit of kind for userID. The expiry is only set on the first
// increment of the day so later increments never push it forward.
func (c *Counter) Increment(ctx context.Context, userID string, kind Kind) (int64, error) {
	key := c.Key(userID, kind)
	count, err := c.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, c.untilMidnight()); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Usage reports today's counters for every kind.
func (c *Counter) Usage(ctx context.Context, caller models.Caller) (map[Kind]models.UsageEntry, error) {
	out := make(map[Kind]models.UsageEntry, len(c.limits))
	unlimited := c.Unlimited(caller)
	for _, kind := range Kinds() {
		used, err := c.used(ctx, caller.ID, kind)
		if err != nil {
			return nil, err
		}
		if unlimited {
			out[kind] = models.UsageEntry{Used: used, Limit: Unlimited, Remaining: Unlimited}
			continue
		}
		limit := c.limits[kind]
		out[kind] = models.UsageEntry{Used: used, Limit: limit, Remaining: max(0, limit-used)}
	}
	return out, nil
}

// Today is the calendar date counters are currently keyed on.
func (c *Counter) Today() string {
	return c.now().In(c.location).Format("2006-01-02")
}

func (c *Counter) used(ctx context.Context, userID string, kind Kind) (int, error) {
	val, ok, err := c.store.Get(ctx, c.Key(userID, kind))
	if err != nil {
		return 0, fmt.Errorf("read %s quota: %w", kind, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s quota counter %q: %w", kind, val, err)
	}
	return n, nil
}

func (c *Counter) untilMidnight() time.Duration {
	now := c.now().In(c.location)
	secs := math.Ceil(nextMidnight(now).Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
