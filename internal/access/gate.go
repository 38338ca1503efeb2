package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"embed-delivery/internal/platform/metrics"

	"golang.org/x/sync/singleflight"
)

// Decision reasons.
const (
	ReasonNoOrigin     = "no_origin"
	ReasonNoPolicy     = "no_policy"
	ReasonLookupFailed = "lookup_failed"
	ReasonAllowed      = "allowed"
	ReasonDenied       = "denied"
	ReasonUnknown      = "unknown"
)

// DefaultLookupTimeout bounds a single policy store lookup on the request path.
const DefaultLookupTimeout = 250 * time.Millisecond

// Decision is the gate's verdict for one request. RecordID is empty when no
// policy record exists. Reason is for operators and must not be sent to clients.
type Decision struct {
	Allowed  bool
	Domain   string
	RecordID string
	Reason   string
}

// Gate evaluates domain access policies. It holds no per-request state and is
// safe for concurrent use.
type Gate struct {
	store   PolicyStore
	auditor Auditor
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	lookups singleflight.Group
}

// NewGate returns a Gate reading from store. auditor and m may be nil.
// A non-positive lookupTimeout uses DefaultLookupTimeout.
func NewGate(store PolicyStore, auditor Auditor, log *slog.Logger, m *metrics.Metrics, lookupTimeout time.Duration) *Gate {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Gate{
		store:   store,
		auditor: auditor,
		log:     log,
		metrics: m,
		timeout: lookupTimeout,
	}
}

// Check decides access for a request carrying the given Referer and Origin headers.
func (g *Gate) Check(ctx context.Context, referrer, origin string) Decision {
	return g.CheckResource(ctx, "", referrer, origin)
}

// CheckResource is Check with the requested resource attached to the audit event.
func (g *Gate) CheckResource(ctx context.Context, resourceID, referrer, origin string) Decision {
	d := g.decide(ctx, ExtractDomain(referrer, origin))

	g.metrics.ObserveAccessDecision(d.Reason)
	if g.auditor != nil && d.Domain != "" {
		g.auditor.Record(NewEvent(d, resourceID))
	}
	return d
}

func (g *Gate) decide(ctx context.Context, domain string) Decision {
	if domain == "" {
		return Decision{Allowed: true, Reason: ReasonNoOrigin}
	}

	p, err := g.lookup(ctx, domain)
	switch {
	case errors.Is(err, ErrNoPolicy):
		return Decision{Allowed: true, Domain: domain, Reason: ReasonNoPolicy}
	case err != nil:
		g.log.Warn("policy lookup failed, allowing",
			slog.String("domain", domain),
			slog.String("error", err.Error()))
		return Decision{Allowed: true, Domain: domain, Reason: ReasonLookupFailed}
	}

	switch p.Disposition {
	case Deny:
		return Decision{Allowed: false, Domain: domain, RecordID: p.RecordID, Reason: ReasonDenied}
	case Allow:
		return Decision{Allowed: true, Domain: domain, RecordID: p.RecordID, Reason: ReasonAllowed}
	default:
		return Decision{Allowed: true, Domain: domain, RecordID: p.RecordID, Reason: ReasonUnknown}
	}
}

// lookup collapses concurrent lookups of the same domain into one store call.
// The call is detached from any single caller's cancellation and bounded by
// the gate timeout instead.
func (g *Gate) lookup(ctx context.Context, domain string) (Policy, error) {
	v, err, _ := g.lookups.Do(domain, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.store.FindPolicy(lctx, domain)
	})
	if err != nil {
		return Policy{}, err
	}
	return v.(Policy), nil
}
