// Package avatar picks a picture for each wall entry: the member's Gravatar when
// one exists, otherwise a generated DiceBear avatar seeded by their email.
package avatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/utils"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultGravatarBaseURL = "https://www.gravatar.com"
	DefaultDicebearBaseURL = "https://api.dicebear.com"
	DefaultProbeTimeout    = 2 * time.Second
	DefaultConcurrency     = 16

	tracerName = "github.com/akeren/launch-waitlist/internal/avatar"
)

type Config struct {
	GravatarBaseURL string
	DicebearBaseURL string
	ProbeTimeout    time.Duration
	// Concurrency caps simultaneous probes within one ResolveAll call.
	Concurrency int
	HTTPClient  *http.Client
}

// Subject identifies whose avatar to resolve. ID seeds the fallback when Email is empty.
type Subject struct {
	ID    string
	Email string
}

type Resolver struct {
	gravatarBase string
	dicebearBase string
	timeout      time.Duration
	concurrency  int
	client       *http.Client
	// hash -> bool, kept for the life of the process.
	known  *gocache.Cache
	flight singleflight.Group
	logger *log.Logger
}

func NewResolver(cfg Config, logger *log.Logger) *Resolver {
	if cfg.GravatarBaseURL == "" {
		cfg.GravatarBaseURL = DefaultGravatarBaseURL
	}
	if cfg.DicebearBaseURL == "" {
		cfg.DicebearBaseURL = DefaultDicebearBaseURL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = log.NewLoggerWithJSONOutput()
	}

	return &Resolver{
		gravatarBase: strings.TrimRight(cfg.GravatarBaseURL, "/"),
		dicebearBase: strings.TrimRight(cfg.DicebearBaseURL, "/"),
		timeout:      cfg.ProbeTimeout,
		concurrency:  cfg.Concurrency,
		client:       client,
		known:        gocache.New(gocache.NoExpiration, 0),
		logger:       logger,
	}
}

// EmailHash is the hex md5 of the normalized email, as Gravatar expects.
func EmailHash(email string) string {
	sum := md5.Sum([]byte(utils.NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

func (r *Resolver) FallbackURL(seed string) string {
	return fmt.Sprintf("%s/9.x/avataaars/svg?seed=%s&backgroundColor=transparent", r.dicebearBase, url.QueryEscape(seed))
}

func (r *Resolver) GravatarURL(hash string) string {
	return fmt.Sprintf("%s/avatar/%s?s=100", r.gravatarBase, hash)
}

func (r *Resolver) probeURL(hash string) string {
	return fmt.Sprintf("%s/avatar/%s?s=100&d=404", r.gravatarBase, hash)
}

// HasGravatar reports whether Gravatar serves an image for hash. Answers,
// including failed probes, are cached for the life of the process. The probe
// is detached from the caller's cancellation and bounded only by the probe
// timeout, so an aborted request cannot cache a false negative.
func (r *Resolver) HasGravatar(ctx context.Context, hash string) bool {
	if v, ok := r.known.Get(hash); ok {
		return v.(bool)
	}

	v, _, _ := r.flight.Do(hash, func() (any, error) {
		if v, ok := r.known.Get(hash); ok {
			return v, nil
		}
		exists := r.probe(context.WithoutCancel(ctx), hash)
		r.known.Set(hash, exists, gocache.NoExpiration)
		return exists, nil
	})
	return v.(bool)
}

func (r *Resolver) probe(ctx context.Context, hash string) bool {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "avatar.probe")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.probeURL(hash), nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.GetLoggerInstanceFromContext(ctx, r.logger).Debug("Gravatar probe failed", "hash", hash, "error", err)
		span.SetAttributes(attribute.Bool("avatar.exists", false))
		return false
	}
	defer resp.Body.Close()

	exists := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode), attribute.Bool("avatar.exists", exists))
	return exists
}

// Resolve returns the avatar URL for one subject.
func (r *Resolver) Resolve(ctx context.Context, s Subject) string {
	email := utils.NormalizeEmail(s.Email)
	seed := email
	if seed == "" {
		seed = s.ID
	}
	fallback := r.FallbackURL(seed)
	if email == "" {
		return fallback
	}

	hash := EmailHash(email)
	if r.HasGravatar(ctx, hash) {
		return r.GravatarURL(hash)
	}
	return fallback
}

// ResolveAll resolves every subject concurrently and returns URLs in input order.
// One slow or failing probe never affects the others.
func (r *Resolver) ResolveAll(ctx context.Context, subjects []Subject) []string {
	urls := make([]string, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, s := range subjects {
		g.Go(func() error {
			urls[i] = r.Resolve(gctx, s)
			return nil
		})
	}
	_ = g.Wait()

	return urls
}

// CachedCount is the number of emails with a remembered probe result.
func (r *Resolver) CachedCount() int {
	return r.known.ItemCount()
}
