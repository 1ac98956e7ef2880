// Package resolver locates the cluster management service of a cluster.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/config"
	"github.com/firecamp/redis-cfn-resource/internal/retry"
)

// LookupFunc resolves a host name to its addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver waits for the management service DNS record of a cluster.
// The record is registered when the cluster stack comes up and can lag
// behind the custom resource invocation.
type Resolver struct {
	prefix string
	suffix string
	port   int
	policy retry.Policy
	lookup LookupFunc
	sleep  retry.SleepFunc
	log    *zap.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLookup replaces the DNS lookup.
func WithLookup(fn LookupFunc) Option {
	return func(r *Resolver) { r.lookup = fn }
}

// WithSleep replaces the pause between lookups.
func WithSleep(fn retry.SleepFunc) Option {
	return func(r *Resolver) { r.sleep = fn }
}

// New creates a Resolver from configuration.
func New(cfg config.Config, log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		prefix: cfg.ManageHostPrefix,
		suffix: cfg.ManageDomainSuffix,
		port:   cfg.ManagePort,
		policy: retry.Policy{Attempts: cfg.DNSAttempts, Interval: cfg.DNSInterval},
		lookup: net.DefaultResolver.LookupHost,
		sleep:  retry.Sleep,
		log:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Host returns the management service host name of cluster.
func (r *Resolver) Host(cluster string) string {
	return r.prefix + cluster + r.suffix
}

// Resolve waits until the management host of cluster resolves and returns
// the base URL of the management API.
func (r *Resolver) Resolve(ctx context.Context, cluster string) (string, error) {
	host := r.Host(cluster)

	err := retry.Do(ctx, r.policy, r.sleep, func(ctx context.Context, attempt int) error {
		addrs, err := r.lookup(ctx, host)
		if err != nil {
			r.log.Warn("lookup manage server failed",
				zap.String("host", host), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no address for %s", host)
		}
		r.log.Info("manage server resolved", zap.String("host", host), zap.Strings("addrs", addrs))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("lookup manage server %s: %w", host, err)
	}

	return "http://" + net.JoinHostPort(host, strconv.Itoa(r.port)), nil
}
