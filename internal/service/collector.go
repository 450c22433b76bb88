package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"subbrute/internal/model"
	"subbrute/internal/utils"

	"github.com/miekg/dns"
)

const (
	collectorWindowSize  = 5
	collectorMaxAttempts = 2
	noDataTTL            = -1
)

// ErrNoRecord marks a definitive negative answer from the authoritative
// nameserver: the random name has no A record. It is a normal outcome, not a
// failure.
var ErrNoRecord = errors.New("no record on authoritative nameserver")

var errQueryTimeout = errors.New("authoritative query timed out")

// CollectorOptions tune the convergence rule. The ratio and the minimum
// sample count are deliberately separate knobs; the rule fires only once
// MinSamples data-bearing answers have been observed.
type CollectorOptions struct {
	SampleRatio    float64
	MinOccurrences int
	MinSamples     int
}

// CollectorService profiles a wildcard domain's IP set and TTL by sampling
// random names against the authoritative nameservers until the sample is
// representative, the domain proves absent, or its TTLs prove unstable.
type CollectorService struct {
	opts    CollectorOptions
	timeout time.Duration

	// query resolves one random name against a randomly chosen pinned
	// nameserver. Overridable in tests.
	query func(ctx context.Context, name string, addrs []string) ([]string, int, error)
}

func NewCollectorService(opts CollectorOptions, timeoutSec int) *CollectorService {
	if opts.SampleRatio <= 0 || opts.SampleRatio > 1 {
		opts.SampleRatio = 0.8
	}
	if opts.MinOccurrences < 1 {
		opts.MinOccurrences = 2
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = 2
	}
	if timeoutSec <= 0 {
		timeoutSec = 5
	}
	c := &CollectorService{opts: opts, timeout: time.Duration(timeoutSec) * time.Second}
	c.query = c.queryAuthoritative
	return c
}

// Collect runs the sampling loop. It returns an empty profile when no
// authoritative nameserver is known, when the domain yields a full window of
// no-data answers, or when TTLs are pairwise distinct across a window. Any
// unexpected query error aborts collection for this domain.
func (c *CollectorService) Collect(ctx context.Context, domain string, nsAddrs []string) (model.WildcardProfile, error) {
	if len(nsAddrs) == 0 {
		return model.WildcardProfile{}, nil
	}
	utils.Log.Info("collecting wildcard dns records",
		utils.Field("domain", domain), utils.Field("nameservers", nsAddrs))

	ips := make(map[string]struct{})
	stat := make(map[string]int)
	ttl := 0
	dataSamples := 0
	windowTTLs := make([]int, 0, collectorWindowSize)

	for {
		select {
		case <-ctx.Done():
			return model.WildcardProfile{}, ctx.Err()
		default:
		}

		name := utils.RandomToken(4) + "." + domain
		addrs, answerTTL, err := c.queryWithRetry(ctx, name, nsAddrs)
		switch {
		case errors.Is(err, errQueryTimeout):
			utils.Log.Warn("repeated query timeouts, trying a new random name",
				utils.Field("name", name))
			continue
		case errors.Is(err, ErrNoRecord):
			addrs, answerTTL = nil, noDataTTL
		case err != nil:
			return model.WildcardProfile{}, fmt.Errorf("collecting wildcard records for %s: %w", domain, err)
		}

		windowTTLs = append(windowTTLs, answerTTL)
		if len(windowTTLs) == collectorWindowSize {
			if allNoData(windowTTLs) {
				utils.Log.Info("no results for 5 consecutive queries, no stable wildcard",
					utils.Field("domain", domain))
				return model.WildcardProfile{}, nil
			}
			if allDistinct(windowTTLs) {
				utils.Log.Info("5 distinct TTLs in 5 consecutive queries, wildcard TTL unstable",
					utils.Field("domain", domain))
				return model.WildcardProfile{}, nil
			}
			windowTTLs = windowTTLs[:0]
		}

		if len(addrs) == 0 {
			continue
		}
		dataSamples++
		ttl = answerTTL
		for _, addr := range addrs {
			ips[addr] = struct{}{}
			stat[addr]++
		}

		if dataSamples < c.opts.MinSamples {
			continue
		}
		recurring := 0
		for _, times := range stat {
			if times >= c.opts.MinOccurrences {
				recurring++
			}
		}
		if float64(recurring)/float64(len(ips)) >= c.opts.SampleRatio {
			utils.Log.Info("wildcard ip sample converged",
				utils.Field("domain", domain), utils.Field("ips", len(ips)), utils.Field("ttl", ttl))
			return model.WildcardProfile{IPs: ips, TTL: ttl}, nil
		}
	}
}

// queryWithRetry retries a timed-out query once; two timeouts in a row
// surface as errQueryTimeout so the loop can move to a fresh name.
func (c *CollectorService) queryWithRetry(ctx context.Context, name string, nsAddrs []string) ([]string, int, error) {
	var err error
	for attempt := 0; attempt < collectorMaxAttempts; attempt++ {
		var addrs []string
		var ttl int
		addrs, ttl, err = c.query(ctx, name, nsAddrs)
		if errors.Is(err, errQueryTimeout) {
			utils.Log.Debug("query timeout, retrying", utils.Field("name", name))
			continue
		}
		return addrs, ttl, err
	}
	return nil, 0, err
}

// queryAuthoritative asks a randomly selected pinned nameserver for the A
// record of name. No caching, no recursion through general resolvers.
func (c *CollectorService) queryAuthoritative(ctx context.Context, name string, nsAddrs []string) ([]string, int, error) {
	server := nsAddrs[rand.Intn(len(nsAddrs))]
	if !strings.Contains(server, ":") {
		server += ":53"
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	client := &dns.Client{Timeout: c.timeout}
	in, _, err := client.ExchangeContext(ctx, m, server)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, 0, errQueryTimeout
		}
		return nil, 0, err
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError, dns.RcodeYXDomain, dns.RcodeServerFailure, dns.RcodeRefused:
		return nil, 0, ErrNoRecord
	default:
		return nil, 0, fmt.Errorf("unexpected rcode %s from %s", dns.RcodeToString[in.Rcode], server)
	}
	var addrs []string
	ttl := 0
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
			ttl = int(ans.Header().Ttl)
		}
	}
	if len(addrs) == 0 {
		return nil, 0, ErrNoRecord
	}
	return addrs, ttl, nil
}

func allNoData(ttls []int) bool {
	for _, t := range ttls {
		if t != noDataTTL {
			return false
		}
	}
	return true
}

func allDistinct(ttls []int) bool {
	seen := make(map[int]struct{}, len(ttls))
	for _, t := range ttls {
		seen[t] = struct{}{}
	}
	return len(seen) == len(ttls)
}
