package service

import (
	"context"
	"strings"
	"time"

	"subbrute/internal/utils"

	"github.com/miekg/dns"
)

// NameserverService answers the orchestrator's control-plane queries: the
// target's NS records and the A records of those nameservers. It talks to a
// general-purpose recursive resolver; bulk resolution stays with massdns.
type NameserverService struct {
	Resolver string
	Timeout  time.Duration
}

func NewNameserverService(resolver string, timeoutSec int) *NameserverService {
	if resolver == "" {
		resolver = "8.8.8.8:53"
	}
	if !strings.Contains(resolver, ":") {
		resolver += ":53"
	}
	if timeoutSec <= 0 {
		timeoutSec = 5
	}
	return &NameserverService{Resolver: resolver, Timeout: time.Duration(timeoutSec) * time.Second}
}

func (s *NameserverService) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	c := &dns.Client{Timeout: s.Timeout}
	in, _, err := c.ExchangeContext(ctx, m, s.Resolver)
	return in, err
}

// QueryNS returns the nameserver hostnames of domain.
func (s *NameserverService) QueryNS(ctx context.Context, domain string) ([]string, error) {
	in, err := s.exchange(ctx, domain, dns.TypeNS)
	if err != nil {
		return nil, err
	}
	var servers []string
	for _, ans := range in.Answer {
		if ns, ok := ans.(*dns.NS); ok {
			servers = append(servers, strings.TrimSuffix(ns.Ns, "."))
		}
	}
	return servers, nil
}

// QueryA resolves host's A records, returning the addresses and the answer TTL.
// No A answers yields an empty slice with a nil error.
func (s *NameserverService) QueryA(ctx context.Context, host string) ([]string, int, error) {
	in, err := s.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return nil, 0, err
	}
	var ips []string
	ttl := 0
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
			ttl = int(ans.Header().Ttl)
		}
	}
	return ips, ttl, nil
}

// AuthoritativeAddrs looks up the A records of the target's authoritative
// nameservers. Failures degrade to an empty list, never abort the pipeline.
func (s *NameserverService) AuthoritativeAddrs(ctx context.Context, domain string) []string {
	main := utils.MainDomain(domain)
	servers, err := s.QueryNS(ctx, main)
	if err != nil {
		utils.Log.Warn("querying NS records failed",
			utils.Field("domain", main), utils.Field("error", err.Error()))
		return nil
	}
	var addrs []string
	for _, server := range servers {
		ips, _, err := s.QueryA(ctx, server)
		if err != nil {
			utils.Log.Warn("querying nameserver A record failed",
				utils.Field("nameserver", server), utils.Field("error", err.Error()))
			continue
		}
		addrs = append(addrs, ips...)
	}
	utils.Log.Info("authoritative nameserver addresses",
		utils.Field("domain", main), utils.Field("addrs", addrs))
	return addrs
}
