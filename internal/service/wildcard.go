package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"subbrute/internal/utils"
)

const (
	detectionProbeCount = 3
	maxProbeBodySize    = 1 << 20
)

// WildcardService decides whether a domain blanket-resolves arbitrary labels.
// Three random-token probes are resolved, fetched over HTTP and compared
// pairwise; the probe functions are injectable for tests.
type WildcardService struct {
	resolve func(ctx context.Context, host string) bool
	fetch   func(ctx context.Context, url string) (string, error)
	similar func(a, b string) bool
}

func NewWildcardService(ns *NameserverService, sim *SimilarityService) *WildcardService {
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return &WildcardService{
		resolve: func(ctx context.Context, host string) bool {
			ips, _, err := ns.QueryA(ctx, host)
			return err == nil && len(ips) > 0
		},
		fetch: func(ctx context.Context, url string) (string, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", err
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer func() {
				_ = resp.Body.Close()
			}()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodySize))
			if err != nil {
				return "", err
			}
			return string(body), nil
		},
		similar: sim.IsSimilar,
	}
}

// Detect runs the three-step heuristic: every probe must resolve for a
// wildcard to be possible; resolvable but unreachable probes imply a DNS-level
// catch-all; reachable probes serving near-identical pages imply a catch-all
// web frontend.
func (s *WildcardService) Detect(ctx context.Context, domain string) bool {
	utils.Log.Info("detecting wildcard dns record", utils.Field("domain", domain))
	probes := utils.RandomSubdomains(domain, detectionProbeCount)

	for _, probe := range probes {
		if !s.resolve(ctx, probe) {
			utils.Log.Debug("random probe did not resolve, no wildcard",
				utils.Field("probe", probe))
			return false
		}
	}

	bodies := make([]string, 0, len(probes))
	for _, probe := range probes {
		body, err := s.fetch(ctx, "http://"+probe)
		if err != nil {
			utils.Log.Debug("random probe resolved but is unreachable, wildcard assumed",
				utils.Field("probe", probe), utils.Field("error", err.Error()))
			return true
		}
		bodies = append(bodies, body)
	}

	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			if s.similar(bodies[i], bodies[j]) {
				utils.Log.Debug("random probes serve similar pages, wildcard assumed",
					utils.Field("domain", domain))
				return true
			}
		}
	}
	return false
}
