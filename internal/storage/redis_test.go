package storage

import (
	"context"
	"testing"
)

func TestStorage(t *testing.T) {
	// Attempt to connect to local redis or container
	s := NewStorage("localhost", "6379")
	ctx := context.Background()

	// Skip if Redis is not available
	if err := s.Client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available on localhost:6379, skipping storage tests")
	}

	// Monitored domains
	domain := "test-domain.com"
	if err := s.AddMonitoredDomain(ctx, domain); err != nil {
		t.Fatalf("AddMonitoredDomain failed: %v", err)
	}
	domains, _ := s.GetMonitoredDomains(ctx)
	found := false
	for _, v := range domains {
		if v == domain {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Domain %s not found in monitored domains", domain)
	}
	if err := s.RemoveMonitoredDomain(ctx, domain); err != nil {
		t.Errorf("RemoveMonitoredDomain failed: %v", err)
	}

	// Run history
	summary := RunSummary{
		Domain:     domain,
		Found:      2,
		Elapsed:    1.5,
		Subdomains: []string{"www.test-domain.com", "api.test-domain.com"},
	}
	if err := s.AddRunSummary(ctx, summary); err != nil {
		t.Fatalf("AddRunSummary failed: %v", err)
	}
	history, err := s.GetRunHistory(ctx, domain)
	if err != nil {
		t.Fatalf("GetRunHistory failed: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("expected at least one history entry")
	}
	latest := history[0]
	if latest.Found != 2 || len(latest.Subdomains) != 2 {
		t.Errorf("unexpected latest summary %+v", latest)
	}
	if latest.Timestamp == "" {
		t.Error("timestamp should be filled in on save")
	}
	s.Client.Del(ctx, "brute_history:"+domain)
}
