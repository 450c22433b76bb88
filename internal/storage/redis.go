package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const historyLimit = 99

// RunSummary is one finished brute run of a domain.
type RunSummary struct {
	Domain     string   `json:"domain"`
	Timestamp  string   `json:"timestamp"`
	Found      int      `json:"found"`
	Elapsed    float64  `json:"elapsed"`
	Subdomains []string `json:"subdomains"`
}

// Storage keeps the monitored-domain list and per-domain run history in
// redis. It is optional; a nil *Storage disables persistence.
type Storage struct {
	Client *redis.Client
}

func NewStorage(host, port string) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port,
		DB:   0,
	})
	return &Storage{Client: rdb}
}

func (s *Storage) GetMonitoredDomains(ctx context.Context) ([]string, error) {
	return s.Client.LRange(ctx, "monitored_domains", 0, -1).Result()
}

func (s *Storage) AddMonitoredDomain(ctx context.Context, domain string) error {
	return s.Client.RPush(ctx, "monitored_domains", domain).Err()
}

func (s *Storage) RemoveMonitoredDomain(ctx context.Context, domain string) error {
	return s.Client.LRem(ctx, "monitored_domains", 0, domain).Err()
}

// AddRunSummary prepends a run to the domain's history, keeping the most
// recent hundred entries.
func (s *Storage) AddRunSummary(ctx context.Context, summary RunSummary) error {
	if summary.Timestamp == "" {
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, "brute_history:"+summary.Domain, payload)
	pipe.LTrim(ctx, "brute_history:"+summary.Domain, 0, historyLimit)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRunHistory(ctx context.Context, domain string) ([]RunSummary, error) {
	values, err := s.Client.LRange(ctx, "brute_history:"+domain, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var summaries []RunSummary
	for _, v := range values {
		var summary RunSummary
		if err := json.Unmarshal([]byte(v), &summary); err == nil {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}
