package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"subbrute/internal/model"
	"subbrute/internal/utils"
)

const statusNoError = "NOERROR"

// ResultProcessor consumes the JSON-lines shards written by the bulk resolver.
// Pass one accumulates a global IP-frequency table; pass two classifies every
// A answer and accepts a name only when all of its A answers are valid.
type ResultProcessor struct {
	Blacklist       map[string]struct{}
	OccurrenceLimit int
}

func NewResultProcessor(blacklist []string, occurrenceLimit int) *ResultProcessor {
	set := make(map[string]struct{}, len(blacklist))
	for _, ip := range blacklist {
		set[ip] = struct{}{}
	}
	if occurrenceLimit < 1 {
		occurrenceLimit = 1000
	}
	return &ResultProcessor{Blacklist: set, OccurrenceLimit: occurrenceLimit}
}

// CountIPs builds the frequency table across all shards before any
// classification happens. Malformed lines are logged and skipped.
func (p *ResultProcessor) CountIPs(paths []string) (map[string]int, error) {
	utils.Log.Info("counting ip occurrences", utils.Field("shards", len(paths)))
	times := make(map[string]int)
	for _, path := range paths {
		err := p.scanShard(path, func(record *model.ResolutionRecord) {
			if record.Status != statusNoError {
				return
			}
			for _, answer := range record.Data.Answers {
				if answer.Type == "A" {
					times[answer.Data]++
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return times, nil
}

// Process classifies every record and returns the accepted names with their
// aggregated info. A name survives only if it has at least one A answer and
// every A answer passes validation.
func (p *ResultProcessor) Process(paths []string, times map[string]int, profile model.WildcardProfile) ([]string, map[string]model.SubdomainInfo, error) {
	utils.Log.Info("processing resolution results", utils.Field("shards", len(paths)))
	var subdomains []string
	infos := make(map[string]model.SubdomainInfo)
	for _, path := range paths {
		err := p.scanShard(path, func(record *model.ResolutionRecord) {
			qname := strings.TrimSuffix(record.Name, ".")
			if record.Status != statusNoError {
				utils.Log.Debug("skipping non-NOERROR record",
					utils.Field("name", qname), utils.Field("status", record.Status))
				return
			}
			if len(record.Data.Answers) == 0 {
				return
			}
			info, accepted := p.buildInfo(record, times, profile)
			if !accepted {
				return
			}
			if _, seen := infos[qname]; !seen {
				subdomains = append(subdomains, qname)
			}
			infos[qname] = info
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return subdomains, infos, nil
}

// buildInfo evaluates one record's A answers. Non-A answers pass through
// untouched and carry no weight in the decision.
func (p *ResultProcessor) buildInfo(record *model.ResolutionRecord, times map[string]int, profile model.WildcardProfile) (model.SubdomainInfo, bool) {
	info := model.SubdomainInfo{Resolver: record.Resolver, Reason: model.ReasonOK}
	haveA := false
	for _, answer := range record.Data.Answers {
		if answer.Type != "A" {
			continue
		}
		haveA = true
		num := times[answer.Data]
		verdict := p.Validate(answer.Data, answer.TTL, num, profile)
		if !verdict.Valid {
			utils.Log.Debug("answer rejected",
				utils.Field("name", record.Name), utils.Field("ip", answer.Data),
				utils.Field("reason", verdict.Reason))
			return model.SubdomainInfo{}, false
		}
		info.TTL = append(info.TTL, answer.TTL)
		info.CNAME = append(info.CNAME, strings.TrimSuffix(answer.Name, "."))
		info.IP = append(info.IP, answer.Data)
		info.Public = append(info.Public, utils.IsPublicIP(answer.Data))
		info.Times = append(info.Times, num)
		info.Reason = verdict.Reason
	}
	return info, haveA
}

// Validate classifies a single A answer. Rules fire in priority order:
// blacklist, wildcard membership (with the round-TTL escape), frequency
// ceiling, then acceptance.
func (p *ResultProcessor) Validate(ip string, ttl, times int, profile model.WildcardProfile) model.Verdict {
	if _, ok := p.Blacklist[ip]; ok {
		return model.Verdict{Valid: false, Reason: model.ReasonIPBlacklist}
	}
	if !profile.Empty() && profile.Contains(ip) && !ttlEscapesWildcard(ttl, profile.TTL) {
		return model.Verdict{Valid: false, Reason: model.ReasonIPWildcard}
	}
	if times > p.OccurrenceLimit {
		return model.Verdict{Valid: false, Reason: model.ReasonIPExceeded}
	}
	return model.Verdict{Valid: true, Reason: model.ReasonOK}
}

// ttlEscapesWildcard treats two differing round-minute TTLs as independently
// configured records rather than the same catch-all, despite the IP overlap.
func ttlEscapesWildcard(ttl, wildcardTTL int) bool {
	return ttl != wildcardTTL && ttl%60 == 0 && wildcardTTL%60 == 0
}

func (p *ResultProcessor) scanShard(path string, handle func(*model.ResolutionRecord)) error {
	fd, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening result shard: %w", err)
	}
	defer func() {
		_ = fd.Close()
	}()

	utils.Log.Debug("reading result shard", utils.Field("path", path))
	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record model.ResolutionRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			utils.Log.Error("skipping malformed result line",
				utils.Field("path", path), utils.Field("error", err.Error()))
			continue
		}
		handle(&record)
	}
	return scanner.Err()
}
