package service

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"subbrute/internal/utils"
)

const sanitySampleSize = 3

// DictionaryService builds deduplicated candidate name sets. Word mode
// substitutes wordlist labels into the template's `*` placeholder; fuzz mode
// additionally enumerates a regex rule.
type DictionaryService struct {
	enum             *RuleEnumerator
	fuzzCountWarning uint64

	// sampleResolve probes one generated name; a returned error marks the
	// dictionary as suspicious. Overridable in tests.
	sampleResolve func(ctx context.Context, name string) error
}

func NewDictionaryService(ns *NameserverService, repeatLimit int, fuzzCountWarning uint64) *DictionaryService {
	if fuzzCountWarning == 0 {
		fuzzCountWarning = 10000000
	}
	return &DictionaryService{
		enum:             NewRuleEnumerator(repeatLimit),
		fuzzCountWarning: fuzzCountWarning,
		sampleResolve: func(ctx context.Context, name string) error {
			_, _, err := ns.QueryA(ctx, name)
			return err
		},
	}
}

// WordCandidates streams the wordlist and substitutes every surviving label
// into template.
func (d *DictionaryService) WordCandidates(ctx context.Context, template, wordlistPath string) (map[string]struct{}, error) {
	candidates := make(map[string]struct{})
	if err := d.appendWordlist(candidates, template, wordlistPath); err != nil {
		return nil, err
	}
	utils.Log.Debug("word mode dictionary generated",
		utils.Field("wordlist", wordlistPath), utils.Field("size", len(candidates)))
	d.sanityCheck(ctx, candidates)
	return candidates, nil
}

// FuzzCandidates combines an optional fuzz wordlist with exhaustive rule
// enumeration. Enumerated strings are kept only if alphanumeric.
func (d *DictionaryService) FuzzCandidates(ctx context.Context, template, rule, fuzzlistPath string) (map[string]struct{}, error) {
	candidates := make(map[string]struct{})
	if fuzzlistPath != "" {
		if err := d.appendWordlist(candidates, template, fuzzlistPath); err != nil {
			return nil, err
		}
	}
	if rule != "" {
		count, err := d.enum.Count(rule)
		if err != nil {
			return nil, err
		}
		if count > d.fuzzCountWarning {
			utils.Log.Warn("fuzz rule cardinality is very large",
				utils.Field("rule", rule), utils.Field("count", count))
		}
		err = d.enum.Enumerate(rule, func(s string) {
			s = strings.ToLower(s)
			if !isAlphanumeric(s) {
				return
			}
			candidates[strings.ReplaceAll(template, "*", s)] = struct{}{}
		})
		if err != nil {
			return nil, err
		}
	}
	utils.Log.Debug("fuzz mode dictionary generated", utils.Field("size", len(candidates)))
	d.sanityCheck(ctx, candidates)
	return candidates, nil
}

func (d *DictionaryService) appendWordlist(candidates map[string]struct{}, template, path string) error {
	fd, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening wordlist: %w", err)
	}
	defer func() {
		_ = fd.Close()
	}()

	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		word = strings.TrimPrefix(word, ".")
		word = strings.TrimSuffix(word, ".")
		if word == "" || !utils.IsValidSubname(word) {
			continue
		}
		candidates[strings.ReplaceAll(template, "*", word)] = struct{}{}
	}
	return scanner.Err()
}

// sanityCheck resolves a few generated names to catch a systematically
// malformed wordlist before an expensive bulk run. Resolution outcomes do not
// matter, only query-level failures do.
func (d *DictionaryService) sanityCheck(ctx context.Context, candidates map[string]struct{}) {
	if len(candidates) == 0 {
		utils.Log.Warn("generated dictionary is empty, check the wordlist and template")
		return
	}
	sampled := 0
	for name := range candidates {
		if sampled == sanitySampleSize {
			break
		}
		sampled++
		if err := d.sampleResolve(ctx, name); err != nil {
			utils.Log.Warn("sample candidate failed to query, dictionary may be malformed",
				utils.Field("name", name), utils.Field("error", err.Error()))
		}
	}
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
