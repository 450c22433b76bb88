package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subbrute/internal/config"
	"subbrute/internal/export"
	"subbrute/internal/model"
	"subbrute/internal/storage"
	"subbrute/internal/utils"
)

// bulkResolver abstracts the external resolver process so the pipeline can be
// driven end to end in tests.
type bulkResolver interface {
	Run(ctx context.Context, dictPath, nsPath, outPath, logPath string) error
	OutputPaths(outPath string) []string
}

// BruteOptions selects what to brute and how.
type BruteOptions struct {
	Domains   []string
	Word      bool
	Wordlist  string
	Recursive bool
	Depth     int
	Fuzz      bool
	Template  string
	Rule      string
	FuzzList  string
}

// BruteService composes dictionary generation, wildcard analysis, bulk
// resolution and result classification into the per-domain pipeline, and
// drives depth-bounded recursion over discovered subdomains. Everything here
// is sequential; parallelism belongs to the external resolver.
type BruteService struct {
	cfg       *config.Config
	dict      *DictionaryService
	wildcard  *WildcardService
	collector *CollectorService
	ns        *NameserverService
	resolver  bulkResolver
	processor *ResultProcessor
	exporters []export.Exporter
	store     *storage.Storage

	// authAddrs resolves the authoritative nameserver addresses of a domain.
	// Overridable in tests.
	authAddrs func(ctx context.Context, domain string) []string
}

func NewBruteService(cfg *config.Config, exporters []export.Exporter, store *storage.Storage) *BruteService {
	sim := NewSimilarityService(cfg.SimilarityThreshold)
	ns := NewNameserverService(cfg.GeneralResolver, cfg.ResolveTimeout)
	b := &BruteService{
		cfg:      cfg,
		dict:     NewDictionaryService(ns, cfg.FuzzRepeatLimit, cfg.FuzzCountWarning),
		wildcard: NewWildcardService(ns, sim),
		collector: NewCollectorService(CollectorOptions{
			SampleRatio:    cfg.WildcardSampleRatio,
			MinOccurrences: cfg.WildcardMinOccurrences,
			MinSamples:     cfg.WildcardMinSamples,
		}, cfg.ResolveTimeout),
		ns:        ns,
		resolver:  NewMassdnsService(cfg.MassdnsPath, cfg.ProcessNum, cfg.ConcurrentNum, false),
		processor: NewResultProcessor(cfg.IPBlacklist, cfg.IPOccurrenceLimit),
		exporters: exporters,
		store:     store,
	}
	b.authAddrs = ns.AuthoritativeAddrs
	return b
}

// ValidateOptions enforces the upfront configuration rules. A returned error
// is fatal: the caller terminates without retry.
func (b *BruteService) ValidateOptions(opts *BruteOptions) error {
	if len(opts.Domains) == 0 {
		return errors.New("no target domain specified")
	}
	if !opts.Word && !opts.Fuzz {
		return errors.New("specify at least one brute mode (word or fuzz)")
	}
	if opts.Fuzz {
		if len(opts.Domains) > 1 {
			return errors.New("fuzz mode cannot be combined with batch targets")
		}
		if opts.Recursive {
			return errors.New("fuzz mode cannot be combined with recursive brute")
		}
		if opts.Template == "" {
			return errors.New("fuzz mode requires a template")
		}
		if opts.Rule == "" && opts.FuzzList == "" {
			return errors.New("fuzz mode requires a rule or a fuzz wordlist")
		}
		switch strings.Count(opts.Template, "*") {
		case 0:
			return errors.New("fuzz template has no * placeholder")
		case 1:
		default:
			return errors.New("fuzz template must have exactly one * placeholder")
		}
		if !strings.Contains(opts.Template, opts.Domains[0]) {
			return fmt.Errorf("fuzz template does not reference %s", opts.Domains[0])
		}
	}
	if opts.Recursive && opts.Depth < 2 {
		opts.Depth = 2
	}
	return nil
}

// Run executes the pipeline for every target sequentially. A failed domain is
// logged and does not stop the batch; the returned slice holds every accepted
// name across all targets.
func (b *BruteService) Run(ctx context.Context, opts *BruteOptions) ([]string, error) {
	if err := b.ValidateOptions(opts); err != nil {
		return nil, err
	}
	var all []string
	var lastErr error
	for _, domain := range opts.Domains {
		accepted, err := b.runDomain(ctx, domain, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return all, err
			}
			utils.Log.Error("brute failed",
				utils.Field("domain", domain), utils.Field("error", err.Error()))
			lastErr = err
			continue
		}
		all = append(all, accepted...)
	}
	return all, lastErr
}

// runDomain brutes one target and, in recursive mode, walks the pool of
// accepted names layer by layer until the depth bound.
func (b *BruteService) runDomain(ctx context.Context, domain string, opts *BruteOptions) ([]string, error) {
	utils.Log.Info("brute started", utils.Field("domain", domain))
	template := "*." + domain
	if opts.Fuzz && opts.Template != "" {
		template = opts.Template
	}
	wordlist := opts.Wordlist
	if wordlist == "" {
		wordlist = b.cfg.Wordlist
	}

	pool, err := b.bruteOne(ctx, domain, template, wordlist, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Recursive {
		return pool, nil
	}

	// Iterative work queue over (template root, depth): accepted names at
	// layer N seed layer N+1 until the depth bound, fuzz excluded upfront.
	for i := 0; i < len(pool); i++ {
		name := pool[i]
		nextLayer := utils.LayerDepth(name, domain) + 1
		if nextLayer > opts.Depth {
			continue
		}
		utils.Log.Info("recursive brute",
			utils.Field("root", name), utils.Field("layer", nextLayer))
		accepted, err := b.bruteOne(ctx, name, "*."+name, b.cfg.NextWordlist, &BruteOptions{Word: true})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return pool, err
			}
			utils.Log.Error("recursive layer failed",
				utils.Field("root", name), utils.Field("error", err.Error()))
			continue
		}
		pool = append(pool, accepted...)
	}
	return pool, nil
}

// bruteOne runs the full pipeline for a single template root.
func (b *BruteService) bruteOne(ctx context.Context, target, template, wordlist string, opts *BruteOptions) ([]string, error) {
	start := time.Now()
	timestamp := start.Format("20060102_150405")

	// Authoritative nameservers, best effort.
	nsAddrs := b.authAddrs(ctx, target)

	// Wildcard detection and profiling. A profiling failure is fatal for this
	// domain and surfaced, never downgraded to an empty profile.
	profile := model.WildcardProfile{}
	detected := b.wildcard.Detect(ctx, target)
	if detected {
		utils.Log.Warn("domain enables wildcard dns", utils.Field("domain", target))
		var err error
		profile, err = b.collector.Collect(ctx, target, nsAddrs)
		if err != nil {
			return nil, err
		}
	}

	// Nameservers handed to the bulk resolver: authoritative when a wildcard
	// was detected and addresses are known, the configured list otherwise. The
	// profile may still end up empty for a detected wildcard; the pinning
	// follows detection, not the profile.
	servers := b.cfg.Nameservers
	if detected && len(nsAddrs) > 0 {
		servers = nsAddrs
	}
	nsPath := filepath.Join(b.cfg.TempDir, fmt.Sprintf("nameservers_%s_%s.txt", target, timestamp))
	if err := utils.WriteLines(nsPath, servers); err != nil {
		return nil, fmt.Errorf("writing nameserver file: %w", err)
	}

	// Candidate dictionary: generate, persist, release before the resolver.
	candidates, err := b.generate(ctx, template, wordlist, opts)
	if err != nil {
		return nil, err
	}
	utils.Log.Info("dictionary generated",
		utils.Field("target", target), utils.Field("size", len(candidates)))
	dictPath := filepath.Join(b.cfg.TempDir, fmt.Sprintf("generated_subdomains_%s_%s.txt", target, timestamp))
	if err := writeCandidates(dictPath, candidates); err != nil {
		utils.Log.Fatal("saving dictionary failed",
			utils.Field("path", dictPath), utils.Field("error", err.Error()))
	}
	candidates = nil

	// Last chance to abort before the expensive bulk run.
	if err := b.pause(ctx); err != nil {
		return nil, err
	}

	outPath := filepath.Join(b.cfg.TempDir, fmt.Sprintf("resolved_result_%s_%s.json", target, timestamp))
	logPath := filepath.Join(b.cfg.ResultDir, "massdns.log")
	if err := os.MkdirAll(b.cfg.ResultDir, 0o755); err != nil {
		return nil, err
	}
	if err := b.resolver.Run(ctx, dictPath, nsPath, outPath, logPath); err != nil {
		return nil, err
	}
	shards := b.resolver.OutputPaths(outPath)

	times, err := b.processor.CountIPs(shards)
	if err != nil {
		return nil, err
	}
	subdomains, infos, err := b.processor.Process(shards, times, profile)
	if err != nil {
		return nil, err
	}

	for _, exporter := range b.exporters {
		if err := exporter.Export(target, subdomains, infos); err != nil {
			utils.Log.Error("export failed",
				utils.Field("target", target), utils.Field("error", err.Error()))
		}
	}
	elapsed := time.Since(start).Seconds()
	if b.store != nil {
		summary := storage.RunSummary{
			Domain: target, Found: len(subdomains), Elapsed: elapsed, Subdomains: subdomains,
		}
		if err := b.store.AddRunSummary(ctx, summary); err != nil {
			utils.Log.Error("saving run summary failed", utils.Field("error", err.Error()))
		}
	}

	b.cleanup(dictPath, nsPath, shards)
	utils.Log.Info("brute finished",
		utils.Field("target", target), utils.Field("found", len(subdomains)),
		utils.Field("elapsed", elapsed))
	return subdomains, nil
}

func (b *BruteService) generate(ctx context.Context, template, wordlist string, opts *BruteOptions) (map[string]struct{}, error) {
	candidates := make(map[string]struct{})
	if opts.Word {
		words, err := b.dict.WordCandidates(ctx, template, wordlist)
		if err != nil {
			return nil, err
		}
		for name := range words {
			candidates[name] = struct{}{}
		}
	}
	if opts.Fuzz {
		fuzzed, err := b.dict.FuzzCandidates(ctx, template, opts.Rule, opts.FuzzList)
		if err != nil {
			return nil, err
		}
		for name := range fuzzed {
			candidates[name] = struct{}{}
		}
	}
	return candidates, nil
}

// pause gives the operator a window to interrupt before the resolver starts.
func (b *BruteService) pause(ctx context.Context) error {
	if b.cfg.CheckDelay <= 0 {
		return nil
	}
	utils.Log.Warn("pausing before bulk resolution, interrupt now to abort",
		utils.Field("seconds", b.cfg.CheckDelay))
	select {
	case <-time.After(time.Duration(b.cfg.CheckDelay) * time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BruteService) cleanup(dictPath, nsPath string, shards []string) {
	if b.cfg.DeleteDictionary {
		_ = os.Remove(dictPath)
		_ = os.Remove(nsPath)
	}
	if b.cfg.DeleteShards {
		for _, shard := range shards {
			_ = os.Remove(shard)
		}
	}
}

func writeCandidates(path string, candidates map[string]struct{}) error {
	lines := make([]string, 0, len(candidates))
	for name := range candidates {
		lines = append(lines, name)
	}
	return utils.WriteLines(path, lines)
}
