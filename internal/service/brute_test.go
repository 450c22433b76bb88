package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subbrute/internal/config"
	"subbrute/internal/export"
	"subbrute/internal/model"
)

func TestValidateOptions(t *testing.T) {
	b := &BruteService{}
	tests := []struct {
		name    string
		opts    BruteOptions
		wantErr bool
	}{
		{"word mode", BruteOptions{Domains: []string{"example.com"}, Word: true}, false},
		{"no domains", BruteOptions{Word: true}, true},
		{"no mode", BruteOptions{Domains: []string{"example.com"}}, true},
		{"fuzz ok", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true,
			Template: "m.*.example.com", Rule: "[a-z]",
		}, false},
		{"fuzz with batch", BruteOptions{
			Domains: []string{"a.com", "b.com"}, Fuzz: true,
			Template: "m.*.a.com", Rule: "[a-z]",
		}, true},
		{"fuzz with recursive", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true, Recursive: true,
			Template: "m.*.example.com", Rule: "[a-z]",
		}, true},
		{"fuzz missing template", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true, Rule: "[a-z]",
		}, true},
		{"fuzz missing rule and fuzzlist", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true, Template: "m.*.example.com",
		}, true},
		{"fuzz template without placeholder", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true,
			Template: "m.example.com", Rule: "[a-z]",
		}, true},
		{"fuzz template with two placeholders", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true,
			Template: "*.*.example.com", Rule: "[a-z]",
		}, true},
		{"fuzz template for other domain", BruteOptions{
			Domains: []string{"example.com"}, Fuzz: true,
			Template: "m.*.other.com", Rule: "[a-z]",
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.ValidateOptions(&tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOptions error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOptionsBumpsRecursionDepth(t *testing.T) {
	b := &BruteService{}
	opts := BruteOptions{Domains: []string{"example.com"}, Word: true, Recursive: true, Depth: 0}
	if err := b.ValidateOptions(&opts); err != nil {
		t.Fatalf("ValidateOptions failed: %v", err)
	}
	if opts.Depth != 2 {
		t.Errorf("Depth = %d, want 2", opts.Depth)
	}
}

// fakeResolver stands in for the external bulk resolver: it answers from a
// fixed table instead of the network and records what each run was fed.
type fakeResolver struct {
	answers     map[string]string // qname without trailing dot -> result line
	runs        int
	nameservers [][]string
	dicts       [][]string
}

func (f *fakeResolver) Run(ctx context.Context, dictPath, nsPath, outPath, logPath string) error {
	f.runs++
	servers, err := os.ReadFile(nsPath)
	if err != nil {
		return err
	}
	f.nameservers = append(f.nameservers, strings.Fields(string(servers)))
	data, err := os.ReadFile(dictPath)
	if err != nil {
		return err
	}
	names := strings.Fields(string(data))
	f.dicts = append(f.dicts, names)
	var lines []string
	for _, name := range names {
		if line, ok := f.answers[name]; ok {
			lines = append(lines, line)
		} else {
			lines = append(lines, `{"name":"`+name+`.","status":"NXDOMAIN","resolver":"1.1.1.1:53","data":{}}`)
		}
	}
	return os.WriteFile(outPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func (f *fakeResolver) OutputPaths(outPath string) []string {
	return []string{outPath}
}

// captureExporter records what the pipeline hands to exporters.
type captureExporter struct {
	domain     string
	subdomains []string
	infos      map[string]model.SubdomainInfo
}

func (c *captureExporter) Export(domain string, subdomains []string, infos map[string]model.SubdomainInfo) error {
	c.domain = domain
	c.subdomains = subdomains
	c.infos = infos
	return nil
}

func newTestBruteService(t *testing.T, resolver bulkResolver, capture *captureExporter) *BruteService {
	t.Helper()
	cfg := &config.Config{
		Nameservers:       []string{"1.1.1.1"},
		TempDir:           t.TempDir(),
		ResultDir:         t.TempDir(),
		IPOccurrenceLimit: 1000,
		DeleteDictionary:  true,
		DeleteShards:      true,
	}
	dict := &DictionaryService{
		enum:             NewRuleEnumerator(3),
		fuzzCountWarning: 10000000,
		sampleResolve:    func(ctx context.Context, name string) error { return nil },
	}
	wildcard := &WildcardService{
		resolve: func(ctx context.Context, host string) bool { return false },
	}
	b := &BruteService{
		cfg:       cfg,
		dict:      dict,
		wildcard:  wildcard,
		collector: NewCollectorService(CollectorOptions{}, 1),
		resolver:  resolver,
		processor: NewResultProcessor(nil, cfg.IPOccurrenceLimit),
		exporters: []export.Exporter{capture},
		authAddrs: func(ctx context.Context, domain string) []string { return nil },
	}
	return b
}

func TestRunEndToEnd(t *testing.T) {
	resolver := &fakeResolver{answers: map[string]string{
		"www.example.com": `{"name":"www.example.com.","status":"NOERROR","resolver":"1.1.1.1:53","data":{"answers":[{"type":"A","name":"www.example.com.","ttl":300,"data":"9.9.9.9"}]}}`,
	}}
	capture := &captureExporter{}
	b := newTestBruteService(t, resolver, capture)

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(wordlist, []byte("www\napi\n"), 0o644); err != nil {
		t.Fatalf("writing wordlist: %v", err)
	}

	found, err := b.Run(context.Background(), &BruteOptions{
		Domains:  []string{"example.com"},
		Word:     true,
		Wordlist: wordlist,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(found) != 1 || found[0] != "www.example.com" {
		t.Fatalf("accepted names = %v, want [www.example.com]", found)
	}
	if resolver.runs != 1 {
		t.Errorf("resolver ran %d times, want 1", resolver.runs)
	}
	if capture.domain != "example.com" {
		t.Errorf("exporter got domain %q", capture.domain)
	}
	info, ok := capture.infos["www.example.com"]
	if !ok {
		t.Fatal("exporter did not receive the accepted name")
	}
	if info.Reason != model.ReasonOK {
		t.Errorf("Reason = %q, want OK", info.Reason)
	}
	if len(info.IP) != 1 || info.IP[0] != "9.9.9.9" {
		t.Errorf("unexpected IPs %v", info.IP)
	}
}

func aLine(name, ip string) string {
	return `{"name":"` + name + `.","status":"NOERROR","resolver":"1.1.1.1:53","data":{"answers":[{"type":"A","name":"` + name + `.","ttl":300,"data":"` + ip + `"}]}}`
}

func TestRunRecursesThroughAcceptedNames(t *testing.T) {
	resolver := &fakeResolver{answers: map[string]string{
		"www.example.com":     aLine("www.example.com", "9.9.9.9"),
		"app.www.example.com": aLine("app.www.example.com", "9.9.9.8"),
	}}
	capture := &captureExporter{}
	b := newTestBruteService(t, resolver, capture)

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(wordlist, []byte("www\n"), 0o644); err != nil {
		t.Fatalf("writing wordlist: %v", err)
	}
	nextlist := filepath.Join(t.TempDir(), "words_next.txt")
	if err := os.WriteFile(nextlist, []byte("app\n"), 0o644); err != nil {
		t.Fatalf("writing next-layer wordlist: %v", err)
	}
	b.cfg.NextWordlist = nextlist

	found, err := b.Run(context.Background(), &BruteOptions{
		Domains:   []string{"example.com"},
		Word:      true,
		Wordlist:  wordlist,
		Recursive: true,
		Depth:     2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"www.example.com", "app.www.example.com"}
	if len(found) != len(want) || found[0] != want[0] || found[1] != want[1] {
		t.Fatalf("accepted names = %v, want %v", found, want)
	}
	// layer 1 under the domain, layer 2 under the accepted name, and the
	// layer-2 name itself stays below the depth bound
	if resolver.runs != 2 {
		t.Fatalf("resolver ran %d times, want 2", resolver.runs)
	}
	layer2 := resolver.dicts[1]
	if len(layer2) != 1 || layer2[0] != "app.www.example.com" {
		t.Errorf("second run should brute the next-layer wordlist under www.example.com, got %v", layer2)
	}
}

func TestRunPinsAuthoritativeServersOnDetectedWildcard(t *testing.T) {
	resolver := &fakeResolver{answers: map[string]string{
		"www.example.com": aLine("www.example.com", "9.9.9.9"),
	}}
	b := newTestBruteService(t, resolver, &captureExporter{})
	b.authAddrs = func(ctx context.Context, domain string) []string { return []string{"7.7.7.7"} }
	b.wildcard = &WildcardService{
		resolve: func(ctx context.Context, host string) bool { return true },
		fetch: func(ctx context.Context, url string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	// unstable TTLs leave the profile empty even though a wildcard was detected
	ttl := 0
	b.collector = newTestCollector(func(ctx context.Context, name string, addrs []string) ([]string, int, error) {
		ttl++
		return []string{fmt.Sprintf("10.0.0.%d", ttl)}, ttl, nil
	})

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(wordlist, []byte("www\n"), 0o644); err != nil {
		t.Fatalf("writing wordlist: %v", err)
	}

	if _, err := b.Run(context.Background(), &BruteOptions{
		Domains: []string{"example.com"}, Word: true, Wordlist: wordlist,
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resolver.runs != 1 {
		t.Fatalf("resolver ran %d times, want 1", resolver.runs)
	}
	servers := resolver.nameservers[0]
	if len(servers) != 1 || servers[0] != "7.7.7.7" {
		t.Errorf("resolver was fed %v, want the authoritative addresses [7.7.7.7]", servers)
	}
}

func TestRunSurfacesDomainFailure(t *testing.T) {
	b := newTestBruteService(t, &fakeResolver{}, &captureExporter{})

	badlist := filepath.Join(t.TempDir(), "missing.txt")
	found, err := b.Run(context.Background(), &BruteOptions{
		Domains: []string{"a.com"}, Word: true, Wordlist: badlist,
	})
	if err == nil {
		t.Fatal("expected the missing wordlist to surface")
	}
	if len(found) != 0 {
		t.Errorf("unexpected accepted names %v", found)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	resolver := &fakeResolver{}
	b := newTestBruteService(t, resolver, &captureExporter{})
	b.cfg.CheckDelay = 60

	wordlist := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(wordlist, []byte("www\n"), 0o644); err != nil {
		t.Fatalf("writing wordlist: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Run(ctx, &BruteOptions{
		Domains: []string{"example.com"}, Word: true, Wordlist: wordlist,
	})
	if err == nil {
		t.Fatal("expected cancellation to surface")
	}
	if resolver.runs != 0 {
		t.Error("resolver must not run after cancellation")
	}
}
