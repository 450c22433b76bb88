package utils

import (
	"crypto/rand"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var subnameRe = regexp.MustCompile(`^[0-9a-zA-Z_]([0-9a-zA-Z_-]*[0-9a-zA-Z])?(\.[0-9a-zA-Z_]([0-9a-zA-Z_-]*[0-9a-zA-Z])?)*$`)

// IsValidSubname reports whether a wordlist entry can be substituted into a
// hostname template: one or more DNS labels separated by dots, no label
// longer than 63 characters.
func IsValidSubname(word string) bool {
	if word == "" || len(word) > 253 {
		return false
	}
	for _, label := range strings.Split(word, ".") {
		if len(label) > 63 {
			return false
		}
	}
	return subnameRe.MatchString(word)
}

// RandomToken returns n random bytes hex-encoded, e.g. 8 characters for n=4.
func RandomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// RandomSubdomains generates count distinct random-token subdomains of domain.
func RandomSubdomains(domain string, count int) []string {
	seen := make(map[string]struct{}, count)
	for len(seen) < count {
		seen[RandomToken(4)+"."+domain] = struct{}{}
	}
	subdomains := make([]string, 0, count)
	for s := range seen {
		subdomains = append(subdomains, s)
	}
	return subdomains
}

// IsPublicIP reports whether ip is a routable public address.
func IsPublicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() || parsed.IsMulticast() || parsed.IsUnspecified())
}

// MainDomain reduces a hostname to its registered domain. Short second-level
// labels under two-part public suffixes (co.uk, com.au) keep three labels.
func MainDomain(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return domain
	}
	if len(parts[len(parts)-2]) <= 3 && len(parts[len(parts)-1]) <= 3 {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// LayerDepth is the number of labels name carries above root, e.g.
// LayerDepth("a.b.example.com", "example.com") == 2.
func LayerDepth(name, root string) int {
	return strings.Count(name, ".") - strings.Count(root, ".")
}

// WriteLines persists one value per line, creating parent directories.
func WriteLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
