package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config carries every tunable of the brute pipeline. Values come from the
// environment with sensible defaults; CLI flags override them afterwards.
type Config struct {
	// Dictionary generation
	Wordlist     string
	NextWordlist string
	FuzzList     string

	// Resolution
	Nameservers     []string
	MassdnsPath     string
	ProcessNum      int
	ConcurrentNum   int
	ResolveTimeout  int // seconds per DNS query
	GeneralResolver string

	// Classification
	IPBlacklist       []string
	IPOccurrenceLimit int

	// Wildcard profiling
	SimilarityThreshold    float64
	WildcardSampleRatio    float64
	WildcardMinOccurrences int
	WildcardMinSamples     int

	// Pipeline
	TempDir          string
	ResultDir        string
	CheckDelay       int // seconds to pause before invoking the bulk resolver, 0 disables
	DeleteDictionary bool
	DeleteShards     bool
	FuzzCountWarning uint64
	FuzzRepeatLimit  int

	// Persistence
	RedisHost   string
	RedisPort   string
	EnableRedis bool
	SQLitePath  string

	// Monitoring
	MonitorSpec string
}

func LoadConfig() *Config {
	tempDir := getEnv("SUBBRUTE_TEMP_DIR", filepath.Join(os.TempDir(), "subbrute"))
	return &Config{
		Wordlist:     getEnv("SUBBRUTE_WORDLIST", "data/subnames.txt"),
		NextWordlist: getEnv("SUBBRUTE_NEXT_WORDLIST", "data/subnames_next.txt"),
		FuzzList:     os.Getenv("SUBBRUTE_FUZZLIST"),

		Nameservers: getEnvList("SUBBRUTE_NAMESERVERS",
			[]string{"1.1.1.1", "8.8.8.8", "8.8.4.4", "9.9.9.10", "208.67.222.222"}),
		MassdnsPath:     getEnv("SUBBRUTE_MASSDNS", "massdns"),
		ProcessNum:      getEnvInt("SUBBRUTE_PROCESSES", 1),
		ConcurrentNum:   getEnvInt("SUBBRUTE_CONCURRENT", 2000),
		ResolveTimeout:  getEnvInt("SUBBRUTE_RESOLVE_TIMEOUT", 5),
		GeneralResolver: getEnv("SUBBRUTE_RESOLVER", "8.8.8.8:53"),

		IPBlacklist: getEnvList("SUBBRUTE_IP_BLACKLIST",
			[]string{"0.0.0.0", "0.0.0.1", "127.0.0.1"}),
		IPOccurrenceLimit: getEnvInt("SUBBRUTE_IP_OCCURRENCE_LIMIT", 1000),

		SimilarityThreshold:    getEnvFloat("SUBBRUTE_SIMILARITY_THRESHOLD", 0.85),
		WildcardSampleRatio:    getEnvFloat("SUBBRUTE_WILDCARD_SAMPLE_RATIO", 0.8),
		WildcardMinOccurrences: getEnvInt("SUBBRUTE_WILDCARD_MIN_OCCURRENCES", 2),
		WildcardMinSamples:     getEnvInt("SUBBRUTE_WILDCARD_MIN_SAMPLES", 2),

		TempDir:          tempDir,
		ResultDir:        getEnv("SUBBRUTE_RESULT_DIR", "results"),
		CheckDelay:       getEnvInt("SUBBRUTE_CHECK_DELAY", 0),
		DeleteDictionary: getEnvBool("SUBBRUTE_DELETE_DICTIONARY", true),
		DeleteShards:     getEnvBool("SUBBRUTE_DELETE_SHARDS", true),
		FuzzCountWarning: 10000000,
		FuzzRepeatLimit:  getEnvInt("SUBBRUTE_FUZZ_REPEAT_LIMIT", 10),

		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		EnableRedis: getEnvBool("SUBBRUTE_ENABLE_REDIS", false),
		SQLitePath:  os.Getenv("SUBBRUTE_SQLITE_PATH"),

		MonitorSpec: getEnv("SUBBRUTE_MONITOR_SPEC", "0 2 * * *"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
