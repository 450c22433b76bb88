package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"subbrute/internal/config"
	"subbrute/internal/export"
	"subbrute/internal/service"
	"subbrute/internal/storage"
	"subbrute/internal/utils"

	"github.com/spf13/cobra"
)

var (
	cfg  *config.Config
	opts service.BruteOptions

	target      string
	targetsFile string

	addDomain    string
	removeDomain string
)

var rootCmd = &cobra.Command{
	Use:   "subbrute",
	Short: "Subdomain discovery by bulk brute-force resolution",
	Long: `subbrute generates candidate subdomain dictionaries, resolves them through
an external bulk resolver and statistically separates genuine hosts from
wildcard-DNS noise.`,
	SilenceUsage: true,
	RunE:         runBrute,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Manage monitored domains and run the periodic re-brute scheduler",
	RunE:  runMonitor,
}

func init() {
	rootCmd.Flags().StringVarP(&target, "target", "t", "", "Target domain")
	rootCmd.Flags().StringVarP(&targetsFile, "targets", "l", "", "File with one target domain per line")
	rootCmd.Flags().BoolVar(&opts.Word, "word", false, "Use word mode dictionary generation")
	rootCmd.Flags().StringVar(&opts.Wordlist, "wordlist", "", "Wordlist path for word mode")
	rootCmd.Flags().BoolVar(&opts.Recursive, "recursive", false, "Recursively brute discovered subdomains")
	rootCmd.Flags().IntVar(&opts.Depth, "depth", 2, "Recursion depth bound")
	rootCmd.Flags().BoolVar(&opts.Fuzz, "fuzz", false, "Use fuzz mode dictionary generation")
	rootCmd.Flags().StringVar(&opts.Template, "place", "", "Fuzz template with a single * placeholder, e.g. m.*.example.com")
	rootCmd.Flags().StringVar(&opts.Rule, "rule", "", "Regex rule enumerated in fuzz mode")
	rootCmd.Flags().StringVar(&opts.FuzzList, "fuzzlist", "", "Wordlist path for fuzz mode")

	monitorCmd.Flags().StringVar(&addDomain, "add", "", "Add a domain to the monitored set and exit")
	monitorCmd.Flags().StringVar(&removeDomain, "remove", "", "Remove a domain from the monitored set and exit")
	rootCmd.AddCommand(monitorCmd)
}

func main() {
	utils.InitLogger()
	defer func() {
		_ = utils.Log.Sync()
	}()
	cfg = config.LoadConfig()

	if err := rootCmd.Execute(); err != nil {
		utils.Log.Fatal("run failed", utils.Field("error", err.Error()))
	}
}

func runBrute(cmd *cobra.Command, args []string) error {
	domains, err := loadTargets()
	if err != nil {
		return err
	}
	opts.Domains = domains
	if opts.Wordlist == "" {
		opts.Wordlist = cfg.Wordlist
	}
	if opts.FuzzList == "" {
		opts.FuzzList = cfg.FuzzList
	}

	exporters := []export.Exporter{
		export.NewCSVExporter(cfg.ResultDir),
		export.NewJSONExporter(cfg.ResultDir),
	}
	if cfg.SQLitePath != "" {
		sqlite, err := export.NewSQLiteExporter(cfg.SQLitePath)
		if err != nil {
			return err
		}
		exporters = append(exporters, sqlite)
	}
	var store *storage.Storage
	if cfg.EnableRedis {
		store = storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	}

	brute := service.NewBruteService(cfg, exporters, store)
	if err := brute.ValidateOptions(&opts); err != nil {
		utils.Log.Fatal("invalid brute configuration", utils.Field("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	found, err := brute.Run(ctx, &opts)
	utils.Log.Info("run complete", utils.Field("found", len(found)))
	return err
}

func runMonitor(cmd *cobra.Command, args []string) error {
	store := storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	ctx := context.Background()
	switch {
	case addDomain != "":
		return store.AddMonitoredDomain(ctx, addDomain)
	case removeDomain != "":
		return store.RemoveMonitoredDomain(ctx, removeDomain)
	}

	exporters := []export.Exporter{export.NewCSVExporter(cfg.ResultDir)}
	brute := service.NewBruteService(cfg, exporters, store)
	sched := service.NewScheduler(store, brute, cfg.MonitorSpec)
	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	utils.Log.Info("monitor stopped")
	return nil
}

func loadTargets() ([]string, error) {
	if target != "" {
		return []string{strings.ToLower(strings.TrimSpace(target))}, nil
	}
	if targetsFile == "" {
		return nil, errors.New("either --target or --targets is required")
	}
	fd, err := os.Open(targetsFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fd.Close()
	}()
	var domains []string
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		if line := strings.ToLower(strings.TrimSpace(scanner.Text())); line != "" {
			domains = append(domains, line)
		}
	}
	if len(domains) == 0 {
		return nil, errors.New("targets file holds no domains")
	}
	return domains, scanner.Err()
}
