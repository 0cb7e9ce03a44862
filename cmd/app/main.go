package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"WaveScan/internal/di"
	"WaveScan/internal/domain/models"
	"WaveScan/internal/services/structure"
	"WaveScan/internal/usecase"
	pkgcache "WaveScan/pkg/cache"
	"WaveScan/pkg/config"
)

const appVersion = "0.2.0"

var (
	cfgFile     string
	symbolList  string
	days        int
	engineVer   string
	format      string
	minScore    int
	topN        int
	concurrency int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wavescan",
		Short: "Chart structure scanner for stock screening",
		Long: `WaveScan scores how cleanly a chart trends before expensive analysis runs:

Commands:
  serve      - run the HTTP/WS service with the periodic screener
  scan       - one-shot structure scan over a symbol universe
  prefilter  - score a single symbol
  version    - print version information

Examples:
  wavescan serve --config config/config.yaml
  wavescan scan --symbols AAPL,MSFT,NVDA --days 250
  wavescan prefilter NVDA --engine-version v0.1 --format json`,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanning service",
		RunE:  runServe,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot structure scan",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated symbols to scan (default: configured universe)")
	scanCmd.Flags().IntVar(&days, "days", 250, "calendar days of history per symbol")
	scanCmd.Flags().StringVar(&engineVer, "engine-version", "", "scoring version: v0.1, v0.2")
	scanCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	scanCmd.Flags().IntVar(&minScore, "min-score", 0, "hide symbols scoring below this")
	scanCmd.Flags().IntVar(&topN, "top", 0, "show only the top N symbols")
	scanCmd.Flags().IntVar(&concurrency, "workers", 0, "number of parallel workers")

	prefilterCmd := &cobra.Command{
		Use:   "prefilter <symbol>",
		Short: "Score a single symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runPrefilter,
	}
	prefilterCmd.Flags().IntVar(&days, "days", 250, "calendar days of history")
	prefilterCmd.Flags().StringVar(&engineVer, "engine-version", "", "scoring version: v0.1, v0.2")
	prefilterCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wavescan %s (engines %s, %s)\n", appVersion, structure.VersionV01, structure.VersionV02)
		},
	}

	rootCmd.AddCommand(serveCmd, scanCmd, prefilterCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Override config with CLI flags
	if cmd.Flags().Changed("symbols") {
		cfg.Quote.Symbols = strings.Split(symbolList, ",")
	}
	if cmd.Flags().Changed("days") {
		cfg.Engine.DefaultDays = days
	}
	if cmd.Flags().Changed("engine-version") {
		cfg.Engine.Version = engineVer
	}
	if cmd.Flags().Changed("workers") {
		cfg.Screener.Concurrency = concurrency
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Printf("env=%s backend=%s engine=%s", cfg.Environment, cfg.Backend.Type, cfg.Engine.Version)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization: %w", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: connected brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)

	return app.Run()
}

// localStack wires the scoring path without the server-side backends so that
// one-shot commands need nothing but the quote API.
func localStack(cfg *config.Config) (*usecase.ScreenerUseCase, *usecase.PrefilterUseCase, error) {
	engines, err := di.ProvideEngines()
	if err != nil {
		return nil, nil, err
	}
	source := di.ProvideCandleSource(cfg)
	bytesCache := di.ProvideCache(cfg)
	// The redis candle cache pings on construct; one-shot runs stay in-process.
	candles := usecase.NewCandlesUseCase(source, pkgcache.NewMemoryCache(), cfg.Cache.CandleTTL)
	prefilter := di.ProvidePrefilterUseCase(candles, engines, bytesCache, cfg)
	screener := usecase.NewScreenerUseCase(
		prefilter,
		nil,
		di.ProvideMetrics(),
		cfg.Quote.Symbols,
		cfg.Screener.Concurrency,
		cfg.Engine.DefaultDays,
	)
	return screener, prefilter, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	screener, _, err := localStack(cfg)
	if err != nil {
		return err
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Stopping scan...")
		cancel()
	}()

	symbols := cfg.Quote.Symbols
	fmt.Printf("Scanning %d symbols (%d days)...\n\n", len(symbols), cfg.Engine.DefaultDays)

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	screener.SetProgress(func(done, total int) {
		bar.Set(done)
	})

	summary, scanErr := screener.Scan(ctx, models.ScanRequest{
		Version:     cfg.Engine.Version,
		RequestedBy: "cli",
	})
	bar.Finish()
	fmt.Println()

	if summary == nil {
		return fmt.Errorf("scanning: %w", scanErr)
	}
	if scanErr != nil {
		fmt.Println("Scan interrupted; showing partial results.")
	}

	if format == "json" {
		return outputJSON(summary)
	}
	return outputScanTable(summary)
}

func runPrefilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, prefilter, err := localStack(cfg)
	if err != nil {
		return err
	}

	symbol := strings.ToUpper(args[0])
	out, err := prefilter.Prefilter(context.Background(), usecase.PrefilterParams{
		Symbol:  symbol,
		Days:    cfg.Engine.DefaultDays,
		Version: cfg.Engine.Version,
	})
	if err != nil {
		return fmt.Errorf("prefilter %s: %w", symbol, err)
	}

	if format == "json" {
		return outputJSON(out)
	}

	fmt.Printf("[%s] structure %d/100 (engine %s, %d bars)\n", out.Symbol, out.Score.StructureScore, out.Version, out.Bars)
	fmt.Printf("  Alternation:     %5.1f\n", out.Score.AlternationScore)
	fmt.Printf("  Proportionality: %5.1f\n", out.Score.ProportionalityScore)
	fmt.Printf("  Pivot quality:   %5.1f\n", out.Score.PivotQualityScore)
	fmt.Printf("  Cage presence:   %5.1f\n", out.Score.CagePresenceScore)
	if out.Score.Wave3Bonus > 0 {
		fmt.Printf("  Wave-3 bonus:    %5.1f\n", out.Score.Wave3Bonus)
	}
	fmt.Printf("  Regime: %s\n", out.Score.RegimeHint)
	fmt.Printf("  Cage: %s\n", cageLabel(out.Cage))
	for _, note := range out.Score.Notes {
		fmt.Printf("  Note: %s\n", note)
	}
	return nil
}

func outputScanTable(s *models.ScanSummary) error {
	results := make([]models.ScanResult, 0, len(s.Results))
	for _, r := range s.Results {
		if r.Err == "" && r.Score.StructureScore < minScore {
			continue
		}
		results = append(results, r)
	}
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}

	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
	if len(results) == 0 {
		fmt.Printf("No symbols scored %d or better.\n", minScore)
		fmt.Printf("Scanned %d symbols in %s\n", s.Total, elapsed)
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Symbol", "Score", "Raw", "Regime", "Cage", "Error"}),
	)

	for i, r := range results {
		errMsg := r.Err
		if len(errMsg) > 40 {
			errMsg = errMsg[:40] + "..."
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Symbol,
			strconv.Itoa(r.Score.StructureScore),
			fmt.Sprintf("%.1f", r.Score.RawStructureScore),
			string(r.Score.RegimeHint),
			cageLabel(r.Cage),
			errMsg,
		})
	}

	table.Render()

	fmt.Printf("\nScan %s: %d scored, %d failed in %s\n", s.ScanID, s.Succeeded, s.Failed, elapsed)
	return nil
}

func cageLabel(c models.CageInfo) string {
	if !c.Exists {
		return "-"
	}
	if !c.Broken {
		return "intact"
	}
	return fmt.Sprintf("broken %s (%.1f ATR)", c.BreakDirection, c.BreakStrengthATR)
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
