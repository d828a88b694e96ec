package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perceptrader/mt5-trader/internal/broker"
	bybittransport "github.com/perceptrader/mt5-trader/internal/broker/bybit"
	"github.com/perceptrader/mt5-trader/internal/broker/paper"
	"github.com/perceptrader/mt5-trader/internal/config"
	"github.com/perceptrader/mt5-trader/internal/logger"
	"github.com/perceptrader/mt5-trader/internal/monitoring"
	"github.com/perceptrader/mt5-trader/internal/notifications"
	"github.com/perceptrader/mt5-trader/internal/session"
	"github.com/perceptrader/mt5-trader/pkg/data"
	"github.com/perceptrader/mt5-trader/pkg/reporting"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., eurusd.json)")
		dataRoot   = flag.String("data", "data", "Root directory of signal files")
		demo       = flag.Bool("demo", true, "Use demo trading environment - paper trading (default: true)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("Please specify a config file with -config flag")
	}

	// Load environment variables from .env file
	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: Could not load .env file (%v), checking environment variables...", err)
	}

	fmt.Println("🚀 Trader Starting...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *demo {
		cfg.Exchange.Demo = true
		cfg.Exchange.Testnet = false
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		log.Fatalf("Failed to build transport: %v", err)
	}

	// Cancel on SIGINT/SIGTERM; the session checks between bars.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, transport, *dataRoot); err != nil {
		log.Fatalf("Session failed: %v", err)
	}
	fmt.Println("✅ Session finished")
}

// run owns the connection lifecycle: disconnect is guaranteed on every
// exit path.
func run(ctx context.Context, cfg *config.Config, transport broker.Transport, dataRoot string) error {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := transport.Connect(connectCtx); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	defer transport.Disconnect()

	health := monitoring.NewHealthChecker()
	health.SetConnected(true)
	defer health.SetConnected(false)

	if cfg.Monitoring.Enabled {
		startMonitoring(cfg, health)
	}

	// Keep only the symbols this broker actually quotes.
	brokerSymbols, err := transport.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	cfg.Symbols = broker.ResolveSymbols(brokerSymbols, cfg.Symbols)

	signals, err := loadSignals(cfg.Symbols, dataRoot)
	if err != nil {
		return err
	}

	fileLog, err := logger.NewLogger("trader")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer fileLog.Close()

	sess, err := session.New(cfg, transport, signals, fileLog)
	if err != nil {
		return err
	}
	sess.SetHealthChecker(health)
	if cfg.Notifications.Enabled {
		sess.SetNotifier(notifications.NewTelegramNotifier(
			cfg.Notifications.BotToken, cfg.Notifications.ChatID))
	}

	runErr := sess.Run(ctx)

	console := reporting.NewConsoleReporter()
	console.PrintOutcomes(sess.Outcomes())
	console.PrintSummary(sess.Outcomes(), sess.Capital().Available(), sess.Capital().Total())

	if cfg.ExcelReport != "" {
		if err := reporting.NewExcelReporter().WriteTradeLog(sess.Outcomes(), cfg.ExcelReport); err != nil {
			log.Printf("Warning: could not write Excel report: %v", err)
		} else {
			fmt.Printf("📊 Trade log written to %s\n", cfg.ExcelReport)
		}
	}

	return runErr
}

// buildTransport selects the broker backend. Demo mode without
// credentials runs against the in-memory paper broker.
func buildTransport(cfg *config.Config) (broker.Transport, error) {
	if cfg.Exchange.Demo && cfg.Exchange.APIKey == "" {
		fmt.Println("🔧 No API credentials; using paper broker")
		return paperTransport(cfg), nil
	}

	switch cfg.Exchange.Name {
	case "", "bybit":
		if cfg.Exchange.APIKey == "" || cfg.Exchange.Secret == "" {
			return nil, fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required (set in environment or config)")
		}
		return bybittransport.New(bybittransport.Config{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.Secret,
			Testnet:   cfg.Exchange.Testnet,
			Demo:      cfg.Exchange.Demo,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.Exchange.Name)
	}
}

// paperTransport seeds the in-memory broker with round-the-clock
// instruments for every configured symbol.
func paperTransport(cfg *config.Config) *paper.Transport {
	tr := paper.New()
	sessions := make(map[time.Weekday][]broker.SessionWindow)
	for d := time.Sunday; d <= time.Saturday; d++ {
		sessions[d] = []broker.SessionWindow{{Start: 0, End: 24 * 3600}}
	}
	for _, symbol := range cfg.Symbols {
		tr.AddSymbol(&broker.SymbolInfo{
			Name:       symbol,
			Digits:     5,
			Point:      0.00001,
			Bid:        1.0,
			Ask:        1.0001,
			TradeMode:  broker.TradeModeFull,
			FillModes:  []broker.FillMode{broker.FillFOK, broker.FillIOC, broker.FillReturn},
			Sessions:   sessions,
			VolumeMin:  0.01,
			VolumeStep: 0.01,
		})
	}
	return tr
}

func loadSignals(symbols []string, dataRoot string) (session.SliceSource, error) {
	provider := data.NewSignalProvider()
	src := make(session.SliceSource, len(symbols))
	for _, symbol := range symbols {
		path := data.FindSignalFile(dataRoot, symbol)
		if path == "" {
			log.Printf("Warning: no signal file for %s under %s, skipping", symbol, dataRoot)
			continue
		}
		signals, err := provider.LoadSignals(path)
		if err != nil {
			return nil, fmt.Errorf("load signals for %s: %w", symbol, err)
		}
		src[symbol] = signals
	}
	return src, nil
}

func startMonitoring(cfg *config.Config, health *monitoring.HealthChecker) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Monitoring.Path, monitoring.NewMetricsHandler())
	mux.Handle("/health", health)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.Port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Warning: monitoring server stopped: %v", err)
		}
	}()
}

// loadEnvFile loads environment variables from a file
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
