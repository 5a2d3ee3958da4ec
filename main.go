package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"riskplane/api"
	"riskplane/config"
	"riskplane/marketplace"
	"riskplane/model"
	"riskplane/render"
	"riskplane/scheduler"
	"riskplane/storage"
	"riskplane/theme"
)

//go:embed themes
var themesFS embed.FS

var (
	dataDir    string
	listen     string
	listenPort int
	strategy   string
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "riskplane",
	Short: "riskplane – AI tool risk assessment report server",
	Long:  "Riskplane renders themeable AI-tool risk assessment reports with an installable theme marketplace.",
	Run:   run,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage riskplane configuration files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Long:  "Generate a default riskplane.config file in the specified data directory (or current directory if not specified).",
	Run:   runConfigGenerate,
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Theme catalog",
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in theme catalog",
	Run:   runThemesList,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.Flags().StringVar(&dataDir, "data-dir", wd, "Data directory (default: current directory)")
	rootCmd.Flags().StringVar(&listen, "listen", "all", "IP address to listen on (default: all)")
	rootCmd.Flags().IntVar(&listenPort, "listen-port", 8080, "Port to listen on (default: 8080)")
	rootCmd.Flags().StringVar(&strategy, "registry", "", "Theme registry strategy: config or tokens")

	configGenerateCmd.Flags().StringVar(&dataDir, "data-dir", wd, "Data directory where config file will be created (default: current directory)")
	configCmd.AddCommand(configGenerateCmd)
	themesCmd.AddCommand(themesListCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(themesCmd)
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Override config with CLI flags only if they were explicitly provided
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	} else if cfg.DataDir != "" && cfg.DataDir != "." {
		dataDir = cfg.DataDir
	}

	if cmd.Flags().Changed("listen") || cmd.Flags().Changed("listen-port") {
		if listen != "" && listen != "all" {
			cfg.ListenAddr = fmt.Sprintf("%s:%d", listen, listenPort)
		} else {
			cfg.ListenAddr = fmt.Sprintf(":%d", listenPort)
		}
	}
	if cmd.Flags().Changed("registry") {
		cfg.RegistryStrategy = config.Strategy(strategy)
	}

	dataDirAbs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}
	cfg.DataDir = dataDirAbs

	store := storage.New(cfg.DataDir)
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("ensure data dir: %v", err)
	}

	var assets fs.FS = themesFS
	if cfg.ThemesDir != "" {
		// The override directory must contain a themes/ tree mirroring the
		// embedded layout.
		assets = os.DirFS(cfg.ThemesDir)
	}

	sink := theme.NewPageSink()
	for _, section := range []string{"report-header", "report-main", "report-recommendations", "report-certifications", "report-footer"} {
		sink.RegisterSection(section)
	}

	bus := theme.NewBus()
	loader := theme.NewLoader(theme.FSFetcher{FS: assets}, sink)

	var registry theme.Registry
	switch cfg.RegistryStrategy {
	case config.StrategyTokens:
		registry = theme.NewTokenRegistry(loader, sink, bus, theme.DefaultTokenTables())
	default:
		registry = theme.NewConfigRegistry(loader, sink, bus, cfg.BaseTheme)
	}

	defs, err := theme.LoadDefinitions(assets, "themes/definitions.yaml")
	if err != nil {
		log.Fatalf("load theme definitions: %v", err)
	}
	seeded := theme.Seed(registry, defs)
	log.Printf("[main] seeded %d built-in themes (%s strategy)", seeded, cfg.RegistryStrategy)

	renderer := render.NewRegistry()
	if err := render.RegisterBuiltins(renderer); err != nil {
		log.Fatalf("register built-in templates: %v", err)
	}

	market := marketplace.New(marketplace.BuiltinSource{Delay: 150 * time.Millisecond}, registry, loader, store, bus)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := market.Refresh(ctx); err != nil {
		log.Printf("[main] initial catalog refresh failed: %v", err)
	}
	if restored, err := market.RestoreInstalled(); err != nil {
		log.Printf("[main] restore installed themes: %v", err)
	} else if restored > 0 {
		log.Printf("[main] restored %d installed themes", restored)
	}

	if cfg.RefreshSchedules == nil {
		cfg.RefreshSchedules = []model.Schedule{}
	}
	if cfg.LastRun == nil {
		cfg.LastRun = make(map[string]time.Time)
	}

	refresh := func(ctx context.Context) ([]model.CatalogEntry, error) {
		return market.Refresh(ctx)
	}
	sched := scheduler.New(refresh, cfg.RefreshSchedules, cfg.LastRun)

	saveConfig := func() {
		cfg.RefreshSchedules = sched.Schedules()
		cfg.LastRun = sched.LastRun()
		if err := config.Save(cfg); err != nil {
			log.Printf("failed to save config: %v", err)
		}
	}
	sched.SetOnUpdate(saveConfig)
	sched.Start(ctx)

	// Restore the last selected theme, or fall back to the default.
	startup := store.SelectedTheme()
	if startup == "" {
		startup = cfg.DefaultTheme
	}
	if err := registry.Activate(ctx, startup); err != nil {
		log.Printf("[main] activate startup theme %q: %v", startup, err)
	}

	mux := http.NewServeMux()
	apiServer := api.NewServer(market, renderer, sink, store, sched, bus)
	apiServer.Register(mux)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	printListeningAddresses(cfg.ListenAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func runConfigGenerate(cmd *cobra.Command, args []string) {
	dataDirAbs, err := filepath.Abs(dataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}

	cfg := config.Default()
	cfg.DataDir = dataDirAbs

	cfgPath := filepath.Join(dataDirAbs, "riskplane.config")
	if _, err := os.Stat(cfgPath); err == nil {
		log.Fatalf("config file already exists: %s", cfgPath)
	}

	if err := config.Save(cfg); err != nil {
		log.Fatalf("failed to save config: %v", err)
	}

	fmt.Printf("Generated default config file: %s\n", cfgPath)
}

var (
	catalogTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	catalogIDStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	premiumStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d4af37"))
	freeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#2e7d32"))
)

func runThemesList(cmd *cobra.Command, args []string) {
	entries, err := marketplace.BuiltinSource{}.Fetch(cmd.Context())
	if err != nil {
		log.Fatalf("fetch catalog: %v", err)
	}

	for _, e := range entries {
		badge := freeStyle.Render("free")
		if e.Premium {
			badge = premiumStyle.Render(fmt.Sprintf("premium $%.0f", e.PriceUSD))
		}
		fmt.Printf("%s %s [%s]\n", catalogTitleStyle.Render(e.Name), catalogIDStyle.Render("("+e.ID+" v"+e.Version+")"), badge)
		fmt.Printf("  %s\n", e.Description)
	}
}

func printListeningAddresses(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("listening on http://%s", addr)
		return
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		addrs, err := net.InterfaceAddrs()
		if err == nil {
			log.Println("listening on:")
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
					if ipnet.IP.To4() != nil {
						log.Printf("  http://%s:%s", ipnet.IP.String(), port)
					}
				}
			}
			log.Printf("  http://localhost:%s", port)
			log.Printf("  http://127.0.0.1:%s", port)
		} else {
			log.Printf("listening on http://0.0.0.0:%s", port)
		}
	} else {
		log.Printf("listening on http://%s:%s", host, port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
