package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dyfetch/douyin"
	"dyfetch/downloader"
	"dyfetch/internal"
	"dyfetch/ledger"
	"dyfetch/utils"
)

var (
	configPath  string
	outputPath  string
	modes       []string
	cookiesPath string
	cookieText  string
	intervalArg string
	proxyURL    string
	threads     int
	startTime   string
	endTime     string
	withCover   bool
	withMusic   bool
	withAvatar  bool
	withJSON    bool
	noDatabase  bool
	quiet       bool
	debug       bool
	logLevel    string
	logFile     string

	config *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "dyfetch [OPTIONS] <URL>...",
	Short:   "Download videos, galleries and collections from douyin",
	Version: "v1.0.0",
	Long: `dyfetch archives douyin content: single videos, image galleries,
a user's posts or likes, mixes (collections) and music pages. Downloads
are deduplicated against a local history database, so repeated runs
only fetch what is new.

Examples:
  dyfetch https://www.douyin.com/video/7123456789012345678
  dyfetch -c cookies.txt https://www.douyin.com/user/MS4wLjABAAAA...
  dyfetch -c cookies.txt -m post -m like --json https://v.douyin.com/iAbCdEf/
  dyfetch -f config.yaml

Environment Variables:
  DYFETCH_THREADS    Default number of download workers (1-32)
  DYFETCH_TIMEOUT    HTTP timeout in seconds
  DYFETCH_COOKIES    Path to cookie file
  DYFETCH_PROXY      Proxy URL

Cookies exported from a logged-in browser session are required; the
web API rejects anonymous listing requests.`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(cmd, args); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogInfo("dyfetch starting up")
		internal.LogDebug("Configuration loaded: threads=%d, interval=%.1fs, modes=%v, database=%v",
			config.Threads, config.Interval, config.Modes, config.Database)

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(config.Links) == 0 {
			return fmt.Errorf("no URLs given; pass them as arguments or via the config file's link list")
		}
		return executeDownloadWorkflow()
	},
}

// loadConfiguration merges the config file, environment and CLI flags,
// in increasing precedence
func loadConfiguration(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		config, err = internal.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
	} else {
		config = internal.DefaultConfig()
	}

	config.LoadFromEnv()

	flags := cmd.Flags()
	if flags.Changed("output") {
		config.Path = outputPath
	}
	if flags.Changed("mode") {
		config.Modes = modes
	}
	if flags.Changed("threads") {
		config.Threads = threads
	}
	if flags.Changed("cookies") {
		config.CookiesFile = cookiesPath
	}
	if flags.Changed("cookie") {
		config.CookieText = cookieText
	}
	if flags.Changed("proxy") {
		config.ProxyURL = proxyURL
	}
	if flags.Changed("start-time") {
		config.StartTime = startTime
	}
	if flags.Changed("end-time") {
		config.EndTime = endTime
	}
	if flags.Changed("cover") {
		config.Cover = withCover
	}
	if flags.Changed("music") {
		config.Music = withMusic
	}
	if flags.Changed("avatar") {
		config.Avatar = withAvatar
	}
	if flags.Changed("json") {
		config.JSON = withJSON
	}
	if noDatabase {
		config.Database = false
	}

	if flags.Changed("interval") {
		d, err := utils.ParseInterval(intervalArg)
		if err != nil {
			return err
		}
		config.Interval = d.Seconds()
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	config.Links = append(config.Links, args...)

	return config.Validate()
}

func init() {
	config = internal.DefaultConfig()

	rootCmd.Flags().StringVarP(&configPath, "config", "f", "", "Path to YAML config file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", config.Path, "Root directory for downloaded files")
	rootCmd.Flags().StringSliceVarP(&modes, "mode", "m", config.Modes, "Content modes for user URLs: post, like, mix, music, allmix (repeatable)")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", config.Threads, "Number of concurrent download workers (1-32) (env: DYFETCH_THREADS)")
	rootCmd.Flags().StringVarP(&cookiesPath, "cookies", "c", "", "Path to cookie file, Netscape format or a pasted Cookie header (env: DYFETCH_COOKIES)")
	rootCmd.Flags().StringVar(&cookieText, "cookie", "", "Cookie header string, overrides --cookies")
	rootCmd.Flags().StringVarP(&intervalArg, "interval", "r", "", "Minimum delay between listing requests (e.g. 1.5 or 500ms)")
	rootCmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL (env: DYFETCH_PROXY)")
	rootCmd.Flags().StringVar(&startTime, "start-time", "", "Only download items created on or after this date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endTime, "end-time", "", "Only download items created on or before this date (YYYY-MM-DD or 'now')")
	rootCmd.Flags().BoolVar(&withCover, "cover", false, "Also save each item's cover image")
	rootCmd.Flags().BoolVar(&withMusic, "music", false, "Also save each item's background music")
	rootCmd.Flags().BoolVar(&withAvatar, "avatar", false, "Also save the author's avatar once per directory")
	rootCmd.Flags().BoolVar(&withJSON, "json", false, "Also save each item's raw metadata as a JSON sidecar")
	rootCmd.Flags().BoolVar(&noDatabase, "no-database", false, "Disable the download history database")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bar output")

	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information (env: DYFETCH_DEBUG)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: DYFETCH_LOG_LEVEL)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: DYFETCH_LOG_FILE)")
}

func Execute() error {
	return rootCmd.Execute()
}

// executeDownloadWorkflow wires the collaborators and drains every
// input link
func executeDownloadWorkflow() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		if !config.QuietMode {
			fmt.Printf("\n🛑 Received %v signal, finishing in-flight items...\n", sig)
		}
		cancel()
	}()

	authContext, err := loadAuthentication()
	if err != nil {
		return err
	}

	httpClient := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(config.TimeoutSeconds) * time.Second,
		ProxyURL: config.ProxyURL,
	})

	apiClient := douyin.NewClient(httpClient, authContext)
	store := utils.NewLocalStore(config.Path, httpClient, config.QuietMode)
	limiter := utils.NewIntervalLimiter(time.Duration(config.Interval * float64(time.Second)))

	var history internal.Ledger
	var sqliteStore *ledger.SQLiteStore
	if config.Database {
		if err := store.EnsureDir(config.Path); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
		sqliteStore, err = ledger.Open(filepath.Join(config.Path, "history.db"))
		if err != nil {
			return fmt.Errorf("cannot open history database: %w", err)
		}
		defer sqliteStore.Close()
		history = sqliteStore
	} else {
		history = ledger.NewNoop()
	}

	engine, err := downloader.NewEngine(config, apiClient, history, store, limiter)
	if err != nil {
		return err
	}

	// Resolve every input up front; a bad link is reported but never
	// aborts the session
	resolver := downloader.NewDouyinResolver(apiClient)
	var descriptors []internal.ContentDescriptor
	for _, link := range config.Links {
		desc, err := resolver.Resolve(ctx, link)
		if err != nil {
			internal.LogWarn("Cannot resolve %q: %v", link, err)
			if !config.QuietMode {
				fmt.Printf("⚠️  Skipping unrecognized input: %s\n", link)
			}
			continue
		}
		internal.LogDebug("Resolved %q to %s/%s", link, desc.Type, desc.ID)
		descriptors = append(descriptors, *desc)
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("none of the %d inputs could be resolved", len(config.Links))
	}

	if !config.QuietMode {
		fmt.Printf("📥 Downloading %d input(s) to %s\n", len(descriptors), config.Path)
		fmt.Printf("🧵 Workers: %d\n\n", config.Threads)
	}

	startedAt := time.Now()
	result := engine.Run(ctx, descriptors)
	finishedAt := time.Now()

	if sqliteStore != nil {
		if err := sqliteStore.RecordRunSummary(context.Background(), startedAt, finishedAt, result); err != nil {
			internal.LogWarn("Cannot record run summary: %v", err)
		}
	}

	internal.LogInfo("Session done in %s: %d total, %d success, %d failed, %d skipped",
		finishedAt.Sub(startedAt).Round(time.Second), result.Total, result.Success, result.Failed, result.Skipped)
	if !config.QuietMode {
		fmt.Printf("\n✅ Done: %d downloaded, %d skipped, %d failed\n", result.Success, result.Skipped, result.Failed)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("session interrupted")
	}
	if result.Total > 0 && result.Success == 0 && result.Failed > 0 {
		return fmt.Errorf("all %d items failed", result.Failed)
	}
	return nil
}

// loadAuthentication builds the credential set from the cookie flag or
// file. The listing API rejects anonymous requests, so missing cookies
// are a hard error.
func loadAuthentication() (*internal.AuthContext, error) {
	provider := downloader.NewCookieAuthProvider()

	var authContext *internal.AuthContext
	var err error
	switch {
	case config.CookieText != "":
		authContext, err = provider.LoadCookieString(config.CookieText)
	case config.CookiesFile != "":
		internal.LogInfo("Loading authentication from cookie file: %s", config.CookiesFile)
		authContext, err = provider.LoadCookies(config.CookiesFile)
	default:
		return nil, fmt.Errorf("cookies are required: pass --cookies <file> or --cookie <string> exported from a logged-in browser session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	if err := provider.ValidateSession(authContext); err != nil {
		internal.LogWarn("Session validation failed: %v", err)
		if !config.QuietMode {
			fmt.Printf("⚠️  Warning: session validation failed: %v\n", err)
			fmt.Printf("   Continuing with potentially stale credentials...\n")
		}
	} else {
		internal.LogInfo("Authentication session validated successfully")
	}

	// The favorite listing needs a login session on top of the
	// anonymous tokens
	for _, mode := range config.Modes {
		if mode == "like" && !provider.HasSessionCookie(authContext) {
			internal.LogWarn("like mode requested without a login session cookie; the favorite listing will likely fail")
		}
	}

	return authContext, nil
}
