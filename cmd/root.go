package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	"github.com/AlfredBerg/accom-crawler/internal/outputHandlers/browser"
	"github.com/AlfredBerg/accom-crawler/internal/outputHandlers/database"
	"github.com/AlfredBerg/accom-crawler/internal/outputHandlers/markdown"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	configErr error
)

type crawlFlags struct {
	verbose bool
}

var flags crawlFlags

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $XDG_CONFIG_HOME/accom-crawler/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level in a human readable format.")

	rootCmd.Flags().String("driver", "rod", "The browser driver to use: rod, chromedp or static.")
	rootCmd.Flags().Bool("headless", false, "Run the browser without a window.")
	rootCmd.Flags().Bool("open-results", false, "Open every place found in the default browser when the run is done.")
	rootCmd.Flags().String("markdown", "", "Write a markdown report of the run to this file.")
	rootCmd.Flags().Bool("db", false, "Store the run in the configured database.")
	rootCmd.Flags().Int("workers", 70, "The maximum number of listing pages fetched at the same time during verification.")

	for key, flag := range map[string]string{
		"browser.driver":          "driver",
		"browser.headless":        "headless",
		"output.open":             "open-results",
		"output.markdown":         "markdown",
		"output.database.enabled": "db",
		"verify.workers":          "workers",
	} {
		cobra.CheckErr(viper.BindPFlag(key, rootCmd.Flags().Lookup(flag)))
	}

	rootCmd.AddCommand(validateCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("ACCOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
	config.SetDefaults(viper.GetViper())

	if configErr = viper.ReadInConfig(); configErr == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var rootCmd = &cobra.Command{
	Use:   "accom-crawler",
	Short: "Searches accommodation websites and keeps the places that meet your requirements",

	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return crawler(cmd.Context())
	},
}

func newLogger() (*zap.Logger, error) {
	if flags.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("reading config: %w", configErr)
	}
	return config.Load(viper.GetViper())
}

func newSession(cfg *config.Config, logger *zap.Logger) (session.Session, error) {
	opts := session.Options{
		Headless:          cfg.Browser.Headless,
		Bin:               cfg.Browser.Bin,
		Width:             cfg.Browser.Width,
		Height:            cfg.Browser.Height,
		Trace:             cfg.Browser.Trace,
		ActionTimeout:     cfg.Crawl.ActionTimeout,
		NavigationTimeout: cfg.Crawl.NavTimeout,
		Logger:            logger.Named("session"),
	}
	switch cfg.Browser.Driver {
	case "rod":
		return session.NewRod(opts)
	case "chromedp":
		return session.NewChromedp(opts)
	case "static":
		return session.NewStatic(session.StaticOptions{
			Client:    &http.Client{Timeout: cfg.Crawl.NavTimeout},
			UserAgent: cfg.Verify.UserAgent,
			MaxBody:   cfg.Verify.MaxBody,
			Logger:    opts.Logger,
		}), nil
	}
	return nil, fmt.Errorf("%w %q", config.ErrUnknownDriver, cfg.Browser.Driver)
}

func crawler(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var handlers []crawl.OutputHandler
	if cfg.Output.Database.Enabled {
		db := &database.Output{
			Driver: cfg.Output.Database.Driver,
			DSN:    cfg.Output.Database.DSN,
			Logger: logger.Named("database"),
		}
		if err := db.Init(); err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed writing results to database", zap.Error(err))
			}
		}()
		handlers = append(handlers, db)
	}
	if cfg.Output.Markdown != "" {
		handlers = append(handlers, &markdown.Output{Path: cfg.Output.Markdown})
	}
	if cfg.Output.Open {
		handlers = append(handlers, &browser.Output{Logger: logger.Named("browser")})
	}

	sess, err := newSession(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("failed closing browser", zap.Error(err))
		}
	}()

	runner := &crawl.Runner{
		Config:   cfg,
		Session:  sess,
		Verifier: crawl.NewVerifier(&http.Client{}, cfg.Verify, logger.Named("verify")),
		Handlers: handlers,
		Logger:   logger,
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("all crawling done", zap.Int("places", len(res.Links)), zap.Duration("took", res.Finished.Sub(res.Started)))
	return nil
}
