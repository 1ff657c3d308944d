package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phishing-detector/api"
	"phishing-detector/config"
	"phishing-detector/detector"
	"phishing-detector/features"
	"phishing-detector/logging"
)

var (
	version = "dev"
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:               "phishing-detector",
	Short:             "Phishing URL detection service",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("model", "model/model.json", "path to the model artifact")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	l, err := logging.New(c.Logging.Level, c.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cfg, logger = c, l
	return nil
}

func newService() (*detector.Service, error) {
	extractor := features.New(cfg.Features.Extractor(), logger)
	store := detector.NewStore(cfg.Model.Path, extractor.FeatureNames(), logger)
	return detector.NewService(store, extractor, detector.ServiceOptions{
		ExtractionWorkers: cfg.Workers.Extraction,
		InferenceWorkers:  cfg.Workers.Inference,
		DefaultTimeout:    cfg.Extraction.Timeout,
	}, logger)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			if err := svc.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			defer svc.Shutdown()

			if cfg.Logging.Format == "json" {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := api.NewHandler(svc, cfg.Extraction.MaxTimeout, version, logger)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           api.NewRouter(handler, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", srv.Addr), zap.String("model", cfg.Model.Path))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to run API server: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to stop API server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int("port", 8080, "port to listen on")
	cmd.Flags().Bool("render-js", false, "render pages in headless Chrome")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		timeout      time.Duration
		withFeatures bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyze a single URL and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := features.ValidateURL(args[0]); err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.Extraction.Timeout
			}

			svc, err := newService()
			if err != nil {
				return err
			}
			if err := svc.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			defer svc.Shutdown()

			a, err := svc.ExtractAndPredict(cmd.Context(), args[0], detector.Options{
				Timeout:         timeout,
				IncludeFeatures: withFeatures,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", detector.KindOf(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "extraction timeout (default extraction.timeout)")
	cmd.Flags().BoolVar(&withFeatures, "features", false, "include raw features and their analysis")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
