package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MimeLyc/contextual-doc-translator/internal/config"
	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/httpapi"
	"github.com/MimeLyc/contextual-doc-translator/internal/service"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	cfgFile string
	envFile string
}

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	v := viper.New()

	root := &cobra.Command{
		Use:   "ctxdoc",
		Short: "Contextual document translator",
		Long: `ctxdoc translates a directory of chapters with an LLM or DeepL,
keeping a revision history of every edit and highlighting what changed
against the first translation.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().String("source-dir", "", "chapter directory")
	root.PersistentFlags().String("data-dir", "", "data directory")
	root.PersistentFlags().String("provider", "", "translation provider")
	root.PersistentFlags().String("target-language", "", "target language tag")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	bindFlags(v, root.PersistentFlags().Lookup, map[string]string{
		"source_dir":      "source-dir",
		"data_dir":        "data-dir",
		"provider":        "provider",
		"target_language": "target-language",
		"log_level":       "log-level",
	})

	root.AddCommand(newServeCommand(f, v), newBatchCommand(f, v))
	return root
}

func newServeCommand(f *flags, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editing session behind the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig(f, v)
			if err != nil {
				return err
			}
			defer closeLog()
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("ui-dir", "", "static web UI directory")
	cmd.Flags().Bool("watch", false, "reload the open chapter and glossaries when their files change")
	bindFlags(v, cmd.Flags().Lookup, map[string]string{
		"http_addr":    "addr",
		"ui_dir":       "ui-dir",
		"watch_source": "watch",
	})
	return cmd
}

func newBatchCommand(f *flags, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [chapter...]",
		Short: "Translate chapters without a translation, or the given ones, and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(f, v)
			if err != nil {
				return err
			}
			defer closeLog()
			return runBatch(cmd.Context(), cfg, args)
		},
	}
}

func bindFlags(v *viper.Viper, lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, lookup(name)); err != nil {
			log.Warn("Failed to bind flag --%s: %v", name, err)
		}
	}
}

// loadConfig reads the dotenv file, the config file and the bound flags, then
// installs the configured logger. The returned func closes a log file.
func loadConfig(f *flags, v *viper.Viper) (*config.Config, func(), error) {
	config.LoadDotEnv(f.envFile)
	if f.cfgFile != "" {
		if err := config.ReadFile(v, f.cfgFile); err != nil {
			errs.Report(err)
			return nil, nil, err
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		errs.Report(err)
		return nil, nil, err
	}

	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		log.InitLogger(level)
		return cfg, func() {}, nil
	}
	fl, err := log.NewFileLogger(cfg.Log.File, level)
	if err != nil {
		return nil, nil, errs.Wrap(err, errs.ErrConfig, "open log file").WithContext("path", cfg.Log.File)
	}
	log.SetLogger(fl.Logger)
	return cfg, func() { _ = fl.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := httpapi.NewHub()
	app, err := service.NewApp(ctx, cfg, service.WithEvents(hub))
	if err != nil {
		errs.Report(err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Error("Failed to close: %v", err)
		}
	}()

	srv := httpapi.NewServer(app, httpapi.WithHub(hub), httpapi.WithUI(cfg.HTTP.UIDir, cfg.HTTP.UIDir != ""))

	var workers []func(context.Context)
	if cfg.Schedule.WatchSource {
		w, err := service.NewWatcher(app.Session, app.Library, app.Glossaries)
		if err != nil {
			errs.Report(err)
			return err
		}
		workers = append(workers, func(ctx context.Context) {
			if err := w.Run(ctx); err != nil {
				log.Error("Watcher stopped: %v", err)
			}
		})
	}

	return runWithComponents(ctx, cfg, app.Scheduler, app.Cron, srv, workers...)
}

// runWithComponents schedules the cron jobs, serves HTTP and runs workers
// until ctx is done or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, c cronEngine, srv httpServer, workers ...func(context.Context)) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	for _, w := range workers {
		wg.Go(func() { w(ctx) })
	}

	serveErr := make(chan error, 1)
	wg.Go(func() {
		log.Info("Listening on %s", cfg.HTTP.Addr)
		serveErr <- srv.ListenAndServe(cfg.HTTP.Addr)
	})

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	cancel()
	wg.Wait()
	return err
}

func runBatch(ctx context.Context, cfg *config.Config, refs []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := service.NewApp(ctx, cfg)
	if err != nil {
		errs.Report(err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Error("Failed to close: %v", err)
		}
	}()

	start := time.Now()
	items, err := app.Session.OnBatchRequested(ctx, refs)
	if err != nil {
		errs.Report(err)
		return err
	}
	if len(items) == 0 {
		fmt.Println("Nothing to translate")
		return nil
	}

	sched := app.Session.Scheduler()
	if err := waitIdle(ctx, sched.State, 200*time.Millisecond); err != nil {
		return err
	}

	chapters, err := app.Library.Chapters(ctx)
	if err != nil {
		return err
	}
	sizes := make(map[string]int64, len(chapters))
	for _, ch := range chapters {
		sizes[ch.Ref] = ch.Size
	}
	s := summarize(sched.List(), sizes, time.Since(start))
	fmt.Println(s)
	if s.failed > 0 {
		return fmt.Errorf("%d chapters failed", s.failed)
	}
	return nil
}
