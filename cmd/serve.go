package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/config"
	"github.com/dayuer/onebot-bridge/internal/logging"
	"github.com/dayuer/onebot-bridge/internal/network"
	"github.com/dayuer/onebot-bridge/internal/pipeline"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge (platform listener + OneBot transports)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Log)
	boot := time.Now()

	api, err := loadPlatform(cfg.Platform)
	if err != nil {
		return err
	}
	self := api.Self()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := makeRegistry(ctx, cfg.Identity, log)
	hc := &action.Context{API: api, Registry: registry, Self: self, Version: Version}
	mgr := network.NewManager(network.ManagerConfig{
		QueueSize:     cfg.Network.QueueSize,
		ActionContext: hc,
		Logger:        log,
	})
	hc.Status = mgr.Status

	common := network.Common{
		SelfID:          self.Uin,
		Token:           cfg.Token,
		HeartIntervalMs: cfg.HeartIntervalMs,
		Status:          mgr.Status,
		Logger:          log,
	}
	adapters := makeAdapters(cfg, common)
	if len(adapters) == 0 {
		log.Warn().Msg("No transports enabled")
	}
	for _, a := range adapters {
		mgr.RegisterAdapter(a)
	}
	mgr.RegisterAllActions(action.Default())

	p := pipeline.New(pipeline.Options{
		API:               api,
		Registry:          registry,
		Emitter:           mgr,
		Self:              self,
		BootTime:          boot,
		ReportSelfMessage: cfg.ReportSelfMessage,
		Debug:             cfg.Debug,
		MessageFormat:     cfg.MessagePostFormat,
		Logger:            log,
	})
	api.Attach(p)

	mgr.OpenAll(ctx)
	log.Info().Int64("self_id", self.Uin).Str("version", Version).Msg("onebot-bridge started")

	if cfg.Platform.Feed != "" {
		feed, err := openFeed(cfg.Platform.Feed)
		if err != nil {
			return err
		}
		defer feed.Close()
		go func() {
			if err := platform.RunFeed(ctx, feed, p, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Platform feed stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	p.Wait()
	mgr.CloseAll(shutdownCtx)
	return nil
}
