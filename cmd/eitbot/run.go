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

	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hm-eit/eitbot/bot"
	"github.com/hm-eit/eitbot/calendar"
	"github.com/hm-eit/eitbot/config"
	"github.com/hm-eit/eitbot/discord"
	"github.com/hm-eit/eitbot/guild"
)

const shutdownTimeout = 10 * time.Second

func validate(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: guild %d, %d roles, %d channels, %d semesters\n",
		path, cfg.Server, len(cfg.Roles), len(cfg.Channels), len(cfg.Semesters))
	return nil
}

func run(parent context.Context, path string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}

	session, err := discord.NewSession(cfg.Discord)
	if err != nil {
		return err
	}

	// Set up a context that cancels on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, err := guild.Resolve(ctx, session, cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := calendar.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var options []bot.Option
	if cfg.Calendar.CredentialsFile == "" {
		logger.Warnf("No Google credentials configured, running without calendar reminders")
	} else {
		source, err := calendar.NewGoogleSource(ctx, cfg.Calendar.CredentialsFile)
		if err != nil {
			return err
		}

		calendarOptions := []calendar.Option{calendar.WithMetrics(metrics)}
		if cfg.StateFile != "" {
			store, err := calendar.OpenBoltStore(cfg.StateFile)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Errorf("Failed to close state file: %+v", err)
				}
			}()
			calendarOptions = append(calendarOptions, calendar.WithStore(store))
		}

		options = append(options, bot.WithCalendarSource(source, calendarOptions...))
	}

	b, err := bot.New(ctx, cfg, session, g, options...)
	if err != nil {
		return err
	}
	if err := b.Register(); err != nil {
		return err
	}

	adapter, err := discord.NewAdapter(cfg.Discord,
		discord.WithSession(session),
		discord.WithInputRouter(b.Registry()),
		discord.WithMemberJoinHandler(b.OnMemberJoin),
	)
	if err != nil {
		return err
	}

	// In-memory user context storage for conversational state management.
	storage := sarah.NewUserContextStorage(sarah.NewCacheConfig())
	sarah.RegisterBot(sarah.NewBot(adapter, sarah.BotWithStorage(storage)))

	// Start go-sarah's lifecycle management.
	if err := sarah.Run(ctx, sarah.NewConfig()); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	server := serveMetrics(cfg.MetricsListen, registry)

	if cfg.Calendar.Autostart && b.Calendar() != nil {
		if err := b.StartCalendar(); err != nil {
			logger.Errorf("Failed to start calendar: %+v", err)
		}
	}

	logger.Infof("Bot is running. Press Ctrl+C to stop.")

	// Block until shutdown signal.
	<-ctx.Done()

	logger.Infof("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if cal := b.Calendar(); cal != nil && cal.Running() {
		if err := b.StopCalendar(shutdownCtx); err != nil {
			logger.Errorf("Failed to stop calendar: %+v", err)
		}
	}
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to stop metrics server: %+v", err)
		}
	}
	b.Wait()

	return nil
}

// serveMetrics exposes the registry on listen. It returns nil when listen is empty.
func serveMetrics(listen string, registry *prometheus.Registry) *http.Server {
	if listen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Metrics server listening on %s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server error: %+v", err)
		}
	}()

	return server
}
