// Command jobsched boots a Scheduler from a YAML bootstrap file, for
// inspection and ad-hoc control from the shell: list the registry,
// force-start a job, or run the dispatch loop until interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/jobsched/internal/config"
	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/logger"
	"github.com/loykin/jobsched/internal/notifier"
	"github.com/loykin/jobsched/internal/scheduler"
	"github.com/loykin/jobsched/internal/server"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// buildLogger constructs the scheduler's own operational logger from the
// bootstrap file's optional log section; a nil section logs to stdout.
func buildLogger(cfg *config.LogConfig) *slog.Logger {
	var lc logger.Config
	if cfg != nil {
		lc = logger.Config{
			File:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	return logger.New(lc)
}

// builtinActions are the actions a bare jobsched invocation knows how to
// run by name; embedding applications supply their own via the library
// API instead of this CLI.
func builtinActions() map[string]definition.Action {
	return map[string]definition.Action{
		"noop": func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			return nil
		},
		"echo": func(ex *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			fmt.Printf("job %s (%s) firing at %s\n", ex.DefinitionName(), ex.DefinitionID(), ex.StartTime())
			return nil
		},
	}
}

func loadScheduler(configPath string) (*scheduler.Scheduler, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	defs, err := cfg.Build(builtinActions())
	if err != nil {
		return nil, nil, err
	}

	sinks := make([]notifier.Notifier, 0, 4)
	if cfg.Notifiers.Log {
		sinks = append(sinks, notifier.NewLog(nil))
	}
	if cfg.Notifiers.Metrics {
		sinks = append(sinks, notifier.NewMetrics())
	}
	if cfg.Notifiers.SQLDSN != "" {
		sink, err := notifier.NewSQLFromDSN(cfg.Notifiers.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.Notifiers.ClickHouse != nil {
		sink, err := notifier.NewClickHouse(notifier.ClickHouseOptions{
			Addr:     cfg.Notifiers.ClickHouse.Addr,
			Database: cfg.Notifiers.ClickHouse.Database,
			Username: cfg.Notifiers.ClickHouse.Username,
			Password: cfg.Notifiers.ClickHouse.Password,
			Table:    cfg.Notifiers.ClickHouse.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}

	sched := scheduler.New(scheduler.WithNotifier(notifier.NewMulti(sinks...)))
	sched.Add(defs...)
	return sched, cfg, nil
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot a scheduler from a config file and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, cfg, err := loadScheduler(configPath)
			if err != nil {
				return err
			}

			log := buildLogger(cfg.Log)

			poll := time.Second
			if cfg.PollFrequency > 0 {
				poll = cfg.PollFrequency
			}
			sched.Start(poll)
			defer sched.Stop()
			log.Info("scheduler started", "poll_frequency", poll, "jobs", len(sched.Get()))

			if cfg.Server != nil && cfg.Server.Listen != "" {
				if _, err := server.NewServer(cfg.Server.Listen, "", sched); err != nil {
					return err
				}
				log.Info("admin server listening", "addr", cfg.Server.Listen)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			log.Info("shutdown signal received")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "jobsched.yaml", "path to YAML config file")
	return cmd
}

func newListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the registered jobs from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := loadScheduler(configPath)
			if err != nil {
				return err
			}
			defs := sched.Get()
			out := make([]map[string]any, 0, len(defs))
			for _, d := range defs {
				entry := map[string]any{"id": d.ID(), "name": d.Name(), "overlap": d.ExecutionsCanOverlap()}
				if s := d.Schedule(); s != nil {
					entry["cron"] = s.CronExpr()
					entry["next_run"] = s.NextRunTime()
				}
				out = append(out, entry)
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "jobsched.yaml", "path to YAML config file")
	return cmd
}

func newForceStartCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "force-start [job-id]",
		Short: "Flag a job for immediate dispatch on the next tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, cfg, err := loadScheduler(configPath)
			if err != nil {
				return err
			}

			poll := time.Second
			if cfg.PollFrequency > 0 {
				poll = cfg.PollFrequency
			}
			sched.Start(poll)
			sched.ForceStart(args[0])
			time.Sleep(poll * 2)
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "jobsched.yaml", "path to YAML config file")
	return cmd
}

func main() {
	root := &cobra.Command{Use: "jobsched", Short: "In-process job scheduler control CLI"}
	root.AddCommand(newRunCmd(), newListCmd(), newForceStartCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
