// Command mailer drains the outbound mail queue over SMTP, retrying
// indefinitely on send failure. It takes no subcommands and runs until
// killed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/mailer"
	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/store"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mailer: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Drain the fbksd-server outbound mail queue",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "emit structured JSON logs")
	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	})
}

func run(cmd *cobra.Command, args []string) error {
	root, err := dataroot.Load()
	if err != nil {
		return err
	}
	sys, err := config.Load(root.ConfigPath())
	if err != nil {
		return err
	}

	st, err := store.NewPostgresStore(root.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	q := queue.New(st)
	m := mailer.New(q, sys)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithComponent("mailer").Info().Msg("mailer started")
	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
