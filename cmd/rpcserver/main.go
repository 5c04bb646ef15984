// Command rpcserver is the privileged RPC server: the only process
// that mutates the registry and the data root's public/private pages.
// It holds no authority between requests — every request reloads state
// through pkg/registry and persists within a transaction — so a crash
// and restart resumes cleanly at the next request.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/lock"
	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/metrics"
	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/registry"
	"github.com/fbksd/fbksd-server/pkg/rpc"
	"github.com/fbksd/fbksd-server/pkg/rpcservice"
	"github.com/fbksd/fbksd-server/pkg/store"
)

var (
	listenAddr  string
	lockPath    string
	metricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rpcserver: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rpcserver",
	Short: "Serve the fbksd-server privileged RPC API",
	RunE:  runServer,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "addr", fmt.Sprintf("0.0.0.0:%d", rpc.DefaultPort), "listen address")
	rootCmd.Flags().StringVar(&lockPath, "lock-file", "/var/lock/fbksd.lock", "exclusive data-root lock file")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "loopback address to serve /metrics and /health on (disabled if empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "emit structured JSON logs")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func runServer(cmd *cobra.Command, args []string) error {
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

	reg := registry.New(st, sys.MaxNumWorkspaces)
	fl := lock.New(lockPath)
	svc := rpcservice.New(root, sys, reg, fl)

	if metricsAddr != "" {
		collector := metrics.NewCollector(reg, queue.New(st))
		collector.Start()
		defer collector.Stop()
		metrics.RegisterComponent("store", true, "")
		go serveMetrics(metricsAddr)
	}

	srv := rpc.NewServer(svc)
	log.WithComponent("rpcserver").Info().Str("addr", listenAddr).Msg("starting rpc server")
	return srv.ListenAndServe(listenAddr)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("rpcserver").Warn().Err(err).Msg("metrics server stopped")
	}
}
