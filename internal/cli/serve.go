package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buemura/rook/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Rook web server",
	Long:  "Launches the Rook web interface and REST API for starting and following runs from a browser.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":3000", "listen address (host:port)")
	serveCmd.Flags().Bool("helper", false, "start the exploit-module RPC helper for each run")
	serveCmd.Flags().Bool("advice", false, "enable the advice endpoint by default")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(appConfig, appLog)
	if err != nil {
		return err
	}
	defer a.Close()

	s := web.NewServer(appConfig.Server.Addr, a.orch, a.store, a.defaults, appLog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	fmt.Fprintf(cmd.OutOrStdout(), "Rook web server listening on %s\n", appConfig.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
