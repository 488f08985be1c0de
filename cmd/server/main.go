package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/vetflow/buildinfo"
	"github.com/nomis52/vetflow/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:   "vetflow-server",
		Short: "Veterinary practice workflow server",
		Long: `vetflow-server hosts user sessions and runs practice workflows such as
patient check-in. Clients start workflows and answer their dialogs over the
HTTP API.`,
		Example: `  vetflow-server --config /etc/vetflow/config.yaml
  vetflow-server -c config.yaml --listen 127.0.0.1:9090`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, listenAddr, noWatch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address, overrides listener.addr")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload when the config file changes")
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			props := buildinfo.Get()
			fmt.Printf("vetflow-server\nBuilt: %s\nCommit: %s\n", props.BuildTime, props.GitCommit)
		},
	})
	return cmd
}

func run(configPath, listenAddr string, noWatch bool) error {
	var opts []server.Option
	if listenAddr != "" {
		opts = append(opts, server.WithListenAddr(listenAddr))
	}
	if noWatch {
		opts = append(opts, server.WithoutConfigWatch())
	}

	srv, err := server.New(configPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	props := buildinfo.Get()
	srv.Logger().Info("vetflow server started",
		"build_time", props.BuildTime,
		"git_commit", props.GitCommit,
		"config_path", configPath,
	)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		srv.Logger().Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	return srv.Run(ctx)
}
