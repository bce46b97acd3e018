package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/exprd/internal/calc"
	"github.com/danmuck/exprd/internal/observability"
	"github.com/danmuck/exprd/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "exprd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "exprd",
		Short:         "exprd - framed arithmetic evaluation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newGenconfigCmd(), newCheckCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept framed expressions and answer each one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := server.DefaultServiceConfig()
			if strings.TrimSpace(configPath) != "" {
				loaded, err := loadServiceConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = strings.TrimSpace(addr)
			}
			logger := observability.InitLogger("exprd")
			logger.Info().Str("config", configPath).Str("addr", cfg.ListenAddr).Msg("exprd starting")
			return server.NewServiceWithConfig(cfg).Run()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to TOML config")
	cmd.Flags().StringVar(&addr, "addr", server.DefaultServiceConfig().ListenAddr, "listen address (overrides config)")
	return cmd
}

func newGenconfigCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Write a TOML config template with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				return encodeTemplate(cmd.OutOrStdout())
			}
			if err := writeTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote exprd config template to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output path (stdout when empty)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <expr>...",
		Short: "Evaluate expressions locally and print response lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.OutOrStdout(), args)
		},
	}
}

func check(w io.Writer, exprs []string) error {
	for _, e := range exprs {
		line, _ := calc.Respond([]byte(e))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
