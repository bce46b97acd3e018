package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/exprd/internal/client"
	"github.com/danmuck/exprd/internal/logging"
	"github.com/danmuck/exprd/internal/protocol/session"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type options struct {
	addr       string
	tls        bool
	caFile     string
	certFile   string
	keyFile    string
	serverName string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "exprctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "exprctl",
		Short:         "exprctl - send expressions from stdin to exprd",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.ConfigureRuntime("exprctl")
			c, err := client.Dial(cmd.Context(), opts.addr, opts.sessionConfig())
			if err != nil {
				return err
			}
			defer c.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s\n", c.RemoteAddr())
			fmt.Fprintln(out, "Enter math expressions (Ctrl+D to quit)")
			prompt := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			return repl(cmd.InOrStdin(), out, cmd.ErrOrStderr(), c, prompt)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:9000", "server address")
	cmd.Flags().BoolVar(&opts.tls, "tls", false, "connect with TLS")
	cmd.Flags().StringVar(&opts.caFile, "ca", "", "CA bundle used to verify the server")
	cmd.Flags().StringVar(&opts.certFile, "cert", "", "client certificate for mutual TLS")
	cmd.Flags().StringVar(&opts.keyFile, "key", "", "client key for mutual TLS")
	cmd.Flags().StringVar(&opts.serverName, "server-name", "", "TLS server name override")
	cmd.SetContext(context.Background())
	return cmd
}

func (o options) sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if !o.tls {
		return cfg
	}
	cfg.TLS = session.TLSConfig{
		Enabled:    true,
		Mutual:     strings.TrimSpace(o.certFile) != "",
		CAFile:     strings.TrimSpace(o.caFile),
		CertFile:   strings.TrimSpace(o.certFile),
		KeyFile:    strings.TrimSpace(o.keyFile),
		ServerName: strings.TrimSpace(o.serverName),
	}
	return cfg
}

// sender is the slice of client.Client the REPL needs.
type sender interface {
	Send(expression string) ([]byte, error)
}

// repl sends each non-empty input line and prints the response. Response
// lines always end in a newline. A failed exchange ends the session the same
// way EOF does.
func repl(in io.Reader, out, errOut io.Writer, s sender, prompt bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			break
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		resp, err := s.Send(line)
		if err != nil {
			fmt.Fprintln(errOut, "Server disconnected or protocol error")
			break
		}
		text := string(resp)
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if _, err := io.WriteString(out, text); err != nil {
			return err
		}
	}
	fmt.Fprint(out, "\nClosing connection\n")
	return nil
}
