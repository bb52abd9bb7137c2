// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"matrun-cli/internal/issue"
	"matrun-cli/internal/report"
	"matrun-cli/internal/statusserver"

	"github.com/spf13/cobra"
)

var (
	serveAddr string

	// serveCmd serves a saved run report as a read-only scoreboard
	serveCmd = &cobra.Command{
		Use:   "serve <report.json>",
		Short: "Serve a saved run report over SSH",
		Long: `Load a report.json written by a previous run and serve its scoreboard
to SSH clients, exactly as the --status-server flag does while a run is
active. Useful for sharing a finished run without shipping the files.

Clients authenticate with the access token as their SSH password:

  ssh -p <port> watch@<host>

The server runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to bind (default: serve.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	r, err := report.LoadJSON(args[0])
	if err != nil {
		return runFailure(err)
	}

	board := statusserver.NewBoard(r.RunID)
	board.SeedReport(r)

	cfg := loadedConfig()
	scfg := statusserver.Config{Addr: cfg.Serve.Addr, Token: cfg.Serve.Token}
	if serveAddr != "" {
		scfg.Addr = serveAddr
	}
	if path, kerr := cfg.HostKeyPath(); kerr == nil {
		scfg.HostKeyPath = path
	}

	srv, err := statusserver.New(board, scfg, newRunLogger())
	if err == nil {
		err = srv.Start(cmd.Context())
	}
	if err != nil {
		if iss := issue.Get(issue.StatusServerStartFailedId); iss != nil {
			if rendered, rerr := iss.Render("dark"); rerr == nil {
				fmt.Fprint(os.Stderr, rendered)
			}
		}
		fmt.Fprintf(os.Stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
		return &ExitError{Code: report.ExitRunFailed, Err: err}
	}

	fmt.Printf("%s serving run %s on %s\n", SuccessStyle.Render("✓"), r.RunID, CmdStyle.Render(srv.Address()))
	fmt.Printf("  %s %s\n", SubtitleStyle.Render("token:"), srv.Token())

	// The server has no context of its own; translate cancellation
	// (Ctrl-C via fang's signal notify) into a graceful stop.
	go func() {
		<-cmd.Context().Done()
		_ = srv.Stop()
	}()
	return srv.Wait()
}
