package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/config"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/turtle"
)

var jsonFlag bool

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a script and print its action log",
	Long: `Run a drawing script in the sandbox and print the actions it recorded.
Use "-" to read the script from stdin.

Examples:
  turtle run square.js
  echo 'forward(50)' | turtle run - --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the log as JSON")
	rootCmd.AddCommand(runCmd)
}

func readScript(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

// runScript executes source once under the configured policy.
func runScript(ctx context.Context, cfg *config.Config, logger *slog.Logger, source string) (turtle.Log, error) {
	policy := cfg.Sandbox.Policy()
	if err := policy.CheckSource(source); err != nil {
		return nil, err
	}
	factory, err := policy.WorkerFactory()
	if err != nil {
		return nil, err
	}

	exec := sandbox.New(source,
		sandbox.WithTimeout(policy.Timeout),
		sandbox.WithWorkerFactory(factory),
		sandbox.WithLogger(logger),
	)
	defer exec.Dispose()
	return exec.Run(ctx)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := readScript(args[0])
	if err != nil {
		return err
	}

	log, err := runScript(cmd.Context(), cfg, logger, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(log)
	}
	for _, a := range log {
		fmt.Fprintln(out, a)
	}
	fmt.Fprintf(out, "\n%d actions, path length %g\n", len(log), log.PathLength())
	return nil
}
