package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/turtle"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Build a drawing one line at a time",
	Long: `Start an interactive session. Each line is appended to the current
script and the whole script is run again; lines that fail are discarded.

Examples:
  turtle repl
  turtle repl --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// session is the script under construction.
type session struct {
	lines []string
	log   turtle.Log
}

func (s *session) script(extra string) string {
	return strings.Join(append(append([]string{}, s.lines...), extra), "\n")
}

// accept records line as part of the script with the log it produced and
// returns the actions line added.
func (s *session) accept(line string, log turtle.Log) turtle.Log {
	added := log
	if len(log) >= len(s.log) {
		added = log[len(s.log):]
	}
	s.lines = append(s.lines, line)
	s.log = log
	return added
}

func (s *session) reset() {
	s.lines = nil
	s.log = nil
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Turtle - interactive drawing\n")
	fmt.Printf("Canvas: %gx%g | Timeout: %s\n", cfg.Canvas.Width, cfg.Canvas.Height, cfg.Sandbox.Timeout)
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mturtle>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "turtle_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C stops waiting on the current run, not the whole app.
	var reqCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if reqCancel != nil {
				reqCancel()
			}
		}
	}()

	var sess session
	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleReplCommand(input, &sess, cfg.Canvas.Render(true)); quit {
				return nil
			}
			continue
		}

		reqCtx, cancel := context.WithCancel(context.Background())
		reqCancel = cancel
		log, err := runScript(reqCtx, cfg, logger, sess.script(input))
		interrupted := reqCtx.Err() != nil
		cancel()
		reqCancel = nil

		if err != nil {
			if interrupted {
				fmt.Println("(interrupted)")
				continue
			}
			fmt.Printf("\033[31merror: %s\033[0m\n", err)
			continue
		}

		for _, a := range sess.accept(input, log) {
			fmt.Printf("  \033[90m%s\033[0m\n", a)
		}
	}
}

func handleReplCommand(input string, sess *session, rc render.Config) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/reset":
		sess.reset()
		fmt.Println("Script cleared.")
	case "/script":
		fmt.Println(strings.Join(sess.lines, "\n"))
	case "/log":
		data, _ := json.MarshalIndent(sess.log, "", "  ")
		fmt.Println(string(data))
	case "/render":
		path := "turtle.png"
		if len(fields) > 1 {
			path = fields[1]
		}
		if _, err := savePNG(path, rc, sess.log, render.Unbounded); err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n", err)
		} else {
			fmt.Printf("Wrote %s\n", path)
		}
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help           - Show this help")
		fmt.Println("  /reset          - Clear the script")
		fmt.Println("  /script         - Show the script so far")
		fmt.Println("  /log            - Show the action log (JSON)")
		fmt.Println("  /render [file]  - Write the drawing to a PNG")
		fmt.Println("  /quit           - Exit")
	default:
		fmt.Printf("Unknown command: %s (try /help)\n", input)
	}
	fmt.Println()
	return false
}
