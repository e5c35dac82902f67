package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/config"
	"github.com/michaelbrown/turtle/internal/storage"
	"github.com/michaelbrown/turtle/internal/storage/sqlite"
)

var (
	titleFlag    string
	imageFlag    string
	positionFlag int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var challengesCmd = &cobra.Command{
	Use:     "challenges",
	Aliases: []string{"challenge", "c"},
	Short:   "Manage drawing challenges",
}

var challengesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List challenges",
	RunE:  runChallengesList,
}

var challengesShowCmd = &cobra.Command{
	Use:   "show <challenge-id>",
	Short: "Show a challenge and its submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallengesShow,
}

var challengesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a challenge",
	RunE:  runChallengesCreate,
}

var challengesDeleteCmd = &cobra.Command{
	Use:   "delete <challenge-id>",
	Short: "Delete a challenge and its submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallengesDelete,
}

var challengesExportCmd = &cobra.Command{
	Use:   "export <challenge-id>",
	Short: "Export a challenge's submissions as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallengesExport,
}

var challengesSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Create challenges from a YAML seed file",
	Long: `Create every challenge in a YAML seed file whose title does not exist yet.

Seed format:
  challenges:
    - title: Square
      image_url: https://example.com/square.png`,
	Args: cobra.ExactArgs(1),
	RunE: runChallengesSeed,
}

func init() {
	rootCmd.AddCommand(challengesCmd)
	challengesCmd.AddCommand(challengesListCmd, challengesShowCmd, challengesCreateCmd,
		challengesDeleteCmd, challengesExportCmd, challengesSeedCmd)

	challengesCreateCmd.Flags().StringVar(&titleFlag, "title", "", "Challenge title")
	challengesCreateCmd.Flags().StringVar(&imageFlag, "image", "", "URL of the target image")
	challengesCreateCmd.Flags().IntVar(&positionFlag, "position", 0, "Sort position (default: last)")
	challengesCreateCmd.MarkFlagRequired("title")

	challengesExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	challengesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	challengesDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func openStore() (storage.Store, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runChallengesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	challenges, err := store.ListChallenges(context.Background())
	if err != nil {
		return err
	}

	if len(challenges) == 0 {
		fmt.Println("No challenges found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-5s %-40s %s\n", "ID", "POS", "TITLE", "UPDATED")
	fmt.Println(strings.Repeat("─", 70))

	for _, c := range challenges {
		fmt.Printf("%-10s %-5d %-40s %s\n", shortID(c.ID), c.Position, truncate(c.Title, 38), timeAgo(c.UpdatedAt))
	}

	return nil
}

func runChallengesShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	ch, err := store.GetChallenge(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Challenge: %s\n", ch.ID)
	fmt.Printf("Title:     %s\n", ch.Title)
	if ch.ImageURL != "" {
		fmt.Printf("Image:     %s\n", ch.ImageURL)
	}
	fmt.Printf("Position:  %d\n", ch.Position)
	fmt.Printf("Created:   %s\n", ch.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:   %s\n", ch.UpdatedAt.Format(time.RFC3339))

	subs, err := store.ListSubmissions(ctx, ch.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\nSubmissions: %d\n", len(subs))
	fmt.Println(strings.Repeat("─", 60))

	for _, s := range subs {
		fmt.Printf("\n\033[36m%s\033[0m \033[90m(%s)\033[0m\n", s.Username, timeAgo(s.UpdatedAt))
		fmt.Printf("  %s\n", truncate(strings.ReplaceAll(s.Code, "\n", " "), 200))
	}

	return nil
}

func runChallengesCreate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ch := &storage.Challenge{
		ID:       uuid.New().String(),
		Title:    strings.TrimSpace(titleFlag),
		ImageURL: imageFlag,
		Position: positionFlag,
	}
	if ch.Title == "" {
		return fmt.Errorf("title is required")
	}
	if err := store.CreateChallenge(context.Background(), ch); err != nil {
		return err
	}
	fmt.Printf("Created challenge %s - %q\n", shortID(ch.ID), ch.Title)
	return nil
}

func runChallengesDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	ch, err := store.GetChallenge(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete challenge %s - %q and all its submissions? [y/N] ", shortID(ch.ID), ch.Title)
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteChallenge(ctx, ch.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted challenge %s\n", shortID(ch.ID))
	return nil
}

func runChallengesExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	ch, err := store.GetChallenge(ctx, args[0])
	if err != nil {
		return err
	}

	subs, err := store.ListSubmissions(ctx, ch.ID)
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(ch, subs)
		if err != nil {
			return err
		}
		output = string(data)
	case "md":
		output = storage.ExportMarkdown(ch, subs)
	default:
		return fmt.Errorf("unknown format %q (want md or json)", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Print(output)
	return nil
}

func runChallengesSeed(cmd *cobra.Command, args []string) error {
	seed, err := storage.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := storage.ApplySeed(context.Background(), store, seed)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d of %d challenges\n", n, len(seed.Challenges))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
