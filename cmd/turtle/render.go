package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/turtle"
)

var (
	renderOutput   string
	renderWidth    float64
	renderHeight   float64
	renderScale    float64
	renderDistance float64
	renderTurtle   bool
)

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Run a script and render its drawing to PNG",
	Long: `Run a drawing script and write the result as a PNG image.

--distance stops the drawing after that many units of travel, which shows an
intermediate animation frame.

Examples:
  turtle render square.js -o square.png
  turtle render spiral.js --scale 2 --turtle --distance 150 -o frame.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "turtle.png", "Output file")
	renderCmd.Flags().Float64Var(&renderWidth, "width", 0, "Canvas width in turtle units (overrides config)")
	renderCmd.Flags().Float64Var(&renderHeight, "height", 0, "Canvas height in turtle units (overrides config)")
	renderCmd.Flags().Float64Var(&renderScale, "scale", 0, "Pixels per turtle unit (overrides config)")
	renderCmd.Flags().Float64Var(&renderDistance, "distance", -1, "Travel budget; negative draws everything")
	renderCmd.Flags().BoolVar(&renderTurtle, "turtle", false, "Draw the turtle")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
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

	rc := cfg.Canvas.Render(renderTurtle)
	if renderWidth > 0 {
		rc.Width = renderWidth
	}
	if renderHeight > 0 {
		rc.Height = renderHeight
	}
	if renderScale > 0 {
		rc.Scale = renderScale
	}
	budget := render.Unbounded
	if renderDistance >= 0 {
		budget = renderDistance
	}

	frame, err := savePNG(renderOutput, rc, log, budget)
	if err != nil {
		return err
	}

	w, h := rc.PixelSize()
	logger.Debug("rendered", "file", renderOutput, "width", w, "height", h, "traveled", frame.Traveled)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d, traveled %g)\n", renderOutput, w, h, frame.Traveled)
	return nil
}

// savePNG renders log up to budget into a PNG file at path.
func savePNG(path string, rc render.Config, log turtle.Log, budget float64) (render.Frame, error) {
	w, h := rc.PixelSize()
	raster := render.NewRaster(w, h)
	frame := render.Render(rc, raster, log, budget)

	f, err := os.Create(path)
	if err != nil {
		return frame, fmt.Errorf("creating output: %w", err)
	}
	if err := raster.EncodePNG(f); err != nil {
		f.Close()
		return frame, fmt.Errorf("encoding png: %w", err)
	}
	return frame, f.Close()
}
