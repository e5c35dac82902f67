package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/turtle/internal/apidoc"
	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/turtle"
)

// maxSide bounds the rendered image in pixels.
const maxSide = 1024

func main() {
	s := server.NewMCPServer("turtle-mcp", "0.1.0")

	s.AddTool(mcp.Tool{
		Name:        "turtle_run",
		Description: "Run a turtle drawing script in a sandbox and return the recorded actions as JSON.\n\n" + apiReference(),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Script body; it may use await",
				},
			},
			Required: []string{"code"},
		},
	}, handleRun)

	s.AddTool(mcp.Tool{
		Name:        "turtle_render",
		Description: "Run a turtle drawing script and return the drawing as a PNG image.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Script body; it may use await",
				},
				"width": map[string]any{
					"type":        "number",
					"description": "Canvas width in turtle units (default 200)",
				},
				"height": map[string]any{
					"type":        "number",
					"description": "Canvas height in turtle units (default 200)",
				},
				"scale": map[string]any{
					"type":        "number",
					"description": "Pixels per unit (default 1)",
				},
				"distance": map[string]any{
					"type":        "number",
					"description": "Stop after this much travel (optional)",
				},
				"turtle": map[string]any{
					"type":        "boolean",
					"description": "Draw the turtle (optional)",
				},
			},
			Required: []string{"code"},
		},
	}, handleRender)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

// apiReference lists the script functions for tool descriptions.
func apiReference() string {
	docs, err := apidoc.Load()
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available functions:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Signature(), strings.TrimSpace(apidoc.Markdown(d.Description)))
	}
	return b.String()
}

func runCode(ctx context.Context, code string) (turtle.Log, error) {
	policy := sandbox.DefaultPolicy()
	if err := policy.CheckSource(code); err != nil {
		return nil, err
	}
	exec := sandbox.New(code, sandbox.WithTimeout(policy.Timeout))
	defer exec.Dispose()
	return exec.Run(ctx)
}

func handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	code, _ := args["code"].(string)

	log, err := runCode(ctx, code)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	data, err := json.Marshal(log)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	text := fmt.Sprintf("%d actions, path length %g\n%s", len(log), log.PathLength(), data)

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}, nil
}

func numberArg(args map[string]any, name string, def float64) float64 {
	if v, ok := args[name].(float64); ok && v > 0 {
		return v
	}
	return def
}

func handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}
	code, _ := args["code"].(string)
	drawTurtle, _ := args["turtle"].(bool)

	cfg := render.Config{
		Width:      numberArg(args, "width", 200),
		Height:     numberArg(args, "height", 200),
		Scale:      numberArg(args, "scale", 1),
		DrawTurtle: drawTurtle,
	}
	w, h := cfg.PixelSize()
	if w > maxSide || h > maxSide {
		return errResult(fmt.Sprintf("error: image may be at most %d pixels per side", maxSide)), nil
	}

	budget := render.Unbounded
	if d, ok := args["distance"].(float64); ok {
		budget = d
	}

	log, err := runCode(ctx, code)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	raster := render.NewRaster(w, h)
	frame := render.Render(cfg, raster, log, budget)
	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf); err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	summary := fmt.Sprintf("%dx%d image, traveled %g, turtle at (%g, %g)",
		w, h, frame.Traveled, frame.Position.X, frame.Position.Y)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: summary},
			mcp.NewImageContent(base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png"),
		},
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
