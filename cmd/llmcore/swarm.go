package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/engine"
)

var swarmCmd = &cobra.Command{
	Use:   "swarm [prompt...]",
	Short: "Send many single-turn prompts concurrently",
	Long: `Send each prompt as its own request sharing one system prompt.

Examples:
  llmcore swarm --system "Translate to French" "Hello" "Good night"
  llmcore swarm --file prompts.txt --size 8 --schema sentiment.json`,
	RunE: runSwarm,
}

func init() {
	f := swarmCmd.Flags()
	f.String("model", "", "registry model name (default engine.default_model)")
	f.String("system", "", "system prompt shared by every request")
	f.Int("size", 0, "maximum requests in flight (default engine.swarm_size)")
	f.String("schema", "", "JSON file with an output schema: {name, description, properties: [{name, type, description}]}")
	f.String("file", "", `read prompts from a file, one per line ("-" for stdin)`)
	f.Float64("temperature", 0, "sampling temperature (default engine.temperature)")
	f.Bool("json", false, "print results as a JSON array")
}

type swarmOutput struct {
	Prompt string `json:"prompt"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runSwarm(cmd *cobra.Command, args []string) error {
	prompts := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fromFile, err := readPrompts(path)
		if err != nil {
			return err
		}
		prompts = append(prompts, fromFile...)
	}
	if len(prompts) == 0 {
		return errors.New("no prompts given, pass them as arguments or with --file")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := []engine.Option{engine.WithRecorder(a.recorder())}
	if path, _ := cmd.Flags().GetString("schema"); path != "" {
		schema, err := loadSchema(path)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithSchema(schema))
	}
	if cmd.Flags().Changed("temperature") {
		t, _ := cmd.Flags().GetFloat64("temperature")
		opts = append(opts, engine.WithTemperature(t))
	}

	model, _ := cmd.Flags().GetString("model")
	e, err := a.engine(model, opts...)
	if err != nil {
		return err
	}

	size, _ := cmd.Flags().GetInt("size")
	if size <= 0 {
		size = a.cfg.Engine.SwarmSize
	}
	system, _ := cmd.Flags().GetString("system")

	printStep("Sending %d prompts to %s (%d at a time)", len(prompts), e.Model().Name, size)
	results := e.Swarm(ctx, system, prompts, size)

	out := make([]swarmOutput, len(results))
	failed := 0
	for i, r := range results {
		out[i].Prompt = prompts[i]
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
			continue
		}
		if m, ok := r.Payload.FirstMessage(); ok {
			out[i].Text = m.Text()
		}
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if err := writeSwarm(os.Stdout, out, asJSON); err != nil {
		return err
	}
	if failed > 0 {
		printWarning("%d of %d prompts failed", failed, len(prompts))
	}
	return nil
}

func writeSwarm(w io.Writer, out []swarmOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for i, o := range out {
		fmt.Fprintln(w, colorize(colorBold, fmt.Sprintf("[%d] %s", i+1, o.Prompt)))
		if o.Error != "" {
			fmt.Fprintln(w, colorize(colorRed, "error: "+o.Error))
		} else {
			fmt.Fprintln(w, o.Text)
		}
	}
	return nil
}

// readPrompts returns the non-blank lines of path, or of stdin for "-".
func readPrompts(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading prompts: %w", err)
		}
		defer f.Close()
		r = f
	}
	return scanPrompts(r)
}

func scanPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts, scanner.Err()
}
