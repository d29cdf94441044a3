package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/convo"
	"github.com/kalambet/llmcore/internal/engine"
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with a model",
	Long: `Send a prompt to a model, or start an interactive session.

Examples:
  llmcore chat "What is the capital of France?"
  llmcore chat --model "CLAUDE SONNET 4" --tools all "What time is it?"
  llmcore chat --schema person.json "Invent a person"
  llmcore chat --interactive --save ./convos
  llmcore chat --resume ./convos/convo-<id>.json "And then?"`,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.String("model", "", "registry model name (default engine.default_model)")
	f.String("system", "", "system prompt")
	f.BoolP("interactive", "i", false, "read prompts from stdin until /exit")
	f.String("save", "", "save the conversation to this file or directory")
	f.String("resume", "", "resume a conversation file or stored conversation id")
	f.String("schema", "", "JSON file with an output schema: {name, description, properties: [{name, type, description}]}")
	f.String("tools", "", `comma-separated builtin tools, or "all"`)
	f.String("image-model", "", "image model enabling the generate_image tool")
	f.Bool("thinking", false, "request reasoning from the model")
	f.Float64("temperature", 0, "sampling temperature (default engine.temperature)")
}

func runChat(cmd *cobra.Command, args []string) error {
	interactive, _ := cmd.Flags().GetBool("interactive")
	prompt := strings.Join(args, " ")
	if prompt == "" && !interactive {
		return errors.New("a prompt is required unless --interactive is set")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conv, err := resumeConversation(a, cmd)
	if err != nil {
		return err
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" && conv != nil {
		model = conv.ModelName
	}
	opts, err := engineFlags(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.engine(model, opts...)
	if err != nil {
		return err
	}

	var chat *convo.Chat
	if conv != nil {
		chat = convo.Resume(e, conv, convo.WithRecorder(a.recorder()))
	} else {
		system, _ := cmd.Flags().GetString("system")
		chat = convo.New(e, system, convo.WithRecorder(a.recorder()))
	}

	if prompt != "" {
		if err := sendAndPrint(ctx, chat, prompt, os.Stdout); err != nil {
			return err
		}
	}
	if interactive {
		if err := chatLoop(ctx, chat, os.Stdin, os.Stdout); err != nil {
			return err
		}
	}

	return saveConversation(a, cmd, chat.Conversation())
}

// engineFlags turns the model-shaping flags into engine options.
func engineFlags(a *app, cmd *cobra.Command) ([]engine.Option, error) {
	var opts []engine.Option

	if path, _ := cmd.Flags().GetString("schema"); path != "" {
		schema, err := loadSchema(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithSchema(schema))
	}
	if names, _ := cmd.Flags().GetString("tools"); names != "" {
		imageModel, _ := cmd.Flags().GetString("image-model")
		lib, err := a.tools(splitList(names), imageModel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithTools(lib))
	}
	if cmd.Flags().Changed("thinking") {
		on, _ := cmd.Flags().GetBool("thinking")
		opts = append(opts, engine.WithThinking(on))
	}
	if cmd.Flags().Changed("temperature") {
		t, _ := cmd.Flags().GetFloat64("temperature")
		opts = append(opts, engine.WithTemperature(t))
	}
	return opts, nil
}

func loadSchema(path string) (llm.SimpleSchema, error) {
	var s llm.SimpleSchema
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading schema: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	if s.Name == "" || len(s.Properties) == 0 {
		return s, fmt.Errorf("schema %s needs a name and at least one property", path)
	}
	return s, nil
}

// resumeConversation loads --resume as a file, falling back to a stored
// conversation id. It returns nil without --resume.
func resumeConversation(a *app, cmd *cobra.Command) (*convo.Conversation, error) {
	ref, _ := cmd.Flags().GetString("resume")
	if ref == "" {
		return nil, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return convo.Load(ref)
	}
	conv, err := convo.Fetch(a.store, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no conversation file or stored conversation %q", ref)
	}
	return conv, err
}

// saveConversation stores the conversation in the database and, with
// --save, as a JSON file.
func saveConversation(a *app, cmd *cobra.Command, conv *convo.Conversation) error {
	if len(conv.Messages) == 0 {
		return nil
	}
	if err := conv.Persist(a.store); err != nil {
		return fmt.Errorf("storing conversation: %w", err)
	}
	if path, _ := cmd.Flags().GetString("save"); path != "" {
		written, err := conv.Save(path)
		if err != nil {
			return err
		}
		printSuccess("Conversation saved to %s", written)
	}
	return nil
}

func sendAndPrint(ctx context.Context, chat *convo.Chat, prompt string, w io.Writer) error {
	reply, err := chat.Send(ctx, prompt)
	if err != nil {
		return err
	}
	if r := reply.ReasoningContent; r != nil && *r != "" && debug {
		fmt.Fprintln(w, colorize(colorCyan, strings.TrimSpace(*r)))
	}
	fmt.Fprintln(w, reply.Text())
	return nil
}

// chatLoop reads one prompt per line. A failed turn is reported and the
// session continues.
func chatLoop(ctx context.Context, chat *convo.Chat, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, colorize(colorBold, "> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := sendAndPrint(ctx, chat, line, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printError("%v", err)
		}
	}
}
