package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/embed"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Print embedding vectors as JSON",
	Long: `Embed each argument (or each line of --file) with a registry embedder.

Examples:
  llmcore embed --model "NOMIC EMBED TEXT" "first text" "second text"
  llmcore embed --model "TEXT EMBEDDING 3 SMALL" --file corpus.txt`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().String("model", "NOMIC EMBED TEXT", "registry embedder name")
	embedCmd.Flags().String("file", "", `read texts from a file, one per line ("-" for stdin)`)
	embedCmd.Flags().Int("chunk-size", embed.DefaultChunkSize, "texts per request")
}

type embedding struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	texts := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fromFile, err := readPrompts(path)
		if err != nil {
			return err
		}
		texts = append(texts, fromFile...)
	}
	if len(texts) == 0 {
		return errors.New("no texts given, pass them as arguments or with --file")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("model")
	info, err := a.registry.LookupEmbedder(name)
	if err != nil {
		return err
	}
	chunk, _ := cmd.Flags().GetInt("chunk-size")
	e, err := embed.New(info, a.client(), embed.WithChunkSize(chunk))
	if err != nil {
		return err
	}

	vectors, err := e.Embed(cmd.Context(), texts)
	if err != nil {
		return err
	}
	out := make([]embedding, len(texts))
	for i := range texts {
		out[i] = embedding{Text: texts[i], Vector: vectors[i]}
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}
