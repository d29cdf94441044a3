package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/config"
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/ollama"
	"github.com/kalambet/llmcore/internal/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model registry and local Ollama models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry models with prices per million tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		registry, err := config.LoadRegistry(cfg.Models.Registry)
		if err != nil {
			return err
		}

		tw := newTable(os.Stdout)
		fmt.Fprintln(tw, "NAME\tPROVIDER\tTAG\tINPUT\tOUTPUT\tWINDOW\tREASONING")
		for _, m := range registry.Models() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				m.Name, m.Provider, m.ModelTag, price(m.InputPrice), price(m.OutputPrice), window(m.TokenWindow), m.Reasoning)
		}
		if embedders := registry.Embedders(); len(embedders) > 0 {
			fmt.Fprintln(tw, "\t\t\t\t\t\t")
			fmt.Fprintln(tw, "EMBEDDER\tPROVIDER\tTAG\tINPUT\t\tDIMENSIONS\t")
			for _, m := range embedders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\t%d\t\n", m.Name, m.Provider, m.ModelTag, price(m.InputPrice), m.Dimensions)
			}
		}
		return tw.Flush()
	},
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull [tag...]",
	Short: "Pull Ollama models (default: every Ollama model in the registry)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		tags := args
		if len(tags) == 0 {
			registry, err := config.LoadRegistry(cfg.Models.Registry)
			if err != nil {
				return err
			}
			tags = ollamaTags(registry)
		}
		if len(tags) == 0 {
			printWarning("no Ollama models in the registry")
			return nil
		}

		printStep("Checking %d models at %s", len(tags), cfg.Ollama.BaseURL)
		if err := ollama.EnsureModels(cmd.Context(), ollama.New(cfg.Ollama.BaseURL), tags, os.Stderr); err != nil {
			return err
		}
		printSuccess("All models ready")
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsPullCmd)
}

type modelLister interface {
	Models() []llm.ModelInfo
	Embedders() []llm.ModelInfo
}

// ollamaTags returns the distinct model tags served by the Ollama provider.
func ollamaTags(r modelLister) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, m := range append(r.Models(), r.Embedders()...) {
		if !strings.EqualFold(m.Provider, provider.NameOllama) || seen[m.ModelTag] {
			continue
		}
		seen[m.ModelTag] = true
		tags = append(tags, m.ModelTag)
	}
	return tags
}

func price(p float64) string {
	if p == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.2f", p)
}

func window(n int) string {
	switch {
	case n == 0:
		return "-"
	case n >= 1_000_000 && n%1_000_000 == 0:
		return fmt.Sprintf("%dM", n/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%dK", n/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
