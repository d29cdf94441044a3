package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/convo"
	"github.com/kalambet/llmcore/internal/llm"
)

// conversationSummary is the subset of a conversation the list view shows.
type conversationSummary struct {
	ID        string        `json:"id"`
	ModelName string        `json:"model_name"`
	Title     string        `json:"title"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []llm.Message `json:"messages"`
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convos"},
	Short:   "Manage conversations stored by the running server",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/conversations?limit=%d", limit))
		if err != nil {
			return err
		}
		var convs []conversationSummary
		if err := decodeJSON(resp, &convs); err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		tw := newTable(os.Stdout)
		fmt.Fprintln(tw, "ID\tMODEL\tTITLE\tMESSAGES\tUPDATED")
		for _, c := range convs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", c.ID, c.ModelName, c.Title, len(c.Messages), c.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}
		var conv convo.Conversation
		if err := decodeJSON(resp, &conv); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(conv)
		}
		fmt.Println(colorize(colorBold, conv.Title) + " (" + conv.ModelName + ")")
		for _, m := range conv.Messages {
			fmt.Println(transcriptLine(m))
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

var conversationsSendCmd = &cobra.Command{
	Use:   "send <id> <prompt>",
	Short: "Continue a stored conversation on the server",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolNames, _ := cmd.Flags().GetString("tools")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		body := map[string]any{"prompt": strings.Join(args[1:], " ")}
		if toolNames != "" {
			body["tools"] = splitList(toolNames)
		}
		resp, err := client.post(cmd.Context(), "/v1/conversations/"+args[0]+"/messages", body)
		if err != nil {
			return err
		}
		var result struct {
			Message llm.Message `json:"message"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result.Message.Text())
		return nil
	},
}

func transcriptLine(m llm.Message) string {
	label := colorize(colorCyan, m.Role+":")
	text := m.Text()
	if m.HasToolCalls() {
		names := make([]string, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			names[i] = tc.Function.Name
		}
		text = strings.TrimSpace(text + " [calls " + strings.Join(names, ", ") + "]")
	}
	return label + " " + text
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations")
	conversationsShowCmd.Flags().Bool("json", false, "print the raw conversation JSON")
	conversationsSendCmd.Flags().String("tools", "", "comma-separated server tools")
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsDeleteCmd, conversationsSendCmd)
}
