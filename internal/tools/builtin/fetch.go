package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/tools"
)

const maxFetchBytes = 4 << 20

// FetchURL downloads a web page and returns its readable text. A nil client
// uses one with a 20 second timeout.
func FetchURL(client *http.Client, maxChars int) tools.Tool {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return tools.Tool{
		Definition: llm.NewToolDefinition("fetch_url", "Fetch a web page over HTTP(S) and return its title and visible text.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "Absolute http or https URL."},
			},
			"required": []any{"url"},
		}),
		Func: func(ctx context.Context, args map[string]any) (any, error) {
			u, err := stringArg(args, "url")
			if err != nil {
				return nil, err
			}
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				return nil, fmt.Errorf("unsupported url %q: only http and https are allowed", u)
			}
			title, text, err := fetchText(ctx, client, u)
			if err != nil {
				return nil, err
			}
			text, truncated := truncate(text, maxChars)
			return map[string]any{
				"url":       u,
				"title":     title,
				"text":      text,
				"truncated": truncated,
			}, nil
		},
	}
}

func fetchText(ctx context.Context, client *http.Client, u string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "llmcore/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		b, err := io.ReadAll(body)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", u, err)
		}
		return "", strings.TrimSpace(string(b)), nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", u, err)
	}
	title, text := htmlText(doc)
	return title, text, nil
}

// htmlText returns the document title and its visible text, one block per
// line.
func htmlText(doc *html.Node) (string, string) {
	var title string
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			case atom.Title:
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) && b.Len() > 0 {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return title, strings.Join(kept, "\n")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Pre, atom.Blockquote, atom.Table:
		return true
	}
	return false
}
