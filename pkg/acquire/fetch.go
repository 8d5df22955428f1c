package acquire

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/logger"
)

func (a *Acquirer) fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := a.guard.CheckURL(rawURL)
	if err != nil {
		return "", err
	}

	logger.InfoCF(component, "Extracting content from URL", map[string]any{"url": target})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", failure.API(component, err, "Content extraction error")
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) && fe.Kind == failure.KindSecurity {
			return "", fe
		}
		return "", failure.API(component, err, "Content extraction error")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", failure.API(component, nil, "Content extraction error: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", failure.API(component, nil, "URL does not return HTML content")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodyBytes+1))
	if err != nil {
		return "", failure.API(component, err, "Content extraction error")
	}
	if int64(len(body)) > a.maxBodyBytes {
		return "", failure.API(component, nil, "Content extraction error: response exceeds %d bytes", a.maxBodyBytes)
	}

	text, err := a.extractParagraphs(body, contentType)
	if err != nil {
		return "", err
	}
	logger.DebugCF(component, "Extracted page text", map[string]any{
		"url":        target,
		"status":     resp.StatusCode,
		"body_bytes": len(body),
		"text_chars": len(text),
	})
	return text, nil
}

// extractParagraphs joins the trimmed text of the first maxParagraphs <p>
// elements, ignoring script and style content.
func (a *Acquirer) extractParagraphs(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", failure.API(component, err, "Content extraction error")
	}
	doc, err := html.Parse(r)
	if err != nil {
		return "", failure.API(component, err, "Content extraction error")
	}

	var paragraphs []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(paragraphs) >= a.maxParagraphs {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.P:
				paragraphs = append(paragraphs, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(paragraphs) == 0 {
		return "", failure.API(component, nil, "No paragraph content found on the page")
	}

	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		var sb strings.Builder
		collectText(p, &sb)
		if s := strings.TrimSpace(sb.String()); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", failure.API(component, nil, "No readable text content found")
	}
	return strings.Join(parts, " "), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
