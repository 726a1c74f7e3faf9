package scheduling

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const containerClass = "calendly-inline-widget"

var ErrNoContainer = errors.New("widget container not found")

// WidgetFragment returns an empty inline container for widgetURL.
func WidgetFragment(widgetURL string) string {
	return fmt.Sprintf(`<div class="%s" data-url="%s" style="min-width:320px;height:700px;"></div>`,
		containerClass, html.EscapeString(widgetURL))
}

// EmbedInline injects the widget iframe into the inline container of
// fragment. A container that already has children is left untouched and
// the boolean result is false.
func EmbedInline(fragment, widgetURL string) (string, bool, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", false, fmt.Errorf("parse widget fragment: %w", err)
	}
	var container *html.Node
	for _, n := range nodes {
		if container = findContainer(n); container != nil {
			break
		}
	}
	if container == nil {
		return "", false, ErrNoContainer
	}

	injected := false
	if !hasChildren(container) {
		for c := container.FirstChild; c != nil; {
			next := c.NextSibling
			container.RemoveChild(c)
			c = next
		}
		src := widgetURL
		if src == "" {
			src = attr(container, "data-url")
		}
		container.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "iframe",
			DataAtom: atom.Iframe,
			Attr: []html.Attribute{
				{Key: "src", Val: src},
				{Key: "width", Val: "100%"},
				{Key: "height", Val: "100%"},
				{Key: "frameborder", Val: "0"},
				{Key: "title", Val: "Select a Date & Time"},
			},
		})
		injected = true
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", false, fmt.Errorf("render widget fragment: %w", err)
		}
	}
	return buf.String(), injected, nil
}

func findContainer(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, containerClass) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findContainer(c); found != nil {
			return found
		}
	}
	return nil
}

// hasChildren ignores whitespace-only text and comments.
func hasChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return true
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
