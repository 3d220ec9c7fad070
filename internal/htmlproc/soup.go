package htmlproc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selection wraps a parsed HTML node for querying and light editing.
type Selection struct {
	n *html.Node
}

// ParsePage parses a full HTML document.
func ParsePage(content string) (*Selection, error) {
	n, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("could not parse HTML page: %v", err)
	}
	return &Selection{n: n}, nil
}

// Find returns the first descendant element matching tag (empty for any) and
// CSS class (empty for any), or nil.
func (s *Selection) Find(tag, class string) *Selection {
	if s == nil {
		return nil
	}
	var found *html.Node
	walk(s.n, func(n *html.Node) {
		if found == nil && matches(n, tag, class) && n != s.n {
			found = n
		}
	})
	if found == nil {
		return nil
	}
	return &Selection{n: found}
}

// FindAll returns all descendant elements matching tag and class.
func (s *Selection) FindAll(tag, class string) []*Selection {
	if s == nil {
		return nil
	}
	var out []*Selection
	walk(s.n, func(n *html.Node) {
		if matches(n, tag, class) && n != s.n {
			out = append(out, &Selection{n: n})
		}
	})
	return out
}

// FirstElementChild returns the first child of element type, or nil.
func (s *Selection) FirstElementChild() *Selection {
	if s == nil {
		return nil
	}
	for c := s.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return &Selection{n: c}
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "".
func (s *Selection) Attr(name string) string {
	if s == nil {
		return ""
	}
	v, _ := attr(s.n, name)
	return v
}

// HasAttr reports whether the attribute is present.
func (s *Selection) HasAttr(name string) bool {
	if s == nil {
		return false
	}
	_, ok := attr(s.n, name)
	return ok
}

// SetAttr sets the named attribute.
func (s *Selection) SetAttr(name, value string) {
	if s == nil {
		return
	}
	setAttr(s.n, name, value)
}

// RemoveAttr drops the named attribute if present.
func (s *Selection) RemoveAttr(name string) {
	if s == nil {
		return
	}
	for i, a := range s.n.Attr {
		if a.Key == name {
			s.n.Attr = append(s.n.Attr[:i], s.n.Attr[i+1:]...)
			return
		}
	}
}

// Classes returns the CSS classes of the element.
func (s *Selection) Classes() []string {
	if s == nil {
		return nil
	}
	return strings.Fields(s.Attr("class"))
}

// Text returns the concatenated text content of the selection.
func (s *Selection) Text() string {
	if s == nil {
		return ""
	}
	var sb strings.Builder
	walk(s.n, func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
	})
	return sb.String()
}

// Remove detaches the selection from its document.
func (s *Selection) Remove() {
	if s == nil || s.n.Parent == nil {
		return
	}
	s.n.Parent.RemoveChild(s.n)
}

// OuterHTML renders the selection including its own tag.
func (s *Selection) OuterHTML() (string, error) {
	if s == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := html.Render(&sb, s.n); err != nil {
		return "", fmt.Errorf("could not render node: %v", err)
	}
	return sb.String(), nil
}

// InnerHTML renders the children of the selection.
func (s *Selection) InnerHTML() (string, error) {
	if s == nil {
		return "", nil
	}
	var sb strings.Builder
	for c := s.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("could not render node: %v", err)
		}
	}
	return sb.String(), nil
}

// Title returns the document title, or "".
func (s *Selection) Title() string {
	return strings.TrimSpace(s.Find("title", "").Text())
}

func matches(n *html.Node, tag, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if tag != "" && n.Data != tag {
		return false
	}
	if class == "" {
		return true
	}
	classAttr, _ := attr(n, "class")
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// DeferScripts marks every external script in the fragment as deferred, so
// inline content above them is laid out before they run.
func DeferScripts(content string) (string, error) {
	nodes, err := parseFragment(content)
	if err != nil {
		return "", fmt.Errorf("could not parse HTML fragment: %v", err)
	}

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, node := range nodes {
		container.AppendChild(node)
	}

	changed := false
	walk(container, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			return
		}
		if _, ok := attr(n, "src"); !ok {
			return
		}
		if _, ok := attr(n, "defer"); !ok {
			n.Attr = append(n.Attr, html.Attribute{Key: "defer"})
			changed = true
		}
	})

	if !changed {
		return content, nil
	}
	return renderChildren(container)
}
