package xblock

import (
	"context"
	"path/filepath"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/templates"
)

// Course is the root extractor. Rendering it renders the whole content tree.
type Course struct {
	base
	children []Extractor
}

// Chapter renders a section page listing its sequentials.
type Chapter struct {
	base
	children []Extractor
}

// Sequential renders a subsection page listing its verticals.
type Sequential struct {
	base
	children []Extractor
}

func (c *Course) addChild(e Extractor)     { c.children = append(c.children, e) }
func (c *Chapter) addChild(e Extractor)    { c.children = append(c.children, e) }
func (s *Sequential) addChild(e Extractor) { s.children = append(s.children, e) }

// Download is a no-op: course structure comes from the blocks API, not from
// the course page itself.
func (c *Course) Download(ctx context.Context) error { return nil }

// Download is a no-op, chapters only aggregate their sequentials.
func (c *Chapter) Download(ctx context.Context) error { return nil }

// Download is a no-op, sequentials only aggregate their verticals.
func (s *Sequential) Download(ctx context.Context) error { return nil }

// Render writes the course index and cascades through chapters, sequentials
// and verticals. Verticals are chained with previous/next navigation in course
// order, across chapter boundaries.
func (c *Course) Render() (err error) {
	defer decorate.OnError(&err, "could not render course %s", c.node.DisplayName)

	var chapters []templates.NavItem
	for _, child := range c.children {
		node := child.Node()
		chapters = append(chapters, templates.NavItem{
			Title: node.DisplayName,
			Path:  node.Path,
			Icon:  navIcon(node.BlockCounts),
		})
	}

	data := templates.CourseData{
		Page:     c.page(c.node.DisplayName),
		Chapters: chapters,
	}
	if err := templates.RenderToFile(filepath.Join(c.outputPath(), "index.html"), "course.html", data); err != nil {
		return err
	}

	for _, child := range c.children {
		if chapter, ok := child.(*Chapter); ok {
			if err := chapter.Render(); err != nil {
				return err
			}
		}
	}

	verticals := c.Verticals()
	for i, v := range verticals {
		var prev, next string
		if i > 0 {
			prev = verticals[i-1].Node().Path
		}
		if i < len(verticals)-1 {
			next = verticals[i+1].Node().Path
		}
		if err := v.Render(prev, next); err != nil {
			return err
		}
	}
	return nil
}

// Verticals returns the course's verticals in course order, with their chapter
// and sequential titles resolved.
func (c *Course) Verticals() []*Vertical {
	var out []*Vertical
	for _, ch := range c.children {
		chapter, ok := ch.(*Chapter)
		if !ok {
			continue
		}
		for _, sq := range chapter.children {
			sequential, ok := sq.(*Sequential)
			if !ok {
				continue
			}
			for _, vt := range sequential.children {
				vertical, ok := vt.(*Vertical)
				if !ok {
					continue
				}
				vertical.chapterTitle = chapter.node.DisplayName
				vertical.sequentialTitle = sequential.node.DisplayName
				out = append(out, vertical)
			}
		}
	}
	return out
}

// Render writes the chapter page and cascades to its sequentials.
func (c *Chapter) Render() (err error) {
	defer decorate.OnError(&err, "could not render chapter %s", c.node.DisplayName)

	var sequentials []templates.NavItem
	for _, child := range c.children {
		node := child.Node()
		sequentials = append(sequentials, templates.NavItem{
			Title: node.DisplayName,
			Path:  node.Path,
			Icon:  navIcon(node.BlockCounts),
		})
	}

	data := templates.ChapterData{
		Page:        c.page(c.node.DisplayName),
		Sequentials: sequentials,
	}
	if err := templates.RenderToFile(filepath.Join(c.outputPath(), "index.html"), "chapter.html", data); err != nil {
		return err
	}

	for _, child := range c.children {
		if sequential, ok := child.(*Sequential); ok {
			if err := sequential.Render(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Render writes the sequential page listing its verticals.
func (s *Sequential) Render() (err error) {
	defer decorate.OnError(&err, "could not render sequential %s", s.node.DisplayName)

	var verticals []templates.NavItem
	for _, child := range s.children {
		node := child.Node()
		verticals = append(verticals, templates.NavItem{
			Title: node.DisplayName,
			Path:  node.Path,
			Icon:  navIcon(node.BlockCounts),
		})
	}

	data := templates.SequentialData{
		Page:      s.page(s.node.DisplayName),
		Verticals: verticals,
	}
	return templates.RenderToFile(filepath.Join(s.outputPath(), "index.html"), "sequential.html", data)
}
