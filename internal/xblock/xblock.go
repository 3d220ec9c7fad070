// Package xblock turns course tree nodes into offline content: each supported
// xblock type has an extractor that downloads what the block needs and renders
// its offline counterpart.
package xblock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/openzim/openedx2zim/internal/course"
	"github.com/openzim/openedx2zim/internal/edx"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/media"
	"github.com/openzim/openedx2zim/internal/templates"
)

// ErrUnsupportedBlock is returned when a course contains an xblock type no
// extractor handles.
var ErrUnsupportedBlock = errors.New("unsupported xblock type")

// Deps holds what extractors need to download and render content.
type Deps struct {
	Conn       *edx.Connection
	Processor  *htmlproc.Processor
	Downloader *media.Downloader

	// BuildDir is the root of the archive being assembled.
	BuildDir string
	// InstanceAssetsDir is the shared directory for page-level assets,
	// BuildDir/instance_assets.
	InstanceAssetsDir string

	VideoFormat string
	// IgnoreMissing substitutes a placeholder for unsupported xblock types
	// instead of failing the scrape.
	IgnoreMissing bool
	// ForumPath is the root-relative path of the archived forum, empty when the
	// forum is not part of the archive.
	ForumPath string

	Tabs []templates.Tab
	RTL  bool

	Log *slog.Logger
}

// Extractor downloads the content of one xblock.
type Extractor interface {
	Node() *course.Node
	Download(ctx context.Context) error
}

// FragmentRenderer is implemented by leaf extractors whose output is embedded
// into their parent vertical page.
type FragmentRenderer interface {
	Extractor
	Fragment() (string, error)
}

type factory func(deps *Deps, node *course.Node) Extractor

var registry = map[string]factory{
	"course":     func(d *Deps, n *course.Node) Extractor { return &Course{base: base{d, n}} },
	"chapter":    func(d *Deps, n *course.Node) Extractor { return &Chapter{base: base{d, n}} },
	"sequential": func(d *Deps, n *course.Node) Extractor { return &Sequential{base: base{d, n}} },
	"vertical":   func(d *Deps, n *course.Node) Extractor { return &Vertical{base: base{d, n}} },

	"video":            func(d *Deps, n *course.Node) Extractor { return &Video{base: base{d, n}} },
	"libcast_xblock":   func(d *Deps, n *course.Node) Extractor { return &Libcast{base: base{d, n}} },
	"html":             func(d *Deps, n *course.Node) Extractor { return &HTML{base: base{d, n}} },
	"qualtricssurvey":  func(d *Deps, n *course.Node) Extractor { return &HTML{base: base{d, n}} },
	"problem":          func(d *Deps, n *course.Node) Extractor { return &Problem{base: base{d, n}} },
	"discussion":       func(d *Deps, n *course.Node) Extractor { return &Discussion{base: base{d, n}} },
	"freetextresponse": func(d *Deps, n *course.Node) Extractor { return &FreeText{base: base{d, n}} },
	"drag-and-drop-v2": func(d *Deps, n *course.Node) Extractor { return &DragAndDropV2{base: base{d, n}} },
	"lti":              func(d *Deps, n *course.Node) Extractor { return &Unavailable{base: base{d, n}, kind: "external tool"} },
	"grademebutton":    func(d *Deps, n *course.Node) Extractor { return &Unavailable{base: base{d, n}, kind: "grading"} },
	"unavailable":      func(d *Deps, n *course.Node) Extractor { return &Unavailable{base: base{d, n}} },
}

// New returns the extractor for a single node, without descending into its
// children. Unsupported types yield ErrUnsupportedBlock, or a placeholder
// extractor when deps.IgnoreMissing is set.
func New(deps *Deps, node *course.Node) (Extractor, error) {
	f, ok := registry[node.Type]
	if !ok {
		if !deps.IgnoreMissing {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedBlock, node.Type, node.ID)
		}
		deps.Log.Warn("Skipping unsupported xblock", "type", node.Type, "id", node.ID)
		return &Unavailable{base: base{deps, node}, kind: node.Type}, nil
	}
	return f(deps, node), nil
}

// NewTree maps a course tree onto an extractor tree rooted at the course
// block. It also returns the extractors in post-order, the order downloads
// happen in.
func NewTree(deps *Deps, root *course.Node) (courseExtractor *Course, all []Extractor, err error) {
	extractor, all, err := buildExtractor(deps, root)
	if err != nil {
		return nil, nil, err
	}

	c, ok := extractor.(*Course)
	if !ok {
		return nil, nil, fmt.Errorf("root block has type %q, expected a course", root.Type)
	}
	return c, all, nil
}

func buildExtractor(deps *Deps, node *course.Node) (Extractor, []Extractor, error) {
	extractor, err := New(deps, node)
	if err != nil {
		return nil, nil, err
	}

	var all []Extractor
	if container, ok := extractor.(interface{ addChild(Extractor) }); ok {
		for _, childNode := range node.Children {
			child, childAll, err := buildExtractor(deps, childNode)
			if err != nil {
				return nil, nil, err
			}
			container.addChild(child)
			all = append(all, childAll...)
		}
	}

	all = append(all, extractor)
	return extractor, all, nil
}

// base carries what every extractor shares.
type base struct {
	deps *Deps
	node *course.Node
}

// Node returns the course tree node this extractor works on.
func (b *base) Node() *course.Node {
	return b.node
}

// outputPath is the directory the extractor writes into.
func (b *base) outputPath() string {
	return filepath.Join(b.deps.BuildDir, filepath.FromSlash(b.node.Path))
}

// embedRoot is the relative prefix from the page embedding this block's
// fragment (its parent vertical) back to the build root.
func (b *base) embedRoot() string {
	return strings.TrimSuffix(b.node.RootURL, "../")
}

func (b *base) page(title string) templates.Page {
	return templates.Page{
		Title:   title,
		RootURL: b.node.RootURL,
		Tabs:    b.deps.Tabs,
		RTL:     b.deps.RTL,
	}
}

// navIcon picks the list icon for a container from what it holds.
func navIcon(counts map[string]int) string {
	switch {
	case counts["video"] > 0:
		return "fa-video-camera"
	case counts["problem"] > 0:
		return "fa-question-circle"
	case counts["discussion"] > 0:
		return "fa-comment"
	default:
		return "fa-book"
	}
}
