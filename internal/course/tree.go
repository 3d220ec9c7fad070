package course

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Block is a single xblock as returned by the blocks API.
type Block struct {
	ID                     string          `json:"id"`
	BlockID                string          `json:"block_id"`
	Type                   string          `json:"type"`
	DisplayName            string          `json:"display_name"`
	StudentViewURL         string          `json:"student_view_url"`
	LMSWebURL              string          `json:"lms_web_url"`
	StudentViewData        json.RawMessage `json:"student_view_data"`
	StudentViewMultiDevice bool            `json:"student_view_multi_device"`
	Graded                 bool            `json:"graded"`
	Format                 string          `json:"format"`
	BlockCounts            map[string]int  `json:"block_counts"`
	Descendants            []string        `json:"descendants"`
}

// BlocksResponse is the payload of the blocks API.
type BlocksResponse struct {
	Root   string           `json:"root"`
	Blocks map[string]Block `json:"blocks"`
}

// Node is a block placed in the course tree, with its output location and its
// link back to the build root resolved.
type Node struct {
	Block

	// Path is the directory of the node's rendered output, relative to the build dir.
	Path string
	// FolderName is the last element of Path.
	FolderName string
	// RootURL is the relative prefix leading from the node's directory back to
	// the build root ("../../..." style).
	RootURL string
	// RandomID uniquely names per-node artifacts such as answer files.
	RandomID string

	Children []*Node
}

// ExtractedID returns the last segment of the opaque block usage ID, used as a
// stable anchor in rendered pages.
func (n *Node) ExtractedID() string {
	parts := strings.Split(n.ID, "@")
	return parts[len(parts)-1]
}

// BuildTree turns a blocks API response into a tree rooted at the course block.
// It returns the root node and the flat list of all nodes in post-order, the
// order content downloads happen in.
func BuildTree(resp BlocksResponse) (root *Node, all []*Node, err error) {
	if _, ok := resp.Blocks[resp.Root]; !ok {
		return nil, nil, fmt.Errorf("root block %q missing from blocks payload", resp.Root)
	}

	root, all, err = buildNode(resp, resp.Root, "course", "../")
	if err != nil {
		return nil, nil, err
	}
	return root, all, nil
}

func buildNode(resp BlocksResponse, id, parentPath, rootURL string) (*Node, []*Node, error) {
	block, ok := resp.Blocks[id]
	if !ok {
		return nil, nil, fmt.Errorf("block %q referenced but missing from blocks payload", id)
	}

	folder := slug.Make(block.DisplayName)
	node := &Node{
		Block:      block,
		Path:       path.Join(parentPath, folder),
		FolderName: folder,
		RootURL:    rootURL + "../",
		RandomID:   uuid.NewString(),
	}

	var all []*Node
	for _, childID := range block.Descendants {
		child, childAll, err := buildNode(resp, childID, node.Path, node.RootURL)
		if err != nil {
			return nil, nil, err
		}
		node.Children = append(node.Children, child)
		all = append(all, childAll...)
	}

	// Post-order: a node is listed after all its descendants.
	all = append(all, node)
	return node, all, nil
}
