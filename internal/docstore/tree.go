package docstore

import (
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// BuildTree arranges summaries into the hierarchy implied by their dotted
// names. The returned root is a synthetic node whose children are the
// top-level segments; a node carries a Name only when a document exists
// at that exact position. Input order is preserved, so callers passing
// name-sorted summaries get a name-sorted tree.
func BuildTree(summaries []models.Summary) *models.TreeNode {
	root := &models.TreeNode{}
	for _, s := range summaries {
		node := root
		segments := strings.Split(s.Name, ".")
		for _, seg := range segments {
			node = childNode(node, seg)
		}
		node.Name = s.Name
	}
	return root
}

func childNode(parent *models.TreeNode, segment string) *models.TreeNode {
	for _, c := range parent.Children {
		if c.Segment == segment {
			return c
		}
	}
	c := &models.TreeNode{Segment: segment}
	parent.Children = append(parent.Children, c)
	return c
}
