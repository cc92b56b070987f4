package docstore

import (
	"testing"

	"github.com/starford/ansuz/internal/models"
)

func TestBuildTree(t *testing.T) {
	summaries := []models.Summary{
		{Name: "auth"},
		{Name: "auth.jwt"},
		{Name: "auth.jwt.refresh"},
		{Name: "billing"},
	}
	root := BuildTree(summaries)

	if len(root.Children) != 2 {
		t.Fatalf("top-level children = %d, want 2", len(root.Children))
	}
	auth := root.Children[0]
	if auth.Segment != "auth" || auth.Name != "auth" {
		t.Errorf("auth node = %+v", auth)
	}
	if len(auth.Children) != 1 || auth.Children[0].Segment != "jwt" {
		t.Fatalf("auth children = %+v", auth.Children)
	}
	jwt := auth.Children[0]
	if jwt.Name != "auth.jwt" {
		t.Errorf("jwt.Name = %q", jwt.Name)
	}
	if len(jwt.Children) != 1 || jwt.Children[0].Name != "auth.jwt.refresh" {
		t.Errorf("refresh node = %+v", jwt.Children)
	}
	if root.Children[1].Name != "billing" {
		t.Errorf("billing node = %+v", root.Children[1])
	}
}

func TestBuildTreeIntermediateWithoutDoc(t *testing.T) {
	// auth.jwt exists but its parent segment auth does not.
	root := BuildTree([]models.Summary{{Name: "auth.jwt"}})
	auth := root.Children[0]
	if auth.Name != "" {
		t.Errorf("intermediate node carries name %q", auth.Name)
	}
	if auth.Children[0].Name != "auth.jwt" {
		t.Errorf("leaf = %+v", auth.Children[0])
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	root := BuildTree(nil)
	if len(root.Children) != 0 {
		t.Errorf("children = %+v", root.Children)
	}
}
