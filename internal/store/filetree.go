package store

import (
	"context"
	"sort"
	"strings"
)

// FileTreeNode is one entry in a snapshot's file tree — a directory or
// a file. Grounded in original_source's engine.py:build_file_tree,
// restored per SPEC_FULL.md's supplemented-features section.
type FileTreeNode struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	IsDir    bool            `json:"is_dir"`
	FileID   string          `json:"file_id,omitempty"`
	Language string          `json:"language,omitempty"`
	Children []*FileTreeNode `json:"children,omitempty"`
}

// BuildFileTree walks a snapshot's files into a folder-before-files,
// case-insensitively sorted tree rooted at "".
func (s *Store) BuildFileTree(ctx context.Context, snapshotID string) (*FileTreeNode, error) {
	files, err := s.ListFiles(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	root := &FileTreeNode{Name: "", Path: "", IsDir: true}
	dirs := map[string]*FileTreeNode{"": root}

	for _, f := range files {
		parts := strings.Split(f.Path, "/")
		parentPath := ""
		parent := root

		for i := 0; i < len(parts)-1; i++ {
			dirPath := parentPath
			if dirPath != "" {
				dirPath += "/"
			}

			dirPath += parts[i]

			node, ok := dirs[dirPath]
			if !ok {
				node = &FileTreeNode{Name: parts[i], Path: dirPath, IsDir: true}
				dirs[dirPath] = node
				parent.Children = append(parent.Children, node)
			}

			parent = node
			parentPath = dirPath
		}

		leaf := &FileTreeNode{
			Name:     parts[len(parts)-1],
			Path:     f.Path,
			IsDir:    false,
			FileID:   f.ID,
			Language: f.Language,
		}
		parent.Children = append(parent.Children, leaf)
	}

	sortTree(root)

	return root, nil
}

// sortTree orders children folders-before-files, then case-insensitively
// by name, recursively.
func sortTree(n *FileTreeNode) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}

		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	for _, c := range n.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}
