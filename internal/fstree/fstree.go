// Package fstree holds the replicated file tree and the pure operations that
// transform it. Every participant applies the same operations to its own
// replica; the package itself knows nothing about the network.
package fstree

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	TypeFile      = "file"
	TypeDirectory = "directory"
)

// Item is a node in the replicated tree. Files carry Content and never have
// Children; directories carry Children and the IsOpen UI flag.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Content  string  `json:"content,omitempty"`
	Children []*Item `json:"children,omitempty"`
	IsOpen   bool    `json:"isOpen,omitempty"`
}

// NewRoot returns the room root. Exactly one node has no parent; it is never
// deleted or renamed.
func NewRoot() *Item {
	return &Item{
		ID:     uuid.NewString(),
		Name:   "root",
		Type:   TypeDirectory,
		IsOpen: true,
	}
}

// FindItem finds a node by id (recursive).
func FindItem(root *Item, id string) *Item {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindItem(child, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent returns the direct parent of the node with the given id, or nil
// for the root and for unknown ids.
func FindParent(root *Item, id string) *Item {
	if root == nil {
		return nil
	}
	for _, child := range root.Children {
		if child.ID == id {
			return root
		}
		if found := FindParent(child, id); found != nil {
			return found
		}
	}
	return nil
}

// IsNameTaken reports whether a sibling of excludeID under parent already
// bears name.
func IsNameTaken(parent *Item, name, excludeID string) bool {
	for _, child := range parent.Children {
		if child.ID != excludeID && child.Name == name {
			return true
		}
	}
	return false
}

// CreateFile appends a fresh file under the parent directory and marks it
// open. Duplicate sibling names are allowed on creation; only renames are
// checked. Returns the new node, or nil when the parent is missing or a file.
func CreateFile(root *Item, parentID, name string) *Item {
	return createChild(root, parentID, name, TypeFile)
}

// CreateDirectory appends a fresh directory under the parent directory.
func CreateDirectory(root *Item, parentID, name string) *Item {
	return createChild(root, parentID, name, TypeDirectory)
}

func createChild(root *Item, parentID, name, itemType string) *Item {
	parent := FindItem(root, parentID)
	if parent == nil || parent.Type != TypeDirectory {
		return nil
	}
	item := &Item{ID: uuid.NewString(), Name: name, Type: itemType}
	parent.Children = append(parent.Children, item)
	parent.IsOpen = true
	return item
}

// Attach inserts an already-built node (from a remote file_created or
// directory_created event) under the parent, preserving the sender's id.
func Attach(root *Item, parentID string, item *Item) bool {
	parent := FindItem(root, parentID)
	if parent == nil || parent.Type != TypeDirectory || item == nil {
		return false
	}
	parent.Children = append(parent.Children, item)
	parent.IsOpen = true
	return true
}

// UpdateContent replaces a file's content. Last write wins; no diffing. A
// missing id is a silent no-op (concurrent deletes are expected).
func UpdateContent(root *Item, id, content string) bool {
	item := FindItem(root, id)
	if item == nil {
		return false
	}
	item.Content = content
	return true
}

// Rename changes a node's name. It fails (tree untouched) when a sibling
// already bears the target name, when the id is unknown, or for the root.
func Rename(root *Item, id, newName string) bool {
	parent := FindParent(root, id)
	if parent == nil {
		return false
	}
	if IsNameTaken(parent, newName, id) {
		return false
	}
	FindItem(parent, id).Name = newName
	return true
}

// Delete removes the node and its entire subtree. It returns the ids of every
// removed file node so callers can close open tabs; the root itself is never
// deleted.
func Delete(root *Item, id string) []string {
	parent := FindParent(root, id)
	if parent == nil {
		return nil
	}
	for i, child := range parent.Children {
		if child.ID == id {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return collectFileIDs(child, nil)
		}
	}
	return nil
}

func collectFileIDs(item *Item, acc []string) []string {
	if item.Type == TypeFile {
		return append(acc, item.ID)
	}
	for _, child := range item.Children {
		acc = collectFileIDs(child, acc)
	}
	return acc
}

// ToggleOpen flips a directory's expanded flag. Local-only UI state, never
// broadcast.
func ToggleOpen(root *Item, id string) {
	if item := FindItem(root, id); item != nil && item.Type == TypeDirectory {
		item.IsOpen = !item.IsOpen
	}
}

// CollapseAll closes every directory except the root.
func CollapseAll(root *Item) {
	if root == nil {
		return
	}
	root.IsOpen = true
	for _, child := range root.Children {
		collapse(child)
	}
}

func collapse(item *Item) {
	if item.Type == TypeDirectory {
		item.IsOpen = false
	}
	for _, child := range item.Children {
		collapse(child)
	}
}

// SortTree orders every directory's children in place: directories first,
// then case-insensitive by name.
func SortTree(root *Item) {
	if root == nil {
		return
	}
	sort.SliceStable(root.Children, func(i, j int) bool {
		a, b := root.Children[i], root.Children[j]
		if a.Type != b.Type {
			return a.Type == TypeDirectory
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for _, child := range root.Children {
		SortTree(child)
	}
}

// CountNodes counts all nodes in the tree.
func CountNodes(root *Item) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}
