package fstree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleTree(t *testing.T) (*Item, *Item, *Item, *Item) {
	t.Helper()
	root := NewRoot()
	src := CreateDirectory(root, root.ID, "src")
	require.NotNil(t, src)
	app := CreateFile(root, src.ID, "app.py")
	require.NotNil(t, app)
	readme := CreateFile(root, root.ID, "README.md")
	require.NotNil(t, readme)
	return root, src, app, readme
}

func TestCreateAppendsAndExpandsParent(t *testing.T) {
	root := NewRoot()
	root.IsOpen = false

	dir := CreateDirectory(root, root.ID, "src")
	require.NotNil(t, dir)
	assert.Equal(t, TypeDirectory, dir.Type)
	assert.True(t, root.IsOpen, "creating a child must expand the parent")

	file := CreateFile(root, dir.ID, "main.go")
	require.NotNil(t, file)
	assert.Equal(t, TypeFile, file.Type)
	assert.True(t, dir.IsOpen)
	assert.Same(t, file, FindItem(root, file.ID))
	assert.Same(t, dir, FindParent(root, file.ID))
}

func TestCreateUnderFileFails(t *testing.T) {
	root, _, app, _ := buildSampleTree(t)
	assert.Nil(t, CreateFile(root, app.ID, "nested.py"))
	assert.Nil(t, CreateDirectory(root, app.ID, "nested"))
}

func TestCreateAllowsDuplicateNames(t *testing.T) {
	// Creation intentionally skips the sibling-name check; only renames
	// are guarded.
	root := NewRoot()
	first := CreateFile(root, root.ID, "notes.txt")
	second := CreateFile(root, root.ID, "notes.txt")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, root.Children, 2)
}

func TestRenameRejectsSiblingCollision(t *testing.T) {
	root, _, _, _ := buildSampleTree(t)
	a := CreateFile(root, root.ID, "a.txt")
	b := CreateFile(root, root.ID, "b.txt")

	before := CountNodes(root)
	assert.False(t, Rename(root, b.ID, "a.txt"))
	assert.Equal(t, "b.txt", b.Name, "failed rename must leave the tree unchanged")
	assert.Equal(t, before, CountNodes(root))

	assert.True(t, Rename(root, b.ID, "c.txt"))
	assert.Equal(t, "c.txt", b.Name)

	// Renaming to its own current name is not a collision.
	assert.True(t, Rename(root, a.ID, "a.txt"))
}

func TestRenameRootOrUnknownFails(t *testing.T) {
	root, _, _, _ := buildSampleTree(t)
	assert.False(t, Rename(root, root.ID, "other"))
	assert.False(t, Rename(root, "no-such-id", "other"))
}

func TestUpdateContent(t *testing.T) {
	root, _, app, _ := buildSampleTree(t)
	assert.True(t, UpdateContent(root, app.ID, "print(1)"))
	assert.Equal(t, "print(1)", FindItem(root, app.ID).Content)

	// Missing id is a silent no-op.
	assert.False(t, UpdateContent(root, "gone", "x"))
}

func TestDeleteRemovesSubtreeAndReportsFileIDs(t *testing.T) {
	root, src, app, readme := buildSampleTree(t)
	nested := CreateDirectory(root, src.ID, "lib")
	helper := CreateFile(root, nested.ID, "helper.py")

	removed := Delete(root, src.ID)
	assert.ElementsMatch(t, []string{app.ID, helper.ID}, removed)
	assert.Nil(t, FindItem(root, src.ID))
	assert.Nil(t, FindItem(root, app.ID))
	assert.Nil(t, FindItem(root, helper.ID))
	assert.NotNil(t, FindItem(root, readme.ID))
}

func TestDeleteRootOrUnknownIsNoOp(t *testing.T) {
	root, _, _, _ := buildSampleTree(t)
	before := CountNodes(root)
	assert.Nil(t, Delete(root, root.ID))
	assert.Nil(t, Delete(root, "no-such-id"))
	assert.Equal(t, before, CountNodes(root))
}

func TestAttachPreservesRemoteID(t *testing.T) {
	root, src, _, _ := buildSampleTree(t)
	remote := &Item{ID: "remote-id", Name: "peer.py", Type: TypeFile}
	require.True(t, Attach(root, src.ID, remote))
	assert.Same(t, remote, FindItem(root, "remote-id"))

	assert.False(t, Attach(root, "no-such-id", remote))
	assert.False(t, Attach(root, src.ID, nil))
}

func TestCollapseAllKeepsRootOpen(t *testing.T) {
	root, src, _, _ := buildSampleTree(t)
	nested := CreateDirectory(root, src.ID, "lib")
	src.IsOpen = true
	nested.IsOpen = true

	CollapseAll(root)
	assert.True(t, root.IsOpen)
	assert.False(t, src.IsOpen)
	assert.False(t, nested.IsOpen)
}

func TestToggleOpenDirectoryOnly(t *testing.T) {
	root, src, app, _ := buildSampleTree(t)
	src.IsOpen = false
	ToggleOpen(root, src.ID)
	assert.True(t, src.IsOpen)
	ToggleOpen(root, src.ID)
	assert.False(t, src.IsOpen)

	// Files have no expanded state.
	ToggleOpen(root, app.ID)
	assert.False(t, app.IsOpen)
}

func TestSortTreeDirectoriesFirstThenName(t *testing.T) {
	root := NewRoot()
	CreateFile(root, root.ID, "zeta.txt")
	CreateFile(root, root.ID, "Alpha.txt")
	CreateDirectory(root, root.ID, "vendor")
	CreateDirectory(root, root.ID, "cmd")

	SortTree(root)
	var names []string
	for _, child := range root.Children {
		names = append(names, child.Name)
	}
	assert.Equal(t, []string{"cmd", "vendor", "Alpha.txt", "zeta.txt"}, names)
}

// Structural invariants: one root, files never have children, every non-root
// node is reachable from the root exactly once.
func TestTreeInvariantsAfterOperationSequence(t *testing.T) {
	root := NewRoot()
	src := CreateDirectory(root, root.ID, "src")
	app := CreateFile(root, src.ID, "app.py")
	UpdateContent(root, app.ID, "print(1)")
	Rename(root, app.ID, "main.py")
	docs := CreateDirectory(root, root.ID, "docs")
	CreateFile(root, docs.ID, "index.md")
	Delete(root, docs.ID)
	CreateFile(root, src.ID, "util.py")

	seen := map[string]int{}
	var walk func(item *Item)
	walk = func(item *Item) {
		seen[item.ID]++
		if item.Type == TypeFile {
			assert.Empty(t, item.Children, "file %s must not have children", item.Name)
		}
		for _, child := range item.Children {
			walk(child)
		}
	}
	walk(root)

	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s reachable more than once", id)
	}
	assert.Equal(t, CountNodes(root), len(seen))
}

func TestLanguageFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"app.py", "python"},
		{"index.ts", "typescript"},
		{"component.jsx", "javascript"},
		{"main.go", "go"},
		{"matrix.cpp", "c++"},
		{"script.SH", "bash"},
		{"Makefile", "plaintext"},
		{"archive.tar.gz", "plaintext"},
		{"trailing.", "plaintext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LanguageFor(tt.name), "LanguageFor(%q)", tt.name)
	}
}
