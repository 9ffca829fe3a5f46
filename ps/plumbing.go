package ps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/SqlLikeMem/core"
)

// Commit is one saved version of the fixtures.
type Commit struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (commit Commit) String() string {
	return fmt.Sprintf("Commit{Id: %s, When: %s, Author: %s}", commit.Id, commit.When, commit.Author)
}

// createBlob creates a blob object directly in the object store without filesystem I/O
func (store *FixtureStore) createBlob(data []byte) (plumbing.Hash, error) {
	obj := store.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := store.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// getTreeEntries reads the direct entries of a tree keyed by name
func (store *FixtureStore) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(store.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

// buildTreeFromEntries creates a tree object from a list of entries
func (store *FixtureStore) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Git orders directories as if their name had a trailing slash
	sort.Slice(entries, func(i, j int) bool {
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}

	obj := store.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := store.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// TreeChange is a single file write or deletion applied by batchUpdateTree
type TreeChange struct {
	Path     string        // e.g. "main/users.json"
	BlobHash plumbing.Hash // ignored for deletions
	IsDelete bool
}

// batchUpdateTree applies changes to a tree, building each intermediate
// directory once. It returns ZeroHash when the result is empty.
func (store *FixtureStore) batchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	grouped := make(map[string][]TreeChange)
	leafChanges := make([]TreeChange, 0)

	for _, change := range changes {
		parts := strings.Split(change.Path, "/")
		if len(parts) == 1 {
			leafChanges = append(leafChanges, change)
		} else {
			dir := parts[0]
			grouped[dir] = append(grouped[dir], TreeChange{
				Path:     strings.Join(parts[1:], "/"),
				BlobHash: change.BlobHash,
				IsDelete: change.IsDelete,
			})
		}
	}

	entries, err := store.getTreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, change := range leafChanges {
		if change.IsDelete {
			delete(entries, change.Path)
		} else {
			entries[change.Path] = object.TreeEntry{
				Name: change.Path,
				Mode: filemode.Regular,
				Hash: change.BlobHash,
			}
		}
	}

	for dir, subChanges := range grouped {
		var subTreeHash plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}

		newSubTreeHash, err := store.batchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{
				Name: dir,
				Mode: filemode.Dir,
				Hash: newSubTreeHash,
			}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	return store.buildTreeFromEntries(entrySlice)
}

// createCommitDirect creates a commit object on top of HEAD without using the worktree
func (store *FixtureStore) createCommitDirect(treeHash plumbing.Hash, identity core.Identity, message string) (Commit, error) {
	actualTreeHash := treeHash
	if treeHash == plumbing.ZeroHash {
		emptyTree := &object.Tree{Entries: []object.TreeEntry{}}
		obj := store.repo.Storer.NewEncodedObject()
		if err := emptyTree.Encode(obj); err != nil {
			return Commit{}, fmt.Errorf("failed to encode empty tree: %w", err)
		}
		var err error
		actualTreeHash, err = store.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return Commit{}, fmt.Errorf("failed to store empty tree: %w", err)
		}
	}

	var parentHashes []plumbing.Hash
	headRef, err := store.repo.Head()
	if err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     actualTreeHash,
		ParentHashes: parentHashes,
	}

	obj := store.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Commit{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := store.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to store commit: %w", err)
	}

	branchName := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branchName = headRef.Name()
	}

	ref := plumbing.NewHashReference(branchName, commitHash)
	if err := store.repo.Storer.SetReference(ref); err != nil {
		return Commit{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Commit{
		Id:      commitHash.String(),
		When:    sig.When,
		Author:  identity.String(),
		Message: message,
	}, nil
}

// syncWorktree updates the worktree to match HEAD so on-disk fixtures can be
// inspected. Memory stores read from the object store and skip it.
func (store *FixtureStore) syncWorktree() error {
	if store.isMemoryMode {
		return nil
	}

	wt, err := store.repo.Worktree()
	if err != nil {
		return err
	}

	headRef, err := store.repo.Head()
	if err != nil {
		return err
	}

	commit, err := store.repo.CommitObject(headRef.Hash())
	if err != nil {
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return err
	}

	// git reset refuses to empty the base dir, so clear it by hand
	if len(tree.Entries) == 0 {
		fs := wt.Filesystem
		entries, err := fs.ReadDir("/")
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			if entry.Name() != ".git" {
				fs.Remove(entry.Name())
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: headRef.Hash(),
	})
}

// resolveTree returns the tree of a tag, a commit hash or, for an empty ref, HEAD.
func (store *FixtureStore) resolveTree(ref string) (*object.Tree, error) {
	var hash plumbing.Hash
	switch {
	case ref == "":
		headRef, err := store.repo.Head()
		if err != nil {
			return nil, ErrSnapshotNotFound
		}
		hash = headRef.Hash()
	default:
		if tag, err := store.repo.Tag(ref); err == nil {
			hash = tag.Hash()
			if tagObject, err := store.repo.TagObject(hash); err == nil {
				hash = tagObject.Target
			}
		} else if plumbing.IsHash(ref) {
			hash = plumbing.NewHash(ref)
		} else {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, ref)
		}
	}

	commit, err := store.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return commit.Tree()
}

// TreeEntry is a directory entry of a saved version
type TreeEntry struct {
	Name  string
	IsDir bool
}

// ListEntriesDirect lists a directory of the given version directly from the Git tree
func (store *FixtureStore) ListEntriesDirect(ref, dirPath string) ([]TreeEntry, error) {
	if !store.IsInitialized() {
		return nil, ErrNotInitialized
	}

	tree, err := store.resolveTree(ref)
	if err != nil {
		return nil, err
	}

	targetTree := tree
	if dirPath != "" && dirPath != "." {
		targetTree, err = tree.Tree(dirPath)
		if err != nil {
			return nil, nil
		}
	}

	var entries []TreeEntry
	for _, entry := range targetTree.Entries {
		entries = append(entries, TreeEntry{
			Name:  entry.Name,
			IsDir: entry.Mode == filemode.Dir,
		})
	}

	return entries, nil
}

// ReadFileDirect reads a file of the given version directly from the Git tree
func (store *FixtureStore) ReadFileDirect(ref, filePath string) ([]byte, error) {
	if !store.IsInitialized() {
		return nil, ErrNotInitialized
	}

	tree, err := store.resolveTree(ref)
	if err != nil {
		return nil, err
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}

	return []byte(content), nil
}
