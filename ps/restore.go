package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
)

// Tag names a saved version. An empty commit id tags HEAD.
func (store *FixtureStore) Tag(name string, commitId string) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}

	store.Lock()
	defer store.Unlock()

	hash := plumbing.NewHash(commitId)
	if commitId == "" {
		headRef, err := store.repo.Head()
		if err != nil {
			return fmt.Errorf("failed to get HEAD: %w", err)
		}
		hash = headRef.Hash()
	}

	if _, err := store.repo.CreateTag(name, hash, nil); err != nil {
		return fmt.Errorf("failed to create snapshot '%s': %w", name, err)
	}
	return nil
}

// Tags lists the named snapshots.
func (store *FixtureStore) Tags() ([]string, error) {
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}

	store.RLock()
	defer store.RUnlock()

	refs, err := store.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var names []string
	refs.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names, nil
}

// DeleteTag removes a named snapshot. The commit stays in history.
func (store *FixtureStore) DeleteTag(name string) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}

	store.Lock()
	defer store.Unlock()

	if err := store.repo.DeleteTag(name); err != nil {
		return fmt.Errorf("failed to delete snapshot '%s': %w", name, err)
	}
	return nil
}
