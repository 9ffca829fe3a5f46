package ps

import (
	"errors"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

var (
	ErrNotInitialized   = errors.New("fixture store not initialized")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// FixtureStore keeps versioned copies of a database in a Git repository.
// Each Save is one commit holding a JSON document per table and view; named
// snapshots are tags. Live state is never written through: the store is only
// touched when a caller saves or loads.
type FixtureStore struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
}

// IsInitialized returns true if the store has a valid repository
func (store *FixtureStore) IsInitialized() bool {
	return store != nil && store.repo != nil
}

func (store *FixtureStore) ensureInitialized() error {
	if !store.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// RLock acquires a read lock for concurrent read operations
func (store *FixtureStore) RLock() {
	store.mu.RLock()
}

// RUnlock releases the read lock
func (store *FixtureStore) RUnlock() {
	store.mu.RUnlock()
}

// Lock acquires a write lock for exclusive write operations
func (store *FixtureStore) Lock() {
	store.mu.Lock()
}

// Unlock releases the write lock
func (store *FixtureStore) Unlock() {
	store.mu.Unlock()
}

func NewMemoryFixtureStore() (*FixtureStore, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, err
	}

	return &FixtureStore{
		repo:         repo,
		isMemoryMode: true,
	}, nil
}

// NewFileFixtureStore opens or creates a fixture repository in baseDir. With
// a gitUrl the repository is cloned first.
func NewFileFixtureStore(baseDir string, gitUrl *string) (*FixtureStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	if gitUrl != nil {
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
		if err != nil {
			return nil, err
		}
	} else {
		_, statErr := os.Stat(fs.Root())
		if statErr != nil {
			repo, err = git.Init(storer, git.WithWorkTree(wt))
			if err != nil {
				return nil, err
			}
		} else {
			repo, err = git.Open(storer, wt)
			if err != nil {
				return nil, err
			}
		}
	}

	return &FixtureStore{
		repo: repo,
	}, nil
}
