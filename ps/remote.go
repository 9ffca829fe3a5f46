package ps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// FixtureRemote is the remote name fixture repositories publish to.
const FixtureRemote = "origin"

var ErrNoRemote = errors.New("fixture store has no remote")

// RemoteAuth holds credentials for a fixture remote. A token takes
// precedence over a username and password; a key path selects SSH. The
// zero value means anonymous access.
type RemoteAuth struct {
	Token      string
	Username   string
	Password   string
	KeyPath    string
	Passphrase string
}

func (auth *RemoteAuth) method() (transport.AuthMethod, error) {
	switch {
	case auth == nil:
		return nil, nil
	case auth.Token != "":
		// Git hosts accept any non-empty user with a token
		return &http.BasicAuth{Username: "git", Password: auth.Token}, nil
	case auth.KeyPath != "":
		keyPath := auth.KeyPath
		if rest, ok := cutHome(keyPath); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", keyPath, err)
			}
			keyPath = filepath.Join(home, rest)
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)
	case auth.Username != "":
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	default:
		return nil, nil
	}
}

func cutHome(path string) (string, bool) {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return path[2:], true
	}
	return "", false
}

// SetRemote points the fixture remote at url, replacing any previous one.
func (store *FixtureStore) SetRemote(url string) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}

	store.Lock()
	defer store.Unlock()

	if err := store.repo.DeleteRemote(FixtureRemote); err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("failed to replace remote: %w", err)
	}
	if _, err := store.repo.CreateRemote(&config.RemoteConfig{
		Name: FixtureRemote,
		URLs: []string{url},
	}); err != nil {
		return fmt.Errorf("failed to set remote %s: %w", url, err)
	}
	return nil
}

// RemoteURL returns the fixture remote, or ErrNoRemote.
func (store *FixtureStore) RemoteURL() (string, error) {
	if err := store.ensureInitialized(); err != nil {
		return "", err
	}

	remote, err := store.repo.Remote(FixtureRemote)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return "", ErrNoRemote
	}
	if err != nil {
		return "", fmt.Errorf("failed to read remote: %w", err)
	}
	return remote.Config().URLs[0], nil
}

// Publish sends the current fixture branch and every snapshot tag to the
// remote. Tags that moved locally overwrite the remote ones.
func (store *FixtureStore) Publish(ctx context.Context, auth *RemoteAuth) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}
	if _, err := store.RemoteURL(); err != nil {
		return err
	}

	store.RLock()
	defer store.RUnlock()

	branch, err := store.currentBranch()
	if err != nil {
		return err
	}
	method, err := auth.method()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	err = store.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: FixtureRemote,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("%s:%s", branch, branch)),
			config.RefSpec("+refs/tags/*:refs/tags/*"),
		},
		Auth: method,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to publish fixtures: %w", err)
	}
	return nil
}

// Sync fetches snapshot tags and history from the remote. A store with no
// local history adopts the remote branch; otherwise only tags are updated,
// so restoring a fetched tag is an explicit step.
func (store *FixtureStore) Sync(ctx context.Context, auth *RemoteAuth) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}
	if _, err := store.RemoteURL(); err != nil {
		return err
	}

	store.Lock()
	defer store.Unlock()

	method, err := auth.method()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	remoteBranches := fmt.Sprintf("refs/remotes/%s/", FixtureRemote)
	err = store.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: FixtureRemote,
		RefSpecs: []config.RefSpec{
			config.RefSpec("+refs/heads/*:" + remoteBranches + "*"),
			config.RefSpec("+refs/tags/*:refs/tags/*"),
		},
		Auth: method,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to sync fixtures: %w", err)
	}

	if _, err := store.repo.Head(); err == nil {
		return nil
	}
	branch := plumbing.Master
	if head, err := store.repo.Storer.Reference(plumbing.HEAD); err == nil && head.Type() == plumbing.SymbolicReference {
		branch = head.Target()
	}
	upstream, err := store.repo.Reference(plumbing.ReferenceName(remoteBranches+branch.Short()), true)
	if err != nil {
		// Remote has no history yet
		return nil
	}
	if err := store.repo.Storer.SetReference(plumbing.NewHashReference(branch, upstream.Hash())); err != nil {
		return fmt.Errorf("failed to adopt remote history: %w", err)
	}
	return store.syncWorktree()
}

// currentBranch returns the full name of the branch HEAD points at.
func (store *FixtureStore) currentBranch() (plumbing.ReferenceName, error) {
	head, err := store.repo.Head()
	if err != nil {
		return "", fmt.Errorf("no fixtures saved yet: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:7])
	}
	return head.Name(), nil
}
