package ps

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
)

// newBareRemote creates an empty bare repository to publish fixtures to.
func newBareRemote(t *testing.T) string {
	t.Helper()
	bareDir := t.TempDir()
	storer := filesystem.NewStorage(osfs.New(bareDir), cache.NewObjectLRUDefault())
	if _, err := git.Init(storer); err != nil {
		t.Fatalf("Failed to init bare repo: %v", err)
	}
	return bareDir
}

func TestFixtureStoreRemoteURL(t *testing.T) {
	store, _ := NewMemoryFixtureStore()

	if _, err := store.RemoteURL(); !errors.Is(err, ErrNoRemote) {
		t.Errorf("Expected ErrNoRemote, got %v", err)
	}
	if err := store.Publish(context.Background(), nil); !errors.Is(err, ErrNoRemote) {
		t.Errorf("Expected ErrNoRemote from Publish, got %v", err)
	}

	if err := store.SetRemote("/tmp/first"); err != nil {
		t.Fatalf("Failed to set remote: %v", err)
	}
	if err := store.SetRemote("/tmp/second"); err != nil {
		t.Fatalf("Failed to replace remote: %v", err)
	}
	url, err := store.RemoteURL()
	if err != nil {
		t.Fatalf("Failed to read remote: %v", err)
	}
	if url != "/tmp/second" {
		t.Errorf("Expected replaced remote, got %s", url)
	}
}

func TestFixtureStorePublishRequiresHistory(t *testing.T) {
	store, _ := NewFileFixtureStore(t.TempDir(), nil)
	if err := store.SetRemote(newBareRemote(t)); err != nil {
		t.Fatalf("Failed to set remote: %v", err)
	}
	if err := store.Publish(context.Background(), nil); err == nil {
		t.Error("Expected error publishing an empty store")
	}
}

func TestFixtureStorePublishAndSync(t *testing.T) {
	bareDir := newBareRemote(t)

	source, err := NewFileFixtureStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create source store: %v", err)
	}
	if _, err := source.Save(seedFixtureDatabase(t), testIdentity, "seed"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := source.Tag("baseline", ""); err != nil {
		t.Fatalf("Failed to tag: %v", err)
	}
	if err := source.SetRemote(bareDir); err != nil {
		t.Fatalf("Failed to set remote: %v", err)
	}
	if err := source.Publish(context.Background(), nil); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	// Publishing again is a no-op
	if err := source.Publish(context.Background(), nil); err != nil {
		t.Fatalf("Failed to republish: %v", err)
	}

	target, err := NewFileFixtureStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create target store: %v", err)
	}
	if err := target.SetRemote(bareDir); err != nil {
		t.Fatalf("Failed to set remote: %v", err)
	}
	if err := target.Sync(context.Background(), nil); err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}

	tags, err := target.Tags()
	if err != nil {
		t.Fatalf("Failed to list tags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "baseline" {
		t.Errorf("Expected synced tag baseline, got %v", tags)
	}

	history, err := target.History(0)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 1 || history[0].Message != "seed" {
		t.Errorf("Expected adopted history, got %v", history)
	}

	loaded := newTestDatabase()
	if err := target.Load(loaded, "baseline"); err != nil {
		t.Fatalf("Failed to load synced tag: %v", err)
	}
	users, ok := loaded.DefaultSchema().Table("users")
	if !ok || users.Count() != 2 {
		t.Error("Expected 2 users from the synced fixture")
	}
}

func TestRemoteAuthMethod(t *testing.T) {
	var none *RemoteAuth
	if method, err := none.method(); err != nil || method != nil {
		t.Errorf("Expected anonymous access, got %v, %v", method, err)
	}

	method, err := (&RemoteAuth{Token: "secret", Username: "ignored"}).method()
	if err != nil || method == nil {
		t.Fatalf("Expected token auth, got %v", err)
	}
	if method.Name() != "http-basic-auth" {
		t.Errorf("Expected http basic auth for token, got %s", method.Name())
	}

	if _, err := (&RemoteAuth{KeyPath: "/nonexistent/key"}).method(); err == nil {
		t.Error("Expected error for missing SSH key")
	}

	if rest, ok := cutHome("~/.ssh/id_ed25519"); !ok || rest != ".ssh/id_ed25519" {
		t.Errorf("Expected home-relative path, got %q", rest)
	}
}
