package ps

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
	"github.com/nickyhof/SqlLikeMem/core"
)

const (
	viewsDir    = "views"
	documentExt = ".json"
)

// Save writes every schema of database as a new commit. Each table becomes
// {schema}/{table}.json and each view {schema}/views/{view}.json. Temporary
// tables are not saved. The caller holds the database lock.
func (store *FixtureStore) Save(database *Database, identity core.Identity, message string) (Commit, error) {
	if err := store.ensureInitialized(); err != nil {
		return Commit{}, err
	}

	store.Lock()
	defer store.Unlock()

	var changes []TreeChange
	for _, schema := range database.Schemas() {
		for _, table := range schema.Tables() {
			data, err := json.MarshalIndent(table.Document(), "", "  ")
			if err != nil {
				return Commit{}, fmt.Errorf("failed to marshal table '%s': %w", table.Name, err)
			}
			change, err := store.stage(path.Join(schema.Name, table.Name+documentExt), data)
			if err != nil {
				return Commit{}, err
			}
			changes = append(changes, change)
		}
		for _, view := range schema.Views() {
			data, err := json.MarshalIndent(schema.ViewDocument(view), "", "  ")
			if err != nil {
				return Commit{}, fmt.Errorf("failed to marshal view '%s': %w", view.Name, err)
			}
			change, err := store.stage(path.Join(schema.Name, viewsDir, view.Name+documentExt), data)
			if err != nil {
				return Commit{}, err
			}
			changes = append(changes, change)
		}
	}

	treeHash, err := store.batchUpdateTree(plumbing.ZeroHash, changes)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to build tree: %w", err)
	}

	commit, err := store.createCommitDirect(treeHash, identity, message)
	if err != nil {
		return Commit{}, err
	}

	if err := store.syncWorktree(); err != nil {
		return Commit{}, fmt.Errorf("failed to sync worktree: %w", err)
	}
	return commit, nil
}

func (store *FixtureStore) stage(filePath string, data []byte) (TreeChange, error) {
	hash, err := store.createBlob(data)
	if err != nil {
		return TreeChange{}, err
	}
	return TreeChange{Path: filePath, BlobHash: hash}, nil
}

// Load replaces the tables and views of database with a saved version. ref
// is a snapshot tag, a commit id or empty for the latest save. On failure
// the database is left as it was. The caller holds the database lock.
func (store *FixtureStore) Load(database *Database, ref string) error {
	if err := store.ensureInitialized(); err != nil {
		return err
	}

	store.RLock()
	defer store.RUnlock()

	schemaEntries, err := store.ListEntriesDirect(ref, "")
	if err != nil {
		return err
	}

	before := database.capture()
	if err := store.load(database, ref, schemaEntries); err != nil {
		if restoreErr := database.restore(before); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

func (store *FixtureStore) load(database *Database, ref string, schemaEntries []TreeEntry) error {
	for _, schema := range database.Schemas() {
		schema.clear()
	}

	type loaded struct {
		schema   *Schema
		document core.TableDocument
	}
	var tables []loaded
	var views []core.ViewSchema

	for _, schemaEntry := range schemaEntries {
		if !schemaEntry.IsDir {
			continue
		}
		schema := database.CreateSchema(schemaEntry.Name)

		entries, err := store.ListEntriesDirect(ref, schemaEntry.Name)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir {
				if entry.Name == viewsDir {
					schemaViews, err := store.readViews(ref, schemaEntry.Name)
					if err != nil {
						return err
					}
					views = append(views, schemaViews...)
				}
				continue
			}
			if !strings.HasSuffix(entry.Name, documentExt) {
				continue
			}

			data, err := store.ReadFileDirect(ref, path.Join(schemaEntry.Name, entry.Name))
			if err != nil {
				return err
			}
			document, err := DecodeTableDocument(data)
			if err != nil {
				return fmt.Errorf("failed to load '%s': %w", entry.Name, err)
			}
			if _, err := schema.LoadDocument(document); err != nil {
				return err
			}
			tables = append(tables, loaded{schema: schema, document: document})
		}
	}

	for _, table := range tables {
		if err := table.schema.LoadForeignKeys(table.document); err != nil {
			return fmt.Errorf("failed to load foreign keys of '%s': %w", table.document.Table.Name, err)
		}
	}

	for _, view := range views {
		schema := database.CreateSchema(view.Schema)
		if err := schema.LoadView(view); err != nil {
			return err
		}
	}
	return nil
}

func (store *FixtureStore) readViews(ref, schemaName string) ([]core.ViewSchema, error) {
	dir := path.Join(schemaName, viewsDir)
	entries, err := store.ListEntriesDirect(ref, dir)
	if err != nil {
		return nil, err
	}

	var views []core.ViewSchema
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Name, documentExt) {
			continue
		}
		data, err := store.ReadFileDirect(ref, path.Join(dir, entry.Name))
		if err != nil {
			return nil, err
		}
		var view core.ViewSchema
		if err := json.Unmarshal(data, &view); err != nil {
			return nil, fmt.Errorf("failed to decode view '%s': %w", entry.Name, err)
		}
		if view.Schema == "" {
			view.Schema = schemaName
		}
		views = append(views, view)
	}
	return views, nil
}

// History returns saved versions, newest first. A limit of zero returns all.
func (store *FixtureStore) History(limit int) ([]Commit, error) {
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}

	store.RLock()
	defer store.RUnlock()

	if _, err := store.repo.Head(); err != nil {
		return nil, nil
	}

	iter, err := store.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(commit *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, Commit{
			Id:      commit.Hash.String(),
			When:    commit.Author.When,
			Author:  core.Identity{Name: commit.Author.Name, Email: commit.Author.Email}.String(),
			Message: commit.Message,
		})
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, err
	}
	return commits, nil
}
