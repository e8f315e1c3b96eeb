package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

// GitStore persists version snapshots as commits in one bare-bones git
// repository per document. The baseline commit created by Ensure is not a
// version: snapshot IDs count from 1 in commit order, and listings are
// newest-first.
type GitStore struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewGitStore(baseDir string) *GitStore {
	return &GitStore{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Ensure initializes the document repository with a baseline commit. Calling
// it for an existing document is a no-op.
func (g *GitStore) Ensure(documentID string, initial model.PortfolioContent, author string) error {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	path := g.repoPath(documentID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	hash, err := g.writeCommit(repo, initial, author, "Portfolio baseline")
	if err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// SaveVersion commits a snapshot of the given content and returns its
// assigned sequential ID.
func (g *GitStore) SaveVersion(documentID string, content model.PortfolioContent, author, description string) (model.VersionSnapshot, error) {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(g.repoPath(documentID))
	if err != nil {
		return model.VersionSnapshot{}, fmt.Errorf("open repo: %w", err)
	}
	hash, err := g.writeCommit(repo, content, author, description)
	if err != nil {
		return model.VersionSnapshot{}, err
	}
	total, err := countCommits(repo, hash)
	if err != nil {
		return model.VersionSnapshot{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return model.VersionSnapshot{}, fmt.Errorf("read commit object: %w", err)
	}
	return toSnapshot(documentID, total-1, commitObj), nil
}

// ListVersions returns the document's snapshots newest-first, excluding the
// baseline commit.
func (g *GitStore) ListVersions(documentID string) ([]model.VersionSnapshot, error) {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	commits, err := g.logNewestFirst(documentID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]model.VersionSnapshot, 0, len(commits))
	for i, commitObj := range commits {
		id := len(commits) - 1 - i
		if id == 0 {
			break // baseline
		}
		snapshots = append(snapshots, toSnapshot(documentID, id, commitObj))
	}
	return snapshots, nil
}

// ContentAt reads the snapshot content of one version.
func (g *GitStore) ContentAt(documentID string, versionID int) (model.PortfolioContent, error) {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()
	return g.contentAtLocked(documentID, versionID)
}

func (g *GitStore) contentAtLocked(documentID string, versionID int) (model.PortfolioContent, error) {
	commits, err := g.logNewestFirst(documentID)
	if err != nil {
		return model.PortfolioContent{}, err
	}
	index := len(commits) - 1 - versionID
	if versionID < 1 || index < 0 || index >= len(commits) {
		return model.PortfolioContent{}, fmt.Errorf("version %d not found", versionID)
	}
	return readContent(commits[index])
}

// Restore commits the content of an older version as a brand new snapshot.
// The restored-from version itself is never modified, so restores can be
// restored from in turn.
func (g *GitStore) Restore(documentID string, versionID int, author string) (model.VersionSnapshot, model.PortfolioContent, error) {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	content, err := g.contentAtLocked(documentID, versionID)
	if err != nil {
		return model.VersionSnapshot{}, model.PortfolioContent{}, err
	}
	repo, err := git.PlainOpen(g.repoPath(documentID))
	if err != nil {
		return model.VersionSnapshot{}, model.PortfolioContent{}, fmt.Errorf("open repo: %w", err)
	}
	description := fmt.Sprintf("Restore of version %d", versionID)
	hash, err := g.writeCommit(repo, content, author, description)
	if err != nil {
		return model.VersionSnapshot{}, model.PortfolioContent{}, err
	}
	total, err := countCommits(repo, hash)
	if err != nil {
		return model.VersionSnapshot{}, model.PortfolioContent{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return model.VersionSnapshot{}, model.PortfolioContent{}, fmt.Errorf("read commit object: %w", err)
	}
	return toSnapshot(documentID, total-1, commitObj), content, nil
}

// HeadContent reads the content of the latest commit, baseline included.
func (g *GitStore) HeadContent(documentID string) (model.PortfolioContent, error) {
	lock := g.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	commits, err := g.logNewestFirst(documentID)
	if err != nil {
		return model.PortfolioContent{}, err
	}
	if len(commits) == 0 {
		return model.PortfolioContent{}, fmt.Errorf("document %s has no commits", documentID)
	}
	return readContent(commits[0])
}

// DiffContent reports the field-level differences between two contents:
// the title plus every section present on either side, in sorted order.
func DiffContent(from, to model.PortfolioContent) []model.FieldDiff {
	diffs := make([]model.FieldDiff, 0)
	if from.Title != to.Title {
		diffs = append(diffs, model.FieldDiff{Field: "title", Before: from.Title, After: to.Title})
	}
	keys := make(map[string]bool)
	for key := range from.Sections {
		keys[key] = true
	}
	for key := range to.Sections {
		keys[key] = true
	}
	names := make([]string, 0, len(keys))
	for key := range keys {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, name := range names {
		before := from.Sections[name]
		after := to.Sections[name]
		if before == after {
			continue
		}
		diffs = append(diffs, model.FieldDiff{Field: "sections." + name, Before: before, After: after})
	}
	return diffs
}

func (g *GitStore) repoPath(documentID string) string {
	return filepath.Join(g.baseDir, documentID)
}

func (g *GitStore) documentLock(documentID string) *sync.Mutex {
	g.lockMu.Lock()
	defer g.lockMu.Unlock()
	lock, ok := g.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[documentID] = lock
	}
	return lock
}

func (g *GitStore) writeCommit(repo *git.Repository, content model.PortfolioContent, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal content: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, "content.json"), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write content.json: %w", err)
	}
	if _, err := worktree.Add("content.json"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add content: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: sanitizeEmail(author) + "@collab.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit content: %w", err)
	}
	return hash, nil
}

func (g *GitStore) logNewestFirst(documentID string) ([]*object.Commit, error) {
	repo, err := git.PlainOpen(g.repoPath(documentID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	commits := make([]*object.Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		commits = append(commits, commitObj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return commits, nil
}

func countCommits(repo *git.Repository, from plumbing.Hash) (int, error) {
	iter, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return 0, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate log: %w", err)
	}
	return count, nil
}

func toSnapshot(documentID string, id int, commitObj *object.Commit) model.VersionSnapshot {
	return model.VersionSnapshot{
		ID:          id,
		DocumentID:  documentID,
		Description: firstLine(commitObj.Message),
		Author:      commitObj.Author.Name,
		CreatedAt:   commitObj.Author.When,
		ContentRef:  commitObj.Hash.String()[:7],
	}
}

func firstLine(message string) string {
	for i := 0; i < len(message); i++ {
		if message[i] == '\n' {
			return message[:i]
		}
	}
	return message
}

func readContent(commitObj *object.Commit) (model.PortfolioContent, error) {
	file, err := commitObj.File("content.json")
	if err != nil {
		return model.PortfolioContent{}, fmt.Errorf("load content.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return model.PortfolioContent{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return model.PortfolioContent{}, fmt.Errorf("read content bytes: %w", err)
	}
	var content model.PortfolioContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return model.PortfolioContent{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func sanitizeEmail(input string) string {
	cleaned := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			cleaned = append(cleaned, r)
		case r == ' ' || r == '-' || r == '_':
			cleaned = append(cleaned, '.')
		}
	}
	if len(cleaned) == 0 {
		return "user"
	}
	return string(cleaned)
}
