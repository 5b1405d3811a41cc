// Package storage implements the margin workspace on the local
// filesystem: ingested documents as JSON files and notes as
// append-only JSON Lines, one file per document.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"

	"github.com/margin-labs/margin/pkg/domain/notes"
	"github.com/margin-labs/margin/pkg/domain/review"
)

const (
	MarginDir    = ".margin"
	DocumentsDir = "documents"
	NotesDir     = "notes"
)

var safeID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FilesystemWorkspace is the on-disk note store and document
// repository. Writes go through a short fortify retry to ride out
// transient filesystem contention.
type FilesystemWorkspace struct {
	root        string
	mu          sync.Mutex
	retryConfig retry.Config
}

func NewFilesystemWorkspace(root string) *FilesystemWorkspace {
	return &FilesystemWorkspace{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (w *FilesystemWorkspace) Root() string {
	return w.root
}

func (w *FilesystemWorkspace) Initialize() error {
	for _, dir := range []string{"", DocumentsDir, NotesDir} {
		path := filepath.Join(w.root, MarginDir, dir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("create %s directory: %w", path, err)
		}
	}
	return nil
}

func (w *FilesystemWorkspace) IsInitialized() bool {
	_, err := os.Stat(filepath.Join(w.root, MarginDir))
	return err == nil
}

// resolvePath validates an id-derived filename and confines it to the
// given subdirectory of .margin, preventing traversal.
func (w *FilesystemWorkspace) resolvePath(subdir, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	baseDir := filepath.Join(w.root, MarginDir, subdir)
	fullPath := filepath.Clean(filepath.Join(baseDir, filename))
	if !strings.HasPrefix(fullPath, baseDir) || filepath.Dir(fullPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return fullPath, nil
}

// SaveDocument ingests a document into the workspace, overwriting any
// prior version with the same id.
func (w *FilesystemWorkspace) SaveDocument(doc *notes.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document is missing an id")
	}
	if !safeID.MatchString(doc.ID) {
		return fmt.Errorf("invalid document id: %s", doc.ID)
	}

	path, err := w.resolvePath(DocumentsDir, doc.ID+".json")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// GetDocument returns the ingested document, or nil if the id is unknown.
func (w *FilesystemWorkspace) GetDocument(id string) (*notes.Document, error) {
	if !safeID.MatchString(id) {
		return nil, nil
	}
	path, err := w.resolvePath(DocumentsDir, id+".json")
	if err != nil {
		return nil, err
	}

	retryer := retry.New[*notes.Document](w.retryConfig)
	return retryer.Do(context.Background(), func(ctx context.Context) (*notes.Document, error) {
		// #nosec G304 -- path is resolved and validated via resolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read document: %w", err)
		}
		var doc notes.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		return &doc, nil
	})
}

// CreateNote appends one note to the document's notes file and returns
// the generated note id.
func (w *FilesystemWorkspace) CreateNote(req notes.CreateNoteRequest) (string, error) {
	if req.DocumentID == "" {
		return "", fmt.Errorf("note is missing a document id")
	}
	if !safeID.MatchString(req.DocumentID) {
		return "", fmt.Errorf("invalid document id: %s", req.DocumentID)
	}

	note := notes.Note{
		ID:         uuid.New().String(),
		DocumentID: req.DocumentID,
		ParentID:   req.ParentID,
		Body:       req.Body,
		Author:     req.Author,
		Metadata:   req.Metadata,
	}
	if note.Metadata.CreatedAt.IsZero() {
		note.Metadata.CreatedAt = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	retryer := retry.New[string](w.retryConfig)
	return retryer.Do(context.Background(), func(ctx context.Context) (string, error) {
		if err := w.appendNote(&note); err != nil {
			return "", err
		}
		return note.ID, nil
	})
}

func (w *FilesystemWorkspace) appendNote(note *notes.Note) (err error) {
	path, err := w.resolvePath(NotesDir, note.DocumentID+".jsonl")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create notes directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open notes file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close notes file: %w", cerr)
		}
	}()

	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

// ListNotes returns every note for a document in append order.
func (w *FilesystemWorkspace) ListNotes(documentID string) ([]notes.Note, error) {
	if !safeID.MatchString(documentID) {
		return nil, nil
	}
	path, err := w.resolvePath(NotesDir, documentID+".jsonl")
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is resolved and validated via resolvePath
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open notes file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var out []notes.Note
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var note notes.Note
		if err := json.Unmarshal([]byte(line), &note); err != nil {
			// Skip corrupt lines rather than losing the whole file.
			continue
		}
		out = append(out, note)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan notes file: %w", err)
	}
	return out, nil
}

// FindExistingThread returns the id of the top-level note rooted at the
// given block, or "" when no thread exists. Exact block id match wins;
// a block type + index match is the fallback for editors that rotate
// block ids between sessions. The fallback is best-effort, not an
// identity guarantee.
func (w *FilesystemWorkspace) FindExistingThread(documentID, blockID, blockType string, blockIndex int) (string, error) {
	all, err := w.ListNotes(documentID)
	if err != nil {
		return "", err
	}

	fallback := ""
	for _, note := range all {
		if note.ParentID != "" {
			continue
		}
		if blockID != "" && note.Metadata.BlockID == blockID {
			return note.ID, nil
		}
		if fallback == "" && blockType != "" &&
			note.Metadata.BlockType == blockType && note.Metadata.BlockIndex == blockIndex {
			fallback = note.ID
		}
	}
	return fallback, nil
}

// ThreadsForDocument reassembles note threads into the prior-feedback
// shape a continuation review consumes.
func (w *FilesystemWorkspace) ThreadsForDocument(documentID string) ([]review.FeedbackThread, error) {
	all, err := w.ListNotes(documentID)
	if err != nil {
		return nil, err
	}

	var threads []review.FeedbackThread
	index := make(map[string]int)
	for _, note := range all {
		if note.ParentID != "" {
			continue
		}
		index[note.ID] = len(threads)
		threads = append(threads, review.FeedbackThread{
			TopLevelNoteID: note.ID,
			BlockID:        note.Metadata.BlockID,
			Category:       note.Metadata.Category,
			Severity:       note.Metadata.Severity,
			Body:           note.Body,
		})
	}
	for _, note := range all {
		if note.ParentID == "" {
			continue
		}
		i, ok := index[note.ParentID]
		if !ok {
			continue
		}
		threads[i].Replies = append(threads[i].Replies, review.ThreadReply{
			Author:   note.Author,
			Body:     note.Body,
			IsFromAI: note.Author == notes.AuthorAI,
		})
	}
	return threads, nil
}
