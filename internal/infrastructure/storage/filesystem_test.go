package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/margin-labs/margin/pkg/domain/notes"
	"github.com/margin-labs/margin/pkg/domain/review"
)

func newWorkspace(t *testing.T) *FilesystemWorkspace {
	t.Helper()
	w := NewFilesystemWorkspace(t.TempDir())
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize workspace: %v", err)
	}
	return w
}

func TestInitializeAndDetect(t *testing.T) {
	root := t.TempDir()
	w := NewFilesystemWorkspace(root)

	if w.IsInitialized() {
		t.Error("fresh directory should not be initialized")
	}
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !w.IsInitialized() {
		t.Error("workspace should be detected after initialize")
	}
	for _, dir := range []string{DocumentsDir, NotesDir} {
		if _, err := os.Stat(filepath.Join(root, MarginDir, dir)); err != nil {
			t.Errorf("missing %s directory: %v", dir, err)
		}
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	w := newWorkspace(t)

	doc := &notes.Document{
		ID:    "post-42",
		Title: "Why plugins",
		Blocks: []review.Block{
			{ID: "b1", Type: "paragraph", Text: "Plugins are easy.", Position: 0},
		},
	}
	if err := w.SaveDocument(doc); err != nil {
		t.Fatalf("save document: %v", err)
	}

	got, err := w.GetDocument("post-42")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got == nil || got.Title != "Why plugins" || len(got.Blocks) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestGetDocument_UnknownID(t *testing.T) {
	w := newWorkspace(t)

	got, err := w.GetDocument("never-saved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("unknown id should yield nil, got %+v", got)
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	w := newWorkspace(t)

	if err := w.SaveDocument(&notes.Document{ID: "../escape"}); err == nil {
		t.Error("traversal id must be rejected on save")
	}
	if _, err := w.CreateNote(notes.CreateNoteRequest{DocumentID: "a/b"}); err == nil {
		t.Error("slash in document id must be rejected on note creation")
	}
	if doc, err := w.GetDocument("../../etc/passwd"); err != nil || doc != nil {
		t.Errorf("traversal id should read as not-found, got %v, %v", doc, err)
	}
}

func TestNotesAppendAndList(t *testing.T) {
	w := newWorkspace(t)

	first, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1",
		Body:       "root feedback",
		Author:     notes.AuthorAI,
		Metadata:   notes.Metadata{BlockID: "b1", Category: review.FocusContent, Severity: review.SeverityImportant},
	})
	if err != nil {
		t.Fatalf("create root note: %v", err)
	}
	if _, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1",
		ParentID:   first,
		Body:       "a reply",
		Author:     "dana",
	}); err != nil {
		t.Fatalf("create reply: %v", err)
	}

	all, err := w.ListNotes("doc-1")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(all))
	}
	if all[0].ID != first || all[1].ParentID != first {
		t.Errorf("append order or threading wrong: %+v", all)
	}
	if all[0].Metadata.CreatedAt.IsZero() {
		t.Error("created timestamp should be filled in")
	}
}

func TestListNotes_SkipsCorruptLines(t *testing.T) {
	w := newWorkspace(t)

	if _, err := w.CreateNote(notes.CreateNoteRequest{DocumentID: "doc-1", Body: "good"}); err != nil {
		t.Fatalf("create note: %v", err)
	}
	path := filepath.Join(w.Root(), MarginDir, NotesDir, "doc-1.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open notes file: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write corrupt line: %v", err)
	}
	f.Close()

	all, err := w.ListNotes("doc-1")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(all) != 1 || all[0].Body != "good" {
		t.Errorf("corrupt line should be skipped, got %+v", all)
	}
}

func TestFindExistingThread(t *testing.T) {
	w := newWorkspace(t)

	root, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1",
		Body:       "thread root",
		Metadata:   notes.Metadata{BlockID: "b1", BlockType: "paragraph", BlockIndex: 0},
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if _, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1",
		ParentID:   root,
		Body:       "reply",
		Metadata:   notes.Metadata{BlockID: "b1", BlockType: "paragraph", BlockIndex: 0},
	}); err != nil {
		t.Fatalf("create reply: %v", err)
	}

	// Exact block id match.
	got, err := w.FindExistingThread("doc-1", "b1", "paragraph", 0)
	if err != nil || got != root {
		t.Errorf("exact match: got %q, %v; want %q", got, err, root)
	}

	// Rotated block id falls back to type + index, roots only.
	got, err = w.FindExistingThread("doc-1", "b-rotated", "paragraph", 0)
	if err != nil || got != root {
		t.Errorf("fallback match: got %q, %v; want %q", got, err, root)
	}

	// No match at all.
	got, err = w.FindExistingThread("doc-1", "b9", "heading", 3)
	if err != nil || got != "" {
		t.Errorf("expected empty id, got %q, %v", got, err)
	}
}

func TestThreadsForDocument(t *testing.T) {
	w := newWorkspace(t)

	root, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1",
		Body:       "needs a source",
		Author:     notes.AuthorAI,
		Metadata:   notes.Metadata{BlockID: "b1", Category: review.FocusContent, Severity: review.SeverityImportant},
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if _, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1", ParentID: root, Body: "added one", Author: "dana",
	}); err != nil {
		t.Fatalf("create human reply: %v", err)
	}
	if _, err := w.CreateNote(notes.CreateNoteRequest{
		DocumentID: "doc-1", ParentID: root, Body: "looks resolved", Author: notes.AuthorAI,
	}); err != nil {
		t.Fatalf("create AI reply: %v", err)
	}

	threads, err := w.ThreadsForDocument("doc-1")
	if err != nil {
		t.Fatalf("threads: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	th := threads[0]
	if th.TopLevelNoteID != root || th.BlockID != "b1" || th.Category != review.FocusContent {
		t.Errorf("thread root wrong: %+v", th)
	}
	if len(th.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(th.Replies))
	}
	if th.Replies[0].IsFromAI || th.Replies[0].Author != "dana" {
		t.Errorf("human reply misattributed: %+v", th.Replies[0])
	}
	if !th.Replies[1].IsFromAI {
		t.Errorf("AI reply should be flagged: %+v", th.Replies[1])
	}
}
