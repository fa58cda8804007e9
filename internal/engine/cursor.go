package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ResumeCursor is the (category, page) position a blocked crawl resumes
// from. It is a plain value: the scheduler replaces it on each transition
// instead of mutating it in place.
type ResumeCursor struct {
	CategoryIndex int `json:"category_index"`
	PageNumber    int `json:"page_number"`
}

// StartCursor is the cursor of a fresh cycle: first category, first page.
var StartCursor = ResumeCursor{CategoryIndex: 0, PageNumber: 1}

// IsStart reports whether the cursor points at the beginning of a cycle.
func (c ResumeCursor) IsStart() bool {
	return c.CategoryIndex == 0 && c.PageNumber == 1
}

func (c ResumeCursor) String() string {
	return fmt.Sprintf("category=%d page=%d", c.CategoryIndex, c.PageNumber)
}

// cursorFile is the on-disk shape, with a timestamp for operators.
type cursorFile struct {
	Cursor  ResumeCursor `json:"cursor"`
	SavedAt time.Time    `json:"saved_at"`
}

// CursorStore persists the resume cursor across process restarts so a
// blocked crawl continues where it left off.
type CursorStore struct {
	path string
}

// NewCursorStore creates a store writing to path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Load reads the persisted cursor. A missing file yields StartCursor.
func (s *CursorStore) Load() (ResumeCursor, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return StartCursor, nil
		}
		return StartCursor, fmt.Errorf("open cursor file: %w", err)
	}
	defer f.Close()

	var data cursorFile
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return StartCursor, fmt.Errorf("decode cursor file: %w", err)
	}
	if data.Cursor.PageNumber < 1 {
		data.Cursor.PageNumber = 1
	}
	if data.Cursor.CategoryIndex < 0 {
		data.Cursor.CategoryIndex = 0
	}
	return data.Cursor, nil
}

// Save writes the cursor atomically (temp file, then rename).
func (s *CursorStore) Save(c ResumeCursor) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cursor dir: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create cursor file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cursorFile{Cursor: c, SavedAt: time.Now().UTC()}); err != nil {
		f.Close()
		return fmt.Errorf("encode cursor: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename cursor file: %w", err)
	}
	return nil
}

// Reset removes the persisted cursor.
func (s *CursorStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
