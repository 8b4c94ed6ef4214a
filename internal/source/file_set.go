package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// FileSet manages a collection of source files addressed by FileID.
type FileSet struct {
	files []*File
	index map[string]FileID // path -> latest id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]*File, 0),
		index: make(map[string]FileID),
	}
}

// NewFile builds a standalone File with its line tracker but without a content hash.
// The reparse engine uses it for every text revision of an open document.
func NewFile(id FileID, path string, content []byte, flags FileFlags) *File {
	if bytes.Contains(content, []byte("\r\n")) {
		flags |= FileHasCRLF
	}
	return &File{
		ID:      id,
		Path:    path,
		Content: content,
		Lines:   NewTracker(content),
		Flags:   flags,
	}
}

// Revise builds the next revision of f after changes (given in f's
// coordinates). The line tracker is updated instead of rebuilt.
func (f *File) Revise(content []byte, changes []Change) *File {
	flags := f.Flags &^ FileHasCRLF
	if bytes.Contains(content, []byte("\r\n")) {
		flags |= FileHasCRLF
	}
	lines := f.Lines
	if lines == nil {
		lines = NewTracker(f.Content)
	}
	return &File{
		ID:      f.ID,
		Path:    f.Path,
		Content: content,
		Lines:   lines.Apply(content, changes),
		Flags:   flags,
	}
}

// Add stores content under path and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	normalizedPath := normalizePath(path)
	f := NewFile(id, normalizedPath, content, flags)
	f.Hash = sha256.Sum256(content)
	fileSet.files = append(fileSet.files, f)
	// индекс всегда указывает на последнюю версию
	fileSet.index[normalizedPath] = id
	return id
}

// Load reads a file from disk, strips a UTF-8 BOM and calls Add.
// Line terminators are preserved as-is.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content, hadBOM := removeBOM(content)
	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds an in-memory file with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file for id, or nil when id is unknown.
func (fileSet *FileSet) Get(id FileID) *File {
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return fileSet.files[id]
}

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// Len returns the number of stored files.
func (fileSet *FileSet) Len() int { return len(fileSet.files) }

// Resolve converts a span into start and end positions.
func (fileSet *FileSet) Resolve(span Span) (start, end Position) {
	f := fileSet.Get(span.File)
	if f == nil {
		return Position{}, Position{}
	}
	return f.Lines.SpanRange(span)
}

// Line returns the text of the 0-based line without its terminator.
func (f *File) Line(line uint32) string {
	start, ok := f.Lines.LineStart(line)
	if !ok {
		return ""
	}
	return string(f.Content[start:f.Lines.ContentEnd(line)])
}

// Len returns the content length in bytes.
func (f *File) Len() uint32 { return lenU32(f.Content) }

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}
	return content, false
}

func normalizePath(p string) string {
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}
