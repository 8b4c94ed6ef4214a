package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a source file.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file was added from memory (editor buffer, test, stdin).
	FileVirtual FileFlags = 1 << iota
	// FileHadBOM marks files whose UTF-8 byte order mark was stripped on load.
	FileHadBOM
	// FileHasCRLF marks files that contain at least one "\r\n" terminator.
	// Content is never rewritten: heredoc terminators are matched against raw lines.
	FileHasCRLF
)

// File captures metadata and content for a single source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	Lines   *Tracker
	Hash    [32]byte
	Flags   FileFlags
}

// Position is an editor-facing location. Line and Character are 0-based;
// Character counts UTF-16 code units. Offset is the byte offset it was derived from.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
	Offset    uint32 `json:"offset"`
}

// Change describes one replaced byte range in base coordinates:
// [Start, OldEnd) of the old text became NewLen bytes.
type Change struct {
	Start  uint32
	OldEnd uint32
	NewLen uint32
}

// Delta returns NewLen - (OldEnd - Start).
func (c Change) Delta() int64 {
	return int64(c.NewLen) - int64(c.OldEnd-c.Start)
}
