package git

import "time"

// FileStatus is the state of one path in the index and the working tree.
type FileStatus struct {
	Path     string `json:"path"`
	Staging  string `json:"staging"`
	Worktree string `json:"worktree"`
}

// Status represents the working tree status.
type Status struct {
	Branch string       `json:"branch"`
	Clean  bool         `json:"clean"`
	Files  []FileStatus `json:"files"`
}

// Identity is the name and email attributed to a commit.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Valid reports whether both parts are present.
func (i Identity) Valid() bool {
	return i.Name != "" && i.Email != ""
}

// CommitOptions describes a commit. Empty Files means every changed path.
type CommitOptions struct {
	Message string
	Files   []string
	Author  Identity
}

// CommitSummary describes one commit in a log listing.
type CommitSummary struct {
	Hash        string    `json:"hash"`
	ShortHash   string    `json:"short_hash"`
	Message     string    `json:"message"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Time        time.Time `json:"time"`
	Parents     []string  `json:"parents,omitempty"`
}

// Diff file states.
const (
	DiffAdded    = "added"
	DiffDeleted  = "deleted"
	DiffModified = "modified"
	DiffRenamed  = "renamed"
)

// Chunk types.
const (
	ChunkEqual  = "equal"
	ChunkAdd    = "add"
	ChunkDelete = "delete"
)

// Chunk is a contiguous run of equal, added or deleted content.
type Chunk struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// FileDiff is the normalized diff of a single path.
type FileDiff struct {
	Path      string  `json:"path"`
	OldPath   string  `json:"old_path,omitempty"`
	Status    string  `json:"status"`
	Binary    bool    `json:"binary"`
	Additions int     `json:"additions"`
	Deletions int     `json:"deletions"`
	Chunks    []Chunk `json:"chunks,omitempty"`
}

func (d *FileDiff) addChunk(typ, content string) {
	if content == "" {
		return
	}
	switch typ {
	case ChunkAdd:
		d.Additions += countLines(content)
	case ChunkDelete:
		d.Deletions += countLines(content)
	}
	d.Chunks = append(d.Chunks, Chunk{Type: typ, Content: content})
}

func countLines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		n++
	}
	return n
}

// ShortSHA returns the 7-character short SHA.
func ShortSHA(fullSHA string) string {
	if len(fullSHA) < 7 {
		return fullSHA
	}
	return fullSHA[:7]
}
