package journal

// CurrentVersion tags the persisted snapshot format.
const CurrentVersion = 1

// persistentState is the serialized snapshot layout. Completed folders are
// stored as a sorted slice so consecutive snapshots of equal state are
// byte-identical.
type persistentState struct {
	Version          int               `json:"version"`
	Files            map[string]string `json:"files"`
	CompletedFolders []string          `json:"completed_folders"`
	PendingFolders   map[string]int64  `json:"pending_folders,omitempty"`
	LastUploadUnix   int64             `json:"last_upload_unix,omitempty"`
}

// deltaRecord is one appended line of the delta log. Exactly one of the op
// payloads is meaningful depending on Op.
type deltaRecord struct {
	Op       string `json:"op"` // "file" | "folder"
	Path     string `json:"path,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Folder   string `json:"folder,omitempty"`
}

const (
	opFile   = "file"
	opFolder = "folder"
)
