package server

// Message Type Constants
const (
	// Namespace Operations
	MsgMkdir  = "mkdir"
	MsgCreate = "create"
	MsgLs     = "ls"
	MsgDelete = "delete"
	MsgRename = "rename"
	MsgStat   = "stat"

	// Data Operations
	MsgWrite = "write"
	MsgRead  = "read"

	// Store-wide Operations
	MsgFind   = "find"
	MsgStatFs = "statfs"
	MsgCheck  = "check"
)

// --- Payload Structs ---

type MkdirRequest struct {
	Path string `json:"path"`
}

type CreateRequest struct {
	Path string `json:"path"`
}

type LsRequest struct {
	Path string `json:"path"`
}

type DeleteRequest struct {
	Path string `json:"path"`
}

type RenameRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type StatRequest struct {
	Path string `json:"path"`
}

type WriteRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

type WriteResponse struct {
	Written int `json:"written"`
}

type ReadRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Size   int    `json:"size"`
}

type FindRequest struct {
	Pattern string `json:"pattern"`
	Filter  string `json:"filter,omitempty"`
	Root    string `json:"root,omitempty"`
}

type StatFsRequest struct{}

type CheckRequest struct{}
