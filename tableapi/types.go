package tableapi

// Messages of the remote table service. Field names follow the service's
// JSON mapping.

type PaginationRequest struct {
	Size  int32  `json:"size,omitempty"`
	Token string `json:"token,omitempty"`
}

type PaginationResponse struct {
	NextToken string `json:"next_token,omitempty"`
}

type ListStreamsRequest struct {
	TableName  string            `json:"table_name"`
	Pagination PaginationRequest `json:"pagination"`
}

type StreamInfo struct {
	StreamID     int64  `json:"stream_id"`
	LastCommitID string `json:"last_commit_id"`
}

type ListStreamsResponse struct {
	TableName string       `json:"table_name"`
	Streams   []StreamInfo `json:"streams"`
	// Absent on the last page.
	Pagination *PaginationResponse `json:"pagination,omitempty"`
}

// NextToken returns the continuation token or an empty string on the last
// page.
func (r *ListStreamsResponse) NextToken() string {
	if r.Pagination == nil {
		return ""
	}
	return r.Pagination.NextToken
}

type GetCommitsRequest struct {
	TableName string `json:"table_name"`
	StreamID  int64  `json:"stream_id"`
	// Commits strictly after this id are returned. Empty reads from the start
	// of the stream.
	CommitIDAfter string `json:"commit_id_after,omitempty"`
}

type GetCommitsResponse struct {
	TableName string   `json:"table_name"`
	StreamID  int64    `json:"stream_id"`
	Commits   []Commit `json:"commits"`
}

type CommittedFile struct {
	Path string `json:"path"`
}

type CompactedFile struct {
	SrcFiles []CommittedFile `json:"src_files"`
	DstFile  *CommittedFile  `json:"dst_file,omitempty"`
}

type AddedFiles struct {
	AddedFiles []CommittedFile `json:"added_files"`
}

type ChangedFiles struct {
	DeletedFiles []CommittedFile `json:"deleted_files"`
}

type CompactedFiles struct {
	CompactedFiles []CompactedFile `json:"compacted_files"`
}

// Commit is one change event of a stream. At most one of the change fields
// is set. Change shapes this client doesn't know decode with none set.
type Commit struct {
	CommitID       string          `json:"commit_id"`
	AddedFiles     *AddedFiles     `json:"added_files,omitempty"`
	ChangedFiles   *ChangedFiles   `json:"changed_files,omitempty"`
	CompactedFiles *CompactedFiles `json:"compacted_files,omitempty"`
}

type ChangesCase int

const (
	ChangesNotSet ChangesCase = iota
	ChangesAddedFiles
	ChangesChangedFiles
	ChangesCompactedFiles
)

// ChangesCase reports which change field is set. A commit with more than one
// field set is not a valid message and reports ChangesNotSet.
func (c *Commit) ChangesCase() ChangesCase {
	set := ChangesNotSet
	count := 0
	if c.AddedFiles != nil {
		set = ChangesAddedFiles
		count++
	}
	if c.ChangedFiles != nil {
		set = ChangesChangedFiles
		count++
	}
	if c.CompactedFiles != nil {
		set = ChangesCompactedFiles
		count++
	}
	if count != 1 {
		return ChangesNotSet
	}
	return set
}
