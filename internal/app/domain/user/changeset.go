package user

// NewRow is a row added on the grid that has not been saved yet. Key is the
// client-side row key used to match the result back to the row.
type NewRow struct {
	Key string `json:"key"`
	RegisterInput
}

// RowPatch carries the edited cells of a persisted row.
type RowPatch struct {
	ID    int64 `json:"id"`
	Patch Patch `json:"patch"`
}

// Changeset is a batch of grid edits pushed in one request.
type Changeset struct {
	Created []NewRow   `json:"created,omitempty"`
	Updated []RowPatch `json:"updated,omitempty"`
	Deleted []int64    `json:"deleted,omitempty"`
}

// Empty reports whether the changeset carries no work.
func (c Changeset) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Operation names used in row results.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// RowResult reports the outcome for one created or updated row.
type RowResult struct {
	Key               string `json:"key,omitempty"`
	ID                int64  `json:"id,omitempty"`
	Op                string `json:"op"`
	User              *User  `json:"user,omitempty"`
	TemporaryPassword string `json:"temporaryPassword,omitempty"`
	Error             string `json:"error,omitempty"`
}

// OK reports whether the row was saved.
func (r RowResult) OK() bool {
	return r.Error == ""
}

// SaveResult is the response to a changeset.
type SaveResult struct {
	Results []RowResult `json:"results"`
	Deleted int64       `json:"deleted"`
	// DeleteError is set when the deletes failed. Created and updated rows
	// are reported in Results either way.
	DeleteError string `json:"deleteError,omitempty"`
}
