package batch

// ItemStatus is the processing outcome of a single keyword in a run.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one keyword record.
type Result struct {
	keyword string
	slug    string
	status  ItemStatus
	err     error
}

// NewOK creates a successful result for keyword written under slug.
func NewOK(keyword, slug string) Result {
	return Result{keyword: keyword, slug: slug, status: StatusOK}
}

// NewError creates a failed result. slug may be empty when the failure precedes slug assignment.
func NewError(keyword, slug string, err error) Result {
	return Result{keyword: keyword, slug: slug, status: StatusError, err: err}
}

// Keyword returns the source keyword.
func (r Result) Keyword() string { return r.keyword }

// Slug returns the archive base name assigned to the keyword.
func (r Result) Slug() string { return r.slug }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// OK reports whether the item succeeded.
func (r Result) OK() bool { return r.status == StatusOK }
