package batch

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

// Item status values.
const (
	StatusOK ItemStatus = "ok"
	// StatusSkipped marks an entity rejected by the builder and removed from the index.
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of processing one entity in a bulk run.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful result.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewSkipped creates a result for a rejected entity; reason says why.
func NewSkipped(id string, reason error) Result {
	return Result{id: id, status: StatusSkipped, err: reason}
}

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the document identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error or skip reason, if any.
func (r Result) Err() error { return r.err }

// Summary counts results by status.
type Summary struct {
	OK      int
	Skipped int
	Failed  int
}

// Summarize tallies a result slice.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.status {
		case StatusOK:
			s.OK++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Failed++
		}
	}
	return s
}
