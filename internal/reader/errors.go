package reader

// Operations reported in Error.Op.
const (
	OpReadDir = "readdir"
	OpStat    = "stat"
	OpRecurse = "recurse"
	OpFilter  = "filter"
	OpEmit    = "emit"
)

// Error describes a failure confined to one path. Traversal continues after
// it unless Root is set, in which case nothing could be listed at all.
type Error struct {
	Op   string
	Path string
	Root bool
	Err  error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
