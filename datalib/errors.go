package datalib

import "fmt"

// LibraryError reports a fatal condition while opening or building a
// library: a missing file, an inconsistent group count between the
// transmutation and decay sources, or a truncated record. It always
// carries enough file/offset context to locate the problem, the way the
// original's error() calls embedded a file name and record index.
type LibraryError struct {
	File    string
	Offset  int64
	Msg     string
	Inner   error
}

func (e *LibraryError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s (offset %d): %s: %v", e.File, e.Offset, e.Msg, e.Inner)
	}
	return fmt.Sprintf("%s (offset %d): %s", e.File, e.Offset, e.Msg)
}

func (e *LibraryError) Unwrap() error { return e.Inner }
