package filesystem

import "io"

// File is a reference to a single open file on the mounted filesystem.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}
