package decompress

import (
	"io/fs"
	"time"
)

// FileType identifies the kind of archive entry a File represents.
type FileType string

const (
	// TypeFile is a regular file with content in File.Data.
	TypeFile FileType = "file"

	// TypeDirectory is a directory entry.
	TypeDirectory FileType = "directory"

	// TypeSymlink is a symbolic link; File.Linkname holds the verbatim target.
	TypeSymlink FileType = "symlink"

	// TypeLink is a hard link; File.Linkname holds the source path relative to the output root.
	TypeLink FileType = "link"
)

// File is the uniform record produced by format plugins and consumed by every later stage.
type File struct {
	// Path is the archive-relative, slash-separated path. Directory entries
	// usually keep their trailing slash.
	Path string

	// Type is the entry kind.
	Type FileType

	// Data is the file content. It is only set for TypeFile.
	Data []byte

	// Mode holds the permission bits recorded in the archive.
	Mode fs.FileMode

	// Mtime is the modification time recorded in the archive.
	Mtime time.Time

	// Linkname is the link target for TypeSymlink and TypeLink entries.
	Linkname string
}

// IsDir reports whether the record is a directory entry.
func (f File) IsDir() bool {
	return f.Type == TypeDirectory
}

// String returns a short human readable description used in logs.
func (f File) String() string {
	switch f.Type {
	case TypeSymlink, TypeLink:
		return string(f.Type) + " " + f.Path + " -> " + f.Linkname
	default:
		return string(f.Type) + " " + f.Path
	}
}
