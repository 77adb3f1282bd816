package domain

import "time"

// FileMeta describes a candidate or admitted upload file.
// Name and Size together identify a file for duplicate detection.
type FileMeta struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"lastModified"`
}

// SameFile reports whether two records refer to the same logical file
// (same name and same byte size).
func (f FileMeta) SameFile(other FileMeta) bool {
	return f.Name == other.Name && f.Size == other.Size
}
