package entry

// Chunk is one unit of traversal output.
type Chunk struct {
	// Path is the entry's logical path.
	Path string
	// Stats is set only when metadata payloads were requested.
	Stats *Stats

	IsFile    bool
	IsDir     bool
	IsSymlink bool
}

// Payload returns the Stats when present, otherwise the logical path.
func (c Chunk) Payload() any {
	if c.Stats != nil {
		return c.Stats
	}
	return c.Path
}

// Classified reports whether the chunk carries kind information. Chunks
// produced without resolving metadata have none.
func (c Chunk) Classified() bool {
	return c.IsFile || c.IsDir || c.IsSymlink
}
