package localfs

// ListOptions configures the behavior of ListDirectory.
type ListOptions struct {
	// IncludeHidden includes hidden files (starting with .) in results.
	// Default is false (hidden files excluded).
	IncludeHidden bool
}

// ExpandOptions configures ExpandPaths.
type ExpandOptions struct {
	// IncludeHidden keeps hidden files found inside directory arguments.
	// A hidden file named explicitly is always kept.
	IncludeHidden bool
}
