package scan

import (
	"fmt"
	"regexp"

	"github.com/michaelscutari/readdir/internal/config"
)

// ScanOptions configures the scanning behavior.
type ScanOptions struct {
	// ScanID identifies the scan in scan_meta. Empty gets a generated ID.
	ScanID string

	// Xdev prevents crossing filesystem boundaries.
	Xdev bool

	// FollowSymlinks recurses into symlinked directories. Cycles are not
	// detected.
	FollowSymlinks bool

	// MaxErrors is the maximum number of errors before aborting.
	// Zero means unlimited.
	MaxErrors int

	// ExcludePatterns are regular expressions for paths to skip.
	ExcludePatterns []*regexp.Regexp

	// BatchSize is the number of entries to batch before flushing to DB.
	BatchSize int

	// FlushIntervalMs is the maximum time between flushes in milliseconds.
	FlushIntervalMs int
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions() *ScanOptions {
	opts := &ScanOptions{
		Xdev:            true,
		BatchSize:       10000,
		FlushIntervalMs: 1000,
	}
	// Exclude NFS snapshot directories by default
	opts.AddExcludePattern(`/\.snapshot(/|$)`)
	return opts
}

// FromConfig builds options from the scan section of the CLI config.
func FromConfig(c config.ScanConfig) (*ScanOptions, error) {
	opts := &ScanOptions{
		Xdev:            c.Xdev,
		FollowSymlinks:  c.FollowSymlinks,
		MaxErrors:       c.MaxErrors,
		BatchSize:       c.BatchSize,
		FlushIntervalMs: c.FlushIntervalMs,
	}
	for _, p := range c.Exclude {
		if err := opts.AddExcludePattern(p); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}
	return opts, nil
}

// WithScanID sets the scan identifier.
func (o *ScanOptions) WithScanID(id string) *ScanOptions {
	o.ScanID = id
	return o
}

// WithXdev sets cross-device behavior.
func (o *ScanOptions) WithXdev(xdev bool) *ScanOptions {
	o.Xdev = xdev
	return o
}

// WithFollowSymlinks sets whether symlinked directories are entered.
func (o *ScanOptions) WithFollowSymlinks(follow bool) *ScanOptions {
	o.FollowSymlinks = follow
	return o
}

// WithMaxErrors sets the maximum error count.
func (o *ScanOptions) WithMaxErrors(n int) *ScanOptions {
	o.MaxErrors = n
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *ScanOptions) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o *ScanOptions) ShouldExclude(path string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
