package constants

import (
	"time"
)

// Upload validation
const (
	// MaxUploadSize - client-side limit for a single non-archive upload (100 MiB).
	// Archive files (see ArchiveExtensions) are exempt.
	MaxUploadSize = 100 * 1024 * 1024

	// UploadFieldPath - multipart field carrying the destination directory
	UploadFieldPath = "path"

	// UploadFieldFiles - multipart field name repeated once per uploaded file
	UploadFieldFiles = "files[]"
)

// ArchiveExtensions lists the lower-case extensions (without dot) that bypass
// the MaxUploadSize check.
var ArchiveExtensions = []string{"zip", "tar", "gz", "rar", "7z"}

// Work directory endpoints
const (
	EndpointListFiles    = "/get_work_dir_files"
	EndpointDeleteFile   = "/delete_work_dir_file"
	EndpointUploadFiles  = "/upload_work_dir_files"
	EndpointDownloadFile = "/download_work_dir_file"
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond file size (15%)
	DiskSpaceBufferPercent = 0.15
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates (250ms)
	// Balances responsiveness with performance
	ProgressUpdateInterval = 250 * time.Millisecond
)

// API and Context Timeouts
const (
	// DefaultRequestTimeout - default timeout for list and delete requests (60 seconds).
	// Uploads and downloads are bounded only by cancellation.
	DefaultRequestTimeout = 60 * time.Second

	// MaxErrorBodyBytes - cap on how much of a failed response body is read
	MaxErrorBodyBytes = 64 * 1024
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// Retry configuration (opt-in; the default is no retry)
const (
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second

	// MaxRetriesLimit - upper bound accepted for the max_retries setting
	MaxRetriesLimit = 10
)
