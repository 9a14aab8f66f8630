// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for read-only HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultMaxBodyBytes caps the size of a submitted batch body.
	DefaultMaxBodyBytes = 1 << 20
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespBodyTooLarge is returned when the request body exceeds DefaultMaxBodyBytes.
	RespBodyTooLarge = "request body too large"
	// RespTooManyRequests is returned when batch submissions exceed the configured rate.
	RespTooManyRequests = "too many batch submissions, retry later"
	// RespQueryParamMissing is returned when a required path or query parameter is missing.
	RespQueryParamMissing = "query param missing or invalid"
	// RespNoInput is returned when a submission holds no usable URL.
	RespNoInput = "please enter at least one url"
	// RespToolMissing is returned when a required external tool is not installed.
	RespToolMissing = "required tool is not installed"
	// RespBatchInProgress is returned when the session is already running a batch.
	RespBatchInProgress = "a batch is already running for this session"
	// RespBatchFailed is returned when a batch could not be run at all.
	RespBatchFailed = "batch failed"
	// RespBatchFinished is returned when a batch produced at least one file.
	RespBatchFinished = "batch finished"
	// RespNoSuccess is returned when a batch ran but every item failed.
	RespNoSuccess = "no files were successfully downloaded"
	// RespResultsRetrieved is returned when the session results are listed.
	RespResultsRetrieved = "results retrieved"
	// RespCapabilities is returned by the capability probe endpoint.
	RespCapabilities = "capabilities probed"
	// RespFileNotFound is returned when a result file is not found.
	RespFileNotFound = "file not found"
	// RespFileOpenFail is returned when a result file cannot be opened.
	RespFileOpenFail = "file open failed"
)

// Session transport keys.
const (
	// HeaderSessionID carries the session identifier.
	HeaderSessionID = "X-Session-ID"
	// CookieSessionID carries the session identifier for browser clients.
	CookieSessionID = "vidbatch_session"
)

// Downloader identifiers.
const (
	// DownloaderYTdlp is the yt-dlp downloader identifier.
	DownloaderYTdlp = "ytdlp"
)
