// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Template retention constants
const (
	// MaxTemplatesPerUser is the number of face embeddings kept per identity.
	// Older embeddings are evicted first once the limit is exceeded.
	MaxTemplatesPerUser = 3
)

// Face matching constants
const (
	// DefaultFaceTolerance is the maximum allowed minimum distance for a match.
	// Lower values = stricter matching
	DefaultFaceTolerance = 0.6

	// DefaultMinConfidence is the minimum allowed 1 - minDistance for a match
	DefaultMinConfidence = 0.4

	// MetricEuclidean and MetricCosine name the supported distance metrics
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// Upload constants
const (
	// DefaultMaxFileSize is the maximum decoded image size in bytes (5MB)
	DefaultMaxFileSize = 5 * 1024 * 1024

	// MultipartOverhead is extra room allowed on top of MaxFileSize for multipart
	// boundaries and headers before the request body is cut off
	MultipartOverhead = 64 * 1024
)

// Timing constants
const (
	// DefaultEncoderTimeout bounds a single call to the face embedding server
	DefaultEncoderTimeout = 30 * time.Second

	// SlowVerificationThreshold marks verifications that are logged as slow
	SlowVerificationThreshold = time.Second

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown
	ShutdownTimeout = 30 * time.Second
)

// Bulk enrollment constants
const (
	// EnrollWorkerPoolSize is the default number of parallel workers for the enroll command
	EnrollWorkerPoolSize = 4
)
