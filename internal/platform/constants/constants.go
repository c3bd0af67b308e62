// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Books: Upload ceilings and artifact naming.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "folio-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	// Multipart uploads carry media files, so this is wider than a JSON API needs.
	DefaultReadTimeout = 60 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 90 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 100

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "folio.app"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderOrigin        = "Origin"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderContentType   = "Content-Type"
	HeaderDisposition   = "Content-Disposition"
	HeaderAuthorization = "Authorization"
	MediaTypeEPUB       = "application/epub+zip"
	MediaTypeMultipart   = "multipart/form-data"
)

// # Database Schemas

const (
	SchemaCore = "core"
)

// # Books

const (
	// DefaultMaxUploadBytes is the per-file ceiling for multipart uploads (50 MiB).
	DefaultMaxUploadBytes = 50 << 20

	// DefaultBookMaxPages bounds the pages of one book when no limit is configured.
	DefaultBookMaxPages = 1000

	// MultipartMemory is how much of a multipart body is buffered in memory before spilling to disk.
	MultipartMemory = 32 << 20

	// MaxAudioFiles and MaxVideoFiles bound the repeated file fields on a single request.
	MaxAudioFiles = 10
	MaxVideoFiles = 10

	// EbookSuffix and WatermarkSuffix name the two archives generated for each book.
	EbookSuffix     = ".epub"
	WatermarkSuffix = "_watermark.epub"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixBookLock = "lock:book:"
)
