package main

import "github.com/pkg/errors"

// Setup errors
var (
	ErrLogLevel  = errors.New("unknown log level")
	ErrLogFormat = errors.New("unknown log format")
)

// Filter errors
var (
	ErrChecksumWithoutDigest = errors.New("checksum file requires a digest algorithm")
	ErrWriteChecksum         = errors.New("write checksum file")
)
