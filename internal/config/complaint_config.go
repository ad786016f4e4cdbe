package config

import "time"

const (
	// Lock
	LockDurationMinutes = 480
	LockDuration        = LockDurationMinutes * time.Minute

	// Attachments
	MaxImagesPerComplaint = 5
	MaxPdfsPerComplaint   = 5

	// Sweeper
	DefaultSweepInterval = time.Hour

	// Listing
	DefaultPageSize = 15
	MaxPageSize     = 100

	// Auth
	DefaultTokenTTL = 72 * time.Hour
)
