package models

import (
	"errors"
	"regexp"
	"time"
)

// Archive names must be lowercase alphanumeric with hyphens.
var archiveNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// Archive errors
var (
	ErrArchiveNotFound    = errors.New("archive not found")
	ErrInvalidArchiveName = errors.New("invalid archive name: must be lowercase alphanumeric with hyphens")
	ErrArchiveTooLarge    = errors.New("archive exceeds size limit")
	ErrTooManyArchives    = errors.New("maximum number of archives reached")
)

// ValidateArchiveName checks if an archive name is valid.
// Names must be lowercase alphanumeric with hyphens, no spaces or special chars.
func ValidateArchiveName(name string) error {
	if name == "" {
		return ErrInvalidArchiveName
	}
	if len(name) > 128 {
		return ErrInvalidArchiveName
	}
	if !archiveNameRegex.MatchString(name) {
		return ErrInvalidArchiveName
	}
	return nil
}

// ReportArchive is a named, durable copy of an analysis report, kept for
// comparing deployments over time.
type ReportArchive struct {
	// Name is the unique archive identifier.
	Name string `json:"name"`

	// Description is an optional user-provided description.
	Description string `json:"description,omitempty"`

	// Created is when the archive was saved.
	Created time.Time `json:"created"`

	// Version is the archive format version for forward compatibility.
	Version int `json:"version"`

	// Report is the archived analysis report.
	Report *AnalysisReport `json:"report"`
}

// ArchiveMetadata describes a saved archive without the full report body.
type ArchiveMetadata struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Created     time.Time     `json:"created"`
	SizeBytes   int64         `json:"size_bytes"`
	Summary     ReportSummary `json:"summary"`
}
