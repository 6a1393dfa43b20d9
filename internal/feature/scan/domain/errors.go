// Package domain defines domain-level errors for the scan feature.
package domain

import "errors"

// Scan failures. All of them are terminal for a single scan; per-frame problems
// never surface here and degrade to a "not visible" verdict instead.
var (
	// ErrUnreadableImage indicates that the reference logo could not be decoded.
	ErrUnreadableImage = errors.New("logo image could not be decoded")

	// ErrInsufficientFeatures indicates that the reference logo yields no descriptors.
	ErrInsufficientFeatures = errors.New("logo image yields no extractable features")

	// ErrUnreadableMedia indicates that the video source could not be opened.
	ErrUnreadableMedia = errors.New("video source could not be opened")

	// ErrDegenerateMetadata indicates that neither the metadata nor the container
	// provide a duration, so the audience decay is undefined.
	// Only returned when the policy opts in; the default is to fall back to raw views.
	ErrDegenerateMetadata = errors.New("video duration and frame rate are both unknown")

	// ErrScanCanceled indicates that the scan was canceled or exceeded its time budget.
	ErrScanCanceled = errors.New("scan canceled")
)
