package errors

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrFeedUnavailable             = errors.New("feed unavailable")
	ErrMalformedLeaseDuration      = errors.New("malformed lease duration")
	ErrAnnotationStoreCorrupt      = errors.New("annotation store corrupt")
	ErrAnnotationStoreNotWritable  = errors.New("annotation store not writable")
	ErrMACAddressInvalidLength     = errors.New("MAC address must be 12 hex characters")
	ErrMACAddressInvalidCharacters = errors.New("MAC address contains invalid characters")
	ErrIconNotFound                = errors.New("icon not found")
	ErrDeviceNotAssociated         = errors.New("device is not associated with any wireless interface")
	ErrRequiredToolNotFound        = errors.New("required tool not found")
	ErrCommandTimeout              = errors.New("command timed out")
	ErrFileWatcherAlreadyEnabled   = errors.New("file watcher already enabled")
	ErrPublisherNotConnected       = errors.New("publisher not connected")
)

// ErrFeedUnavailableWithName tags ErrFeedUnavailable with the feed name and cause.
func ErrFeedUnavailableWithName(feed string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrFeedUnavailable, feed)
	}

	return fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, feed, cause)
}

func ErrIconNotFoundWithPath(path string) error {
	return fmt.Errorf("%w: %s", ErrIconNotFound, path)
}

func ErrDeviceNotAssociatedWithMAC(mac string) error {
	return fmt.Errorf("%w: %s", ErrDeviceNotAssociated, mac)
}

func ErrRequiredToolNotFoundWithTool(tool string) error {
	return fmt.Errorf("%w: %s", ErrRequiredToolNotFound, tool)
}
