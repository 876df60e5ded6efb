package types

import "fmt"

// IsValidID reports whether s looks like a platform identifier.
// Identifiers are 1-64 characters of [A-Za-z0-9_-].
func IsValidID(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidateSlowmodeBounds checks 0 <= min <= max <= platform cap.
// max == 0 means "no explicit ceiling" and is always acceptable.
func ValidateSlowmodeBounds(min, max int) error {
	if min < 0 {
		return fmt.Errorf("min slowmode %d is negative", min)
	}
	if min > PlatformMaxSlowmode {
		return fmt.Errorf("min slowmode %d exceeds platform cap %d", min, PlatformMaxSlowmode)
	}
	if max == 0 {
		return nil
	}
	if max < min {
		return fmt.Errorf("max slowmode %d is below min %d", max, min)
	}
	if max > PlatformMaxSlowmode {
		return fmt.Errorf("max slowmode %d exceeds platform cap %d", max, PlatformMaxSlowmode)
	}
	return nil
}

// ValidateSensitivity checks the user-facing offset range.
func ValidateSensitivity(offset int) error {
	if offset < MinSensitivity || offset > MaxSensitivity {
		return fmt.Errorf("sensitivity %d outside [%d, %d]", offset, MinSensitivity, MaxSensitivity)
	}
	return nil
}

// ValidateCachingSize checks the message-window capacity range.
func ValidateCachingSize(n int) error {
	if n < MinCachingSize || n > MaxCachingSize {
		return fmt.Errorf("caching size %d outside [%d, %d]", n, MinCachingSize, MaxCachingSize)
	}
	return nil
}
