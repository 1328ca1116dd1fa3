package units

import (
	"fmt"
	"time"
)

// FrameTimeLayout is the layout used for animation frame labels.
const FrameTimeLayout = "2006-01-02 15:04:05.000 MST"

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime converts a UTC time to the specified timezone.
// Tables store timestamps in UTC; this converts them for display.
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "" || targetTimezone == "UTC" {
		return utcTime.UTC(), nil
	}
	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}
	return utcTime.In(loc), nil
}

// FormatFrameTime renders a frame timestamp in the display timezone,
// falling back to UTC when the zone cannot be loaded.
func FormatFrameTime(t time.Time, tz string) string {
	local, err := ConvertTime(t, tz)
	if err != nil {
		local = t.UTC()
	}
	return local.Format(FrameTimeLayout)
}
