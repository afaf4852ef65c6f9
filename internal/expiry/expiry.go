package expiry

import (
	"fmt"
	"strconv"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultExpiryLocation sets the default time location for expiry calculations (fallback UTC).
func SetDefaultExpiryLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// Location returns the location used for expiry calculations.
func Location() *time.Location {
	return defaultLoc
}

// ValidateMonth checks that mm is a two-digit month 01..12.
func ValidateMonth(mm string) error {
	if len(mm) != 2 || !digits(mm) {
		return fmt.Errorf("expiry month must be 2 digits")
	}
	if m, _ := strconv.Atoi(mm); m < 1 || m > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}

// ValidateYear checks that yyyy is a four-digit year.
func ValidateYear(yyyy string) error {
	if len(yyyy) != 4 || !digits(yyyy) {
		return fmt.Errorf("expiry year must be 4 digits")
	}
	return nil
}

// ParseMonthYear returns the last instant of month mm in year yyyy in loc.
func ParseMonthYear(mm, yyyy string, loc *time.Location) (time.Time, error) {
	if err := ValidateMonth(mm); err != nil {
		return time.Time{}, err
	}
	if err := ValidateYear(yyyy); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = defaultLoc
	}
	m, _ := strconv.Atoi(mm)
	y, _ := strconv.Atoi(yyyy)
	return endOfMonth(y, time.Month(m), loc), nil
}

// IsExpired reports whether 'at' is strictly after the end of the expiry month.
func IsExpired(mm, yyyy string, at time.Time, loc *time.Location) (bool, error) {
	end, err := ParseMonthYear(mm, yyyy, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}

// YearRange returns the first and last year a card issued at now may carry
// when expiries span 'years' years after the current one.
func YearRange(now time.Time, years int) (int, int) {
	y := now.In(defaultLoc).Year()
	if years < 0 {
		years = 0
	}
	return y, y + years
}

// CardFace returns the MM/YY imprint for a month and four-digit year.
func CardFace(mm, yyyy string) string {
	if len(yyyy) == 4 {
		yyyy = yyyy[2:]
	}
	return mm + "/" + yyyy
}

func endOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	firstNext := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond)
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
