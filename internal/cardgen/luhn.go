package cardgen

// LuhnValid reports whether digits satisfies the Luhn checksum. Inputs
// shorter than two characters or containing non-digits are never valid.
func LuhnValid(digits string) bool {
	if len(digits) < 2 || !IsDigits(digits) {
		return false
	}
	body := digits[:len(digits)-1]
	return LuhnCheckDigit(body) == digits[len(digits)-1]
}

// LuhnCheckDigit returns the digit that makes body+digit Luhn-valid. The
// digit adjacent to the check position is doubled first.
func LuhnCheckDigit(body string) byte {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return '0' + byte((10-(sum%10))%10)
}
