// Package binlookup resolves descriptive metadata for a card BIN prefix.
//
// Lookups consult the curated Table first, then an optional Cache, then the
// remote Client. Any remote failure degrades to Unknown(); callers never see
// an error.
package binlookup

// Sentinel values for fields with no known data.
const (
	UnknownBank    = "UNKNOWN BANK"
	UnknownCountry = "UNKNOWN"
	UnknownScheme  = "UNKNOWN"
	UnknownType    = "UNKNOWN"
	UnknownLevel   = "N/A"
)

// Source tells where a Record came from.
type Source string

const (
	SourceCurated  Source = "curated"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Record is the metadata shown alongside generated cards.
type Record struct {
	Bank         string `json:"bank"`
	Country      string `json:"country"`
	CountryEmoji string `json:"emoji"`
	Scheme       string `json:"scheme"`
	CardType     string `json:"type"`
	Level        string `json:"level"`
	BankPhone    string `json:"phone,omitempty"`
	BankURL      string `json:"url,omitempty"`

	Source Source `json:"-"`
}

// Unknown returns the record used when no data is available.
func Unknown() Record {
	return Record{
		Bank:         UnknownBank,
		Country:      UnknownCountry,
		CountryEmoji: "",
		Scheme:       UnknownScheme,
		CardType:     UnknownType,
		Level:        UnknownLevel,
		Source:       SourceFallback,
	}
}

// Key returns the lookup key for a prefix: its first 8 characters.
func Key(prefix string) string {
	if len(prefix) > 8 {
		return prefix[:8]
	}
	return prefix
}
