package discovery

import (
	"strings"
)

// TXT record keys of _mediaremotetv._tcp.
const (
	TXTKeyName               = "Name"
	TXTKeyUniqueIdentifier   = "UniqueIdentifier"
	TXTKeyModelName          = "ModelName"
	TXTKeySystemBuildVersion = "SystemBuildVersion"
	TXTKeyAllowPairing       = "AllowPairing"
)

// TXT holds the TXT record of an MRP service.
type TXT struct {
	// Name is the user-visible device name. Required.
	Name string

	// UniqueIdentifier identifies the device across restarts. Required.
	UniqueIdentifier string

	// ModelName is the localized model name, e.g. "Apple TV".
	ModelName string

	// SystemBuildVersion is the OS build, e.g. "18K561".
	SystemBuildVersion string

	// AllowPairing reports whether the device accepts pair setup.
	AllowPairing bool
}

// Encode converts the TXT record to DNS-SD format strings.
func (t *TXT) Encode() []string {
	records := []string{
		TXTKeyName + "=" + t.Name,
		TXTKeyUniqueIdentifier + "=" + t.UniqueIdentifier,
	}
	if t.ModelName != "" {
		records = append(records, TXTKeyModelName+"="+t.ModelName)
	}
	if t.SystemBuildVersion != "" {
		records = append(records, TXTKeySystemBuildVersion+"="+t.SystemBuildVersion)
	}
	if t.AllowPairing {
		records = append(records, TXTKeyAllowPairing+"=YES")
	}
	return records
}

// Validate checks that the required keys are set.
func (t *TXT) Validate() error {
	if t.Name == "" || t.UniqueIdentifier == "" {
		return ErrInvalidTXTRecord
	}
	return nil
}

// ParseTXT parses raw TXT record strings into a map.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}

// ParseServiceTXT parses raw TXT records of an MRP service. Unknown keys
// are ignored.
func ParseServiceTXT(records []string) *TXT {
	m := ParseTXT(records)
	return &TXT{
		Name:               m[TXTKeyName],
		UniqueIdentifier:   m[TXTKeyUniqueIdentifier],
		ModelName:          m[TXTKeyModelName],
		SystemBuildVersion: m[TXTKeySystemBuildVersion],
		AllowPairing:       strings.EqualFold(m[TXTKeyAllowPairing], "YES"),
	}
}
