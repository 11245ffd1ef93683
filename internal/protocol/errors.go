package protocol

import "strings"

// Drop reasons reported by the relay.
const (
	ReasonBadJSON   = "E_BAD_JSON"
	ReasonSchema    = "E_SCHEMA"
	ReasonTooLarge  = "E_TOO_LARGE"
	ReasonQueueFull = "E_QUEUE_FULL"
)

var knownReasons = []string{
	ReasonBadJSON,
	ReasonSchema,
	ReasonTooLarge,
	ReasonQueueFull,
}

func KnownReasons() []string { return append([]string(nil), knownReasons...) }

// ReasonOf extracts the drop reason prefix from an error produced by this
// package. Unknown errors map to ReasonBadJSON.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, r := range knownReasons {
		if strings.HasPrefix(msg, r+":") {
			return r
		}
	}
	return ReasonBadJSON
}
