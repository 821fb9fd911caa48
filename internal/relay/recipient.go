package relay

import (
	"strconv"
)

// A recipient reference arriving at the notify pipeline is either a Telegram
// chat ID or an internal user record ID. Internal IDs are opaque non-numeric
// strings, so a positive-integer parse always wins the ambiguity.
type Ref struct {
	ChatID     int64
	InternalID string
	Numeric    bool
}

func ParseRef(raw string) Ref {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		return Ref{ChatID: id, Numeric: true}
	}
	return Ref{InternalID: raw}
}

func (ref Ref) String() string {
	if ref.Numeric {
		return strconv.FormatInt(ref.ChatID, 10)
	}
	return ref.InternalID
}
