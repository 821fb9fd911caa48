package relay

import (
	"errors"
)

// ErrUnresolvable means the reference points at nobody we can notify: either
// no such user record, or the record has no Telegram ID stored.
var ErrUnresolvable = errors.New("recipient cannot be resolved to a telegram chat id")

// UserLookup finds the stored Telegram ID for an internal user record.
// found is false when the record does not exist or carries no Telegram ID.
type UserLookup interface {
	TelegramIDByInternalID(internalID string) (chatID int64, found bool, err error)
}

type Resolver struct {
	lookup UserLookup
}

func NewResolver(lookup UserLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve turns a recipient reference into a Telegram chat ID. Numeric
// references pass straight through with no lookup at all; opaque references
// cost exactly one lookup. A lookup error is reported as-is so the caller can
// tell a broken store apart from a user who simply is not reachable.
func (resolver *Resolver) Resolve(ref Ref) (int64, error) {
	if ref.Numeric {
		return ref.ChatID, nil
	}
	chatID, found, err := resolver.lookup.TelegramIDByInternalID(ref.InternalID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrUnresolvable
	}
	return chatID, nil
}
