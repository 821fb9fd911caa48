package relay

import (
	"errors"

	"gorm.io/gorm"

	"workbridge/internal/model"
)

// DBLookup resolves internal user IDs against the users table.
type DBLookup struct {
	DB *gorm.DB
}

func (lookup DBLookup) TelegramIDByInternalID(internalID string) (int64, bool, error) {
	user := &model.User{}
	if err := lookup.DB.First(user, "id = ?", internalID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	if user.TelegramID == nil {
		return 0, false, nil
	}
	return *user.TelegramID, true, nil
}
