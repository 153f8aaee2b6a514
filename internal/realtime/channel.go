package realtime

import (
	"strings"

	"github.com/google/uuid"
)

// GeneralChannel is the broadcast room every connected client may join.
const GeneralChannel = "general"

const userChannelPrefix = "user_"

// UserChannel is the logical push address of a user.
func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// ParseUserChannel extracts the user id from a "user_<id>" channel name.
func ParseUserChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, userChannelPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, userChannelPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
