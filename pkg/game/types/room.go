package types

import "fmt"

// RoomStatus is the lifecycle stage of a room.
type RoomStatus string

const (
	// RoomStatusWaiting rooms have fewer than two participants and accept joins.
	RoomStatusWaiting RoomStatus = "waiting"
	// RoomStatusActive rooms have two participants and a game in progress.
	RoomStatusActive RoomStatus = "active"
	// RoomStatusFinished rooms have reached a win or a draw.
	RoomStatusFinished RoomStatus = "finished"
)

// ParseRoomStatus parses the persisted form of a status.
func ParseRoomStatus(s string) (RoomStatus, error) {
	switch RoomStatus(s) {
	case RoomStatusWaiting, RoomStatusActive, RoomStatusFinished:
		return RoomStatus(s), nil
	default:
		return "", fmt.Errorf("unknown room status: %q", s)
	}
}

// MaxParticipants is the capacity of a room.
const MaxParticipants = 2

type Room struct {
	// ID is generated at creation and never changes
	ID string `json:"id"`
	// Code is the 4-digit code other players use to join
	Code string `json:"code"`
	// HostUserID is the creator of the room, who always plays X
	HostUserID string `json:"hostUserId"`
	// ParticipantUserIDs holds the host first, then the joiner
	ParticipantUserIDs []string   `json:"participantUserIds"`
	Status             RoomStatus `json:"status"`
	// CreatedAt is a Unix millisecond timestamp
	CreatedAt int64 `json:"createdAt"`
	// FinishedAt is a Unix millisecond timestamp, zero unless Status is finished
	FinishedAt int64 `json:"finishedAt,omitempty"`
}

// HasParticipant reports whether userID has joined the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Full reports whether the room is at capacity.
func (r *Room) Full() bool {
	return len(r.ParticipantUserIDs) >= MaxParticipants
}

func (r *Room) Copy() *Room {
	participants := make([]string, len(r.ParticipantUserIDs))
	copy(participants, r.ParticipantUserIDs)
	return &Room{
		ID:                 r.ID,
		Code:               r.Code,
		HostUserID:         r.HostUserID,
		ParticipantUserIDs: participants,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		FinishedAt:         r.FinishedAt,
	}
}
