package models

import "time"

// Member is the slice of a guild member the detectors look at.
type Member struct {
	GuildID       string
	UserID        string
	Username      string
	Bot           bool
	CreatedAt     time.Time
	RoleIDs       []string
	Administrator bool
}

type JoinRecord struct {
	GuildID          string
	UserID           string
	Username         string
	AccountCreatedAt time.Time
	JoinedAt         time.Time
}

func NewJoinRecord(m Member, joinedAt time.Time) JoinRecord {
	return JoinRecord{
		GuildID:          m.GuildID,
		UserID:           m.UserID,
		Username:         m.Username,
		AccountCreatedAt: m.CreatedAt,
		JoinedAt:         joinedAt,
	}
}

// Member rebuilds the roleless member view of a recorded joiner.
func (r JoinRecord) Member() Member {
	return Member{
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Username:  r.Username,
		CreatedAt: r.AccountCreatedAt,
	}
}

type Message struct {
	GuildID      string
	ChannelID    string
	MessageID    string
	Author       Member
	Content      string
	UserMentions int
	RoleMentions int
	Timestamp    time.Time
}

type MessageSummary struct {
	Content      string
	MentionCount int
	URLs         []string
	At           time.Time
}
