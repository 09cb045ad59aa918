package domain

import "time"

// Profile is a connected user as resolved by the identity service.
type Profile struct {
	UserID    string
	Username  string
	AvatarURL string
	Skill     int
}

// DisplayName falls back to the user ID when no username is set.
func (p Profile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID
}

// MatchRecord is a finished match as stored by the results repository.
type MatchRecord struct {
	MatchID    string
	WhiteID    string
	WhiteName  string
	BlackID    string
	BlackName  string
	Status     string
	Result     string
	Reason     string
	EndedBy    string
	Moves      []string
	Movetext   string
	FinalBoard string
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Duration   time.Duration
}
