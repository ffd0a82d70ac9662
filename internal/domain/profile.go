package domain

import "time"

// Profile is the public metadata of an identity.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	UpdatedAt time.Time
}

// ProfileSummary is the profile screen view: the profile plus counts.
type ProfileSummary struct {
	Profile         *Profile
	FavoriteCount   int
	CollectionCount int
}
