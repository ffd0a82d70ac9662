package dto

import (
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Auth requests.

type SignUpRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	Password    string `json:"password"    validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"omitempty,max=80"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,notempty"`
}

// SetSessionRequest installs tokens obtained elsewhere, such as a magic link.
type SetSessionRequest struct {
	AccessToken  string `json:"accessToken"  validate:"required"`
	RefreshToken string `json:"refreshToken"`
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// SessionResponse never carries the refresh token.
type SessionResponse struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`

	// Pending is set after a sign-up that still needs email confirmation.
	Pending bool `json:"pending,omitempty"`
}

func NewSessionResponse(s domain.Session) SessionResponse {
	if s.AccessToken == "" {
		return SessionResponse{Pending: true}
	}

	return SessionResponse{
		UserID:      s.Identity.UserID,
		Email:       s.Identity.Email,
		DisplayName: s.Identity.DisplayName,
		AvatarURL:   s.Identity.AvatarURL,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Quotes.

// QuoteListRequest is the query of GET /quotes. Any of Query, Category or
// Author switches from paging to search.
type QuoteListRequest struct {
	PaginationRequest

	Query    string `form:"q"        validate:"omitempty,max=200"`
	Category string `form:"category" validate:"omitempty,max=80"`
	Author   string `form:"author"   validate:"omitempty,max=120"`
}

func (r QuoteListRequest) Filter() domain.QuoteFilter {
	return domain.QuoteFilter{
		Query:    r.Query,
		Category: r.Category,
		Author:   r.Author,
		Limit:    r.GetLimit(),
	}
}

type QuoteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Text:      q.Text,
		Author:    q.Author,
		Category:  q.Category,
		CreatedAt: q.CreatedAt,
	}
}

func NewQuoteResponses(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, NewQuoteResponse(q))
	}

	return out
}

func quoteRef(q *domain.Quote) *QuoteResponse {
	if q == nil {
		return nil
	}

	r := NewQuoteResponse(*q)

	return &r
}

// Favorites.

type FavoriteResponse struct {
	ID        string         `json:"id"`
	QuoteID   string         `json:"quoteId"`
	CreatedAt time.Time      `json:"createdAt"`
	Quote     *QuoteResponse `json:"quote,omitempty"`
}

func NewFavoriteResponses(favs []domain.Favorite) []FavoriteResponse {
	out := make([]FavoriteResponse, 0, len(favs))
	for _, f := range favs {
		out = append(out, FavoriteResponse{
			ID:        f.ID,
			QuoteID:   f.QuoteID,
			CreatedAt: f.CreatedAt,
			Quote:     quoteRef(f.Quote),
		})
	}

	return out
}

// ToggleResponse reports the optimistic state after a toggle. Outcome is
// filled in only when the caller waited for the write to settle.
type ToggleResponse struct {
	QuoteID      string `json:"quoteId"`
	CollectionID string `json:"collectionId,omitempty"`
	Selected     bool   `json:"selected"`
	Outcome      string `json:"outcome,omitempty"`
}

// Collections.

type CreateCollectionRequest struct {
	Name     string   `json:"name"     validate:"required,notempty,max=80"`
	QuoteIDs []string `json:"quoteIds" validate:"omitempty,max=100,dive,required"`
}

type RenameCollectionRequest struct {
	Name string `json:"name" validate:"required,notempty,max=80"`
}

type AddItemRequest struct {
	QuoteID string `json:"quoteId" validate:"required,notempty"`
}

type CollectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewCollectionResponse(c domain.Collection) CollectionResponse {
	return CollectionResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func NewCollectionResponses(cs []domain.Collection) []CollectionResponse {
	out := make([]CollectionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewCollectionResponse(c))
	}

	return out
}

type ItemResponse struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collectionId"`
	QuoteID      string         `json:"quoteId"`
	CreatedAt    time.Time      `json:"createdAt"`
	Quote        *QuoteResponse `json:"quote,omitempty"`
}

func NewItemResponse(it domain.CollectionItem) ItemResponse {
	return ItemResponse{
		ID:           it.ID,
		CollectionID: it.CollectionID,
		QuoteID:      it.QuoteID,
		CreatedAt:    it.CreatedAt,
		Quote:        quoteRef(it.Quote),
	}
}

func NewItemResponses(items []domain.CollectionItem) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, NewItemResponse(it))
	}

	return out
}

// MembershipResponse lists the caller's collections holding a quote.
type MembershipResponse struct {
	QuoteID       string   `json:"quoteId"`
	CollectionIDs []string `json:"collectionIds"`
}

// Profile.

type ProfileRequest struct {
	Username  string `json:"username"  validate:"required,notempty,max=40"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
}

type ProfileResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewProfileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{ID: p.ID, Username: p.Username, AvatarURL: p.AvatarURL, UpdatedAt: p.UpdatedAt}
}

type SummaryResponse struct {
	Profile         *ProfileResponse `json:"profile"`
	FavoriteCount   int              `json:"favoriteCount"`
	CollectionCount int              `json:"collectionCount"`
}

func NewSummaryResponse(s domain.ProfileSummary) SummaryResponse {
	resp := SummaryResponse{FavoriteCount: s.FavoriteCount, CollectionCount: s.CollectionCount}
	if s.Profile != nil {
		p := NewProfileResponse(*s.Profile)
		resp.Profile = &p
	}

	return resp
}

// Notifications.

type NotificationSettingsRequest struct {
	Enabled *bool  `json:"enabled" validate:"required"`
	Time    string `json:"time"    validate:"required,clock"`
}

type NotificationSettingsResponse struct {
	Enabled     bool       `json:"enabled"`
	Time        string     `json:"time"`
	NextTrigger *time.Time `json:"nextTrigger,omitempty"`
}

// Alerts.

type AlertResponse struct {
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func NewAlertResponses(alerts []ports.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{Kind: string(a.Kind), Title: a.Title, Message: a.Message, At: a.At})
	}

	return out
}
