package token

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// DefaultProfileMaxAge is the expiry policy applied by the profile-answer
// endpoint. Expiry is not embedded in the token; each caller supplies its
// own max age, so the same token can be live for one caller and expired for
// another.
const DefaultProfileMaxAge = 30 * 24 * time.Hour

// ProfileData is the payload of a progressive-profiling link token.
type ProfileData struct {
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// ProfileService encodes and decodes profile link tokens. Tokens are
// base64url only, no signature: forging one buys nothing more than an
// unauthenticated survey answer for an arbitrary email.
type ProfileService struct {
	now func() time.Time
}

func NewProfileService() *ProfileService {
	return &ProfileService{now: time.Now}
}

// Encode packs email plus the current instant into a URL-safe token.
func (s *ProfileService) Encode(email string) string {
	payload, _ := json.Marshal(ProfileData{
		Email:     email,
		Timestamp: s.now().UnixMilli(),
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// Decode unpacks a token, failing closed on any decode or shape error.
func (s *ProfileService) Decode(tok string) (ProfileData, error) {
	payload, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return ProfileData{}, ErrInvalidToken
	}

	var data ProfileData
	if err := json.Unmarshal(payload, &data); err != nil {
		return ProfileData{}, ErrInvalidToken
	}
	if data.Email == "" || data.Timestamp == 0 {
		return ProfileData{}, ErrInvalidToken
	}

	return data, nil
}

// IsExpired reports whether a token created at timestampMillis is older than
// maxAge. Expiry policy belongs to the caller, not the token.
func (s *ProfileService) IsExpired(timestampMillis int64, maxAge time.Duration) bool {
	return s.now().UnixMilli()-timestampMillis > maxAge.Milliseconds()
}
