// Package token implements the stateless capability tokens used by the
// gated-download and progressive-profiling flows.
//
// Download tokens are HMAC-SHA256 signed and expire; they gate lead magnet
// downloads behind a "check your email" flow without user accounts. Profile
// tokens are encoded but deliberately unsigned: they carry no more authority
// than submitting a survey answer for an email address, and the design
// accepts that risk to avoid storing per-recipient state.
//
// Neither service stores anything server-side. A token is valid purely as a
// function of its contents, the process-wide secret, and the clock; there is
// no revocation.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidToken is the single failure value for every way a token can be
// bad: malformed, tampered with, structurally incomplete, or expired.
// Callers that need a distinct "missing token" case must check for absence
// before calling Validate.
var ErrInvalidToken = errors.New("token: invalid or expired token")

// DefaultDownloadTTL is how long a freshly issued download link stays valid.
const DefaultDownloadTTL = 7 * 24 * time.Hour

// DownloadClaims binds a subscriber email to a single gated resource.
type DownloadClaims struct {
	Email    string `json:"email"`
	MagnetID string `json:"magnetId"`
	Exp      int64  `json:"exp"` // epoch milliseconds
}

// DownloadService issues and validates signed download tokens. It is pure
// and safe for concurrent use.
type DownloadService struct {
	secret []byte
	now    func() time.Time
}

func NewDownloadService(secret string) *DownloadService {
	return &DownloadService{secret: []byte(secret), now: time.Now}
}

// Issue mints a token granting email access to magnetID until ttl elapses.
// The wire format is base64url(JSON claims) + "." + base64url(signature).
func (s *DownloadService) Issue(email, magnetID string, ttl time.Duration) string {
	claims := DownloadClaims{
		Email:    email,
		MagnetID: magnetID,
		Exp:      s.now().Add(ttl).UnixMilli(),
	}
	payload, _ := json.Marshal(claims)
	data := base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + s.sign(data)
}

// Validate checks signature, shape and expiry. Every failure collapses to
// ErrInvalidToken; Validate never panics on adversarial input.
func (s *DownloadService) Validate(tok string) (DownloadClaims, error) {
	data, sig, ok := strings.Cut(tok, ".")
	if !ok || data == "" || sig == "" {
		return DownloadClaims{}, ErrInvalidToken
	}

	// hmac.Equal keeps the comparison constant-time.
	if !hmac.Equal([]byte(sig), []byte(s.sign(data))) {
		return DownloadClaims{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return DownloadClaims{}, ErrInvalidToken
	}

	var claims DownloadClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return DownloadClaims{}, ErrInvalidToken
	}
	if claims.Email == "" || claims.MagnetID == "" {
		return DownloadClaims{}, ErrInvalidToken
	}
	if s.now().UnixMilli() > claims.Exp {
		return DownloadClaims{}, ErrInvalidToken
	}

	return claims, nil
}

func (s *DownloadService) sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
