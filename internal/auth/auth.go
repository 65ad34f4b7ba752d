package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried by an access token. Tokens are minted by the
// external auth service; this package only verifies them.
type Claims struct {
	UserID     uint64
	Nickname   string
	ProfileURL string
}

type tokenClaims struct {
	Nickname   string `json:"nickname"`
	ProfileURL string `json:"profile_url,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	uid, err := strconv.ParseUint(tc.Subject, 10, 64)
	if err != nil || uid == 0 {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:     uid,
		Nickname:   tc.Nickname,
		ProfileURL: tc.ProfileURL,
	}, nil
}

// Sign is used by tests and dev tooling; production tokens come from the
// auth service.
func (v *Verifier) Sign(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		Nickname:   c.Nickname,
		ProfileURL: c.ProfileURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(c.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(v.secret)
}
