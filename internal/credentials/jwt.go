package credentials

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hilthontt/syncbroker/internal/domain"
)

// tokenTTL bounds how long a signed token remains acceptable. Neither
// spec.md nor the teacher names an explicit session lifetime; a generous
// bound keeps long-lived collaboration sessions usable while still giving
// verifyJwt something to reject.
const tokenTTL = 24 * time.Hour

// Signer signs and verifies the broker's JWT-based tokens. The secret is
// read from the environment once; if absent, one is generated lazily at
// first use and cached for the process lifetime (tokens are then
// invalidated across restarts, as spec.md's environment section allows).
type Signer struct {
	once   sync.Once
	secret []byte
	env    func(string) (string, bool)
}

// NewSigner constructs a Signer reading JWT_PRIVATE_KEY from the process
// environment.
func NewSigner() *Signer {
	return &Signer{env: os.LookupEnv}
}

func (s *Signer) resolveSecret() []byte {
	s.once.Do(func() {
		if v, ok := s.env("JWT_PRIVATE_KEY"); ok && v != "" {
			s.secret = []byte(v)
			return
		}
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic("credentials: failed to generate process secret: " + err.Error())
		}
		s.secret = buf
	})
	return s.secret
}

type payloadClaims struct {
	Data json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

// GenerateJWT signs payload (a User or a RoomClaim) with the broker-wide
// secret using HMAC-SHA256.
func (s *Signer) GenerateJWT(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("credentials: marshal payload: %w", err)
	}

	claims := payloadClaims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.resolveSecret())
}

// VerifyJWT validates signature and expiry, then unmarshals the embedded
// payload into out. Fails with domain.ErrAuthInvalid on any problem.
func (s *Signer) VerifyJWT(tokenString string, out any) error {
	var claims payloadClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.resolveSecret(), nil
	})
	if err != nil || !token.Valid {
		return domain.ErrAuthInvalid
	}

	if err := json.Unmarshal(claims.Data, out); err != nil {
		return domain.ErrAuthInvalid
	}
	return nil
}

// GetUser decodes a user token, failing with domain.ErrAuthInvalid if the
// required id/name fields are missing.
func (s *Signer) GetUser(tokenString string) (domain.User, error) {
	var u domain.User
	if err := s.VerifyJWT(tokenString, &u); err != nil {
		return domain.User{}, err
	}
	if u.ID == "" || u.Name == "" {
		return domain.User{}, domain.ErrAuthInvalid
	}
	return u, nil
}

// GetRoomClaim decodes a room-claim token.
func (s *Signer) GetRoomClaim(tokenString string) (domain.RoomClaim, error) {
	var c domain.RoomClaim
	if err := s.VerifyJWT(tokenString, &c); err != nil {
		return domain.RoomClaim{}, err
	}
	if c.Room == "" || c.User.ID == "" {
		return domain.RoomClaim{}, domain.ErrAuthInvalid
	}
	return c, nil
}
