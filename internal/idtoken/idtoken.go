// Package idtoken encodes and decodes the identity tokens shown as QR codes and scanned by
// staff at check-in.
//
// A token is a compact HS256 JWT. Decoding is total: any input, including camera noise,
// yields either a payload or an error matching ErrInvalid.
package idtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Version is the token layout understood by this package.
const Version = 1

// maxTokenLen bounds the work spent on a single scanned frame.
const maxTokenLen = 2048

// Kind identifies what a token points at.
type Kind string

const (
	KindUser       Kind = "user"
	KindTeamMember Kind = "teamMember"
)

var (
	// ErrInvalid matches every decode failure.
	ErrInvalid = errors.New("idtoken: invalid token")
	// ErrMalformedPayload is returned by Encode for payloads that could never decode.
	ErrMalformedPayload = errors.New("idtoken: malformed payload")
)

// Payload is the decoded content of a token. IssuedAt has whole-second precision in UTC.
type Payload struct {
	Type        Kind
	UserID      string
	TeamID      string
	HackathonID string
	IssuedAt    time.Time
}

// Validate checks that the ids required by the payload type are present and that a set
// IssuedAt survives encoding unchanged.
func (p Payload) Validate() error {
	if !p.IssuedAt.IsZero() && (p.IssuedAt.Location() != time.UTC || !p.IssuedAt.Equal(IssueTime(p.IssuedAt))) {
		return errors.New("issue time must be whole seconds in UTC")
	}
	switch p.Type {
	case KindUser:
		if p.UserID == "" {
			return errors.New("user token without user id")
		}
		if p.TeamID != "" || p.HackathonID != "" {
			return errors.New("user token carries team fields")
		}
	case KindTeamMember:
		if p.UserID == "" || p.TeamID == "" || p.HackathonID == "" {
			return errors.New("team member token requires user, team and hackathon ids")
		}
	default:
		return fmt.Errorf("unknown token type %q", p.Type)
	}
	return nil
}

// IssueTime returns t in the precision tokens carry.
func IssueTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

type claims struct {
	Version     int    `json:"ver"`
	Type        Kind   `json:"typ"`
	UserID      string `json:"uid"`
	TeamID      string `json:"tid,omitempty"`
	HackathonID string `json:"hid,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies identity tokens.
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCodec creates a codec. A ttl of zero issues tokens without expiry.
func NewCodec(key string, ttl time.Duration) *Codec {
	return &Codec{key: []byte(key), ttl: ttl, now: time.Now}
}

// Encode serialises p. A zero IssuedAt is replaced with the current time.
func (c *Codec) Encode(p Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	iat := p.IssuedAt
	if iat.IsZero() {
		iat = IssueTime(c.now())
	}
	cl := claims{
		Version:     Version,
		Type:        p.Type,
		UserID:      p.UserID,
		TeamID:      p.TeamID,
		HackathonID: p.HackathonID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(iat),
		},
	}
	if c.ttl > 0 {
		cl.ExpiresAt = jwt.NewNumericDate(iat.Add(c.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.key)
}

// Decode parses raw. It never panics; every failure matches ErrInvalid.
func (c *Codec) Decode(raw string) (p Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = Payload{}, invalid("unreadable token")
		}
	}()

	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Payload{}, invalid("empty token")
	case len(raw) > maxTokenLen:
		return Payload{}, invalid("token too long")
	case strings.Count(raw, ".") != 2:
		return Payload{}, invalid("not a signed token")
	}

	var cl claims
	tok, perr := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if perr != nil {
		switch {
		case errors.Is(perr, jwt.ErrTokenExpired):
			return Payload{}, invalid("token expired")
		case errors.Is(perr, jwt.ErrTokenSignatureInvalid):
			return Payload{}, invalid("bad signature")
		default:
			return Payload{}, invalid("unparseable token")
		}
	}
	if !tok.Valid {
		return Payload{}, invalid("unverified token")
	}
	if cl.Version != Version {
		return Payload{}, invalid(fmt.Sprintf("unsupported version %d", cl.Version))
	}
	if cl.IssuedAt == nil {
		return Payload{}, invalid("missing issue time")
	}

	p = Payload{
		Type:        cl.Type,
		UserID:      cl.UserID,
		TeamID:      cl.TeamID,
		HackathonID: cl.HackathonID,
		IssuedAt:    cl.IssuedAt.Time.UTC(),
	}
	if verr := p.Validate(); verr != nil {
		return Payload{}, invalid(verr.Error())
	}
	return p, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, reason)
}
