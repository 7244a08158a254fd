package occtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Decode failure modes. Every rejected token maps to exactly one of these.
var (
	ErrInvalidRange     = errors.New("occtoken: start must be before end")
	ErrBadSignature     = errors.New("occtoken: signature mismatch")
	ErrMalformedPayload = errors.New("occtoken: malformed payload")
	ErrExpired          = errors.New("occtoken: session start is in the past")
	ErrOutOfWindow      = errors.New("occtoken: session start is beyond the booking horizon")
)

const (
	// DefaultSalt separates occurrence-token signatures from any other
	// HMAC use of the same secret.
	DefaultSalt = "classbook.occurrence.v1"

	// DefaultGrace is how far in the past a token's start may lie before
	// decoding rejects it outright.
	DefaultGrace = time.Hour

	// DefaultHorizon bounds how far ahead a session may be booked.
	DefaultHorizon = 60 * 24 * time.Hour
)

// payload is the signed wire shape. Field order is fixed, which keeps
// encoding/json output byte-stable across re-encodes of the same occurrence.
type payload struct {
	ClassID string `json:"class_id"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Occurrence is the decoded content of a valid token.
type Occurrence struct {
	ClassID string
	Start   time.Time
	End     time.Time
}

// Codec signs and verifies occurrence tokens. It is stateless and safe for
// concurrent use.
type Codec struct {
	secret  []byte
	salt    []byte
	grace   time.Duration
	horizon time.Duration
	now     func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithSalt overrides the domain-separation salt.
func WithSalt(salt string) Option {
	return func(c *Codec) {
		if salt != "" {
			c.salt = []byte(salt)
		}
	}
}

// WithGrace overrides how far in the past a start may lie at decode time.
func WithGrace(grace time.Duration) Option {
	return func(c *Codec) {
		if grace > 0 {
			c.grace = grace
		}
	}
}

// WithHorizon overrides the future booking horizon.
func WithHorizon(horizon time.Duration) Option {
	return func(c *Codec) {
		if horizon > 0 {
			c.horizon = horizon
		}
	}
}

// WithClock injects a deterministic time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a codec around the server-held secret.
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret:  []byte(secret),
		salt:    []byte(DefaultSalt),
		grace:   DefaultGrace,
		horizon: DefaultHorizon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs an occurrence into an opaque token. Instants are normalised to
// UTC so the token is timezone-independent.
func (c *Codec) Encode(classID string, start, end time.Time) (string, error) {
	if !start.Before(end) {
		return "", ErrInvalidRange
	}

	raw, err := json.Marshal(payload{
		ClassID: classID,
		Start:   start.UTC().Format(time.RFC3339),
		End:     end.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies a token and returns its occurrence with instants converted
// to the provided location. A nil location keeps UTC.
func (c *Codec) Decode(token string, loc *time.Location) (*Occurrence, error) {
	// Structural failures are reported as signature failures so callers
	// cannot distinguish corruption from forgery.
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrBadSignature
	}
	if !hmac.Equal([]byte(c.sign(encoded)), []byte(signature)) {
		return nil, ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformedPayload
	}
	if p.ClassID == "" {
		return nil, ErrMalformedPayload
	}
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	now := c.now()
	if start.Before(now.Add(-c.grace)) {
		return nil, ErrExpired
	}
	if start.After(now.Add(c.horizon)) {
		return nil, ErrOutOfWindow
	}

	if loc == nil {
		loc = time.UTC
	}
	return &Occurrence{
		ClassID: p.ClassID,
		Start:   start.In(loc),
		End:     end.In(loc),
	}, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write(c.salt)
	_, _ = mac.Write([]byte("|"))
	_, _ = mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
