package occtoken

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func newTestCodec(opts ...Option) *Codec {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewCodec("secret", opts...)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	token, err := codec.Encode("class-1", start, end)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	occ, err := codec.Decode(token, time.UTC)
	require.NoError(t, err)
	require.Equal(t, "class-1", occ.ClassID)
	require.True(t, occ.Start.Equal(start))
	require.True(t, occ.End.Equal(end))
}

func TestCodecEncodeIsDeterministic(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	first, err := codec.Encode("class-1", start, end)
	require.NoError(t, err)
	second, err := codec.Encode("class-1", start, end)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCodecNormalisesTimezones(t *testing.T) {
	codec := newTestCodec()
	loc := time.FixedZone("UTC+3", 3*60*60)
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	utcToken, err := codec.Encode("class-1", start, end)
	require.NoError(t, err)
	localToken, err := codec.Encode("class-1", start.In(loc), end.In(loc))
	require.NoError(t, err)
	require.Equal(t, utcToken, localToken)

	occ, err := codec.Decode(localToken, loc)
	require.NoError(t, err)
	require.Equal(t, loc, occ.Start.Location())
	require.True(t, occ.Start.Equal(start))
}

func TestCodecEncodeInvalidRange(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(24 * time.Hour)

	_, err := codec.Encode("class-1", start, start)
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = codec.Encode("class-1", start, start.Add(-time.Minute))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestCodecTamperDetection(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(24 * time.Hour)
	token, err := codec.Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	// Flipping any single byte must surface as a signature failure, never
	// as a decoded value with a corrupted field.
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		mutated := []byte(token)
		mutated[i] ^= 0x01
		_, err := codec.Decode(string(mutated), time.UTC)
		require.Error(t, err, "byte %d", i)
		require.ErrorIs(t, err, ErrBadSignature, "byte %d", i)
	}
}

func TestCodecForeignSecret(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	token, err := newTestCodec().Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	other := NewCodec("other-secret", WithClock(func() time.Time { return testNow }))
	_, err = other.Decode(token, time.UTC)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestCodecForeignSalt(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	token, err := newTestCodec().Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	other := newTestCodec(WithSalt("classbook.other-purpose.v1"))
	_, err = other.Decode(token, time.UTC)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestCodecMissingSignature(t *testing.T) {
	_, err := newTestCodec().Decode("not-even-a-token", time.UTC)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestCodecMalformedPayload(t *testing.T) {
	codec := newTestCodec()

	// Valid signatures over garbage payloads must fail as malformed.
	for _, raw := range []string{
		"!!!not-base64!!!",
		"e30", // {}
		"eyJjbGFzc19pZCI6ImMiLCJzdGFydCI6Im5vcGUiLCJlbmQiOiJub3BlIn0", // bad timestamps
	} {
		token := raw + "." + codec.sign(raw)
		_, err := codec.Decode(token, time.UTC)
		require.ErrorIs(t, err, ErrMalformedPayload, raw)
	}
}

func TestCodecDecodeInvalidRange(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(24 * time.Hour)

	// A payload that verifies but carries start >= end must be rejected.
	raw := `{"class_id":"class-1","start":"` + start.UTC().Format(time.RFC3339) +
		`","end":"` + start.UTC().Format(time.RFC3339) + `"}`
	encoded := base64.RawURLEncoding.EncodeToString([]byte(raw))
	token := encoded + "." + codec.sign(encoded)
	_, err := codec.Decode(token, time.UTC)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestCodecExpired(t *testing.T) {
	codec := newTestCodec(WithGrace(30 * time.Minute))
	start := testNow.Add(-time.Hour)
	token, err := codec.Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token, time.UTC)
	require.ErrorIs(t, err, ErrExpired)
}

func TestCodecWithinGraceIsNotExpired(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(-10 * time.Minute)
	token, err := codec.Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	occ, err := codec.Decode(token, time.UTC)
	require.NoError(t, err)
	require.True(t, occ.Start.Equal(start))
}

func TestCodecOutOfWindow(t *testing.T) {
	codec := newTestCodec()
	start := testNow.Add(61 * 24 * time.Hour)
	token, err := codec.Encode("class-1", start, start.Add(time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token, time.UTC)
	require.ErrorIs(t, err, ErrOutOfWindow)
}

