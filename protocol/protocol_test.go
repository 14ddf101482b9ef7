package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &Message{
		Kind:       KindText,
		Content:    "hello there",
		SenderID:   7,
		ReceiverID: 12,
		Timestamp:  time.Date(2024, 3, 15, 10, 30, 45, 123456789, time.Local),
	}

	decoded, err := Decode(Encode(original))
	require.NoError(t, err)

	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Content, decoded.Content)
	assert.Equal(t, original.SenderID, decoded.SenderID)
	assert.Equal(t, original.ReceiverID, decoded.ReceiverID)
	// The wire format carries second resolution only.
	assert.True(t, decoded.Timestamp.Equal(original.Timestamp.Truncate(time.Second)),
		"want %v, got %v", original.Timestamp.Truncate(time.Second), decoded.Timestamp)
}

func TestRoundTripAllKinds(t *testing.T) {
	for _, kind := range []Kind{KindLogin, KindLogout, KindText, KindFile, KindStatus, KindError} {
		decoded, err := Decode(Encode(NewMessage(kind, "payload", 1, 2)))
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, decoded.Kind)
	}
}

func TestRoundTripSentinels(t *testing.T) {
	decoded, err := Decode(Encode(NewMessage(KindText, "broadcast", NoID, NoID)))
	require.NoError(t, err)
	assert.Equal(t, NoID, decoded.SenderID)
	assert.Equal(t, NoID, decoded.ReceiverID)
}

func TestDecodeTruncated(t *testing.T) {
	for _, record := range []string{
		"",
		"TEXT",
		"TEXT|1",
		"TEXT|1|2",
		"TEXT|1|2|2024-03-15 10:30:45",
	} {
		_, err := Decode([]byte(record))
		assert.ErrorIs(t, err, ErrTruncated, "record %q", record)
	}
}

func TestDecodeEmptyContent(t *testing.T) {
	decoded, err := Decode([]byte("TEXT|1|2|2024-03-15 10:30:45|"))
	require.NoError(t, err)
	assert.Equal(t, "", decoded.Content)
}

func TestDecodeBadInteger(t *testing.T) {
	_, err := Decode([]byte("TEXT|abc|2|2024-03-15 10:30:45|hi"))
	assert.ErrorIs(t, err, ErrBadInteger)

	_, err = Decode([]byte("TEXT|1|abc|2024-03-15 10:30:45|hi"))
	assert.ErrorIs(t, err, ErrBadInteger)
}

func TestDecodeBadTimestamp(t *testing.T) {
	for _, ts := range []string{"", "yesterday", "2024-03-15T10:30:45Z", "15.03.2024 10:30"} {
		_, err := Decode([]byte("TEXT|1|2|" + ts + "|hi"))
		assert.ErrorIs(t, err, ErrBadTimestamp, "timestamp %q", ts)
	}
}

func TestDecodeUnknownKindDefaultsToText(t *testing.T) {
	decoded, err := Decode([]byte("BOGUS|1|2|2024-03-15 10:30:45|hi"))
	require.NoError(t, err)
	assert.Equal(t, KindText, decoded.Kind)

	// Kind names are case-sensitive: a lowercase token is unknown.
	decoded, err = Decode([]byte("login|1|2|2024-03-15 10:30:45|hi"))
	require.NoError(t, err)
	assert.Equal(t, KindText, decoded.Kind)
}

func TestContentKeepsDelimiters(t *testing.T) {
	// The decode split is capped at 5 fields, so delimiters inside the
	// content survive the trip.
	decoded, err := Decode(Encode(NewMessage(KindText, "a|b|c", 1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "a|b|c", decoded.Content)
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "LOGIN", KindLogin.String())
	assert.Equal(t, "ERROR", KindError.String())
	assert.Equal(t, KindStatus, ParseKind("STATUS"))
	assert.Equal(t, KindText, ParseKind("whatever"))
}
