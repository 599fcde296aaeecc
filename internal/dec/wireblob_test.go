package dec

import (
	"testing"
	"time"

	"github.com/hkdb/tuvicore/internal/message"
	"github.com/stretchr/testify/require"
)

func TestWireBlobRoundTrip(t *testing.T) {
	original := &message.Message{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Subject:   "hello",
		TextBody:  "plain text",
		HTMLBody:  "<p>plain text</p>",
		Addresses: []message.Address{
			{Kind: message.AddressFrom, Name: "Alice", Email: "alice@example.test"},
			{Kind: message.AddressTo, Name: "Bob", Email: "bob@example.test"},
		},
		Attachments: []message.Attachment{
			{Filename: "a.txt", ContentType: "text/plain", Content: []byte("contents")},
		},
	}

	encoded, err := EncodeWireBlob(original)
	require.NoError(t, err)

	decoded, err := DecodeWireBlob(encoded)
	require.NoError(t, err)

	require.True(t, original.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, original.Subject, decoded.Subject)
	require.Equal(t, original.TextBody, decoded.TextBody)
	require.Equal(t, original.HTMLBody, decoded.HTMLBody)
	require.Equal(t, original.Addresses, decoded.Addresses)
	require.Equal(t, original.Attachments, decoded.Attachments)
}
