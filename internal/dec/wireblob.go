package dec

import (
	"encoding/json"
	"time"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/message"
)

// wireAddress and wireAttachment mirror message.Address/message.Attachment
// field-for-field; a dedicated wire shape decouples the transport format
// from the persistence model so a column rename on one side never breaks
// round-trip stability on the other.
type wireAddress struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type wireAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// wireBlob is the serialized JSON object sent over decentralized transport
// (§6): headers, body, attachments as byte arrays. It intentionally omits
// surrogate keys, folder membership and any local-only field.
type wireBlob struct {
	Timestamp   time.Time        `json:"timestamp"`
	Subject     string           `json:"subject"`
	TextBody    string           `json:"text_body"`
	HTMLBody    string           `json:"html_body"`
	Addresses   []wireAddress    `json:"addresses"`
	Attachments []wireAttachment `json:"attachments"`
}

// EncodeWireBlob serializes m to the JSON form sent over the wire, per §6.
func EncodeWireBlob(m *message.Message) ([]byte, error) {
	blob := wireBlob{
		Timestamp: m.Timestamp,
		Subject:   m.Subject,
		TextBody:  m.TextBody,
		HTMLBody:  m.HTMLBody,
	}
	for _, a := range m.Addresses {
		blob.Addresses = append(blob.Addresses, wireAddress{Kind: string(a.Kind), Name: a.Name, Email: a.Email})
	}
	for _, att := range m.Attachments {
		blob.Attachments = append(blob.Attachments, wireAttachment{Filename: att.Filename, ContentType: att.ContentType, Content: att.Content})
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "encode decentralized wire blob")
	}
	return data, nil
}

// DecodeWireBlob reverses EncodeWireBlob into a message.Message with no
// folder membership, external id, or flags set; the caller (the DEC
// mailbox) fills those in from the local insertion context.
func DecodeWireBlob(data []byte) (*message.Message, error) {
	var blob wireBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "decode decentralized wire blob")
	}
	m := &message.Message{
		Timestamp: blob.Timestamp,
		Subject:   blob.Subject,
		TextBody:  blob.TextBody,
		HTMLBody:  blob.HTMLBody,
	}
	for _, a := range blob.Addresses {
		m.Addresses = append(m.Addresses, message.Address{Kind: message.AddressKind(a.Kind), Name: a.Name, Email: a.Email})
	}
	for _, att := range blob.Attachments {
		m.Attachments = append(m.Attachments, message.Attachment{Filename: att.Filename, ContentType: att.ContentType, Content: att.Content})
	}
	return m, nil
}
