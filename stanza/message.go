// Copyright 2015 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"git.sr.ht/~jingle-ibb/xmpp/internal/ns"
	"git.sr.ht/~jingle-ibb/xmpp/jid"
	"mellium.im/xmlstream"
)

// Message is an XMPP stanza that is used for one-to-one or broadcast
// communication between entities, including chat messages and notifications.
type Message struct {
	XMLName xml.Name    `xml:"message"`
	ID      string      `xml:"id,attr"`
	To      *jid.JID    `xml:"to,attr"`
	From    *jid.JID    `xml:"from,attr"`
	Lang    string      `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`
}

// NewMessage unmarshals an XML token into a Message.
func NewMessage(start xml.StartElement) (Message, error) {
	v := Message{}
	d := xml.NewTokenDecoder(xmlstream.Wrap(nil, start))
	err := d.Decode(&v)
	return v, err
}

// StartElement converts the Message into an XML token, keeping whatever
// namespace is already set on XMLName but forcing the localname to
// "message".
func (m Message) StartElement() xml.StartElement {
	name := m.XMLName
	name.Local = "message"

	attr := make([]xml.Attr, 0, 5)
	if m.ID != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: m.ID})
	}
	if m.To != nil {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: m.To.String()})
	}
	if m.From != nil {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "from"}, Value: m.From.String()})
	}
	if m.Lang != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Space: ns.XML, Local: "lang"}, Value: m.Lang})
	}
	if m.Type != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(m.Type)})
	}

	return xml.StartElement{Name: name, Attr: attr}
}

// Wrap wraps the payload in a stanza.
func (m Message) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, m.StartElement())
}

// MessageType is the type of a message stanza.
// It should normally be one of the constants defined in this package.
type MessageType string

const (
	// NormalMessage is a single message sent outside the context of a one-to-one
	// conversation or groupchat and the default if no type is specified.
	NormalMessage MessageType = "normal"

	// ChatMessage is sent in the context of a one-to-one chat session.
	ChatMessage MessageType = "chat"

	// GroupChatMessage is sent in the context of a multi-user chat environment.
	GroupChatMessage MessageType = "groupchat"

	// HeadlineMessage provides an alert, a notification, or other transient
	// information and is not usually saved or displayed to the user.
	HeadlineMessage MessageType = "headline"

	// ErrorMessage indicates that an error has occurred regarding processing of
	// a previously sent message; the stanza MUST include an <error/> child.
	ErrorMessage MessageType = "error"
)
