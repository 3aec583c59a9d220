// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"git.sr.ht/~jingle-ibb/xmpp/internal/ns"
	"git.sr.ht/~jingle-ibb/xmpp/jid"
	"mellium.im/xmlstream"
)

// IQType is the type of an info/query (IQ) stanza.
// It should normally be one of the constants defined in this package.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity, set new values, and
	// replace existing values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ is sent to report that an error occurred during the delivery or
	// processing of a get or set IQ.
	ErrorIQ IQType = "error"
)

// IQ ("Information Query") is used as a general request response mechanism.
// IQ's are one-to-one, provide get and set semantics, and always require a
// response in the form of a result or an error.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	ID      string   `xml:"id,attr"`
	To      *jid.JID `xml:"to,attr"`
	From    *jid.JID `xml:"from,attr"`
	Lang    string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    IQType   `xml:"type,attr"`
}

// StartElement converts the IQ into an XML token, keeping whatever namespace
// is already set on XMLName but forcing the localname to "iq".
func (iq IQ) StartElement() xml.StartElement {
	name := iq.XMLName
	name.Local = "iq"

	attr := make([]xml.Attr, 0, 5)
	if iq.ID != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: iq.ID})
	}
	if iq.To != nil {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: iq.To.String()})
	}
	if iq.From != nil {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "from"}, Value: iq.From.String()})
	}
	if iq.Lang != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Space: ns.XML, Local: "lang"}, Value: iq.Lang})
	}
	if iq.Type != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(iq.Type)})
	}

	return xml.StartElement{Name: name, Attr: attr}
}

// Wrap wraps the payload in a stanza.
//
// If payload is nil the resulting IQ will have no child elements, which is
// only valid for IQs of type result.
func (iq IQ) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, iq.StartElement())
}

// WrapIQ is identical to the IQ type's Wrap method; it exists so that call
// sites that already have an IQ value in hand (rather than a pointer to
// chain methods off of) can wrap a payload in one expression.
func WrapIQ(iq IQ, payload xml.TokenReader) xml.TokenReader {
	return iq.Wrap(payload)
}

// Result returns a token reader for a result IQ built from iq: the type is
// switched to "result" and to/from are swapped, matching the usual request/
// response addressing.
func (iq IQ) Result(payload xml.TokenReader) xml.TokenReader {
	iq.Type = ResultIQ
	iq.To, iq.From = iq.From, iq.To
	return iq.Wrap(payload)
}

// Error returns a token reader for an error IQ built from iq wrapping e: the
// type is switched to "error" and to/from are swapped.
func (iq IQ) Error(e Error) xml.TokenReader {
	iq.Type = ErrorIQ
	iq.To, iq.From = iq.From, iq.To
	return iq.Wrap(e.TokenReader())
}

// UnmarshalIQError checks whether start begins an <error/> child (as found on
// an IQ of type error) and, if so, decodes it into a stanza.Error and returns
// it as the error result. If start is not an <error/> element, a nil error is
// returned and r is left for the caller to continue decoding the payload.
func UnmarshalIQError(r xml.TokenReader, start xml.StartElement) (xml.StartElement, error) {
	if start.Name.Local != "error" {
		return start, nil
	}
	se := Error{}
	d := xml.NewTokenDecoder(xmlstream.Wrap(xmlstream.Inner(r), start))
	if err := d.Decode(&se); err != nil {
		return start, err
	}
	return start, se
}
