// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package jingle

import (
	"encoding/xml"
	"io"
	"strconv"

	"mellium.im/xmlstream"
)

// inFile is the wire shape of a file-transfer description's <file/> child.
// Hash is read regardless of which hash algorithm namespace is in play;
// only its character data is kept, matching FileInfo's raw-string fields.
type inFile struct {
	MediaType string `xml:"media-type"`
	Date      string `xml:"date"`
	Name      string `xml:"name"`
	Size      string `xml:"size"`
	Hash      string `xml:"urn:xmpp:hashes:2 hash"`
}

// inDescription is decoded with xml:",any" semantics: its XMLName carries
// whatever namespace the peer actually used, which is how file-transfer
// and RTP descriptions are told apart (see description.kind).
type inDescription struct {
	XMLName xml.Name
	File    *inFile `xml:"file"`
}

// inTransport mirrors inDescription: XMLName's namespace distinguishes
// in-band-bytestreams from (unsupported) SOCKS5.
type inTransport struct {
	XMLName   xml.Name
	SID       string `xml:"sid,attr"`
	BlockSize string `xml:"block-size,attr"`
}

type inContent struct {
	Creator     string        `xml:"creator,attr"`
	Name        string        `xml:"name,attr"`
	Senders     string        `xml:"senders,attr"`
	Description inDescription `xml:"description"`
	Transport   inTransport   `xml:"transport"`
}

type inReason struct {
	Condition xml.Name `xml:",any"`
}

// inJingle is the fully decoded shape of an inbound <jingle/> payload.
type inJingle struct {
	XMLName   xml.Name
	Action    string      `xml:"action,attr"`
	Initiator string      `xml:"initiator,attr"`
	Responder string      `xml:"responder,attr"`
	SID       string      `xml:"sid,attr"`
	Contents  []inContent `xml:"content"`
	Reason    *inReason   `xml:"reason"`
}

// decodeJingle decodes the jingle element starting at start, reading its
// children from r.
func decodeJingle(r xml.TokenReader, start xml.StartElement) (inJingle, error) {
	v := inJingle{}
	d := xml.NewTokenDecoder(xmlstream.MultiReader(xmlstream.Token(start), r))
	err := d.Decode(&v)
	return v, err
}

// contentPayload renders an accepted content as a child of session-accept,
// echoing name, creator=initiator, senders, the file description, and the
// negotiated IBB transport.
func contentPayload(c *content) xml.TokenReader {
	var file xml.TokenReader
	if c.description.kind == descFileTransfer && c.description.file != nil {
		f := c.description.file
		var children []xml.TokenReader
		if f.Date != "" {
			children = append(children, elemText("date", f.Date))
		}
		if f.MediaType != "" {
			children = append(children, elemText("media-type", f.MediaType))
		}
		if f.Name != "" {
			children = append(children, elemText("name", f.Name))
		}
		if f.Size != "" {
			children = append(children, elemText("size", f.Size))
		}
		if f.Hash != "" {
			children = append(children, xmlstream.Wrap(
				xmlstream.Token(xml.CharData(f.Hash)),
				xml.StartElement{Name: xml.Name{Space: "urn:xmpp:hashes:2", Local: "hash"}},
			))
		}
		file = xmlstream.Wrap(
			xmlstream.MultiReader(children...),
			xml.StartElement{Name: xml.Name{Local: "file"}},
		)
	}
	description := xmlstream.Wrap(file, xml.StartElement{
		Name: xml.Name{Space: NSFileTransfer, Local: "description"},
	})

	transportAttr := []xml.Attr{
		{Name: xml.Name{Local: "sid"}, Value: c.transport.sid},
		{Name: xml.Name{Local: "block-size"}, Value: strconv.FormatUint(uint64(c.transport.blockSize), 10)},
	}
	transport := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: NSIBB, Local: "transport"},
		Attr: transportAttr,
	})

	return xmlstream.Wrap(
		xmlstream.MultiReader(description, transport),
		xml.StartElement{
			Name: xml.Name{Local: "content"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "creator"}, Value: string(creatorInitiator)},
				{Name: xml.Name{Local: "senders"}, Value: string(c.senders)},
				{Name: xml.Name{Local: "name"}, Value: c.name},
			},
		},
	)
}

// sessionAcceptPayload builds the jingle element sent in the session-accept
// IQ: one content per accepted content of s.
func sessionAcceptPayload(s *session, responder string) xml.TokenReader {
	contents := make([]xml.TokenReader, 0, len(s.contents))
	for _, c := range s.contents {
		contents = append(contents, contentPayload(c))
	}
	return xmlstream.Wrap(
		xmlstream.MultiReader(contents...),
		xml.StartElement{
			Name: xml.Name{Space: NS, Local: "jingle"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "action"}, Value: string(ActionSessionAccept)},
				{Name: xml.Name{Local: "responder"}, Value: responder},
				{Name: xml.Name{Local: "sid"}, Value: s.sid},
			},
		},
	)
}

// sessionTerminatePayload builds the jingle element sent in the
// session-terminate IQ, naming reason as the sub-element of <reason/>.
func sessionTerminatePayload(sid, reason string) xml.TokenReader {
	reasonElem := xmlstream.Wrap(
		xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Local: reason}}),
		xml.StartElement{Name: xml.Name{Local: "reason"}},
	)
	return xmlstream.Wrap(
		reasonElem,
		xml.StartElement{
			Name: xml.Name{Space: NS, Local: "jingle"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "action"}, Value: string(ActionSessionTerminate)},
				{Name: xml.Name{Local: "sid"}, Value: sid},
			},
		},
	)
}

func elemText(local, v string) xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.ReaderFunc(func() (xml.Token, error) {
			return xml.CharData(v), io.EOF
		}),
		xml.StartElement{Name: xml.Name{Local: local}},
	)
}
