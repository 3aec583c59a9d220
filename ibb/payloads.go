// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package ibb

import (
	"encoding/xml"

	"mellium.im/xmlstream"
)

// closePayload builds the outbound abort/teardown <close/> stanza payload
// sent to the peer for sid.
func closePayload(sid string) xml.TokenReader {
	return xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: NS, Local: "close"},
		Attr: []xml.Attr{{
			Name:  xml.Name{Local: "sid"},
			Value: sid,
		}},
	})
}

// dataPayload is the decoded shape of an inbound <data/> element. Data
// holds the still-base64-encoded character data verbatim; encoding/xml
// does not base64 translate chardata on its own, so decoding is done
// explicitly by the caller, and the resulting bytes are written to disk
// with no further text-oriented reformatting in between. Seq is left as
// a string rather than a numeric type so the caller can tell a
// structurally malformed stanza (a decode error) apart from a
// syntactically invalid sequence number (a value that merely fails to
// parse), which are handled differently.
type dataPayload struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/ibb data"`
	Seq     string   `xml:"seq,attr"`
	SID     string   `xml:"sid,attr"`
	Data    string   `xml:",chardata"`
}
