// Copyright 2017 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package mux implements an XMPP multiplexer.
package mux

import (
	"encoding/xml"

	"git.sr.ht/~jingle-ibb/xmpp"
	"git.sr.ht/~jingle-ibb/xmpp/internal/ns"
	"git.sr.ht/~jingle-ibb/xmpp/jid"
	"git.sr.ht/~jingle-ibb/xmpp/stanza"
	"mellium.im/xmlstream"
)

const (
	iqStanza   = "iq"
	msgStanza  = "message"
	presStanza = "presence"
)

// pattern identifies a registered stanza handler by the kind of stanza
// (iq/message/presence), the stanza's type attribute, and the XML name of
// its first child element.
type pattern struct {
	Stanza  string
	Payload xml.Name
	Type    string
}

func (p pattern) String() string {
	return p.Stanza + "[type=" + p.Type + "]{" + p.Payload.Space + "}" + p.Payload.Local
}

// ServeMux is an XMPP stream multiplexer.
//
// It matches the start element token of each top level stream element
// against a list of registered patterns and calls the handler for the
// pattern that most closely matches the token.
// IQ, message, and presence stanzas are matched on their type attribute and
// the XML name of their first child element; all other top level elements
// are matched purely by XML name, the same as ServeMux's wildcard handling
// for stanzas: if either the namespace or the localname is left off, any
// namespace or localname will be matched, with full names taking precedence
// over wildcard localnames, which take precedence over wildcard namespaces.
type ServeMux struct {
	patterns         map[xml.Name]xmpp.Handler
	iqPatterns       map[pattern]IQHandler
	msgPatterns      map[pattern]MessageHandler
	presencePatterns map[pattern]PresenceHandler
}

// New allocates and returns a new ServeMux.
func New(opt ...Option) *ServeMux {
	m := &ServeMux{}
	for _, o := range opt {
		o(m)
	}
	return m
}

// Handler returns the handler to use for a top level, non-stanza element
// with the provided XML name.
// If no exact match or wildcard handler exists, a default handler that does
// nothing is returned (h is always non-nil) and ok is false.
func (m *ServeMux) Handler(name xml.Name) (h xmpp.Handler, ok bool) {
	h = m.patterns[name]
	if h != nil {
		return h, true
	}

	n := name
	n.Space = ""
	h = m.patterns[n]
	if h != nil {
		return h, true
	}

	n = name
	n.Local = ""
	h = m.patterns[n]
	if h != nil {
		return h, true
	}

	return xmpp.HandlerFunc(noopHandler), false
}

func noopHandler(xmlstream.TokenReadEncoder, *xml.StartElement) error {
	return nil
}

func lookupIQ(patterns map[pattern]IQHandler, typ stanza.IQType, name xml.Name) (h IQHandler, ok bool) {
	pat := pattern{Stanza: iqStanza, Payload: name, Type: string(typ)}
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n := name
	n.Space = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n = name
	n.Local = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	pat.Payload = xml.Name{}
	if h = patterns[pat]; h != nil {
		return h, true
	}

	return nil, false
}

func lookupMsg(patterns map[pattern]MessageHandler, typ stanza.MessageType, name xml.Name) (h MessageHandler, ok bool) {
	pat := pattern{Stanza: msgStanza, Payload: name, Type: string(typ)}
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n := name
	n.Space = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n = name
	n.Local = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	return nil, false
}

func lookupPresence(patterns map[pattern]PresenceHandler, typ stanza.PresenceType, name xml.Name) (h PresenceHandler, ok bool) {
	pat := pattern{Stanza: presStanza, Payload: name, Type: string(typ)}
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n := name
	n.Space = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	n = name
	n.Local = ""
	pat.Payload = n
	if h = patterns[pat]; h != nil {
		return h, true
	}

	return nil, false
}

// getPayload reads the payload start element (if any) following a stanza's
// own start element, leaving start nil for stanzas with no child (e.g. some
// result IQs).
func getPayload(t xml.TokenReader, start *xml.StartElement) (*xml.StartElement, error) {
	tok, err := t.Token()
	if err != nil {
		return nil, err
	}
	payloadStart, ok := tok.(xml.StartElement)
	if !ok {
		return nil, nil
	}
	return &payloadStart, nil
}

func newIQFromStart(start *xml.StartElement) (stanza.IQ, error) {
	iq := stanza.IQ{XMLName: start.Name}
	var err error
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			if a.Name.Space != "" {
				continue
			}
			iq.ID = a.Value
		case "to":
			if a.Name.Space != "" {
				continue
			}
			iq.To, err = jid.Parse(a.Value)
			if err != nil {
				return iq, err
			}
		case "from":
			if a.Name.Space != "" {
				continue
			}
			iq.From, err = jid.Parse(a.Value)
			if err != nil {
				return iq, err
			}
		case "lang":
			if a.Name.Space != ns.XML {
				continue
			}
			iq.Lang = a.Value
		case "type":
			if a.Name.Space != "" {
				continue
			}
			iq.Type = stanza.IQType(a.Value)
		}
	}
	return iq, nil
}

func newMessageFromStart(start *xml.StartElement) (stanza.Message, error) {
	msg := stanza.Message{XMLName: start.Name}
	var err error
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			if a.Name.Space != "" {
				continue
			}
			msg.ID = a.Value
		case "to":
			if a.Name.Space != "" {
				continue
			}
			msg.To, err = jid.Parse(a.Value)
			if err != nil {
				return msg, err
			}
		case "from":
			if a.Name.Space != "" {
				continue
			}
			msg.From, err = jid.Parse(a.Value)
			if err != nil {
				return msg, err
			}
		case "lang":
			if a.Name.Space != ns.XML {
				continue
			}
			msg.Lang = a.Value
		case "type":
			if a.Name.Space != "" {
				continue
			}
			msg.Type = stanza.MessageType(a.Value)
		}
	}
	return msg, nil
}

func newPresenceFromStart(start *xml.StartElement) (stanza.Presence, error) {
	p := stanza.Presence{XMLName: start.Name}
	var err error
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			if a.Name.Space != "" {
				continue
			}
			p.ID = a.Value
		case "to":
			if a.Name.Space != "" {
				continue
			}
			p.To, err = jid.Parse(a.Value)
			if err != nil {
				return p, err
			}
		case "from":
			if a.Name.Space != "" {
				continue
			}
			p.From, err = jid.Parse(a.Value)
			if err != nil {
				return p, err
			}
		case "lang":
			if a.Name.Space != ns.XML {
				continue
			}
			p.Lang = a.Value
		case "type":
			if a.Name.Space != "" {
				continue
			}
			p.Type = stanza.PresenceType(a.Value)
		}
	}
	return p, nil
}

func iqFallback(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	if iq.Type == stanza.ErrorIQ || iq.Type == stanza.ResultIQ {
		return nil
	}

	e := stanza.Error{
		Type:      stanza.Cancel,
		Condition: stanza.ServiceUnavailable,
	}
	_, err := xmlstream.Copy(t, iq.Error(e))
	return err
}

// HandleXMPP dispatches the request to the handler whose pattern most
// closely matches start.Name, handling the IQ/message/presence stanza
// matching rules described on ServeMux, and falls through to the generic,
// XML-name based handler table for anything else.
func (m *ServeMux) HandleXMPP(t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	switch start.Name.Local {
	case iqStanza:
		iq, err := newIQFromStart(start)
		if err != nil {
			return err
		}
		payloadStart, err := getPayload(t, start)
		if err != nil {
			return err
		}
		var name xml.Name
		if payloadStart != nil {
			name = payloadStart.Name
		}
		h, ok := lookupIQ(m.iqPatterns, iq.Type, name)
		if !ok {
			return iqFallback(iq, t, payloadStart)
		}
		return h.HandleIQ(iq, t, payloadStart)
	case msgStanza:
		msg, err := newMessageFromStart(start)
		if err != nil {
			return err
		}
		payloadStart, err := getPayload(t, start)
		if err != nil {
			return err
		}
		var name xml.Name
		if payloadStart != nil {
			name = payloadStart.Name
		}
		h, ok := lookupMsg(m.msgPatterns, msg.Type, name)
		if !ok {
			return nil
		}
		return h.HandleMessage(msg, t)
	case presStanza:
		p, err := newPresenceFromStart(start)
		if err != nil {
			return err
		}
		payloadStart, err := getPayload(t, start)
		if err != nil {
			return err
		}
		var name xml.Name
		if payloadStart != nil {
			name = payloadStart.Name
		}
		h, ok := lookupPresence(m.presencePatterns, p.Type, name)
		if !ok {
			return nil
		}
		return h.HandlePresence(p, t)
	default:
		h, _ := m.Handler(start.Name)
		return h.HandleXMPP(t, start)
	}
}
