// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package jingle implements the session-negotiation half of Jingle file
// transfer (XEP-0166 paired with the XEP-0234 file-transfer description).
//
// It owns the set of active Jingle sessions, validates and records
// incoming session-initiate offers, and emits the session-accept and
// session-terminate stanzas that drive a negotiation to completion. It
// does not move any bytes itself; byte-stream transports (such as
// git.sr.ht/~jingle-ibb/xmpp/ibb) register with a Session and report content state
// back through LookupByTransportSID and
// SetContentStateByTransportSID.
package jingle // import "git.sr.ht/~jingle-ibb/xmpp/jingle"

import (
	"git.sr.ht/~jingle-ibb/xmpp/jid"
)

// NS is the Jingle signalling namespace, XEP-0166.
const NS = "urn:xmpp:jingle:1"

// NSFileTransfer is the Jingle file-transfer description namespace,
// XEP-0234 version 5.
const NSFileTransfer = "urn:xmpp:jingle:apps:file-transfer:5"

// NSIBB is the Jingle in-band-bytestreams transport namespace.
const NSIBB = "urn:xmpp:jingle:transports:ibb:1"

// NSRTP is the Jingle RTP description namespace; contents that use it are
// recognized but rejected, since media sessions are out of scope.
const NSRTP = "urn:xmpp:jingle:apps:rtp:1"

// NSMessage is the Jingle Message Initiation namespace, XEP-0353.
const NSMessage = "urn:xmpp:jingle-message:0"

// Action is the value of a jingle element's action attribute.
type Action string

// The set of Jingle actions recognized on the wire. Only
// ActionSessionInitiate and ActionSessionTerminate are fully processed;
// the rest are acknowledged as recognized but otherwise ignored (see
// Session.HandleIQ).
const (
	ActionContentAccept    Action = "content-accept"
	ActionContentAdd       Action = "content-add"
	ActionContentModify    Action = "content-modify"
	ActionContentReject    Action = "content-reject"
	ActionContentRemove    Action = "content-remove"
	ActionSessionAccept    Action = "session-accept"
	ActionSessionInfo      Action = "session-info"
	ActionSessionInitiate  Action = "session-initiate"
	ActionSessionTerminate Action = "session-terminate"
	ActionTransportAccept  Action = "transport-accept"
	ActionTransportInfo    Action = "transport-info"
	ActionTransportReject  Action = "transport-reject"
	ActionTransportReplace Action = "transport-replace"
)

// recognized reports whether action is part of the Jingle action vocabulary
// even if this package does not otherwise act on it.
func (a Action) recognized() bool {
	switch a {
	case ActionContentAccept, ActionContentAdd, ActionContentModify,
		ActionContentReject, ActionContentRemove, ActionSessionAccept,
		ActionSessionInfo, ActionSessionInitiate, ActionSessionTerminate,
		ActionTransportAccept, ActionTransportInfo, ActionTransportReject,
		ActionTransportReplace:
		return true
	}
	return false
}

type creatorType string

const (
	creatorUnknown   creatorType = ""
	creatorInitiator creatorType = "initiator"
	creatorResponder creatorType = "responder"
)

func parseCreator(s string) (creatorType, bool) {
	switch creatorType(s) {
	case creatorInitiator, creatorResponder:
		return creatorType(s), true
	}
	return creatorUnknown, false
}

type sendersType string

const (
	sendersUnknown   sendersType = "unknown"
	SendersBoth      sendersType = "both"
	SendersInitiator sendersType = "initiator"
	SendersResponder sendersType = "responder"
	SendersNone      sendersType = "none"
)

func parseSenders(s string) sendersType {
	switch sendersType(s) {
	case SendersBoth, SendersInitiator, SendersResponder, SendersNone:
		return sendersType(s)
	}
	return sendersUnknown
}

type descriptionKind int

const (
	descFileTransfer descriptionKind = iota
	descRTP
)

// FileInfo describes a file being offered or transferred, as carried by a
// Jingle file-transfer description. All fields are copied verbatim from
// the wire; Size is parsed to a number only at the point of use by the
// transport.
type FileInfo struct {
	Name      string
	MediaType string
	Date      string
	Size      string
	Hash      string
}

// description is the tagged union of content descriptions this package
// understands. Only file-transfer descriptions are usable; RTP
// descriptions are recognized so they can be rejected cleanly instead of
// read as malformed file-transfer offers.
type description struct {
	kind descriptionKind
	file *FileInfo
}

type transportKind int

const (
	transportIBB transportKind = iota
	transportSocks5
)

// transport is a content's negotiated byte-stream carrier.
type transport struct {
	kind      transportKind
	sid       string
	blockSize uint16
}

type contentState int

const (
	contentPending contentState = iota
	contentFinished
	contentRejected
)

// content is one negotiated leg of a session: a name, its description, and
// the transport that will carry its bytes.
type content struct {
	name        string
	creator     creatorType
	senders     sendersType
	description description
	transport   transport
	state       contentState
}

type sessionState int

const (
	sessionInitiated sessionState = iota
	sessionAccepted
	sessionTerminated
)

// session is one Jingle negotiation, identified by its sid.
type session struct {
	sid       string
	initiator *jid.JID
	state     sessionState
	contents  map[string]*content
}

// contentRef locates a content by way of its owning session, used by the
// bySid secondary index to answer transport-sid lookups in O(1).
type contentRef struct {
	session *session
	content *content
}

// Offer describes an incoming file offer for the purposes of
// Session's PromptFunc hook. XEP-0353 propose messages seen by
// HandleMessage are only logged; no Offer is built for them.
type Offer struct {
	// SID is the Jingle session id (not the transport sid); the command
	// surface accepts or rejects offers by this identifier.
	SID string
	// Peer is the full JID of the session initiator.
	Peer *jid.JID
	// Name, MediaType, and Size describe the first file-transfer content
	// of the offer, if any.
	Name      string
	MediaType string
	Size      string
}
