// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package jingle

import (
	"encoding/xml"
	"io"
	"log"
	"strconv"
	"sync"

	"git.sr.ht/~jingle-ibb/xmpp/jid"
	"git.sr.ht/~jingle-ibb/xmpp/mux"
	"git.sr.ht/~jingle-ibb/xmpp/stanza"
	"mellium.im/xmlstream"
)

// Option configures a Session.
type Option func(*Session)

// Logger sets the logger used to report malformed stanzas and protocol
// violations. The default logger discards everything.
func Logger(l *log.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// AutoAccept sets the placeholder accept policy: when true (the default),
// every valid session-initiate is accepted immediately. When false, a
// session is only accepted if PromptFunc returns true.
func AutoAccept(accept bool) Option {
	return func(s *Session) {
		s.autoAccept = accept
	}
}

// PromptFunc sets the hook called to decide whether to accept an incoming
// file offer when AutoAccept is false. The command surface (eg. "/files
// accept <sid>") is expected to drive this.
func PromptFunc(f func(Offer) bool) Option {
	return func(s *Session) {
		s.prompt = f
	}
}

// Session is the Jingle Session Manager: it owns every active Jingle
// session, validates inbound session-initiate offers, and emits
// session-accept/session-terminate stanzas.
//
// A Session is not safe to copy after first use, but its exported methods
// are safe for concurrent use by multiple goroutines.
type Session struct {
	mu       sync.Mutex
	sessions map[string]*session
	bySid    map[string]contentRef

	log        *log.Logger
	autoAccept bool
	prompt     func(Offer) bool
}

// New creates a Session. By default sessions are auto-accepted and nothing
// is logged.
func New(opt ...Option) *Session {
	s := &Session{
		sessions:   make(map[string]*session),
		bySid:      make(map[string]contentRef),
		autoAccept: true,
	}
	for _, o := range opt {
		o(s)
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", log.LstdFlags)
	}
	if s.prompt == nil {
		s.prompt = func(Offer) bool { return s.autoAccept }
	}
	return s
}

// Handle returns an option that registers s against a multiplexer for the
// Jingle signalling and messaging namespaces.
func Handle(s *Session) mux.Option {
	return func(m *mux.ServeMux) {
		mux.IQ(stanza.SetIQ, xml.Name{Space: NS, Local: "jingle"}, mux.IQHandlerFunc(s.HandleIQ))(m)
		mux.Message(stanza.NormalMessage, xml.Name{Space: NSMessage, Local: "propose"}, mux.MessageHandlerFunc(s.HandleMessage))(m)
	}
}

// TransportInfo is the information the IBB transport (or any other
// transport) needs about a negotiated content, returned by
// LookupByTransportSID.
type TransportInfo struct {
	// File is a borrowed reference to the content's file description; it
	// must not be retained beyond the lifetime of the calling handler.
	File *FileInfo
	// BlockSize is the negotiated IBB block size.
	BlockSize uint16
}

// LookupByTransportSID returns the file-transfer metadata and negotiated
// block size for the content whose transport sid matches sid. ok is false
// if no such content exists or its transport is not in-band-bytestreams.
func (s *Session) LookupByTransportSID(sid string) (info TransportInfo, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.bySid[sid]
	if !ok || ref.content.transport.kind != transportIBB {
		return TransportInfo{}, false
	}
	if ref.content.description.kind != descFileTransfer || ref.content.description.file == nil {
		return TransportInfo{}, false
	}
	return TransportInfo{
		File:      ref.content.description.file,
		BlockSize: ref.content.transport.blockSize,
	}, true
}

// SetContentStateByTransportSID marks the content whose transport sid
// matches sid as finished. If every content of the owning session has now
// finished, a session-terminate with reason "success" is emitted over t and
// the session is removed. ok is false if no content with that transport sid
// exists.
func (s *Session) SetContentStateByTransportSID(sid string, t xmlstream.TokenReadEncoder) (ok bool) {
	s.mu.Lock()
	ref, found := s.bySid[sid]
	if !found {
		s.mu.Unlock()
		return false
	}
	ref.content.state = contentFinished

	done := true
	for _, c := range ref.session.contents {
		if c.state != contentFinished {
			done = false
			break
		}
	}
	if !done {
		s.mu.Unlock()
		return true
	}
	sess := ref.session
	s.removeSessionLocked(sess)
	s.mu.Unlock()

	s.sendTerminate(sess, "success", t)
	return true
}

// removeSessionLocked deletes sess and every one of its contents from the
// secondary index; mu must already be held.
func (s *Session) removeSessionLocked(sess *session) {
	delete(s.sessions, sess.sid)
	for _, c := range sess.contents {
		if c.transport.kind == transportIBB {
			delete(s.bySid, c.transport.sid)
		}
	}
}

// Shutdown destroys every active session, releasing everything this Session
// owns. It does not notify peers.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
	s.bySid = make(map[string]contentRef)
}

func (s *Session) sendResult(iq stanza.IQ, t xmlstream.TokenReadEncoder) error {
	_, err := xmlstream.Copy(t, iq.Result(nil))
	return err
}

func (s *Session) sendError(iq stanza.IQ, t xmlstream.TokenReadEncoder, typ stanza.ErrorType, cond stanza.Condition) error {
	_, err := xmlstream.Copy(t, iq.Error(stanza.Error{Type: typ, Condition: cond}))
	return err
}

func (s *Session) sendTerminate(sess *session, reason string, t xmlstream.TokenReadEncoder) {
	to := sess.initiator
	iq := stanza.IQ{Type: stanza.SetIQ, To: to}
	_, err := xmlstream.Copy(t, iq.Wrap(sessionTerminatePayload(sess.sid, reason)))
	if err != nil {
		s.log.Printf("[jingle] error sending session-terminate for %s: %v", sess.sid, err)
	}
}

// HandleIQ satisfies mux.IQHandler and dispatches on the jingle element's
// action attribute.
func (s *Session) HandleIQ(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	payload, err := decodeJingle(t, *start)
	if err != nil {
		s.log.Printf("[jingle] discarding malformed jingle IQ: %v", err)
		return nil
	}

	action := Action(payload.Action)
	switch action {
	case ActionSessionInitiate:
		return s.handleInitiate(iq, t, payload)
	case ActionSessionTerminate:
		return s.handleTerminate(iq, t, payload)
	case ActionSessionInfo, ActionSessionAccept, ActionTransportAccept,
		ActionTransportInfo, ActionTransportReject, ActionTransportReplace,
		ActionContentAccept, ActionContentAdd, ActionContentModify,
		ActionContentReject, ActionContentRemove:
		// Recognized but not implemented: acknowledge so the peer does not
		// see this as an unsupported stanza.
		return s.sendResult(iq, t)
	default:
		if action.recognized() {
			return s.sendResult(iq, t)
		}
		return s.sendError(iq, t, stanza.Cancel, stanza.FeatureNotImplemented)
	}
}

func (s *Session) handleInitiate(iq stanza.IQ, t xmlstream.TokenReadEncoder, payload inJingle) error {
	if payload.SID == "" || payload.Initiator == "" {
		s.log.Printf("[jingle] discarding session-initiate missing sid or initiator")
		return nil
	}
	if iq.From == nil || payload.Initiator != iq.From.String() {
		s.log.Printf("[jingle] discarding session-initiate: initiator attr does not match IQ from")
		return nil
	}

	if err := s.sendResult(iq, t); err != nil {
		return err
	}

	sess := &session{
		sid:       payload.SID,
		initiator: iq.From,
		state:     sessionInitiated,
		contents:  make(map[string]*content),
	}

	s.mu.Lock()
	s.sessions[sess.sid] = sess
	for _, in := range payload.Contents {
		c, ok := parseContent(in)
		if !ok {
			continue
		}
		sess.contents[c.name] = c
		if c.transport.kind == transportIBB {
			s.bySid[c.transport.sid] = contentRef{session: sess, content: c}
		}
	}
	empty := len(sess.contents) == 0
	if !empty {
		sess.state = sessionAccepted
	}
	s.mu.Unlock()

	if empty {
		s.mu.Lock()
		s.removeSessionLocked(sess)
		s.mu.Unlock()
		s.sendTerminate(sess, "cancel", t)
		return nil
	}

	offer := Offer{SID: sess.sid, Peer: sess.initiator}
	for _, c := range sess.contents {
		if c.description.kind == descFileTransfer && c.description.file != nil {
			offer.Name = c.description.file.Name
			offer.MediaType = c.description.file.MediaType
			offer.Size = c.description.file.Size
			break
		}
	}
	if !s.autoAccept && !s.prompt(offer) {
		s.mu.Lock()
		s.removeSessionLocked(sess)
		s.mu.Unlock()
		s.sendTerminate(sess, "decline", t)
		return nil
	}

	_, err := xmlstream.Copy(t, stanza.IQ{Type: stanza.SetIQ, To: sess.initiator}.Wrap(
		sessionAcceptPayload(sess, iq.To.String()),
	))
	return err
}

func (s *Session) handleTerminate(iq stanza.IQ, t xmlstream.TokenReadEncoder, payload inJingle) error {
	if err := s.sendResult(iq, t); err != nil {
		return err
	}
	s.mu.Lock()
	sess, ok := s.sessions[payload.SID]
	if ok {
		s.removeSessionLocked(sess)
	}
	s.mu.Unlock()
	return nil
}

// parseContent validates one inbound content payload against the checklist
// in the session-initiate processing rules, returning ok=false for any
// content that should be dropped rather than inserted.
func parseContent(in inContent) (*content, bool) {
	if in.Name == "" {
		return nil, false
	}
	creator, ok := parseCreator(in.Creator)
	if !ok {
		return nil, false
	}
	if in.Description.XMLName.Space != NSFileTransfer {
		return nil, false
	}
	if in.Description.File == nil {
		return nil, false
	}
	if in.Transport.XMLName.Space != NSIBB {
		return nil, false
	}
	blockSize, err := strconv.ParseUint(in.Transport.BlockSize, 10, 16)
	if err != nil {
		return nil, false
	}
	if in.Transport.SID == "" {
		return nil, false
	}

	f := in.Description.File
	return &content{
		name:    in.Name,
		creator: creator,
		senders: parseSenders(in.Senders),
		description: description{
			kind: descFileTransfer,
			file: &FileInfo{
				Name:      f.Name,
				MediaType: f.MediaType,
				Date:      f.Date,
				Size:      f.Size,
				Hash:      f.Hash,
			},
		},
		transport: transport{
			kind:      transportIBB,
			sid:       in.Transport.SID,
			blockSize: uint16(blockSize),
		},
		state: contentPending,
	}, true
}

// HandleMessage satisfies mux.MessageHandler and observes XEP-0353
// call-propose messages, logging a notification for RTP proposals. By the
// time a ServeMux dispatches to HandleMessage the <propose/> element
// itself (along with its id attribute) has already been consumed for
// routing purposes, so only its child description is available here;
// file-transfer proposals are not part of XEP-0353 and are ignored.
func (s *Session) HandleMessage(msg stanza.Message, t xmlstream.TokenReadEncoder) error {
	tok, err := t.Token()
	if err != nil {
		return nil
	}
	descStart, ok := tok.(xml.StartElement)
	if !ok || descStart.Name.Space != NSRTP {
		return nil
	}

	from := "unknown"
	if msg.From != nil {
		from = msg.From.String()
	}
	s.log.Printf("[jingle] incoming call proposal from %s", from)
	return nil
}
