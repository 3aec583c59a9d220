// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ibb implements the receiving side of XEP-0047: In-Band
// Bytestreams, scoped to carrying Jingle file-transfer content
// (git.sr.ht/~jingle-ibb/xmpp/jingle) rather than general purpose bidirectional
// streams.
//
// In-band bytestreams (IBB) are a data transfer mechanism that tunnels
// binary data as base64 inside ordinary IQ stanzas. Because of that
// encoding overhead it is only ever used here as the fallback transport a
// Jingle file-transfer session negotiates, never as a mechanism callers
// open directly.
package ibb // import "git.sr.ht/~jingle-ibb/xmpp/ibb"

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"git.sr.ht/~jingle-ibb/xmpp/internal/attr"
	"git.sr.ht/~jingle-ibb/xmpp/jingle"
	"git.sr.ht/~jingle-ibb/xmpp/jingle/download"
	"git.sr.ht/~jingle-ibb/xmpp/mux"
	"git.sr.ht/~jingle-ibb/xmpp/stanza"
	"mellium.im/xmlstream"
)

// NS is the XML namespace used by IBB. It is provided as a convenience.
const NS = `http://jabber.org/protocol/ibb`

// sessionLookup is the subset of *jingle.Session the transport depends on,
// so that a Handler can be exercised without a full Session.
type sessionLookup interface {
	LookupByTransportSID(sid string) (jingle.TransportInfo, bool)
	SetContentStateByTransportSID(sid string, t xmlstream.TokenReadEncoder) bool
}

// stream is one active in-band-bytestream, keyed by its transport sid.
type stream struct {
	seq     uint16
	file    *os.File
	size    int64
	written int64
}

// Option configures a Handler.
type Option func(*Handler)

// Logger sets the logger used to report protocol violations and I/O
// errors. The default logger discards everything.
func Logger(l *log.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// DownloadDir overrides the function used to resolve the directory
// incoming files are written to. The default is download.Dir.
func DownloadDir(f func() (string, error)) Option {
	return func(h *Handler) {
		h.dir = f
	}
}

// Handler receives IBB byte-stream traffic for content negotiated by a
// jingle.Session, appending each stream to a file in the downloads
// directory and reporting completion back to the session.
//
// The table of streams is guarded by a mutex, so different streams may be
// handled from multiple goroutines. The state of a single stream (sequence
// number, file and byte count) is updated outside the mutex, so frames of
// one stream are not safe to handle concurrently.
type Handler struct {
	mu      sync.Mutex
	streams map[string]*stream

	session sessionLookup
	dir     func() (string, error)
	log     *log.Logger
}

// New creates a Handler backed by session. Data is only ever accepted for
// a sid that session's LookupByTransportSID recognizes.
func New(session sessionLookup, opt ...Option) *Handler {
	h := &Handler{
		streams: make(map[string]*stream),
		session: session,
		dir:     download.Dir,
	}
	for _, o := range opt {
		o(h)
	}
	if h.log == nil {
		h.log = log.New(io.Discard, "", log.LstdFlags)
	}
	return h
}

// Handle returns an option that registers h against a multiplexer for the
// IBB open, data, and close IQs.
func Handle(h *Handler) mux.Option {
	return func(m *mux.ServeMux) {
		mux.IQ(stanza.SetIQ, xml.Name{Space: NS, Local: "open"}, mux.IQHandlerFunc(h.HandleIQ))(m)
		mux.IQ(stanza.SetIQ, xml.Name{Space: NS, Local: "data"}, mux.IQHandlerFunc(h.HandleIQ))(m)
		mux.IQ(stanza.SetIQ, xml.Name{Space: NS, Local: "close"}, mux.IQHandlerFunc(h.HandleIQ))(m)
	}
}

// HandleIQ satisfies mux.IQHandler and dispatches on the IBB child's local
// name.
func (h *Handler) HandleIQ(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	switch start.Name.Local {
	case "open":
		return h.handleOpen(iq, t, start)
	case "data":
		return h.handleData(iq, t, start)
	case "close":
		return h.handleClose(iq, t, start)
	}
	return nil
}

// Shutdown closes every open file and discards every active stream
// without notifying peers.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sid, s := range h.streams {
		if s.file != nil {
			s.file.Close()
		}
		delete(h.streams, sid)
	}
}

func (h *Handler) sendResult(iq stanza.IQ, t xmlstream.TokenReadEncoder) error {
	_, err := xmlstream.Copy(t, iq.Result(nil))
	return err
}

func (h *Handler) sendError(iq stanza.IQ, t xmlstream.TokenReadEncoder, typ stanza.ErrorType, cond stanza.Condition) error {
	_, err := xmlstream.Copy(t, iq.Error(stanza.Error{Type: typ, Condition: cond}))
	return err
}

// sendClose emits an unsolicited IQ set carrying an IBB close for sid,
// used both as the graceful end-of-transfer signal and as an abort. to may
// be nil, in which case the close is addressed the same way iq.Wrap would
// leave it: to whatever the caller's transport implicitly routes to.
func (h *Handler) sendClose(sid string, to *stanza.IQ, t xmlstream.TokenReadEncoder) {
	iq := stanza.IQ{Type: stanza.SetIQ}
	if to != nil {
		iq.To = to.From
	}
	_, err := xmlstream.Copy(t, iq.Wrap(closePayload(sid)))
	if err != nil {
		h.log.Printf("[ibb] error sending close for %s: %v", sid, err)
	}
}

// teardown closes the file (if any), removes the stream entry for sid, and
// reports the outcome back to the owning session so the Jingle content it
// belonged to is never left without a final state; every error path
// funnels through here so a stream is never left dangling in the table.
func (h *Handler) teardown(sid string, t xmlstream.TokenReadEncoder) {
	h.mu.Lock()
	s, ok := h.streams[sid]
	if ok {
		delete(h.streams, sid)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if s.file != nil {
		s.file.Close()
	}
	h.session.SetContentStateByTransportSID(sid, t)
}

func (h *Handler) handleOpen(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	sid := attr.Get(start.Attr, "sid")
	blockSize := attr.Get(start.Attr, "block-size")
	if sid == "" || blockSize == "" {
		return h.sendError(iq, t, stanza.Cancel, stanza.NotAcceptable)
	}

	h.mu.Lock()
	_, exists := h.streams[sid]
	h.mu.Unlock()
	if exists {
		return h.sendError(iq, t, stanza.Cancel, stanza.NotAcceptable)
	}

	info, ok := h.session.LookupByTransportSID(sid)
	if !ok {
		return h.sendError(iq, t, stanza.Cancel, stanza.NotAcceptable)
	}
	if blockSize != strconv.FormatUint(uint64(info.BlockSize), 10) {
		return h.sendError(iq, t, stanza.Modify, stanza.ResourceConstraint)
	}

	h.mu.Lock()
	h.streams[sid] = &stream{}
	h.mu.Unlock()
	return h.sendResult(iq, t)
}

func (h *Handler) handleData(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	var p dataPayload
	if err := xml.NewTokenDecoder(xmlstream.MultiReader(xmlstream.Token(*start), t)).Decode(&p); err != nil {
		return h.sendError(iq, t, stanza.Cancel, stanza.BadRequest)
	}
	seq, err := strconv.ParseUint(p.Seq, 10, 16)
	if err != nil {
		h.log.Printf("[ibb] couldn't convert sequence number %q for %s, dropping frame", p.Seq, p.SID)
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return h.sendError(iq, t, stanza.Cancel, stanza.BadRequest)
	}

	h.mu.Lock()
	s, ok := h.streams[p.SID]
	h.mu.Unlock()
	if !ok {
		return h.sendError(iq, t, stanza.Cancel, stanza.ItemNotFound)
	}

	switch {
	case seq == 0 && s.file == nil:
		f, size, err := h.openFile(p.SID)
		if err != nil {
			h.log.Printf("[ibb] opening download for %s: %v", p.SID, err)
			ackErr := h.sendResult(iq, t)
			h.sendClose(p.SID, &iq, t)
			h.teardown(p.SID, t)
			return ackErr
		}
		s.file = f
		s.size = size
	case s.file != nil && uint32(seq) == uint32(s.seq)+1:
		// Compared as uint32 rather than uint16 so that seq 0 following
		// seq 65535 is never mistaken for the next frame; this
		// implementation, like the one it's grounded on, does not wrap
		// the sequence number and simply closes the stream once it runs
		// out.
		s.seq = uint16(seq)
	default:
		h.log.Printf("[ibb] out of order frame for %s: seq=%d", p.SID, seq)
		ackErr := h.sendResult(iq, t)
		h.sendClose(p.SID, &iq, t)
		h.teardown(p.SID, t)
		return ackErr
	}

	if _, err := s.file.Write(raw); err != nil {
		h.log.Printf("[ibb] writing frame for %s: %v", p.SID, err)
		ackErr := h.sendResult(iq, t)
		h.sendClose(p.SID, &iq, t)
		h.teardown(p.SID, t)
		return ackErr
	}
	s.written += int64(len(raw))

	if err := h.sendResult(iq, t); err != nil {
		return err
	}

	if s.size > 0 && s.written >= s.size {
		h.sendClose(p.SID, nil, t)
		h.teardown(p.SID, t)
	}
	return nil
}

func (h *Handler) openFile(sid string) (*os.File, int64, error) {
	info, ok := h.session.LookupByTransportSID(sid)
	if !ok || info.File == nil {
		return nil, 0, os.ErrNotExist
	}
	size, err := strconv.ParseInt(info.File.Size, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("ibb: malformed file size %q: %w", info.File.Size, err)
	}
	dir, err := h.dir()
	if err != nil {
		return nil, 0, err
	}
	path, err := download.UniquePath(dir, info.File.Name)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, 0, err
	}
	return f, size, nil
}

func (h *Handler) handleClose(iq stanza.IQ, t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	sid := attr.Get(start.Attr, "sid")
	h.mu.Lock()
	_, ok := h.streams[sid]
	h.mu.Unlock()
	if !ok {
		return h.sendError(iq, t, stanza.Cancel, stanza.ItemNotFound)
	}
	if err := h.sendResult(iq, t); err != nil {
		return err
	}
	h.teardown(sid, t)
	return nil
}
