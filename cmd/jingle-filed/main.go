// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// The jingle-filed command accepts incoming Jingle file-transfer offers
// (XEP-0166/XEP-0234) over in-band bytestreams (XEP-0047) and writes them
// to the local downloads directory.
//
// For more information try running:
//
//	jingle-filed -help
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jingle-ibb/xmpp"
	"git.sr.ht/~jingle-ibb/xmpp/dial"
	"git.sr.ht/~jingle-ibb/xmpp/ibb"
	"git.sr.ht/~jingle-ibb/xmpp/jid"
	"git.sr.ht/~jingle-ibb/xmpp/jingle"
	"git.sr.ht/~jingle-ibb/xmpp/mux"
	"git.sr.ht/~jingle-ibb/xmpp/stanza"
	"mellium.im/sasl"
)

const (
	envAddr = "XMPP_ADDR"
	envPass = "XMPP_PASS"

	dialTimeout = 10 * time.Second
)

func main() {
	lr := logrus.New()
	logger := log.New(lr.WriterLevel(logrus.ErrorLevel), "", 0)
	debug := log.New(lr.WriterLevel(logrus.DebugLevel), "", 0)

	var (
		addr    = os.Getenv(envAddr)
		verbose bool
		autoYes bool
	)
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage of %s:\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\n  $%s: the JID to log in as\n  $%s: the password\n\n", envAddr, envPass)
		flags.PrintDefaults()
	}
	flags.BoolVar(&verbose, "v", verbose, "turns on debug logging")
	flags.BoolVar(&autoYes, "y", autoYes, "accept every incoming file offer without prompting")

	switch err := flags.Parse(os.Args[1:]); err {
	case flag.ErrHelp:
		return
	case nil:
	default:
		logger.Fatal(err)
	}

	if verbose {
		lr.SetLevel(logrus.DebugLevel)
	}
	if addr == "" {
		logger.Fatalf("address not specified, set $%s", envAddr)
	}
	pass := os.Getenv(envPass)
	if pass == "" {
		debug.Printf("the environment variable $%s is empty", envPass)
	}

	j, err := jid.Parse(addr)
	if err != nil {
		logger.Fatalf("error parsing address %q: %v", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-ctx.Done():
		case <-c:
			cancel()
		}
	}()

	conn, err := dial.Client(ctx, "tcp", j)
	if err != nil {
		logger.Fatalf("error dialing session: %v", err)
	}

	s, err := xmpp.NegotiateSession(ctx, j.Domain(), j, conn, xmpp.NewNegotiator(xmpp.StreamConfig{
		Lang: "en",
		Features: []xmpp.StreamFeature{
			xmpp.BindResource(),
			xmpp.StartTLS(true, &tls.Config{
				ServerName: j.Domain().String(),
			}),
			xmpp.SASL("", pass, sasl.ScramSha1Plus, sasl.ScramSha1, sasl.Plain),
		},
	}))
	if err != nil {
		logger.Fatalf("error establishing a session: %v", err)
	}
	defer func() {
		debug.Println("closing conn…")
		if err := s.Conn().Close(); err != nil {
			logger.Printf("error closing connection: %v", err)
		}
	}()

	// promptAccept is the "console UI" collaborator: it prints the offer to
	// stdout and reads a y/n answer from stdin, unless -y was passed.
	promptAccept := func(o jingle.Offer) bool {
		if autoYes {
			debug.Printf("auto-accepting file %q (%s) from %v", o.Name, o.Size, o.Peer)
			return true
		}
		fmt.Printf("incoming file %q (%s bytes) from %v — accept? [y/N] ", o.Name, o.Size, o.Peer)
		var answer string
		fmt.Scanln(&answer)
		return answer == "y" || answer == "Y"
	}

	jingleSession := jingle.New(
		jingle.Logger(logger),
		jingle.AutoAccept(autoYes),
		jingle.PromptFunc(promptAccept),
	)
	ibbHandler := ibb.New(jingleSession, ibb.Logger(logger))

	m := mux.New(
		jingle.Handle(jingleSession),
		ibb.Handle(ibbHandler),
	)

	go func() {
		select {
		case <-ctx.Done():
			debug.Println("closing session…")
			if err := s.Close(); err != nil {
				logger.Printf("error closing session: %v", err)
			}
		}
	}()

	presenceCtx, presenceCancel := context.WithTimeout(ctx, dialTimeout)
	_, err = s.SendPresenceElement(presenceCtx, nil, stanza.Presence{Type: stanza.AvailablePresence})
	presenceCancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		debug.Printf("error sending initial presence: %v", err)
	}

	if err := s.Serve(m); err != nil && err != io.EOF {
		logger.Fatalf("error serving session: %v", err)
	}
}
