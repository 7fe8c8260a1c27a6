package orchestrator

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"sentinelfs/session"
)

const handshakeTimeout = 10 * time.Second

// buildHandshake returns the connection-authentication hook netio.Transport
// runs on every dialed or accepted connection before handing it to the
// binary frame read loop. The three session.Manager handshake messages
// are exchanged as newline-terminated Marshal() strings; inbound
// connections run the server side (HandleClientHello/VerifyClientAuth),
// outbound connections run the client side (BuildClientHello/
// BuildClientAuth) followed by a one-line ack, since the client has no
// other way to learn whether the server's digest check passed.
func buildHandshake(sm *session.Manager) func(conn net.Conn, inbound bool) (string, bool) {
	return func(conn net.Conn, inbound bool) (string, bool) {
		conn.SetDeadline(time.Now().Add(handshakeTimeout))
		defer conn.SetDeadline(time.Time{})

		r := bufio.NewReader(conn)
		if inbound {
			return serverHandshake(sm, conn, r)
		}
		return clientHandshake(sm, conn, r)
	}
}

func serverHandshake(sm *session.Manager, conn net.Conn, r *bufio.Reader) (string, bool) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", false
	}
	hello, err := session.ParseClientHello(strings.TrimSpace(line))
	if err != nil {
		return "", false
	}
	challenge, err := sm.HandleClientHello(hello)
	if err != nil {
		return "", false
	}
	if _, err := fmt.Fprintf(conn, "%s\n", challenge.Marshal()); err != nil {
		return "", false
	}

	line, err = r.ReadString('\n')
	if err != nil {
		return "", false
	}
	auth, err := session.ParseClientAuth(strings.TrimSpace(line))
	if err != nil {
		return "", false
	}
	if err := sm.VerifyClientAuth(auth); err != nil {
		fmt.Fprint(conn, "ERR\n")
		return "", false
	}
	fmt.Fprint(conn, "OK\n")
	return hello.ClientPeerID, true
}

func clientHandshake(sm *session.Manager, conn net.Conn, r *bufio.Reader) (string, bool) {
	hello, err := sm.BuildClientHello()
	if err != nil {
		return "", false
	}
	if _, err := fmt.Fprintf(conn, "%s\n", hello.Marshal()); err != nil {
		return "", false
	}

	line, err := r.ReadString('\n')
	if err != nil {
		return "", false
	}
	challenge, err := session.ParseServerChallenge(strings.TrimSpace(line))
	if err != nil {
		return "", false
	}
	auth, err := sm.BuildClientAuth(hello.ClientNonce, challenge)
	if err != nil {
		return "", false
	}
	if _, err := fmt.Fprintf(conn, "%s\n", auth.Marshal()); err != nil {
		return "", false
	}

	line, err = r.ReadString('\n')
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(line) != "OK" {
		return "", false
	}
	sm.MarkAuthenticated(challenge.ServerPeerID)
	return challenge.ServerPeerID, true
}
