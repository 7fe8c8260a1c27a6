// Command sentinelfsctl is the thin CLI front-end that dials the daemon's
// control socket (sentinelfs/controlsocket) and issues one of its text
// commands, or renders a live bubbletea dashboard that polls it.
package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// sendCommand dials sock, writes cmd followed by a newline, and returns
// every line the server wrote back before closing the connection.
func sendCommand(sock, cmd string) ([]string, error) {
	conn, err := net.DialTimeout("unix", sock, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", sock, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return lines, nil
}

// isErrResponse reports whether the control socket answered with the
// ERR-prefixed line convention its commands use on failure.
func isErrResponse(lines []string) bool {
	return len(lines) > 0 && strings.HasPrefix(lines[0], "ERR")
}
