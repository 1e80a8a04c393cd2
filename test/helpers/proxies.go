package helpers

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
)

// StartSOCKS4Proxy starts a SOCKS4/SOCKS4a proxy supporting CONNECT.
func StartSOCKS4Proxy(t testing.TB) string {
	t.Helper()
	return Serve(t, false, serveSOCKS4)
}

func serveSOCKS4(conn net.Conn) error {
	br := bufio.NewReader(conn)
	head := make([]byte, 8)
	if _, err := io.ReadFull(br, head); err != nil {
		return err
	}
	if _, err := br.ReadBytes(0); err != nil { // USERID
		return err
	}

	port := binary.BigEndian.Uint16(head[2:4])
	host := net.IP(head[4:8]).String()
	if head[4] == 0 && head[5] == 0 && head[6] == 0 && head[7] != 0 {
		name, err := br.ReadBytes(0)
		if err != nil {
			return err
		}
		host = string(name[:len(name)-1])
	}

	reply := []byte{0, 0x5A, 0, 0, 0, 0, 0, 0}
	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if head[1] != 1 || err != nil {
		reply[1] = 0x5B
		_, werr := conn.Write(reply)
		if err != nil {
			return err
		}
		return werr
	}
	if _, err := conn.Write(reply); err != nil {
		target.Close()
		return err
	}
	pipe(conn, target)
	return nil
}

// StartSOCKS5Proxy starts a SOCKS5 proxy supporting CONNECT. When user is
// not empty, clients must authenticate with user and pass.
func StartSOCKS5Proxy(t testing.TB, user, pass string) string {
	t.Helper()
	return Serve(t, false, func(conn net.Conn) error {
		return serveSOCKS5(conn, user, pass)
	})
}

func serveSOCKS5(conn net.Conn, user, pass string) error {
	if _, err := txsocks5.NewNegotiationRequestFrom(conn); err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if user != "" {
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
			return err
		}
		urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if string(urq.Uname) != user || string(urq.Passwd) != pass {
			_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
			return fmt.Errorf("auth failed")
		}
		if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
			return err
		}
	} else if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
		return err
	}

	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	zero := []byte{0, 0, 0, 0}
	if req.Cmd != txsocks5.CmdConnect {
		_, err := txsocks5.NewReply(txsocks5.RepCommandNotSupported, txsocks5.ATYPIPv4, zero, []byte{0, 0}).WriteTo(conn)
		return err
	}

	target, err := net.Dial("tcp", req.Address())
	if err != nil {
		_, _ = txsocks5.NewReply(txsocks5.RepHostUnreachable, txsocks5.ATYPIPv4, zero, []byte{0, 0}).WriteTo(conn)
		return err
	}
	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, txsocks5.ATYPIPv4, zero, []byte{0, 0}).WriteTo(conn); err != nil {
		target.Close()
		return err
	}
	pipe(conn, target)
	return nil
}

// StartHTTPProxy starts an HTTP proxy supporting CONNECT. When user is not
// empty, clients must send matching Basic credentials.
func StartHTTPProxy(t testing.TB, user, pass string) string {
	t.Helper()
	return Serve(t, false, func(conn net.Conn) error {
		return serveHTTPConnect(conn, user, pass)
	})
}

func serveHTTPConnect(conn net.Conn, user, pass string) error {
	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		return err
	}

	if req.Method != http.MethodConnect {
		_, err := io.WriteString(conn, "HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 0\r\n\r\n")
		return err
	}
	if user != "" {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
		if req.Header.Get("Proxy-Authorization") != want {
			_, err := io.WriteString(conn, "HTTP/1.1 407 Proxy Authentication Required\r\nProxy-Authenticate: Basic\r\nContent-Length: 0\r\n\r\n")
			return err
		}
	}

	target, err := net.Dial("tcp", req.RequestURI)
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
		return err
	}
	if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection established\r\n\r\n"); err != nil {
		target.Close()
		return err
	}
	pipe(conn, target)
	return nil
}
