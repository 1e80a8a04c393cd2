package proxy

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// socks5Connect negotiates authentication with the SOCKS5 proxy on conn and
// asks it to connect to target.
func socks5Connect(conn net.Conn, username, password, target string) error {
	if err := socks5Negotiate(conn, username, password); err != nil {
		return err
	}

	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(target)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if atyp == txsocks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return fmt.Errorf("%w: reply code 0x%X", ErrProxyConnect, rep.Rep)
	}
	return nil
}

func socks5Negotiate(conn net.Conn, username, password string) error {
	methods := []byte{txsocks5.MethodNone}
	if username != "" || password != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if username == "" && password == "" {
			return fmt.Errorf("%w: proxy requires username/password", ErrProxyUnauthorized)
		}
		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(username), []byte(password)).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrProxyUnauthorized
		}
		return nil
	default:
		return fmt.Errorf("%w: no acceptable authentication method", ErrProxyUnauthorized)
	}
}
