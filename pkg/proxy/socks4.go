package proxy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
)

// ################### SOCKS4 ######################### //
//
// https://www.openssh.com/txt/socks4.protocol
// https://www.openssh.com/txt/socks4a.protocol
//
// Request:
//
//	+----+----+----+----+----+----+----+----+----+----+....+----+
//	| VN | CD | DSTPORT |      DSTIP        | USERID       |NULL|
//	+----+----+----+----+----+----+----+----+----+----+....+----+
//	   1    1      2              4           variable       1
//
// SOCKS4a sets DSTIP to 0.0.0.x (x != 0) and appends the host name,
// terminated by NULL, after USERID.
//
// Reply:
//
//	+----+----+----+----+----+----+----+----+
//	| VN | CD | DSTPORT |      DSTIP        |
//	+----+----+----+----+----+----+----+----+
//	   1    1      2              4

const (
	socks4Version        byte = 0x04
	socks4CmdConnect     byte = 0x01
	socks4ReplyVersion   byte = 0x00
	socks4RequestGranted byte = 0x5A
)

var errSOCKS4IPv6 = errors.New("SOCKS4 does not support IPv6 targets")

// socks4Request serializes a CONNECT request. Host names that are not IP
// literals are sent with the SOCKS4a extension.
func socks4Request(target, userID string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, fmt.Errorf("parsing target %q: %w", target, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("parsing port %q: %w", portStr, err)
	}

	out := []byte{socks4Version, socks4CmdConnect}
	out = binary.BigEndian.AppendUint16(out, uint16(port))

	var hostname string
	if ip, err := netip.ParseAddr(host); err == nil {
		if !ip.Unmap().Is4() {
			return nil, errSOCKS4IPv6
		}
		ip4 := ip.Unmap().As4()
		out = append(out, ip4[:]...)
	} else {
		out = append(out, 0, 0, 0, 1)
		hostname = host
	}

	out = append(out, userID...)
	out = append(out, 0)
	if hostname != "" {
		out = append(out, hostname...)
		out = append(out, 0)
	}
	return out, nil
}

// socks4Connect asks the SOCKS4 proxy on rw to connect to target.
func socks4Connect(rw io.ReadWriter, target, userID string) error {
	req, err := socks4Request(target, userID)
	if err != nil {
		return err
	}
	if _, err := rw.Write(req); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	reply := make([]byte, 8)
	if _, err := io.ReadFull(rw, reply); err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	if reply[0] != socks4ReplyVersion {
		return fmt.Errorf("%w: invalid reply version %d", ErrProxyConnect, reply[0])
	}
	if reply[1] != socks4RequestGranted {
		return fmt.Errorf("%w: request rejected with code 0x%X", ErrProxyConnect, reply[1])
	}
	return nil
}
