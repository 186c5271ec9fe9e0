// Package sockaddr decodes the hex-encoded "saddr" field audit SYSCALL
// records attach to socket-related system calls into its IPv4, IPv6, or
// Unix-domain address family.
//
// Grounded on AuditParseUtils::parseSockAddr (auditrec_parser_impl.hpp)
// for the overall family dispatch, but operates directly on the ASCII hex
// string rather than decoded bytes, and spec.md is authoritative for two
// points where it diverges from the original: IPv6 groups are rendered
// without "::" zero-run compression, and IPv4 octets are read in the
// order they appear in the hex string rather than reversed to network
// order.
package sockaddr

import (
	"errors"
	"strconv"
	"strings"

	"github.com/m-lab/audit-info/hexcodec"
)

// Address families, matching the kernel's AF_* constants as they appear
// in a saddr field's first hex-encoded byte.
const (
	AFUnix  = 1
	AFInet  = 2
	AFInet6 = 10
)

// ErrTooShort is returned when the hex string is too short for its
// declared (or, for an unrecognized family, any) address family.
var ErrTooShort = errors.New("sockaddr: hex string too short")

// ErrUnsupportedFamily is returned for an address family this decoder
// does not know how to render.
var ErrUnsupportedFamily = errors.New("sockaddr: unsupported address family")

// SockAddrInfo is the decoded form of a saddr field. Exactly one of
// Addr4, Addr6, or SocketID is populated, depending on Family.
type SockAddrInfo struct {
	Family uint8
	Port   uint32
	// Addr4 holds the 32-bit address for AF_INET, in the byte order the
	// kernel wrote it; IPv4String renders it as a dotted quad.
	Addr4 uint32
	// Addr6 is the lowercase, colon-separated, uncompressed form of an
	// AF_INET6 address -- eight groups of four hex digits, with no "::"
	// zero-run elision.
	Addr6 string
	// SocketID is the raw (still hex-encoded) socket identifier carried
	// by an AF_UNIX address's autobind/abstract-namespace region.
	SocketID string
}

// Decode parses hex, an ASCII hex string (two hex characters per encoded
// byte) taken from a saddr field's value, into a SockAddrInfo.
func Decode(hex []byte) (SockAddrInfo, error) {
	if len(hex) <= 4 {
		return SockAddrInfo{}, ErrTooShort
	}
	family := hexcodec.ParseU8(hex[0:2])

	switch family {
	case AFInet:
		return decodeInet(hex)
	case AFInet6:
		return decodeInet6(hex)
	case AFUnix:
		return decodeUnix(hex)
	default:
		return SockAddrInfo{}, ErrUnsupportedFamily
	}
}

func decodeInet(hex []byte) (SockAddrInfo, error) {
	if len(hex) < 16 {
		return SockAddrInfo{}, ErrTooShort
	}
	port := hexcodec.ParseU16(hex[4:8])
	addr4 := hexcodec.ParseU32(hex[8:16])
	return SockAddrInfo{Family: AFInet, Port: uint32(port), Addr4: addr4}, nil
}

func decodeInet6(hex []byte) (SockAddrInfo, error) {
	if len(hex) < 48 {
		return SockAddrInfo{}, ErrTooShort
	}
	port := hexcodec.ParseU16(hex[4:8])
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		start := 16 + i*4
		groups[i] = strings.ToLower(string(hex[start : start+4]))
	}
	return SockAddrInfo{Family: AFInet6, Port: uint32(port), Addr6: strings.Join(groups, ":")}, nil
}

func decodeUnix(hex []byte) (SockAddrInfo, error) {
	if len(hex) <= 6 {
		return SockAddrInfo{}, ErrTooShort
	}
	begin := 4
	if string(hex[4:6]) == "00" {
		begin = 6
	}
	end := len(hex)
	for i := begin; i+1 < len(hex); i += 2 {
		if string(hex[i:i+2]) == "00" {
			end = i
			break
		}
	}
	return SockAddrInfo{Family: AFUnix, SocketID: string(hex[begin:end])}, nil
}

// IPv4String renders a decoded AF_INET address as a dotted quad, reading
// bytes in the order the kernel wrote them (native-endian, as observed)
// rather than network order.
func IPv4String(addr4 uint32) string {
	b0 := (addr4 >> 24) & 0xFF
	b1 := (addr4 >> 16) & 0xFF
	b2 := (addr4 >> 8) & 0xFF
	b3 := addr4 & 0xFF
	return strconv.FormatUint(uint64(b0), 10) + "." +
		strconv.FormatUint(uint64(b1), 10) + "." +
		strconv.FormatUint(uint64(b2), 10) + "." +
		strconv.FormatUint(uint64(b3), 10)
}
