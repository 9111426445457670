package iputil

import "net"

const (
	IPv4DefaultMaskingBitSize = 24
	IPv6DefaultMaskingBitSize = 56
)

var (
	ipv4DefaultMask = net.CIDRMask(IPv4DefaultMaskingBitSize, 32)
	ipv6DefaultMask = net.CIDRMask(IPv6DefaultMaskingBitSize, 128)
)

// MaskIP zeroes the host bits of an address: IPv4 keeps its /24 network, IPv6 keeps its /56 network.
// Unparseable input yields an empty string.
func MaskIP(v string) string {
	ip, ver := ParseIP(v)
	switch ver {
	case IPv4:
		return ip.To4().Mask(ipv4DefaultMask).String()
	case IPv6:
		return ip.Mask(ipv6DefaultMask).String()
	}
	return ""
}

// MaskIPWithBits masks the address keeping the given number of network bits.
func MaskIPWithBits(v string, ipv4Bits, ipv6Bits int) string {
	ip, ver := ParseIP(v)
	switch ver {
	case IPv4:
		return ip.To4().Mask(net.CIDRMask(ipv4Bits, 32)).String()
	case IPv6:
		return ip.Mask(net.CIDRMask(ipv6Bits, 128)).String()
	}
	return ""
}
