// Package netiface detects a usable IPv4 broadcast address for the
// Art-Net Transmitter's outbound socket when the operator hasn't pinned
// one in config: the first non-loopback ethernet/wifi broadcast address,
// falling back to the global broadcast.
package netiface

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// Option describes one candidate broadcast address, ranked by how likely it
// is to be the right one for Art-Net egress on a LAN.
type Option struct {
	InterfaceName string
	Address       string
	Broadcast     string
	Kind          string // "ethernet", "wifi", "other", "global"
}

// DetectBroadcast returns the best-guess broadcast address to bind the
// Art-Net socket against: the broadcast address of the first up,
// non-loopback IPv4 interface, preferring ethernet over wifi over other
// kinds. Addresses whose computed broadcast equals the address itself
// (e.g. a /32) are skipped; point-to-point interfaces are not otherwise
// excluded. Falls back to 255.255.255.255 if no such interface is found.
func DetectBroadcast() (string, error) {
	options, err := ListOptions()
	if err != nil {
		return "", err
	}
	if len(options) == 0 {
		return "255.255.255.255", nil
	}
	return options[0].Broadcast, nil
}

// ListOptions enumerates every candidate broadcast address on the host,
// ethernet first, then wifi, then other interface kinds, with the global
// broadcast address always last.
func ListOptions() ([]Option, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerating network interfaces: %w", err)
	}

	var options []Option
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			broadcast := calculateBroadcast(ip4, ipNet.Mask)
			if broadcast == nil || broadcast.String() == ip4.String() {
				continue
			}
			options = append(options, Option{
				InterfaceName: iface.Name,
				Address:       ip4.String(),
				Broadcast:     broadcast.String(),
				Kind:          interfaceKind(iface.Name),
			})
		}
	}

	rank := map[string]int{"ethernet": 0, "wifi": 1, "other": 2}
	sort.SliceStable(options, func(i, j int) bool { return rank[options[i].Kind] < rank[options[j].Kind] })

	options = append(options, Option{
		InterfaceName: "*",
		Address:       "0.0.0.0",
		Broadcast:     "255.255.255.255",
		Kind:          "global",
	})
	return options, nil
}

func calculateBroadcast(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || mask == nil {
		return nil
	}
	if len(mask) == 16 {
		mask = mask[12:16]
	}
	if len(mask) != 4 {
		return nil
	}
	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}

// interfaceKind classifies an interface, asking macOS's hardware-port table
// when available and falling back to name-prefix heuristics elsewhere (or
// when networksetup has no answer).
func interfaceKind(name string) string {
	if runtime.GOOS == "darwin" {
		if kind := macOSInterfaceKind(name); kind != "other" {
			return kind
		}
	}
	return fallbackInterfaceKind(name)
}

// macOSInterfaceKind shells out to networksetup to resolve the hardware
// port backing an interface. Best-effort: any failure reports "other" so
// the caller falls through to the name-based heuristics.
func macOSInterfaceKind(name string) string {
	for _, char := range name {
		isLower := char >= 'a' && char <= 'z'
		isUpper := char >= 'A' && char <= 'Z'
		isDigit := char >= '0' && char <= '9'
		if !(isLower || isUpper || isDigit || char == '-' || char == '_') {
			return "other"
		}
	}

	out, err := exec.Command("networksetup", "-listallhardwareports").Output()
	if err != nil {
		return "other"
	}

	outputLower := strings.ToLower(string(out))
	deviceSearch := fmt.Sprintf("device: %s", strings.ToLower(name))

	blocks := strings.Split(outputLower, "hardware port:")
	for _, block := range blocks[1:] {
		if !strings.Contains(block, deviceSearch) {
			continue
		}
		if strings.Contains(block, "wi-fi") ||
			strings.Contains(block, "wifi") ||
			strings.Contains(block, "wireless") {
			return "wifi"
		}
		if (strings.Contains(block, "usb") &&
			(strings.Contains(block, "lan") ||
				strings.Contains(block, "ethernet") ||
				strings.Contains(block, "100"))) ||
			strings.Contains(block, "thunderbolt") ||
			strings.Contains(block, "ethernet") ||
			strings.Contains(block, "wired") {
			return "ethernet"
		}
		return "other"
	}
	return "other"
}

func fallbackInterfaceKind(name string) string {
	lower := strings.ToLower(name)
	// en0 is typically Wi-Fi on Macs, wired en* otherwise.
	if lower == "en0" {
		return "wifi"
	}
	switch {
	case strings.HasPrefix(lower, "eth"), strings.HasPrefix(lower, "en"), strings.HasPrefix(lower, "eno"):
		return "ethernet"
	case strings.HasPrefix(lower, "wlan"), strings.HasPrefix(lower, "wl"),
		strings.Contains(lower, "wifi"), strings.Contains(lower, "wireless"):
		return "wifi"
	default:
		return "other"
	}
}
