// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"strings"
)

// CaptureType selects the outermost protocol of a captured frame.
type CaptureType uint8

const (
	CaptureUnknown CaptureType = iota
	CaptureEthernet
	CaptureLinuxSLL // Linux cooked capture
	CaptureRadioTap // 802.11 with radiotap header
	CaptureDot11    // 802.11 without radio header
)

var captureNames = map[CaptureType]string{
	CaptureEthernet: "ethernet",
	CaptureLinuxSLL: "linux_sll",
	CaptureRadioTap: "radiotap",
	CaptureDot11:    "dot11",
}

func (c CaptureType) String() string {
	if name, ok := captureNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// ParseCaptureType maps a configuration name to a CaptureType.
// "auto" and "" map to CaptureUnknown, leaving detection to the source.
func ParseCaptureType(name string) (CaptureType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return CaptureUnknown, nil
	case "ethernet", "eth", "en10mb":
		return CaptureEthernet, nil
	case "linux_sll", "sll", "cooked":
		return CaptureLinuxSLL, nil
	case "radiotap", "ieee802_11_radio":
		return CaptureRadioTap, nil
	case "dot11", "ieee802_11", "80211":
		return CaptureDot11, nil
	default:
		return CaptureUnknown, fmt.Errorf("%w: %q", ErrUnsupportedCapture, name)
	}
}
