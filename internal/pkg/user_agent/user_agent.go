package user_agent

import "strings"

// Operating systems reported by ParseOS.
const (
	OSWindows = "Windows"
	OSMacOS   = "macOS"
	OSIOS     = "iOS"
	OSAndroid = "Android"
	OSLinux   = "Linux"
	OSOther   = "Other"
)

// Device classes reported by ParseDevice.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// rule pairs a predicate over the lowercased user agent with the label it yields.
type rule struct {
	label string
	match func(ua string) bool
}

func containsAny(tokens ...string) func(string) bool {
	return func(ua string) bool {
		for _, token := range tokens {
			if strings.Contains(ua, token) {
				return true
			}
		}
		return false
	}
}

// osRules is evaluated in order. iOS precedes macOS because iOS agents carry
// "like Mac OS X", and Android precedes Linux for the same reason.
var osRules = []rule{
	{label: OSWindows, match: containsAny("windows")},
	{label: OSIOS, match: containsAny("iphone", "ipad", "ipod")},
	{label: OSMacOS, match: containsAny("macintosh", "mac os x", "mac_powerpc")},
	{label: OSAndroid, match: containsAny("android")},
	{label: OSLinux, match: containsAny("linux", "x11", "cros")},
}

// deviceRules is evaluated in order; anything unmatched is a desktop.
var deviceRules = []rule{
	{label: DeviceTablet, match: containsAny("ipad", "tablet")},
	{label: DeviceMobile, match: containsAny("mobile", "iphone", "ipod", "windows phone")},
	// Android agents without the "mobile" token are tablets.
	{label: DeviceTablet, match: containsAny("android")},
}

func firstMatch(rules []rule, ua, fallback string) string {
	for _, r := range rules {
		if r.match(ua) {
			return r.label
		}
	}
	return fallback
}

// ParseOS returns the coarse operating system for the user agent.
func ParseOS(userAgent string) string {
	return firstMatch(osRules, strings.ToLower(userAgent), OSOther)
}

// ParseDevice returns the coarse device class for the user agent.
func ParseDevice(userAgent string) string {
	return firstMatch(deviceRules, strings.ToLower(userAgent), DeviceDesktop)
}
