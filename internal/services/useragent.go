package services

import "strings"

// DeriveDeviceName builds a "<OS> - <Client>" display name from a User-Agent
// header, for devices that register without a name.
func DeriveDeviceName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	return DerivePlatform(userAgent) + " - " + deriveClient(userAgent)
}

// DerivePlatform returns the operating system named in a User-Agent header.
func DerivePlatform(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"), strings.Contains(ua, "darwin"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "cros "):
		return "ChromeOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown OS"
	}
}

// order matters: Edge and Opera also claim to be Chrome, Chrome claims Safari
func deriveClient(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "kliiq/"):
		return "Kliiq CLI"
	case strings.Contains(ua, "edg/"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "curl/"):
		return "curl"
	default:
		return "Unknown Client"
	}
}
