// Package artifact extracts artifacts from incident text.
package artifact

import (
	"regexp"
	"strings"
)

// Delimiter marks device names inside incident descriptions.
const Delimiter = "\u200b"

// Artifact types written by this service.
const (
	TypeDevice      = "device"
	TypeIncidentURL = "incident_url"
)

var deviceRe = regexp.MustCompile(`\x{200B}[^\s]+\x{200B}`)

// Devices returns every delimited device name in text, lower-cased and
// without delimiters, in order of appearance. Duplicates are kept.
func Devices(text string) []string {
	matches := deviceRe.FindAllString(text, -1)
	devices := make([]string, 0, len(matches))
	for _, m := range matches {
		devices = append(devices, strings.ToLower(strings.ReplaceAll(m, Delimiter, "")))
	}
	return devices
}

// Unique drops repeated values while keeping the first occurrence order.
func Unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
