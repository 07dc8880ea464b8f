package sandbox

import (
	"fmt"
	"strings"
)

// Capability is one kind of potentially unsafe operation.
type Capability int

const (
	FileRead Capability = iota
	FileWrite
	Process
	Network
	Interop
	Environment
)

var capabilityNames = [...]string{
	FileRead:    "file-read",
	FileWrite:   "file-write",
	Process:     "process",
	Network:     "network",
	Interop:     "interop",
	Environment: "environment",
}

// Capabilities lists every capability in declaration order.
func Capabilities() []Capability {
	return []Capability{FileRead, FileWrite, Process, Network, Interop, Environment}
}

func (c Capability) String() string {
	if c >= 0 && int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// ParseCapability accepts the String form of a capability, case-insensitively,
// and "env" as a short form of environment.
func ParseCapability(s string) (Capability, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "env" {
		return Environment, nil
	}
	for i, n := range capabilityNames {
		if n == name || strings.ReplaceAll(n, "-", "") == name {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// ParseCapabilities parses a comma separated list. Empty items are skipped.
func ParseCapabilities(s string) ([]Capability, error) {
	var caps []Capability
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		c, err := ParseCapability(item)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// Policy decides requests when no interceptor is installed.
type Policy int

const (
	PolicyDeny Policy = iota
	PolicyAllow
)

func (p Policy) String() string {
	if p == PolicyAllow {
		return "allow"
	}
	return "deny"
}

// ParsePolicy parses "allow" or "deny".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deny", "":
		return PolicyDeny, nil
	case "allow":
		return PolicyAllow, nil
	default:
		return PolicyDeny, fmt.Errorf("unknown policy %q", s)
	}
}
