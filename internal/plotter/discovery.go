package plotter

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// MatchRules lists the substrings that identify the device. Matching is
// case-sensitive.
type MatchRules struct {
	// Descriptions are matched against the port's product description.
	Descriptions []string
	// Paths are matched against the port's device name.
	Paths []string
}

// DefaultMatchRules recognizes official boards and common CH340 clones.
var DefaultMatchRules = MatchRules{
	Descriptions: []string{"Arduino", "CH340"},
	Paths:        []string{"usbmodem", "wchusbserial", "ttyACM"},
}

// Matches reports whether port satisfies any of the rules.
func (r MatchRules) Matches(port *enumerator.PortDetails) bool {
	if port == nil {
		return false
	}
	for _, s := range r.Descriptions {
		if s != "" && strings.Contains(port.Product, s) {
			return true
		}
	}
	for _, s := range r.Paths {
		if s != "" && strings.Contains(port.Name, s) {
			return true
		}
	}
	return false
}

// MatchPort returns the first port in ports that satisfies rules.
func MatchPort(ports []*enumerator.PortDetails, rules MatchRules) (*enumerator.PortDetails, bool) {
	for _, p := range ports {
		if rules.Matches(p) {
			return p, true
		}
	}
	return nil, false
}

// PortLister enumerates the serial ports visible on the host.
type PortLister func() ([]*enumerator.PortDetails, error)

// Matcher picks the device port among the host's serial ports.
type Matcher struct {
	Rules MatchRules
	List  PortLister
}

func NewMatcher(rules MatchRules) *Matcher {
	return &Matcher{
		Rules: rules,
		List:  enumerator.GetDetailedPortsList,
	}
}

// Find returns the name of the first matching port. ok is false when no port
// matches; err is only set when enumeration itself fails.
func (m *Matcher) Find() (name string, ok bool, err error) {
	ports, err := m.List()
	if err != nil {
		return "", false, fmt.Errorf("enumerator error: %w", err)
	}
	p, ok := MatchPort(ports, m.Rules)
	if !ok {
		return "", false, nil
	}
	return p.Name, true, nil
}
