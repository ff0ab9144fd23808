package internal

import (
	"fmt"
	"strconv"
	"strings"

	"inet.af/netaddr"
)

// AddressCriterion holds when an address is inside Prefix. Network and
// broadcast addresses are inside.
//
// Negate is reserved. No rule text sets it and Matches does not read it.
type AddressCriterion struct {
	Prefix netaddr.IPPrefix
	Negate bool
}

// ParseAddressCriterion parses "<ipv4>/<prefixLen>".
func ParseAddressCriterion(field, value string) (*AddressCriterion, error) {
	p, err := netaddr.ParseIPPrefix(value)
	if err != nil {
		return nil, fieldError(ErrInvalidFieldValue, field, value, err)
	}
	if !p.IP().Is4() {
		return nil, fieldError(ErrInvalidFieldValue, field, value, fmt.Errorf("only IPv4 subnets are supported"))
	}
	return &AddressCriterion{Prefix: p}, nil
}

func (c *AddressCriterion) Matches(ip netaddr.IP) bool {
	return c.Prefix.Contains(ip)
}

func (c *AddressCriterion) String() string {
	return c.Prefix.String()
}

// PortRange is an inclusive range of ports, Low <= High.
type PortRange struct {
	Low  Port
	High Port
}

// ParsePortRange parses a bare port ("25") or a range ("25-30").
func ParsePortRange(field, value string) (PortRange, error) {
	if !strings.Contains(value, "-") {
		p, err := parsePort(value)
		if err != nil {
			return PortRange{}, fieldError(ErrInvalidFieldValue, field, value, err)
		}
		return PortRange{Low: p, High: p}, nil
	}

	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return PortRange{}, fieldError(ErrInvalidFieldValue, field, value,
			fmt.Errorf("port range must have start and end separated by one '-'"))
	}
	low, err := parsePort(parts[0])
	if err != nil {
		return PortRange{}, fieldError(ErrInvalidFieldValue, field, value, err)
	}
	high, err := parsePort(parts[1])
	if err != nil {
		return PortRange{}, fieldError(ErrInvalidFieldValue, field, value, err)
	}
	if low > high {
		return PortRange{}, fieldError(ErrInvalidFieldValue, field, value,
			fmt.Errorf("port range start %d is above end %d", low, high))
	}
	return PortRange{Low: low, High: high}, nil
}

func parsePort(s string) (Port, error) {
	u64p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port: %v", s)
	}
	return Port(u64p), nil
}

func (r PortRange) Contains(port Port) bool {
	return port >= r.Low && port <= r.High
}

func (r PortRange) String() string {
	if r.Low == r.High {
		return strconv.Itoa(int(r.Low))
	}
	return fmt.Sprintf("%d-%d", r.Low, r.High)
}

// PortRangeCriterion holds when a port lies in at least one of its ranges.
//
// Negate is reserved, see AddressCriterion.
type PortRangeCriterion struct {
	Ranges []PortRange
	Negate bool
}

// Add appends r; ranges are never replaced.
func (c *PortRangeCriterion) Add(r PortRange) {
	c.Ranges = append(c.Ranges, r)
}

func (c *PortRangeCriterion) Matches(port Port) bool {
	for _, r := range c.Ranges {
		if r.Contains(port) {
			return true
		}
	}
	return false
}
