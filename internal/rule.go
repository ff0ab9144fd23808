package internal

import (
	"strings"
)

// Tier is the protocol layer a rule matches at.
type Tier uint8

const (
	TierGeneric Tier = iota
	TierIP
	TierTCP
	TierUDP
)

// String returns the rule text keyword of the tier. Generic rules have none.
func (t Tier) String() string {
	switch t {
	case TierIP:
		return "ip"
	case TierTCP:
		return "tcp"
	case TierUDP:
		return "udp"
	default:
		return "generic"
	}
}

func (t Tier) hasAddresses() bool { return t != TierGeneric }

func (t Tier) hasPorts() bool { return t == TierTCP || t == TierUDP }

// Rule is one firewall rule: a tier, the criteria allowed at that tier and an
// action. Criteria left nil match anything.
//
// A rule is built with SetField and must not change once it is evaluated.
type Rule struct {
	tier     Tier
	action   Action
	metadata string

	srcAddress *AddressCriterion
	dstAddress *AddressCriterion
	srcPorts   *PortRangeCriterion
	dstPorts   *PortRangeCriterion
}

func NewRule(tier Tier) *Rule {
	return &Rule{tier: tier}
}

// SetField assigns one field of the rule text. srcPort and dstPort append a
// range on every call; the other fields overwrite.
func (r *Rule) SetField(name, value string) error {
	switch {
	case name == "action":
		act, err := ParseAction(value)
		if err != nil {
			return err
		}
		r.action = act
	case name == "srcAddress" && r.tier.hasAddresses():
		c, err := ParseAddressCriterion(name, value)
		if err != nil {
			return err
		}
		r.srcAddress = c
	case name == "dstAddress" && r.tier.hasAddresses():
		c, err := ParseAddressCriterion(name, value)
		if err != nil {
			return err
		}
		r.dstAddress = c
	case name == "srcPort" && r.tier.hasPorts():
		pr, err := ParsePortRange(name, value)
		if err != nil {
			return err
		}
		if r.srcPorts == nil {
			r.srcPorts = &PortRangeCriterion{}
		}
		r.srcPorts.Add(pr)
	case name == "dstPort" && r.tier.hasPorts():
		pr, err := ParsePortRange(name, value)
		if err != nil {
			return err
		}
		if r.dstPorts == nil {
			r.dstPorts = &PortRangeCriterion{}
		}
		r.dstPorts.Add(pr)
	default:
		return fieldError(ErrUnhandledFieldName, name, value, nil)
	}
	return nil
}

// Matches reports whether every configured criterion holds for v.
func (r *Rule) Matches(v PacketView) bool {
	switch r.tier {
	case TierGeneric:
		return true
	case TierTCP:
		if !v.HasTCPHeader() {
			return false
		}
	case TierUDP:
		if !v.HasUDPHeader() {
			return false
		}
	}
	if !v.HasIPv4Header() {
		return false
	}

	if r.srcAddress != nil && !r.srcAddress.Matches(v.SourceAddress()) {
		return false
	}
	if r.dstAddress != nil && !r.dstAddress.Matches(v.DestinationAddress()) {
		return false
	}
	if r.srcPorts != nil && !r.srcPorts.Matches(v.SourcePort()) {
		return false
	}
	if r.dstPorts != nil && !r.dstPorts.Matches(v.DestinationPort()) {
		return false
	}
	return true
}

func (r *Rule) Tier() Tier { return r.tier }

// Action returns ActionUnset when the rule text had no action field.
func (r *Rule) Action() Action { return r.action }

func (r *Rule) Metadata() string { return r.metadata }

func (r *Rule) SetMetadata(info string) { r.metadata = info }

func (r *Rule) SrcAddress() *AddressCriterion { return r.srcAddress }
func (r *Rule) DstAddress() *AddressCriterion { return r.dstAddress }
func (r *Rule) SrcPorts() *PortRangeCriterion { return r.srcPorts }
func (r *Rule) DstPorts() *PortRangeCriterion { return r.dstPorts }

// String renders the rule as rule text that ParseRule accepts, except for
// generic rules which have no tier keyword. Metadata is not rendered.
func (r *Rule) String() string {
	var fields []string
	if r.tier != TierGeneric {
		fields = append(fields, r.tier.String())
	}
	if r.srcAddress != nil {
		fields = append(fields, "srcAddress", r.srcAddress.String())
	}
	if r.dstAddress != nil {
		fields = append(fields, "dstAddress", r.dstAddress.String())
	}
	if r.srcPorts != nil {
		for _, pr := range r.srcPorts.Ranges {
			fields = append(fields, "srcPort", pr.String())
		}
	}
	if r.dstPorts != nil {
		for _, pr := range r.dstPorts.Ranges {
			fields = append(fields, "dstPort", pr.String())
		}
	}
	if r.action != ActionUnset {
		fields = append(fields, "action", r.action.String())
	}
	return strings.Join(fields, " ")
}
