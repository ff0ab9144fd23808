package internal

import "strings"

// ParseRule builds a rule from one line of rule text:
//
//	tcp srcAddress 192.168.1.0/24 srcPort 25 action accept
//
// The first token selects the tier (ip, tcp or udp); the rest are field/value
// pairs applied in order. The first refused pair is returned as is.
func ParseRule(line string) (*Rule, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, &ParseError{Kind: ErrUnrecognizedProtocol, Line: line}
	}

	var tier Tier
	switch tokens[0] {
	case "ip":
		tier = TierIP
	case "tcp":
		tier = TierTCP
	case "udp":
		tier = TierUDP
	default:
		return nil, &ParseError{Kind: ErrUnrecognizedProtocol, Line: line, Token: tokens[0]}
	}

	pairs := tokens[1:]
	if len(pairs)%2 != 0 {
		return nil, &ParseError{Kind: ErrMalformedLine, Line: line, Token: pairs[len(pairs)-1]}
	}

	r := NewRule(tier)
	for i := 0; i < len(pairs); i += 2 {
		if err := r.SetField(pairs[i], pairs[i+1]); err != nil {
			return nil, err
		}
	}
	return r, nil
}
