package internal

import "fmt"

// Action is what a matching rule tells the caller to do with a packet.
type Action uint8

const (
	// ActionUnset is the zero value of a rule that never saw an action field.
	ActionUnset Action = iota
	ActionAccept
	ActionDeny
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionUnset:
		return "unset"
	case ActionAccept:
		return "accept"
	case ActionDeny:
		return "deny"
	case ActionReject:
		return "reject"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// ParseAction accepts exactly "accept", "deny" or "reject".
//
// An unknown literal is reported as ErrUnhandledFieldName, the same kind as an
// unknown field name. Rule files written for the legacy tool rely on that.
func ParseAction(s string) (Action, error) {
	switch s {
	case "accept":
		return ActionAccept, nil
	case "deny":
		return ActionDeny, nil
	case "reject":
		return ActionReject, nil
	}
	return ActionUnset, fieldError(ErrUnhandledFieldName, "action", s, fmt.Errorf("invalid rule action %s", s))
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action literal. "none" and "unset" decode to
// ActionUnset so that configuration can express "no action".
func (a *Action) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "", "none", "unset":
		*a = ActionUnset
		return nil
	default:
		act, err := ParseAction(s)
		if err != nil {
			return err
		}
		*a = act
		return nil
	}
}
