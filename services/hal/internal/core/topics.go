package core

import (
	"strings"

	"flowcode-go/bus"
	"flowcode-go/types"
)

func T(tokens ...any) bus.Topic { return bus.T(tokens...) }

func TopicConfigHAL() bus.Topic { return T("config", "hal") }
func TopicHALState() bus.Topic  { return T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func CapBase(a CapAddr) bus.Topic { return T("hal", "cap", a.Domain, string(a.Kind), a.Name) }

func CapInfo(a CapAddr) bus.Topic   { return CapBase(a).Append("info") }
func CapStatus(a CapAddr) bus.Topic { return CapBase(a).Append("status") }
func CapValue(a CapAddr) bus.Topic  { return CapBase(a).Append("value") }
func CapEvent(a CapAddr) bus.Topic  { return CapBase(a).Append("event") }

// CapEventTagged splits tag on "/" so "order/complete" becomes two tokens.
func CapEventTagged(a CapAddr, tag string) bus.Topic {
	t := CapEvent(a)
	for _, tok := range strings.Split(tag, "/") {
		t = t.Append(tok)
	}
	return t
}

// hal/cap/<domain>/<kind>/<name>/control/<verb>
func CapCtrl(a CapAddr, verb string) bus.Topic {
	return CapBase(a).Append("control", verb)
}

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return T("hal", "cap", bus.WildOne, bus.WildOne, bus.WildOne, "control", bus.WildOne)
}

// FlowMeter addresses the flow meter capability named name.
func FlowMeter(name string) CapAddr {
	return CapAddr{Domain: types.DomainFlow, Kind: types.KindFlowMeter, Name: name}
}
