// Package compliance evaluates whether a quoted order can legally ship to
// its destination. The RuleChecker encodes a small rulebook for dangerous
// goods and radio equipment; the verdict is derived from the collected
// blockers and warnings, never set directly.
package compliance

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/procuremesh/protocol"
)

// lithiumBatteryAirLimit is the number of standalone lithium battery packs
// shippable by air without a dangerous-goods declaration.
const lithiumBatteryAirLimit = 2

// Shipment describes one candidate order to evaluate.
type Shipment struct {
	Items         []protocol.QuoteItem
	OriginRegion  string
	DestRegion    string
	TransportType string
}

// Checker evaluates regulatory feasibility of a shipment.
type Checker interface {
	Check(ctx context.Context, s Shipment) (protocol.ComplianceResult, error)
}

// RuleChecker is a deterministic Checker backed by a fixed rulebook.
type RuleChecker struct{}

// NewRuleChecker constructs a RuleChecker.
func NewRuleChecker() *RuleChecker { return &RuleChecker{} }

// Check implements Checker. The verdict is failed when any blocker exists,
// warning when only warnings exist, passed otherwise.
func (c *RuleChecker) Check(ctx context.Context, s Shipment) (protocol.ComplianceResult, error) {
	if err := ctx.Err(); err != nil {
		return protocol.ComplianceResult{}, err
	}

	var blockers, warnings []string

	batteries := batteryCount(s.Items)
	air := strings.EqualFold(s.TransportType, "air")
	if batteries > 0 && air {
		if batteries > lithiumBatteryAirLimit {
			blockers = append(blockers, fmt.Sprintf(
				"%d lithium battery packs exceed the air transport limit of %d; a dangerous goods declaration (UN3480) is required",
				batteries, lithiumBatteryAirLimit))
		} else {
			warnings = append(warnings,
				"lithium batteries by air must travel as cargo aircraft only (IATA PI 965 Section II)")
		}
	}

	if destMatches(s.DestRegion, "eu") && hasRadioEquipment(s.Items) {
		warnings = append(warnings,
			"radio equipment imported into the EU requires CE marking under the Radio Equipment Directive")
	}
	if destMatches(s.DestRegion, "us") && hasTransmitter(s.Items) {
		warnings = append(warnings,
			"intentional radiators imported into the US require FCC Part 15 authorization")
	}

	res := protocol.ComplianceResult{
		Blockers: blockers,
		Warnings: warnings,
	}
	switch {
	case len(blockers) > 0:
		res.Status = protocol.ComplianceFailed
		res.Details = fmt.Sprintf("%d blocker(s), %d warning(s)", len(blockers), len(warnings))
	case len(warnings) > 0:
		res.Status = protocol.ComplianceWarning
		res.Details = fmt.Sprintf("shippable with %d caveat(s)", len(warnings))
	default:
		res.Status = protocol.CompliancePassed
		res.Details = "no regulatory issues found"
	}
	return res, nil
}

func batteryCount(items []protocol.QuoteItem) int {
	n := 0
	for _, it := range items {
		name := strings.ToLower(it.PartName)
		if strings.Contains(name, "battery") || strings.Contains(name, "lipo") {
			n += it.Quantity
		}
	}
	return n
}

func hasRadioEquipment(items []protocol.QuoteItem) bool {
	for _, it := range items {
		name := strings.ToLower(it.PartName)
		if strings.Contains(name, "transmitter") || strings.Contains(name, "receiver") ||
			strings.Contains(name, "antenna") || strings.Contains(name, "vtx") {
			return true
		}
	}
	return false
}

func hasTransmitter(items []protocol.QuoteItem) bool {
	for _, it := range items {
		name := strings.ToLower(it.PartName)
		if strings.Contains(name, "transmitter") || strings.Contains(name, "vtx") {
			return true
		}
	}
	return false
}

func destMatches(dest, region string) bool {
	return strings.Contains(strings.ToLower(dest), region)
}
