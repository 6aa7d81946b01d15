// Package bom turns a free-text procurement need into a structured bill of
// materials. The Generator interface is implemented by LLM-backed adapters
// in the subpackages and by a deterministic StaticGenerator for offline use
// and tests.
package bom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/procuremesh/protocol"
)

// Generator derives a bill of materials from a natural-language request.
type Generator interface {
	Generate(ctx context.Context, requestText string) (protocol.BOM, error)
}

// SystemPrompt instructs LLM-backed generators to answer with bare JSON in
// the shape DecodeBOM expects.
const SystemPrompt = `You are a procurement engineer. Given a product request,
produce a bill of materials as JSON with this exact shape:
{"product": "<name>", "items": [{"part_name": "...", "category": "...",
"quantity": <int>, "description": "..."}]}
Use lowercase snake_case categories (e.g. motors, power, electronics,
structure). Respond with JSON only, no prose and no markdown fences.`

// BuildUserPrompt renders the user turn for LLM-backed generators.
func BuildUserPrompt(requestText string) string {
	return fmt.Sprintf("Product request: %s\n\nReturn the bill of materials as JSON.", requestText)
}

// DecodeBOM parses a generator response into a BOM, tolerating markdown
// code fences around the JSON. An empty item list is rejected: a BOM with
// nothing to buy cannot drive a procurement run.
func DecodeBOM(raw string) (protocol.BOM, error) {
	cleaned := stripFences(raw)
	var b protocol.BOM
	if err := json.Unmarshal([]byte(cleaned), &b); err != nil {
		return protocol.BOM{}, fmt.Errorf("decode bom: %w", err)
	}
	if len(b.Items) == 0 {
		return protocol.BOM{}, &protocol.ValidationError{Field: "items", Message: "bill of materials has no items"}
	}
	return b, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// StaticGenerator is a deterministic Generator backed by keyword matching
// over a small product catalog. Useful for tests, examples and air-gapped
// runs; canned responses can be registered per request text.
type StaticGenerator struct {
	canned map[string]protocol.BOM
}

// NewStaticGenerator constructs a StaticGenerator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{canned: make(map[string]protocol.BOM)}
}

// AddBOM registers a canned BOM returned verbatim for an exact request text.
func (g *StaticGenerator) AddBOM(requestText string, b protocol.BOM) {
	g.canned[requestText] = b
}

// Generate implements Generator.
func (g *StaticGenerator) Generate(ctx context.Context, requestText string) (protocol.BOM, error) {
	if err := ctx.Err(); err != nil {
		return protocol.BOM{}, err
	}
	if b, ok := g.canned[requestText]; ok {
		return b, nil
	}

	text := strings.ToLower(requestText)
	switch {
	case strings.Contains(text, "drone") || strings.Contains(text, "quadcopter") || strings.Contains(text, "uav"):
		return droneBOM(), nil
	case strings.Contains(text, "keyboard"):
		return keyboardBOM(), nil
	case strings.Contains(text, "sensor") || strings.Contains(text, "weather station"):
		return sensorBOM(), nil
	default:
		return genericBOM(requestText), nil
	}
}

func droneBOM() protocol.BOM {
	return protocol.BOM{
		Product: "quadcopter drone",
		Items: []protocol.BOMItem{
			{PartName: "brushless motor 2207", Category: "motors", Quantity: 4, Description: "2400KV brushless motor"},
			{PartName: "esc 35a", Category: "power", Quantity: 4, Description: "35A electronic speed controller"},
			{PartName: "flight controller f7", Category: "electronics", Quantity: 1, Description: "F7 flight controller board"},
			{PartName: "lipo battery 4s", Category: "power", Quantity: 2, Description: "4S 1500mAh lithium polymer battery"},
			{PartName: "carbon frame 5in", Category: "structure", Quantity: 1, Description: "5 inch carbon fiber frame"},
			{PartName: "propeller set", Category: "structure", Quantity: 4, Description: "5 inch tri-blade propellers"},
			{PartName: "video transmitter", Category: "electronics", Quantity: 1, Description: "5.8GHz video transmitter"},
			{PartName: "receiver elrs", Category: "electronics", Quantity: 1, Description: "ExpressLRS radio receiver"},
		},
	}
}

func keyboardBOM() protocol.BOM {
	return protocol.BOM{
		Product: "mechanical keyboard",
		Items: []protocol.BOMItem{
			{PartName: "pcb hotswap 65", Category: "electronics", Quantity: 1, Description: "65% hotswap PCB"},
			{PartName: "switch tactile", Category: "electronics", Quantity: 70, Description: "tactile mechanical switch"},
			{PartName: "keycap set pbt", Category: "structure", Quantity: 1, Description: "PBT keycap set"},
			{PartName: "aluminium case 65", Category: "structure", Quantity: 1, Description: "65% aluminium case"},
			{PartName: "stabilizer set", Category: "structure", Quantity: 1, Description: "screw-in stabilizers"},
		},
	}
}

func sensorBOM() protocol.BOM {
	return protocol.BOM{
		Product: "environmental sensor node",
		Items: []protocol.BOMItem{
			{PartName: "mcu esp32", Category: "electronics", Quantity: 1, Description: "ESP32 microcontroller module"},
			{PartName: "sensor bme280", Category: "sensors", Quantity: 1, Description: "temperature/humidity/pressure sensor"},
			{PartName: "solar panel 5v", Category: "power", Quantity: 1, Description: "5V solar panel"},
			{PartName: "lipo battery 1s", Category: "power", Quantity: 1, Description: "1S 2000mAh lithium polymer battery"},
			{PartName: "enclosure ip65", Category: "structure", Quantity: 1, Description: "weatherproof enclosure"},
		},
	}
}

func genericBOM(requestText string) protocol.BOM {
	return protocol.BOM{
		Product: requestText,
		Items: []protocol.BOMItem{
			{PartName: "main assembly", Category: "structure", Quantity: 1},
			{PartName: "control board", Category: "electronics", Quantity: 1},
			{PartName: "power supply", Category: "power", Quantity: 1},
			{PartName: "fastener kit", Category: "structure", Quantity: 1},
		},
	}
}
