// Package preset maps named compiler settings presets to concrete settings.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknown is returned when a preset name is not one of the recognized presets.
// It is a configuration error: callers that classify errors by kind wrap it
// together with their configuration sentinel (exttest.ErrConfiguration).
var ErrUnknown = errors.New("unknown settings preset")

// Preset identifies one combination of code generation pipeline and optimizer flags.
type Preset int

const (
	LegacyNoOptimize Preset = iota
	IRNoOptimize
	LegacyOptimizeEVMOnly
	IROptimizeEVMOnly
	LegacyOptimizeEVMYul
	IROptimizeEVMYul

	numPresets
)

// names holds the preset names in declaration order.
var names = [numPresets]string{
	LegacyNoOptimize:      "legacy-no-optimize",
	IRNoOptimize:          "ir-no-optimize",
	LegacyOptimizeEVMOnly: "legacy-optimize-evm-only",
	IROptimizeEVMOnly:     "ir-optimize-evm-only",
	LegacyOptimizeEVMYul:  "legacy-optimize-evm+yul",
	IROptimizeEVMYul:      "ir-optimize-evm+yul",
}

// All returns every preset in declaration order.
func All() []Preset {
	all := make([]Preset, 0, numPresets)
	for p := range numPresets {
		all = append(all, p)
	}
	return all
}

// Names returns the names of all presets in declaration order.
func Names() []string {
	return slices.Clone(names[:])
}

func (p Preset) String() string {
	if p.Valid() {
		return names[p]
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// Valid reports whether p is one of the declared presets.
func (p Preset) Valid() bool {
	return p >= 0 && p < numPresets
}

// Parse returns the preset with the given name. The error of an unknown name
// lists every valid name.
func Parse(name string) (Preset, error) {
	for p, n := range names {
		if n == name {
			return Preset(p), nil
		}
	}
	return 0, fmt.Errorf("%w: %q; please select one or more of the available presets: %s",
		ErrUnknown, name, strings.Join(names[:], " "))
}

// MarshalText implements encoding.TextMarshaler.
func (p Preset) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(p))
	}
	return []byte(names[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so presets can be read
// from YAML declarations and flags by name.
func (p *Preset) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Settings is the compiler configuration a preset resolves to.
type Settings struct {
	OptimizerEnabled bool
	ViaIR            bool
	YulDetails       bool
	EVMVersion       string
}

// Resolve returns the settings for p targeting evmVersion.
func Resolve(p Preset, evmVersion string) (Settings, error) {
	s := Settings{EVMVersion: evmVersion}
	switch p {
	case LegacyNoOptimize:
	case IRNoOptimize:
		s.ViaIR = true
	case LegacyOptimizeEVMOnly:
		s.OptimizerEnabled = true
	case IROptimizeEVMOnly:
		s.ViaIR = true
		s.OptimizerEnabled = true
	case LegacyOptimizeEVMYul:
		s.OptimizerEnabled = true
		s.YulDetails = true
	case IROptimizeEVMYul:
		s.ViaIR = true
		s.OptimizerEnabled = true
		s.YulDetails = true
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknown, p)
	}
	return s, nil
}

// ResolveName parses name and resolves it.
func ResolveName(name, evmVersion string) (Settings, error) {
	p, err := Parse(name)
	if err != nil {
		return Settings{}, err
	}
	return Resolve(p, evmVersion)
}

// MarshalJSON renders s as the settings fragment of solc standard JSON input.
func (s Settings) MarshalJSON() ([]byte, error) {
	type details struct {
		Yul bool `json:"yul"`
	}
	type optimizer struct {
		Enabled bool    `json:"enabled"`
		Details details `json:"details"`
	}
	return json.Marshal(struct {
		Optimizer  optimizer `json:"optimizer"`
		EVMVersion string    `json:"evmVersion"`
		ViaIR      bool      `json:"viaIR"`
	}{
		Optimizer:  optimizer{Enabled: s.OptimizerEnabled, Details: details{Yul: s.YulDetails}},
		EVMVersion: s.EVMVersion,
		ViaIR:      s.ViaIR,
	})
}
