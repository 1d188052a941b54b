package foundry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/preset"
)

// profileSeparator matches the characters of a preset name that are not
// valid in a bare TOML key.
var profileSeparator = regexp.MustCompile(`[-+]+`)

// ProfileName returns the Foundry profile name used for a preset name.
func ProfileName(name string) string {
	return profileSeparator.ReplaceAllString(name, "_")
}

// Profile is one generated [profile.<name>] section of foundry.toml.
type Profile struct {
	Name       string
	Solc       string
	EVMVersion string
	Optimizer  bool
	ViaIR      bool
	Yul        bool
}

// NewProfile resolves p and builds the profile that compiles with binary.
func NewProfile(p preset.Preset, binary, evmVersion string) (Profile, error) {
	s, err := preset.Resolve(p, evmVersion)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", exttest.ErrConfiguration, err)
	}
	return Profile{
		Name:       ProfileName(p.String()),
		Solc:       binary,
		EVMVersion: s.EVMVersion,
		Optimizer:  s.OptimizerEnabled,
		ViaIR:      s.ViaIR,
		Yul:        s.YulDetails,
	}, nil
}

const profileFormat = `[profile.%[1]s]
gas_reports = ["*"]
auto_detect_solc = false
solc = %[2]s
evm_version = %[3]s
optimizer = %[4]t
via_ir = %[5]t

[profile.%[1]s.optimizer_details]
yul = %[6]t
`

var tomlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func tomlString(s string) string {
	return `"` + tomlEscaper.Replace(s) + `"`
}

// Render returns the TOML text of the profile.
func (p Profile) Render() string {
	return fmt.Sprintf(profileFormat, p.Name, tomlString(p.Solc), tomlString(p.EVMVersion), p.Optimizer, p.ViaIR, p.Yul)
}
