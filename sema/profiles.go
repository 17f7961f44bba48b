/*
 * Gradient - The gradually-typed programming language
 *
 * Copyright Gradient Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sema

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/gradient-lang/gradient/errors"
)

//go:embed compat_profiles.yaml
var compatProfilesYAML []byte

// CompatProfile parameterizes the Lawyer. Each option names one
// compatibility behavior; the zero value disables all of them, which
// is stricter than any shipped preset.
type CompatProfile struct {
	// StrictNullChecks keeps undefined and null out of every other
	// type. Off, they are assignable everywhere.
	StrictNullChecks bool `yaml:"strictNullChecks"`

	// StrictFunctionTypes compares parameter types contravariantly.
	// Off, parameters compare bivariantly.
	StrictFunctionTypes bool `yaml:"strictFunctionTypes"`

	// ExactOptionalPropertyTypes compares optional member types
	// without the implied undefined arm.
	ExactOptionalPropertyTypes bool `yaml:"exactOptionalPropertyTypes"`

	// NoUncheckedIndexedAccess adds undefined to reads answered by an
	// index signature.
	NoUncheckedIndexedAccess bool `yaml:"noUncheckedIndexedAccess"`

	// MethodBivariance retries parameter checks bivariantly for
	// members declared with method syntax, even under
	// StrictFunctionTypes.
	MethodBivariance bool `yaml:"methodBivariance"`

	// WeakTypeChecks rejects sources sharing no member with an
	// all-optional object target.
	WeakTypeChecks bool `yaml:"weakTypeChecks"`

	// ExcessPropertyChecks rejects fresh object literals carrying
	// members the target neither declares nor absorbs through an
	// index signature.
	ExcessPropertyChecks bool `yaml:"excessPropertyChecks"`

	// EnumOpacity keeps enums nominal: cross-enum assignment and
	// primitive-to-enum assignment are rejected even where the value
	// structure matches.
	EnumOpacity bool `yaml:"enumOpacity"`

	// EmptyObjectToRootObject accepts the empty object literal type
	// wherever the root object type is expected.
	EmptyObjectToRootObject bool `yaml:"emptyObjectToRootObject"`
}

// judgeOptions derives the relation settings for the Lawyer's
// structural fallback. The escapes driven by any and by void returns
// are unconditional surface behavior, not profile options.
func (p *CompatProfile) judgeOptions() judgeOptions {
	return judgeOptions{
		anyEscape:           true,
		lenientNullish:      !p.StrictNullChecks,
		bivariantParams:     !p.StrictFunctionTypes,
		methodBivariance:    p.MethodBivariance,
		exactOptional:       p.ExactOptionalPropertyTypes,
		weakTypeChecks:      p.WeakTypeChecks,
		voidReturnEscape:    true,
		bivariantRestParams: true,
	}
}

var compatProfilePresets = sync.OnceValue(func() map[string]CompatProfile {
	var presets map[string]CompatProfile
	err := yaml.UnmarshalWithOptions(compatProfilesYAML, &presets, yaml.Strict())
	if err != nil {
		// The presets are compiled in; failing to parse them is a
		// defect, not an input problem.
		panic(errors.NewUnexpectedErrorFromCause(err))
	}
	return presets
})

// DefaultProfile returns the preset reproducing the reference
// language's out-of-the-box behavior.
func DefaultProfile() *CompatProfile {
	profile := compatProfilePresets()["default"]
	return &profile
}

// ProfileNames returns the shipped preset names, sorted.
func ProfileNames() []string {
	presets := compatProfilePresets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfile returns a copy of the named preset.
func LoadProfile(name string) (*CompatProfile, error) {
	profile, ok := compatProfilePresets()[name]
	if !ok {
		return nil, errors.NewDefaultUserError(
			"unknown compatibility profile %q (available: %s)",
			name,
			strings.Join(ProfileNames(), ", "),
		)
	}
	return &profile, nil
}

// ParseProfile decodes one profile from YAML, starting from the
// default preset so omitted options keep their default values.
// Unknown options are rejected.
func ParseProfile(data []byte) (*CompatProfile, error) {
	profile := DefaultProfile()
	err := yaml.UnmarshalWithOptions(data, profile, yaml.Strict())
	if err != nil {
		return nil, errors.NewDefaultUserError(
			"invalid compatibility profile: %s",
			err.Error(),
		)
	}
	return profile, nil
}
