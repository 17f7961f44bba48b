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
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/gradient-lang/gradient/errors"
)

// FailureKind discriminates the closed taxonomy of assignability failure
// reasons. The checker maps these to diagnostic codes and message text;
// the mapping itself is not the solver's business.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	// FailureNotRelated is the generic structural mismatch leaf:
	// the source simply is not the target.
	FailureNotRelated
	FailurePropertyMissing
	FailurePropertyTypeMismatch
	FailureExcessProperty
	FailureParameterIncompatible
	FailureReturnIncompatible
	FailureArityMismatch
	FailureEnumOpacityViolation
	FailureBudgetExceeded
	FailureConditionalUnresolved
	FailureUnresolvedReference
	FailurePrivateBrandMismatch
	FailureWeakTypeNoOverlap
	FailureIndexSignatureMissing
	FailureReadonlyViolation
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNotRelated:
		return "not related"
	case FailurePropertyMissing:
		return "property missing"
	case FailurePropertyTypeMismatch:
		return "property type mismatch"
	case FailureExcessProperty:
		return "excess property"
	case FailureParameterIncompatible:
		return "parameter incompatible"
	case FailureReturnIncompatible:
		return "return incompatible"
	case FailureArityMismatch:
		return "arity mismatch"
	case FailureEnumOpacityViolation:
		return "enum opacity violation"
	case FailureBudgetExceeded:
		return "budget exceeded"
	case FailureConditionalUnresolved:
		return "conditional unresolved"
	case FailureUnresolvedReference:
		return "unresolved reference"
	case FailurePrivateBrandMismatch:
		return "private brand mismatch"
	case FailureWeakTypeNoOverlap:
		return "weak type has no overlap"
	case FailureIndexSignatureMissing:
		return "index signature missing"
	case FailureReadonlyViolation:
		return "readonly violation"
	default:
		panic(errors.NewUnreachableError())
	}
}

// FailureReason explains one negative assignability verdict. Reasons nest:
// a property mismatch carries the reason the property's types did not
// relate, a parameter incompatibility carries the parameter's reason, and
// so on down to a leaf.
//
// A FailureReason is a value, not a Go error: a negative verdict is the
// normal way the solver reports "does not fit".
type FailureReason struct {
	Kind FailureKind

	// Source and Target are the two types whose comparison produced
	// this step of the explanation.
	Source TypeID
	Target TypeID

	// Name is the member name for property and brand failures.
	Name string
	// Suggestions lists close member names for PropertyMissing.
	Suggestions []string

	// Index is the parameter position for ParameterIncompatible.
	Index int
	// SourceArity and TargetArity are set for ArityMismatch.
	SourceArity int
	TargetArity int

	// Def is the enum for EnumOpacityViolation and the declaration for
	// UnresolvedReference.
	Def DefID

	// Budget is set for BudgetExceeded.
	Budget BudgetKind

	// IndexKind is set for IndexSignatureMissing.
	IndexKind IndexKind

	// Cause is the nested reason, if any.
	Cause *FailureReason
}

// Summary renders a single-line, human-readable account of this step.
// Full rendering with type display text lives in the pretty package.
func (r *FailureReason) Summary() string {
	switch r.Kind {
	case FailureNotRelated:
		return "types are not related"
	case FailurePropertyMissing:
		if len(r.Suggestions) > 0 {
			return fmt.Sprintf(
				"property %q is missing. did you mean %q?",
				r.Name,
				r.Suggestions[0],
			)
		}
		return fmt.Sprintf("property %q is missing", r.Name)
	case FailurePropertyTypeMismatch:
		return fmt.Sprintf("property %q has an incompatible type", r.Name)
	case FailureExcessProperty:
		return fmt.Sprintf("object literal declares unknown property %q", r.Name)
	case FailureParameterIncompatible:
		return fmt.Sprintf("parameter %d is incompatible", r.Index)
	case FailureReturnIncompatible:
		return "return type is incompatible"
	case FailureArityMismatch:
		return fmt.Sprintf(
			"expected %d argument(s), but got %d",
			r.TargetArity,
			r.SourceArity,
		)
	case FailureEnumOpacityViolation:
		return "enum types are opaque to their value primitives"
	case FailureBudgetExceeded:
		return fmt.Sprintf("check truncated: %s budget exceeded", r.Budget)
	case FailureConditionalUnresolved:
		return "conditional type could not be resolved"
	case FailureUnresolvedReference:
		return "reference could not be resolved"
	case FailurePrivateBrandMismatch:
		return fmt.Sprintf("private member %q originates from another declaration", r.Name)
	case FailureWeakTypeNoOverlap:
		return "no properties in common with the weak target type"
	case FailureIndexSignatureMissing:
		if r.Name != "" {
			return fmt.Sprintf(
				"property %q and the %s index signature are incompatible",
				r.Name,
				r.IndexKind,
			)
		}
		return fmt.Sprintf("%s index signatures are incompatible", r.IndexKind)
	case FailureReadonlyViolation:
		return fmt.Sprintf(
			"property %q is readonly in the source but mutable in the target",
			r.Name,
		)
	default:
		panic(errors.NewUnreachableError())
	}
}

// Chain returns the reason chain from this step down to the leaf cause.
func (r *FailureReason) Chain() []*FailureReason {
	var chain []*FailureReason
	for step := r; step != nil; step = step.Cause {
		chain = append(chain, step)
	}
	return chain
}

// Leaf returns the deepest cause.
func (r *FailureReason) Leaf() *FailureReason {
	step := r
	for step.Cause != nil {
		step = step.Cause
	}
	return step
}

func (r *FailureReason) String() string {
	var sb strings.Builder
	for i, step := range r.Chain() {
		if i > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(step.Summary())
	}
	return sb.String()
}

// IsTruncated reports whether this reason, at any depth, is a budget
// truncation rather than a proven mismatch.
func (r *FailureReason) IsTruncated() bool {
	for step := r; step != nil; step = step.Cause {
		if step.Kind == FailureBudgetExceeded {
			return true
		}
	}
	return false
}

// findClosestProperty searches the candidate member names for the one with
// the smallest edit distance from the missing name. In cases of typos,
// this should provide a helpful hint.
func findClosestProperty(name string, candidates []string) (closest string) {
	nameRunes := []rune(name)

	closestDistance := len(name)

	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	for _, candidate := range sorted {
		distance := levenshtein.DistanceForStrings(
			nameRunes,
			[]rune(candidate),
			levenshtein.DefaultOptions,
		)

		// Don't update the closest member if the distance is greater than one already found,
		// or if the edits required would involve a complete replacement of the member's text
		if distance < closestDistance && distance < len(candidate) {
			closest = candidate
			closestDistance = distance
		}
	}

	return
}

// propertySuggestions returns up to one suggestion for a missing property.
func propertySuggestions(name string, candidates []string) []string {
	closest := findClosestProperty(name, candidates)
	if closest == "" {
		return nil
	}
	return []string{closest}
}
