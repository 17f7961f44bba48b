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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleNames(t *testing.T) {

	t.Parallel()

	assert.Equal(t,
		[]string{
			"trivial-escapes",
			"sentinel-isolation",
			"enum-opacity",
			"literal-widening",
			"root-object-acceptance",
			"weak-type-overlap",
			"excess-property",
			"method-bivariance",
			"private-brands",
			"structural-fallback",
		},
		RuleNames(),
	)
}

func TestAssignableTrivialEscapes(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	assert.True(t, session.Assignable(TypeAny, TypeString).OK)
	assert.True(t, session.Assignable(TypeString, TypeAny).OK)
	assert.True(t, session.Assignable(TypeString, TypeUnknown).OK)
	assert.True(t, session.Assignable(TypeNever, TypeString).OK)
	assert.True(t, session.Assignable(TypeAny, TypeAny).OK)

	// any escapes everywhere but into never.
	assert.False(t, session.Assignable(TypeAny, TypeNever).OK)

	// unknown fits only the tops.
	assert.True(t, session.Assignable(TypeUnknown, TypeUnknown).OK)
	assert.False(t, session.Assignable(TypeUnknown, TypeString).OK)

	// Nullish sources flow freely while strict null checking is off.
	assert.True(t, session.Assignable(TypeUndefined, TypeString).OK)
	assert.True(t, session.Assignable(TypeNull, TypeNumber).OK)
}

func TestAssignableStrictNullChecks(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	strict, err := LoadProfile("strict")
	require.NoError(t, err)
	session := NewSession(env, Config{Profile: strict})

	assert.False(t, session.Assignable(TypeUndefined, TypeString).OK)
	assert.False(t, session.Assignable(TypeNull, TypeNumber).OK)

	// The explicit union arm still admits them.
	assert.True(t, session.Assignable(TypeUndefined, it.Union2(TypeString, TypeUndefined)).OK)
}

func TestAssignableSentinelIsolation(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	verdict := session.Assignable(TypeError, TypeString)
	require.False(t, verdict.OK)
	require.NotNil(t, verdict.Failure)
	assert.Equal(t, FailureUnresolvedReference, verdict.Failure.Kind)

	verdict = session.Assignable(TypeString, TypeError)
	require.False(t, verdict.OK)
	assert.Equal(t, FailureUnresolvedReference, verdict.Failure.Kind)

	// Identity and the any escape are granted before isolation applies.
	assert.True(t, session.Assignable(TypeError, TypeError).OK)
	assert.True(t, session.Assignable(TypeError, TypeAny).OK)
}

func TestAssignableEnumOpacity(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	color := defs.Add(&DefinitionInfo{
		Kind:     DefKindEnum,
		Name:     "Color",
		EnumKind: EnumKindNumeric,
		EnumMembers: numericEnumMembers(
			map[string]float64{"Red": 0, "Green": 1},
			[]string{"Red", "Green"},
		),
	})
	status := defs.Add(&DefinitionInfo{
		Kind:     DefKindEnum,
		Name:     "Status",
		EnumKind: EnumKindNumeric,
		EnumMembers: numericEnumMembers(
			map[string]float64{"Off": 0},
			[]string{"Off"},
		),
	})
	direction := defs.Add(&DefinitionInfo{
		Kind:     DefKindEnum,
		Name:     "Direction",
		EnumKind: EnumKindString,
		EnumMembers: stringEnumMembers(
			map[string]string{"Up": "UP"},
			[]string{"Up"},
		),
	})

	red := it.EnumMember(color, "Red", it.NumberLiteral(0))
	green := it.EnumMember(color, "Green", it.NumberLiteral(1))
	off := it.EnumMember(status, "Off", it.NumberLiteral(0))
	up := it.EnumMember(direction, "Up", it.StringLiteral("UP"))

	t.Run("member reaches its own enum", func(t *testing.T) {
		t.Parallel()
		assert.True(t, session.Assignable(red, it.EnumType(color)).OK)
	})

	t.Run("sibling members never cross", func(t *testing.T) {
		t.Parallel()
		verdict := session.Assignable(red, green)
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)
	})

	t.Run("distinct enums never relate despite equal values", func(t *testing.T) {
		t.Parallel()
		verdict := session.Assignable(red, off)
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)

		verdict = session.Assignable(it.EnumType(color), it.EnumType(status))
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)
	})

	t.Run("numeric widening is one-way", func(t *testing.T) {
		t.Parallel()
		assert.True(t, session.Assignable(red, TypeNumber).OK)
		assert.True(t, session.Assignable(it.EnumType(color), TypeNumber).OK)

		verdict := session.Assignable(TypeNumber, it.EnumType(color))
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)
	})

	t.Run("a number literal may hit an exact member value", func(t *testing.T) {
		t.Parallel()
		assert.True(t, session.Assignable(it.NumberLiteral(0), it.EnumType(color)).OK)
		assert.False(t, session.Assignable(it.NumberLiteral(7), it.EnumType(color)).OK)
	})

	t.Run("string enums and string do not mix", func(t *testing.T) {
		t.Parallel()
		verdict := session.Assignable(up, TypeString)
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)

		verdict = session.Assignable(it.StringLiteral("UP"), it.EnumType(direction))
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)

		verdict = session.Assignable(TypeString, it.EnumType(direction))
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)
	})

	t.Run("a union cannot smuggle in a foreign member", func(t *testing.T) {
		t.Parallel()
		verdict := session.Assignable(
			it.Union2(off, it.NumberLiteral(1)),
			it.EnumType(color),
		)
		require.False(t, verdict.OK)
		assert.Equal(t, FailureEnumOpacityViolation, verdict.Failure.Kind)
	})
}

func TestAssignableLiteralWidening(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	assert.True(t, session.Assignable(it.StringLiteral("a"), TypeString).OK)
	assert.True(t, session.Assignable(it.NumberLiteral(1), TypeNumber).OK)
	assert.True(t, session.Assignable(it.BooleanLiteral(true), TypeBoolean).OK)
	assert.True(t, session.Assignable(it.BigIntLiteral("10"), TypeBigInt).OK)

	assert.False(t, session.Assignable(it.StringLiteral("a"), TypeNumber).OK)
	assert.False(t, session.Assignable(TypeString, it.StringLiteral("a")).OK)
}

func TestAssignableRootObjectAcceptance(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	rootObject := it.Object(&ObjectShape{Flags: ShapeFlagRootObject})
	empty := it.Object(&ObjectShape{})

	// Anything with a runtime value reaches the memberless targets.
	sources := []TypeID{
		TypeNumber,
		TypeString,
		it.ObjectFresh(&ObjectShape{Flags: ShapeFlagFresh}),
		it.FunctionType(&FunctionShape{Return: TypeVoid}),
		it.Array(TypeString),
	}
	for _, source := range sources {
		assert.True(t, session.Assignable(source, rootObject).OK)
		assert.True(t, session.Assignable(source, empty).OK)
	}

	// Valueless sources are turned away.
	assert.False(t, session.Assignable(TypeUnknown, rootObject).OK)
	assert.False(t, session.Assignable(TypeVoid, rootObject).OK)

	// Nullish sources ride the null leniency of the default profile,
	// not this rule: the strict profile stops them.
	assert.True(t, session.Assignable(TypeUndefined, rootObject).OK)

	strict, err := LoadProfile("strict")
	require.NoError(t, err)
	strictSession := NewSession(env, Config{Profile: strict})
	assert.False(t, strictSession.Assignable(TypeUndefined, rootObject).OK)
	assert.True(t, strictSession.Assignable(TypeNumber, rootObject).OK)
}

func TestAssignableWeakTypeOverlap(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	weak := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "timeout", Type: TypeNumber, Optional: true},
			{Name: "retries", Type: TypeNumber, Optional: true},
		},
	})

	overlapping := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "timeout", Type: TypeNumber}},
	})
	assert.True(t, session.Assignable(overlapping, weak).OK)

	disjoint := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "color", Type: TypeString}},
	})
	verdict := session.Assignable(disjoint, weak)
	require.False(t, verdict.OK)
	assert.Equal(t, FailureWeakTypeNoOverlap, verdict.Failure.Kind)

	// Non-object sources and memberless sources never violate.
	assert.True(t, session.Assignable(it.Object(&ObjectShape{}), weak).OK)

	t.Run("union target with a weak member", func(t *testing.T) {
		t.Parallel()
		other := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "mode", Type: TypeString, Optional: true}},
		})
		union := it.Union2(weak, other)

		verdict := session.Assignable(disjoint, union)
		require.False(t, verdict.OK)
		assert.Equal(t, FailureWeakTypeNoOverlap, verdict.Failure.Kind)

		sharing := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "mode", Type: TypeString}},
		})
		assert.True(t, session.Assignable(sharing, union).OK)
	})

	t.Run("legacy profile waives the requirement", func(t *testing.T) {
		t.Parallel()
		legacy, err := LoadProfile("legacy")
		require.NoError(t, err)
		legacySession := NewSession(env, Config{Profile: legacy})
		assert.True(t, legacySession.Assignable(disjoint, weak).OK)
	})
}

func TestAssignableExcessProperty(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	target := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "x", Type: TypeNumber}},
	})

	t.Run("fresh literal with an unknown member rejects", func(t *testing.T) {
		t.Parallel()
		fresh := it.ObjectFresh(&ObjectShape{
			Flags: ShapeFlagFresh,
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString},
			},
		})
		verdict := session.Assignable(fresh, target)
		require.False(t, verdict.OK)
		require.NotNil(t, verdict.Failure)
		assert.Equal(t, FailureExcessProperty, verdict.Failure.Kind)
		assert.Equal(t, "y", verdict.Failure.Name)
	})

	t.Run("a structural mismatch outranks the excess report", func(t *testing.T) {
		t.Parallel()
		fresh := it.ObjectFresh(&ObjectShape{
			Flags: ShapeFlagFresh,
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeString},
				{Name: "y", Type: TypeString},
			},
		})
		verdict := session.Assignable(fresh, target)
		require.False(t, verdict.OK)
		require.NotNil(t, verdict.Failure)
		assert.NotEqual(t, FailureExcessProperty, verdict.Failure.Kind)
	})

	t.Run("widened sources keep their extra members", func(t *testing.T) {
		t.Parallel()
		widened := it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString},
			},
		})
		assert.True(t, session.Assignable(widened, target).OK)
	})

	t.Run("an index signature absorbs arbitrary members", func(t *testing.T) {
		t.Parallel()
		absorbing := it.Object(&ObjectShape{
			Properties:  []PropertyInfo{{Name: "x", Type: TypeNumber}},
			StringIndex: &IndexInfo{Value: TypeAny},
		})
		fresh := it.ObjectFresh(&ObjectShape{
			Flags: ShapeFlagFresh,
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString},
			},
		})
		assert.True(t, session.Assignable(fresh, absorbing).OK)
	})

	t.Run("legacy profile skips the check", func(t *testing.T) {
		t.Parallel()
		legacy, err := LoadProfile("legacy")
		require.NoError(t, err)
		legacySession := NewSession(env, Config{Profile: legacy})
		fresh := it.ObjectFresh(&ObjectShape{
			Flags: ShapeFlagFresh,
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString},
			},
		})
		assert.True(t, legacySession.Assignable(fresh, target).OK)
	})
}

func TestAssignableMethodBivariance(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	animal := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "name", Type: TypeString}},
	})
	dog := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "name", Type: TypeString},
			{Name: "breed", Type: TypeString},
		},
	})

	takesDog := it.FunctionType(&FunctionShape{
		Params: []ParamInfo{{Name: "x", Type: dog}},
		Return: TypeVoid,
	})

	holder := func(compare TypeID, method bool) TypeID {
		return it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "handle", Type: compare, Method: method},
			},
		})
	}

	strict, err := LoadProfile("strict")
	require.NoError(t, err)
	strictSession := NewSession(env, Config{Profile: strict})

	takesAnimalMethodSource := holder(it.FunctionType(&FunctionShape{
		Params: []ParamInfo{{Name: "x", Type: animal}},
		Return: TypeVoid,
	}), true)
	takesDogUnsafeSource := holder(takesDog, true)

	// The safe contravariant direction always passes.
	assert.True(t, strictSession.Assignable(takesAnimalMethodSource, holder(takesDog, true)).OK)

	// The unsafe direction passes only because the member is declared
	// with method syntax.
	assert.True(t, strictSession.Assignable(
		takesDogUnsafeSource,
		holder(it.FunctionType(&FunctionShape{
			Params: []ParamInfo{{Name: "x", Type: animal}},
			Return: TypeVoid,
		}), true),
	).OK)

	// The same member as a function-typed property compares
	// contravariantly under strict function types and rejects.
	assert.False(t, strictSession.Assignable(
		holder(takesDog, false),
		holder(it.FunctionType(&FunctionShape{
			Params: []ParamInfo{{Name: "x", Type: animal}},
			Return: TypeVoid,
		}), false),
	).OK)

	// The default profile compares every parameter bivariantly.
	defaultSession := newTestSession(env)
	assert.True(t, defaultSession.Assignable(
		holder(takesDog, false),
		holder(it.FunctionType(&FunctionShape{
			Params: []ParamInfo{{Name: "x", Type: animal}},
			Return: TypeVoid,
		}), false),
	).OK)
}

func TestAssignablePrivateBrands(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	classA := defs.Add(&DefinitionInfo{Kind: DefKindClass, Name: "A"})
	classB := defs.Add(&DefinitionInfo{Kind: DefKindClass, Name: "B"})

	branded := func(parent DefID) TypeID {
		return it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "state", Type: TypeNumber, Visibility: VisibilityPrivate, Parent: parent},
				{Name: "value", Type: TypeString},
			},
		})
	}

	// Same originating declaration: the brand matches and the
	// structural check passes the rest.
	assert.True(t, session.Assignable(branded(classA), branded(classA)).OK)

	// Same member name, different declaration: nominal mismatch.
	verdict := session.Assignable(branded(classA), branded(classB))
	require.False(t, verdict.OK)
	require.NotNil(t, verdict.Failure)
	assert.Equal(t, FailurePrivateBrandMismatch, verdict.Failure.Kind)
	assert.Equal(t, "state", verdict.Failure.Name)

	// An unbranded structural double cannot satisfy the brand.
	plain := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "state", Type: TypeNumber},
			{Name: "value", Type: TypeString},
		},
	})
	verdict = session.Assignable(plain, branded(classA))
	require.False(t, verdict.OK)
	assert.Equal(t, FailurePrivateBrandMismatch, verdict.Failure.Kind)

	// A brand landing in a public slot of the target also mismatches.
	verdict = session.Assignable(branded(classA), plain)
	require.False(t, verdict.OK)
	assert.Equal(t, FailurePrivateBrandMismatch, verdict.Failure.Kind)
}

func TestAssignableStructuralFallback(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	wider := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "x", Type: TypeNumber},
			{Name: "y", Type: TypeNumber},
		},
	})
	narrower := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "x", Type: TypeNumber}},
	})

	assert.True(t, session.Assignable(wider, narrower).OK)

	verdict := session.Assignable(narrower, wider)
	require.False(t, verdict.OK)
	require.NotNil(t, verdict.Failure)
	assert.Equal(t, narrower, verdict.Failure.Source)
	assert.Equal(t, wider, verdict.Failure.Target)
}

func TestAssignableVerdictShape(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	ok := session.Assignable(TypeString, TypeString)
	assert.True(t, ok.OK)
	assert.Nil(t, ok.Failure)

	bad := session.Assignable(TypeString, TypeNumber)
	assert.False(t, bad.OK)
	require.NotNil(t, bad.Failure)
	assert.NotEqual(t, FailureNone, bad.Failure.Kind)
}
