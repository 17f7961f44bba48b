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

	"github.com/gradient-lang/gradient/test_utils"
)

// populateSnapshotEnvironment interns a representative spread of types
// and declarations and returns handles to re-check after decoding.
func populateSnapshotEnvironment(env *Environment) map[string]TypeID {
	it := env.Interner()
	defs := env.Definitions()

	object := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "id", Type: TypeNumber, Readonly: true},
			{Name: "label", Type: TypeString, Optional: true},
		},
		StringIndex: &IndexInfo{Value: TypeAny},
	})

	boxParams := []TypeParamInfo{{Name: "T"}}
	boxDef := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Box",
		TypeParams: boxParams,
	})
	boxParam := it.TypeParameter(boxDef, 0, &boxParams[0])
	defs.Get(boxDef).Body = it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "value", Type: boxParam}},
	})

	colorDef := defs.Add(&DefinitionInfo{
		Kind:     DefKindEnum,
		Name:     "Color",
		EnumKind: EnumKindNumeric,
		EnumMembers: numericEnumMembers(
			map[string]float64{"Red": 0, "Green": 1},
			[]string{"Red", "Green"},
		),
	})

	return map[string]TypeID{
		"object": object,
		"union":  it.Union2(object, TypeNull),
		"tuple": it.Tuple(&TupleShape{
			Elements: []TupleElement{
				{Type: TypeString, Label: "head"},
				{Type: it.Array(TypeNumber), Rest: true},
			},
		}),
		"function": it.FunctionType(&FunctionShape{
			TypeParams: []TypeParamInfo{{Name: "U", Constraint: TypeString}},
			Params:     []ParamInfo{{Name: "x", Type: TypeString}},
			Return:     TypeBoolean,
		}),
		"conditional": it.Conditional(
			boxParam, TypeString, TypeTrue, TypeFalse, 0,
		),
		"mapped": it.MappedType(&MappedShape{
			TypeParam:   boxParam,
			KeySource:   it.KeyOfType(object),
			Template:    it.IndexAccessType(object, boxParam),
			OptionalMod: ModifierAdd,
		}),
		"template": it.TemplateLiteralType([]TemplateSpan{
			{Kind: SpanText, Text: "id-"},
			{Kind: SpanType, Type: TypeString},
		}),
		"application": it.Application(it.Lazy(boxDef), []TypeID{TypeNumber}),
		"enum":        it.EnumType(colorDef),
		"enumMember":  it.EnumMember(colorDef, "Red", it.NumberLiteral(0)),
		"literal":     it.StringLiteral("snapshot"),
	}
}

func TestSnapshotRoundTrip(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	handles := populateSnapshotEnvironment(env)

	data, err := EncodeSnapshot(env)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	// Every replayed handle denotes the same type: re-interning the key
	// in the decoded environment re-issues the original id.
	originalInterner := env.Interner()
	decodedInterner := decoded.Interner()
	for name, id := range handles {
		key := originalInterner.Lookup(id)
		assert.Equal(t, id, decodedInterner.Intern(*key), name)
	}

	// Declarations survive with their ids, names, and bodies.
	originalDefs := env.Definitions()
	decodedDefs := decoded.Definitions()
	originalDefs.Foreach(func(id DefID, info *DefinitionInfo) {
		restored := decodedDefs.Get(id)
		require.NotNil(t, restored)
		assert.Equal(t, info.Kind, restored.Kind)
		assert.Equal(t, info.Name, restored.Name)
		assert.Equal(t, info.Body, restored.Body)
		test_utils.AssertEqualWithDiff(t,
			info.EnumMembers.Pairs(),
			restored.EnumMembers.Pairs(),
		)
	})

	// The decoded environment answers queries like the original.
	session := NewSession(decoded, Config{})
	assert.True(t, session.Subtype(handles["object"], handles["object"]))
	assert.Equal(t,
		NewSession(env, Config{}).Evaluate(handles["template"]),
		session.Evaluate(handles["template"]),
	)
}

func TestSnapshotRoundTripEnumSemantics(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	handles := populateSnapshotEnvironment(env)

	data, err := EncodeSnapshot(env)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	// Enum member lists survive with values and order intact.
	session := NewSession(decoded, Config{})
	assert.True(t, session.Assignable(handles["enumMember"], handles["enum"]).OK)
	assert.True(t, session.Assignable(handles["enumMember"], TypeNumber).OK)
	assert.False(t, session.Assignable(TypeNumber, handles["enum"]).OK)
}

func TestSnapshotDeterministic(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	populateSnapshotEnvironment(env)

	first, err := EncodeSnapshot(env)
	require.NoError(t, err)
	second, err := EncodeSnapshot(env)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A decode-encode cycle reproduces the image byte for byte.
	decoded, err := DecodeSnapshot(first)
	require.NoError(t, err)
	reencoded, err := EncodeSnapshot(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, reencoded)
}

func TestSnapshotVersionGate(t *testing.T) {

	t.Parallel()

	encode := func(t *testing.T, image encodedSnapshot) []byte {
		data, err := snapshotEncMode.Marshal(image)
		require.NoError(t, err)
		return data
	}

	t.Run("same major decodes", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeSnapshot(encode(t, encodedSnapshot{Version: "v1.9.3"}))
		assert.NoError(t, err)
	})

	t.Run("different major rejects", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeSnapshot(encode(t, encodedSnapshot{Version: "v2.0.0"}))
		require.Error(t, err)
		assert.ErrorContains(t, err, "unsupported snapshot version")
	})

	t.Run("invalid version rejects", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeSnapshot(encode(t, encodedSnapshot{Version: "latest"}))
		require.Error(t, err)
		assert.ErrorContains(t, err, "malformed snapshot version")
	})
}

func TestSnapshotMalformedInput(t *testing.T) {

	t.Parallel()

	_, err := DecodeSnapshot([]byte("not a snapshot"))
	test_utils.RequireError(t, err)
	assert.ErrorContains(t, err, "malformed snapshot")

	_, err = DecodeSnapshot(nil)
	assert.Error(t, err)
}

func TestSnapshotNilEnvironment(t *testing.T) {

	t.Parallel()

	_, err := EncodeSnapshot(nil)
	assert.Error(t, err)
}

func TestSnapshotEmptyEnvironment(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()

	data, err := EncodeSnapshot(env)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	// Well-known handles need no replaying; the decoded environment is
	// immediately usable.
	session := NewSession(decoded, Config{})
	assert.True(t, session.Subtype(TypeString, TypeString))
}
