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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTypePrimitives(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()

	assert.Equal(t, "string", FormatType(env, TypeString))
	assert.Equal(t, "number", FormatType(env, TypeNumber))
	assert.Equal(t, "any", FormatType(env, TypeAny))
	assert.Equal(t, "never", FormatType(env, TypeNever))
	assert.Equal(t, "unknown", FormatType(env, TypeUnknown))
	assert.Equal(t, "undefined", FormatType(env, TypeUndefined))
	assert.Equal(t, "true", FormatType(env, TypeTrue))
	assert.Equal(t, "none", FormatType(env, TypeNone))
}

func TestFormatTypeLiterals(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	assert.Equal(t, `"hello"`, FormatType(env, it.StringLiteral("hello")))
	assert.Equal(t, `"say \"hi\""`, FormatType(env, it.StringLiteral(`say "hi"`)))
	assert.Equal(t, "1.5", FormatType(env, it.NumberLiteral(1.5)))
	assert.Equal(t, "42", FormatType(env, it.NumberLiteral(42)))
	assert.Equal(t, "10n", FormatType(env, it.BigIntLiteral("10")))
	assert.Equal(t, "false", FormatType(env, it.BooleanLiteral(false)))
}

func TestFormatTypeComposites(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	assert.Equal(t, "string[]", FormatType(env, it.Array(TypeString)))
	assert.Equal(t, "readonly string[]", FormatType(env, it.ReadonlyArray(TypeString)))

	// A union element is parenthesized inside the array postfix.
	assert.Equal(t,
		"(number | string)[]",
		FormatType(env, it.Array(it.Union2(TypeString, TypeNumber))),
	)

	assert.Equal(t,
		"number | string",
		FormatType(env, it.Union2(TypeString, TypeNumber)),
	)

	assert.Equal(t,
		"[string, number]",
		FormatType(env, it.Tuple(&TupleShape{
			Elements: []TupleElement{
				{Type: TypeString},
				{Type: TypeNumber},
			},
		})),
	)
	assert.Equal(t,
		"[head: string, ...tail: number[]]",
		FormatType(env, it.Tuple(&TupleShape{
			Elements: []TupleElement{
				{Type: TypeString, Label: "head"},
				{Type: it.Array(TypeNumber), Label: "tail", Rest: true},
			},
		})),
	)
}

func TestFormatTypeObjects(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	assert.Equal(t, "{}", FormatType(env, it.Object(&ObjectShape{})))

	assert.Equal(t,
		"{ x: number; y?: string }",
		FormatType(env, it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString, Optional: true},
			},
		})),
	)

	assert.Equal(t,
		"{ readonly id: number }",
		FormatType(env, it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "id", Type: TypeNumber, Readonly: true},
			},
		})),
	)

	assert.Equal(t,
		"{ [x: string]: boolean }",
		FormatType(env, it.Object(&ObjectShape{
			StringIndex: &IndexInfo{Value: TypeBoolean},
		})),
	)

	// Names that are not identifiers are quoted.
	assert.Equal(t,
		`{ "data-id": string }`,
		FormatType(env, it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{Name: "data-id", Type: TypeString},
			},
		})),
	)
}

func TestFormatTypeFunctions(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	assert.Equal(t,
		"() => void",
		FormatType(env, it.FunctionType(&FunctionShape{Return: TypeVoid})),
	)

	assert.Equal(t,
		"(x: string, ...rest: number[]) => boolean",
		FormatType(env, it.FunctionType(&FunctionShape{
			Params: []ParamInfo{
				{Name: "x", Type: TypeString},
				{Name: "rest", Type: it.Array(TypeNumber), Rest: true},
			},
			Return: TypeBoolean,
		})),
	)

	// Method members render in signature form.
	assert.Equal(t,
		"{ run(x: number): void }",
		FormatType(env, it.Object(&ObjectShape{
			Properties: []PropertyInfo{
				{
					Name: "run",
					Type: it.FunctionType(&FunctionShape{
						Params: []ParamInfo{{Name: "x", Type: TypeNumber}},
						Return: TypeVoid,
					}),
					Method: true,
				},
			},
		})),
	)
}

func TestFormatTypeOperators(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	object := it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "x", Type: TypeNumber}},
	})

	assert.Equal(t,
		"keyof { x: number }",
		FormatType(env, it.KeyOfType(object)),
	)
	assert.Equal(t,
		`{ x: number }["x"]`,
		FormatType(env, it.IndexAccessType(object, it.StringLiteral("x"))),
	)
	assert.Equal(t,
		"Uppercase<string>",
		FormatType(env, it.StringIntrinsic(IntrinsicUppercase, TypeString)),
	)
	assert.Equal(t,
		"`on-${string}`",
		FormatType(env, it.TemplateLiteralType([]TemplateSpan{
			{Kind: SpanText, Text: "on-"},
			{Kind: SpanType, Type: TypeString},
		})),
	)
}

func TestFormatTypeDeclarations(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()

	color := defs.Add(&DefinitionInfo{
		Kind:     DefKindEnum,
		Name:     "Color",
		EnumKind: EnumKindNumeric,
		EnumMembers: numericEnumMembers(
			map[string]float64{"Red": 0},
			[]string{"Red"},
		),
	})
	assert.Equal(t, "Color", FormatType(env, it.EnumType(color)))
	assert.Equal(t,
		"Color.Red",
		FormatType(env, it.EnumMember(color, "Red", it.NumberLiteral(0))),
	)

	box := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Box",
		TypeParams: []TypeParamInfo{{Name: "T"}},
	})
	assert.Equal(t, "Box", FormatType(env, it.Lazy(box)))
	assert.Equal(t,
		"Box<string>",
		FormatType(env, it.Application(it.Lazy(box), []TypeID{TypeString})),
	)

	count := defs.Add(&DefinitionInfo{
		Kind: DefKindVariable,
		Name: "count",
		Body: TypeNumber,
	})
	assert.Equal(t, "typeof count", FormatType(env, it.TypeQuery(count)))

	// Unresolved references render as numbered placeholders.
	assert.Equal(t, "#9999", FormatType(env, it.Lazy(DefID(9999))))
}

func TestFormatTypeConditionalAndMapped(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()

	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Pick",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])

	assert.Equal(t,
		`T extends string ? "yes" : "no"`,
		FormatType(env, it.Conditional(
			param,
			TypeString,
			it.StringLiteral("yes"),
			it.StringLiteral("no"),
			0,
		)),
	)

	kParam := it.TypeParameter(def, 1, &TypeParamInfo{Name: "K"})
	assert.Equal(t,
		"{ [K in keyof T]?: boolean }",
		FormatType(env, it.MappedType(&MappedShape{
			TypeParam:   kParam,
			KeySource:   it.KeyOfType(param),
			Template:    TypeBoolean,
			OptionalMod: ModifierAdd,
		})),
	)
	assert.Equal(t,
		"{ -readonly [K in keyof T]-?: boolean }",
		FormatType(env, it.MappedType(&MappedShape{
			TypeParam:   kParam,
			KeySource:   it.KeyOfType(param),
			Template:    TypeBoolean,
			ReadonlyMod: ModifierRemove,
			OptionalMod: ModifierRemove,
		})),
	)
}

func TestFormatTypeWideTypesBreakAcrossLines(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	properties := make([]PropertyInfo, 8)
	for i := range properties {
		properties[i] = PropertyInfo{
			Name: strings.Repeat("property", 2) + string(rune('a'+i)),
			Type: TypeNumber,
		}
	}
	rendered := FormatType(env, it.Object(&ObjectShape{Properties: properties}))
	assert.Contains(t, rendered, "\n")
	assert.True(t, strings.HasPrefix(rendered, "{"))
	assert.True(t, strings.HasSuffix(rendered, "}"))
}

func TestFormatTypeDepthLimit(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()

	deep := TypeString
	for i := 0; i < 2*formatDepthLimit; i++ {
		deep = it.Tuple(&TupleShape{Elements: []TupleElement{{Type: deep}}})
	}
	rendered := FormatType(env, deep)
	assert.Contains(t, rendered, "...")
}

func TestSessionFormatType(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	assert.Equal(t, "string", session.FormatType(TypeString))
}
