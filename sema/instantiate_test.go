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

func TestTypeSubstitution(t *testing.T) {

	t.Parallel()

	subst := NewTypeSubstitution()
	assert.Equal(t, 0, subst.Len())

	_, ok := subst.Get(TypeString)
	assert.False(t, ok)

	subst.Set(TypeString, TypeNumber)
	arg, ok := subst.Get(TypeString)
	require.True(t, ok)
	assert.Equal(t, TypeNumber, arg)
	assert.Equal(t, 1, subst.Len())

	subst.Set(TypeString, TypeBoolean)
	arg, _ = subst.Get(TypeString)
	assert.Equal(t, TypeBoolean, arg)
	assert.Equal(t, 1, subst.Len())
}

func TestInstantiateKeepsUntouchedHandles(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// A body that never mentions its parameter comes back as the same
	// interned handle, not a rebuilt copy.
	body := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "fixed", Type: it.Array(TypeNumber)},
		},
	})
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Constant",
		TypeParams: []TypeParamInfo{{Name: "T"}},
		Body:       body,
	})

	assert.Equal(t, body, session.Instantiate(it.Lazy(def), []TypeID{TypeString}))
}

func TestInstantiateFunctionBody(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Handler<T> = (first: T, ...rest: T[]) => T | undefined
	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Handler",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.FunctionType(&FunctionShape{
		Params: []ParamInfo{
			{Name: "first", Type: param},
			{Name: "rest", Type: it.Array(param), Rest: true},
		},
		Return: it.Union2(param, TypeUndefined),
	})

	assert.Equal(t,
		it.FunctionType(&FunctionShape{
			Params: []ParamInfo{
				{Name: "first", Type: TypeNumber},
				{Name: "rest", Type: it.Array(TypeNumber), Rest: true},
			},
			Return: it.Union2(TypeNumber, TypeUndefined),
		}),
		session.Instantiate(it.Lazy(def), []TypeID{TypeNumber}),
	)
}

func TestInstantiateTupleBody(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Row<T> = [string, T, ...T[]]
	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Row",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.Tuple(&TupleShape{
		Elements: []TupleElement{
			{Type: TypeString},
			{Type: param},
			{Type: it.Array(param), Rest: true},
		},
	})

	assert.Equal(t,
		it.Tuple(&TupleShape{
			Elements: []TupleElement{
				{Type: TypeString},
				{Type: TypeBoolean},
				{Type: it.Array(TypeBoolean), Rest: true},
			},
		}),
		session.Instantiate(it.Lazy(def), []TypeID{TypeBoolean}),
	)
}

func TestInstantiateInnerSignatureShadowing(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Wrap<T> = <U>(value: U) => T
	// The inner signature's own parameter stays a parameter.
	outerParams := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Wrap",
		TypeParams: outerParams,
	})
	outerParam := it.TypeParameter(def, 0, &outerParams[0])

	innerParams := []TypeParamInfo{{Name: "U"}}
	innerParam := it.TypeParameter(InvalidDefID, 0, &innerParams[0])
	defs.Get(def).Body = it.FunctionType(&FunctionShape{
		TypeParams: innerParams,
		Params:     []ParamInfo{{Name: "value", Type: innerParam}},
		Return:     outerParam,
	})

	result := session.Instantiate(it.Lazy(def), []TypeID{TypeString})
	key := it.Lookup(result)
	require.Equal(t, KindFunction, key.Kind)
	require.Len(t, key.Function.Params, 1)
	assert.Equal(t, innerParam, key.Function.Params[0].Type)
	assert.Equal(t, TypeString, key.Function.Return)
}

func TestInstantiateMappedShadowing(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Weird<K> = { [K in "x"]: K }
	// The mapped type redeclares K: the template binds per key, never to
	// the outer argument.
	params := []TypeParamInfo{{Name: "K"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Weird",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.MappedType(&MappedShape{
		TypeParam: param,
		KeySource: it.StringLiteral("x"),
		Template:  param,
	})

	result := session.Instantiate(it.Lazy(def), []TypeID{TypeNumber})
	key := it.Lookup(result)
	require.Equal(t, KindObject, key.Kind)

	x := key.Object.Property("x")
	require.NotNil(t, x)
	assert.Equal(t, it.StringLiteral("x"), x.Type)
}

func TestInstantiateReApplication(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Box",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.Object(&ObjectShape{
		Properties: []PropertyInfo{{Name: "value", Type: param}},
	})

	// Instantiating an application handle targets the underlying
	// generic with the new arguments.
	stale := it.Application(it.Lazy(def), []TypeID{TypeNumber})
	assert.Equal(t,
		it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "value", Type: TypeString}},
		}),
		session.Instantiate(stale, []TypeID{TypeString}),
	)
}

func TestInstantiateExtraArgumentsIgnored(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "One",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.Array(param)

	assert.Equal(t,
		it.Array(TypeString),
		session.Instantiate(it.Lazy(def), []TypeID{TypeString, TypeNumber, TypeBoolean}),
	)
}

func TestInstantiateNonDistributiveConditional(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Check<T> = T[] extends string[] ? "yes" : "no"
	// The check type is not a naked parameter: no distribution, the
	// conditional evaluates once after substitution.
	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Check",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.Conditional(
		it.Array(param),
		it.Array(TypeString),
		it.StringLiteral("yes"),
		it.StringLiteral("no"),
		0,
	)

	assert.Equal(t,
		it.StringLiteral("yes"),
		session.Instantiate(it.Lazy(def), []TypeID{TypeString}),
	)
	assert.Equal(t,
		it.StringLiteral("no"),
		session.Instantiate(it.Lazy(def), []TypeID{TypeNumber}),
	)

	// A union argument stays one value under the non-distributive check.
	assert.Equal(t,
		it.StringLiteral("no"),
		session.Instantiate(it.Lazy(def), []TypeID{it.Union2(TypeString, TypeNumber)}),
	)
}

func TestInstantiateTemplateBody(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Id<T> = `id-${T}`
	params := []TypeParamInfo{{Name: "T", Constraint: TypeString}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Id",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.TemplateLiteralType([]TemplateSpan{
		{Kind: SpanText, Text: "id-"},
		{Kind: SpanType, Type: param},
	})

	assert.Equal(t,
		it.StringLiteral("id-a"),
		session.Instantiate(it.Lazy(def), []TypeID{it.StringLiteral("a")}),
	)

	assert.Equal(t,
		it.Union([]TypeID{it.StringLiteral("id-a"), it.StringLiteral("id-b")}),
		session.Instantiate(it.Lazy(def), []TypeID{
			it.Union([]TypeID{it.StringLiteral("a"), it.StringLiteral("b")}),
		}),
	)
}

func TestInstantiateKeyOfReducesEagerly(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Keys<T> = keyof T
	params := []TypeParamInfo{{Name: "T"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Keys",
		TypeParams: params,
	})
	param := it.TypeParameter(def, 0, &params[0])
	defs.Get(def).Body = it.KeyOfType(param)

	object := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "a", Type: TypeNumber},
			{Name: "b", Type: TypeNumber},
		},
	})

	// Equal instantiations intern to equal handles.
	first := session.Instantiate(it.Lazy(def), []TypeID{object})
	second := session.Instantiate(it.Lazy(def), []TypeID{object})
	assert.Equal(t, first, second)
	assert.Equal(t,
		it.Union([]TypeID{it.StringLiteral("a"), it.StringLiteral("b")}),
		first,
	)
}

func TestInstantiateNestedGenericApplication(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Box<T> = { value: T }
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

	// type Boxed<U> = Box<U[]>
	boxedParams := []TypeParamInfo{{Name: "U"}}
	boxedDef := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Boxed",
		TypeParams: boxedParams,
	})
	boxedParam := it.TypeParameter(boxedDef, 0, &boxedParams[0])
	defs.Get(boxedDef).Body = it.Application(it.Lazy(boxDef), []TypeID{it.Array(boxedParam)})

	result := session.Instantiate(it.Lazy(boxedDef), []TypeID{TypeString})
	resolved := session.Evaluate(result)
	key := it.Lookup(resolved)
	require.Equal(t, KindObject, key.Kind)

	value := key.Object.Property("value")
	require.NotNil(t, value)
	assert.Equal(t, it.Array(TypeString), value.Type)
}
