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
	"sync"

	"github.com/SaveTheRbtz/mph"
)

// Apparent types. A primitive has no members of its own; member access,
// keyof, and mapped-type iteration over a primitive consult its apparent
// shape, the interface of methods and properties its values carry.
//
// The tables below are the curated member surface the solver consults.
// Method members are modeled as (...args: any[]) => R.

// apparentResult names the return or value type of an apparent member.
type apparentResult uint8

const (
	resultAny apparentResult = iota
	resultString
	resultNumber
	resultBoolean
	resultVoid
	resultBigInt
	resultSymbol
	resultStringArray
	resultStringOrUndefined
)

type apparentMemberSpec struct {
	name   string
	method bool
	result apparentResult
}

func valueMember(name string, result apparentResult) apparentMemberSpec {
	return apparentMemberSpec{name: name, result: result}
}

func methodMember(name string, result apparentResult) apparentMemberSpec {
	return apparentMemberSpec{name: name, method: true, result: result}
}

// NOTE: ensure to update the matching name list when adding a member
var stringMemberSpecs = []apparentMemberSpec{
	valueMember("length", resultNumber),
	methodMember("at", resultStringOrUndefined),
	methodMember("charAt", resultString),
	methodMember("charCodeAt", resultNumber),
	methodMember("codePointAt", resultNumber),
	methodMember("concat", resultString),
	methodMember("endsWith", resultBoolean),
	methodMember("includes", resultBoolean),
	methodMember("indexOf", resultNumber),
	methodMember("lastIndexOf", resultNumber),
	methodMember("localeCompare", resultNumber),
	methodMember("match", resultAny),
	methodMember("normalize", resultString),
	methodMember("padEnd", resultString),
	methodMember("padStart", resultString),
	methodMember("repeat", resultString),
	methodMember("replace", resultString),
	methodMember("replaceAll", resultString),
	methodMember("search", resultNumber),
	methodMember("slice", resultString),
	methodMember("split", resultStringArray),
	methodMember("startsWith", resultBoolean),
	methodMember("substring", resultString),
	methodMember("toLocaleLowerCase", resultString),
	methodMember("toLocaleUpperCase", resultString),
	methodMember("toLowerCase", resultString),
	methodMember("toString", resultString),
	methodMember("toUpperCase", resultString),
	methodMember("trim", resultString),
	methodMember("trimEnd", resultString),
	methodMember("trimStart", resultString),
	methodMember("valueOf", resultString),
}

var numberMemberSpecs = []apparentMemberSpec{
	methodMember("toExponential", resultString),
	methodMember("toFixed", resultString),
	methodMember("toLocaleString", resultString),
	methodMember("toPrecision", resultString),
	methodMember("toString", resultString),
	methodMember("valueOf", resultNumber),
}

var booleanMemberSpecs = []apparentMemberSpec{
	methodMember("toString", resultString),
	methodMember("valueOf", resultBoolean),
}

var bigIntMemberSpecs = []apparentMemberSpec{
	methodMember("toLocaleString", resultString),
	methodMember("toString", resultString),
	methodMember("valueOf", resultBigInt),
}

var symbolMemberSpecs = []apparentMemberSpec{
	valueMember("description", resultStringOrUndefined),
	methodMember("toString", resultString),
	methodMember("valueOf", resultSymbol),
}

// arrayMemberSpecs is the member surface of arrays and tuples, beyond
// their numeric elements.
var arrayMemberSpecs = []apparentMemberSpec{
	valueMember("length", resultNumber),
	methodMember("at", resultAny),
	methodMember("concat", resultAny),
	methodMember("copyWithin", resultAny),
	methodMember("entries", resultAny),
	methodMember("every", resultBoolean),
	methodMember("fill", resultAny),
	methodMember("filter", resultAny),
	methodMember("find", resultAny),
	methodMember("findIndex", resultNumber),
	methodMember("findLast", resultAny),
	methodMember("findLastIndex", resultNumber),
	methodMember("flat", resultAny),
	methodMember("flatMap", resultAny),
	methodMember("forEach", resultVoid),
	methodMember("includes", resultBoolean),
	methodMember("indexOf", resultNumber),
	methodMember("join", resultString),
	methodMember("keys", resultAny),
	methodMember("lastIndexOf", resultNumber),
	methodMember("map", resultAny),
	methodMember("pop", resultAny),
	methodMember("push", resultNumber),
	methodMember("reduce", resultAny),
	methodMember("reduceRight", resultAny),
	methodMember("reverse", resultAny),
	methodMember("shift", resultAny),
	methodMember("slice", resultAny),
	methodMember("some", resultBoolean),
	methodMember("sort", resultAny),
	methodMember("splice", resultAny),
	methodMember("toLocaleString", resultString),
	methodMember("toString", resultString),
	methodMember("unshift", resultNumber),
	methodMember("values", resultAny),
}

func specNames(specs []apparentMemberSpec) []string {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.name
	}
	return names
}

func specMap(specs []apparentMemberSpec) map[string]apparentMemberSpec {
	m := make(map[string]apparentMemberSpec, len(specs))
	for _, spec := range specs {
		m[spec.name] = spec
	}
	return m
}

// Membership tables. The keyof and indexed-access paths probe member names
// at high volume; the minimal-perfect-hash tables answer membership
// without map overhead, the spec maps hold the descriptions.
var (
	arrayMemberNames = specNames(arrayMemberSpecs)
	arrayMemberTable = mph.Build(arrayMemberNames)
	arrayMembers     = specMap(arrayMemberSpecs)

	stringMemberTable = mph.Build(specNames(stringMemberSpecs))
	stringMembers     = specMap(stringMemberSpecs)
)

// isArrayMemberName reports whether arrays and tuples carry a member with
// the given name.
func isArrayMemberName(name string) bool {
	_, ok := arrayMemberTable.Lookup(name)
	return ok
}

// isStringMemberName reports whether string values carry a member with the
// given name.
func isStringMemberName(name string) bool {
	_, ok := stringMemberTable.Lookup(name)
	return ok
}

// apparentShapeCache lazily builds the apparent object type of each
// primitive once per Interner.
type apparentShapeCache struct {
	once   [5]sync.Once
	shapes [5]TypeID
}

const (
	apparentString = iota
	apparentNumber
	apparentBoolean
	apparentBigInt
	apparentSymbol
)

// apparentMethodType interns (...args: any[]) => ret.
func (it *Interner) apparentMethodType(ret TypeID) TypeID {
	return it.FunctionType(&FunctionShape{
		Params: []ParamInfo{
			{Name: "args", Type: it.Array(TypeAny), Rest: true},
		},
		Return: ret,
		Flags:  FunctionFlagMethod,
	})
}

func (it *Interner) apparentResultType(result apparentResult) TypeID {
	switch result {
	case resultString:
		return TypeString
	case resultNumber:
		return TypeNumber
	case resultBoolean:
		return TypeBoolean
	case resultVoid:
		return TypeVoid
	case resultBigInt:
		return TypeBigInt
	case resultSymbol:
		return TypeSymbol
	case resultStringArray:
		return it.Array(TypeString)
	case resultStringOrUndefined:
		return it.Union2(TypeString, TypeUndefined)
	default:
		return TypeAny
	}
}

func (it *Interner) buildApparentShape(specs []apparentMemberSpec, numberIndex TypeID) TypeID {
	properties := make([]PropertyInfo, 0, len(specs))
	for _, spec := range specs {
		result := it.apparentResultType(spec.result)
		propertyType := result
		if spec.method {
			propertyType = it.apparentMethodType(result)
		}
		// Apparent members stay writable: a readonly flag here would fail
		// primitive sources against object targets with mutable members.
		properties = append(properties, PropertyInfo{
			Name:   spec.name,
			Type:   propertyType,
			Method: spec.method,
		})
	}

	shape := &ObjectShape{Properties: properties}
	if numberIndex.Valid() {
		shape.NumberIndex = &IndexInfo{Value: numberIndex, Readonly: true}
	}
	return it.Object(shape)
}

// ApparentPrimitiveShape returns the apparent object type of a primitive:
// the interface its values carry. Strings additionally get a readonly
// number index over strings. Primitives without an apparent shape report
// false.
func (it *Interner) ApparentPrimitiveShape(kind Kind) (TypeID, bool) {
	var slot int
	switch kind {
	case KindString, KindStringLiteral:
		slot = apparentString
	case KindNumber, KindNumberLiteral:
		slot = apparentNumber
	case KindBoolean, KindBooleanLiteral:
		slot = apparentBoolean
	case KindBigInt, KindBigIntLiteral:
		slot = apparentBigInt
	case KindSymbol, KindUniqueSymbol:
		slot = apparentSymbol
	default:
		return TypeNone, false
	}

	cache := &it.apparent
	cache.once[slot].Do(func() {
		switch slot {
		case apparentString:
			cache.shapes[slot] = it.buildApparentShape(stringMemberSpecs, TypeString)
		case apparentNumber:
			cache.shapes[slot] = it.buildApparentShape(numberMemberSpecs, TypeNone)
		case apparentBoolean:
			cache.shapes[slot] = it.buildApparentShape(booleanMemberSpecs, TypeNone)
		case apparentBigInt:
			cache.shapes[slot] = it.buildApparentShape(bigIntMemberSpecs, TypeNone)
		case apparentSymbol:
			cache.shapes[slot] = it.buildApparentShape(symbolMemberSpecs, TypeNone)
		}
	})
	return cache.shapes[slot], true
}

// arrayMemberType returns the type of a named array or tuple member:
// "length" is a number (the exact literal the caller may refine), method
// names get their method type. Unknown names report false.
func (it *Interner) arrayMemberType(name string) (TypeID, bool) {
	spec, ok := arrayMembers[name]
	if !ok {
		return TypeNone, false
	}
	result := it.apparentResultType(spec.result)
	if spec.method {
		return it.apparentMethodType(result), true
	}
	return result, true
}

// ApparentType returns the type whose members stand in for a value of
// the given type: primitives and their literals become the interface
// shape their values carry, template strings count as strings, enums
// devolve to their value structure, type parameters defer to their
// constraints, and unions distribute member-wise. Types that already
// carry their own members come back unchanged.
func (ev *Evaluator) ApparentType(id TypeID) TypeID {
	if !ev.guard.spend() {
		// Constraint chains may cycle; the budget cuts them.
		return id
	}

	id = ev.evaluate(id)
	key := ev.interner.Lookup(id)

	kind := key.Kind
	switch kind {
	case KindTemplateLiteral, KindStringIntrinsic:
		kind = KindString
	case KindEnum:
		return ev.ApparentType(ev.env.EnumValueUnion(key.Def))
	case KindEnumMember:
		return ev.ApparentType(key.Ref)
	case KindTypeParameter:
		if key.Param != nil && key.Param.Constraint.Valid() {
			return ev.ApparentType(key.Param.Constraint)
		}
		return id
	case KindUnion:
		members := make([]TypeID, len(key.List))
		changed := false
		for i, member := range key.List {
			members[i] = ev.ApparentType(member)
			changed = changed || members[i] != member
		}
		if !changed {
			return id
		}
		return ev.interner.Union(members)
	}

	if shape, ok := ev.interner.ApparentPrimitiveShape(kind); ok {
		return shape
	}
	return id
}
