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

// Constructors. All of them return canonical handles: calling a
// constructor twice with structurally equal inputs yields the same id.

// StringLiteral interns a string literal type.
func (it *Interner) StringLiteral(value string) TypeID {
	return it.internRaw(TypeKey{Kind: KindStringLiteral, Str: value})
}

// NumberLiteral interns a number literal type.
func (it *Interner) NumberLiteral(value float64) TypeID {
	return it.internRaw(TypeKey{Kind: KindNumberLiteral, Num: value})
}

// BooleanLiteral returns the true or false literal type.
func (it *Interner) BooleanLiteral(value bool) TypeID {
	if value {
		return TypeTrue
	}
	return TypeFalse
}

// BigIntLiteral interns a bigint literal type from its decimal text,
// '-' prefixed if negative.
func (it *Interner) BigIntLiteral(text string) TypeID {
	return it.internRaw(TypeKey{Kind: KindBigIntLiteral, Str: text})
}

// UniqueSymbol interns the unique symbol type of a declaration.
func (it *Interner) UniqueSymbol(def DefID) TypeID {
	return it.internRaw(TypeKey{Kind: KindUniqueSymbol, Def: def})
}

// Array interns a mutable array type.
func (it *Interner) Array(element TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindArray, Ref: element})
}

// ReadonlyArray interns a readonly array type.
func (it *Interner) ReadonlyArray(element TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindArray, Ref: element, Readonly: true})
}

// Tuple interns a tuple type.
func (it *Interner) Tuple(shape *TupleShape) TypeID {
	return it.internRaw(TypeKey{Kind: KindTuple, Tuple: shape})
}

// Object interns an object type.
func (it *Interner) Object(shape *ObjectShape) TypeID {
	return it.internRaw(TypeKey{Kind: KindObject, Object: shape})
}

// ObjectFresh interns an object literal type that is still fresh:
// subject to excess-property and weak-type checks until widened.
func (it *Interner) ObjectFresh(shape *ObjectShape) TypeID {
	fresh := *shape
	fresh.Flags |= ShapeFlagFresh
	return it.internRaw(TypeKey{Kind: KindObject, Object: &fresh})
}

// FunctionType interns a single-signature function type.
func (it *Interner) FunctionType(shape *FunctionShape) TypeID {
	return it.internRaw(TypeKey{Kind: KindFunction, Function: shape})
}

// CallableType interns an overloaded or hybrid callable type.
// Every signature must be a KindFunction handle.
func (it *Interner) CallableType(shape *CallableShape) TypeID {
	return it.internRaw(TypeKey{Kind: KindCallable, Callable: shape})
}

// Lazy interns an unresolved reference to a declaration.
func (it *Interner) Lazy(def DefID) TypeID {
	return it.internRaw(TypeKey{Kind: KindLazy, Def: def})
}

// TypeQuery interns the `typeof` of a declaration.
func (it *Interner) TypeQuery(def DefID) TypeID {
	return it.internRaw(TypeKey{Kind: KindTypeQuery, Def: def})
}

// EnumType interns the nominal type of an enum declaration.
func (it *Interner) EnumType(def DefID) TypeID {
	return it.internRaw(TypeKey{Kind: KindEnum, Def: def})
}

// EnumMember interns the nominal type of one enum member.
// value is the member's value primitive or literal.
func (it *Interner) EnumMember(def DefID, name string, value TypeID) TypeID {
	return it.internRaw(TypeKey{
		Kind: KindEnumMember,
		Def:  def,
		Str:  name,
		Ref:  value,
	})
}

// TypeParameter interns a type parameter reference. Identity includes the
// owning declaration and the parameter position, so same-named parameters
// of different generics stay distinct.
func (it *Interner) TypeParameter(owner DefID, index uint32, info *TypeParamInfo) TypeID {
	return it.internRaw(TypeKey{
		Kind:  KindTypeParameter,
		Def:   owner,
		Index: index,
		Param: info,
	})
}

// Application interns a not-yet-instantiated generic application.
func (it *Interner) Application(base TypeID, args []TypeID) TypeID {
	return it.internRaw(TypeKey{
		Kind: KindApplication,
		App:  &ApplicationShape{Base: base, Args: args},
	})
}

// Conditional interns a conditional type. The distributive flag is decided
// here, once: the check type must be a naked type parameter.
func (it *Interner) Conditional(check, extends, whenTrue, whenFalse TypeID, inferCount uint32) TypeID {
	return it.internRaw(TypeKey{
		Kind: KindConditional,
		Cond: &ConditionalShape{
			Check:        check,
			Extends:      extends,
			True:         whenTrue,
			False:        whenFalse,
			Distributive: it.KindOf(check) == KindTypeParameter,
			InferCount:   inferCount,
		},
	})
}

// MappedType interns a mapped type.
func (it *Interner) MappedType(shape *MappedShape) TypeID {
	return it.internRaw(TypeKey{Kind: KindMapped, Mapped: shape})
}

// IndexAccessType interns an indexed access type O[K], unevaluated.
func (it *Interner) IndexAccessType(object, index TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindIndexAccess, Ref: object, Aux: index})
}

// KeyOfType interns a keyof type, unevaluated.
func (it *Interner) KeyOfType(operand TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindKeyOf, Ref: operand})
}

// InferType interns an infer placeholder with the given slot index.
// constraint is TypeNone when the infer declaration is unconstrained.
func (it *Interner) InferType(index uint32, constraint TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindInfer, Index: index, Ref: constraint})
}

// ThisType returns the polymorphic this type.
func (it *Interner) ThisType() TypeID {
	return it.internRaw(TypeKey{Kind: KindThis})
}

// TemplateLiteralType interns a template literal type. Adjacent text spans
// are merged; a template whose spans are all text collapses to a string
// literal. Expansion over literal placeholders is the Evaluator's job.
func (it *Interner) TemplateLiteralType(spans []TemplateSpan) TypeID {
	merged := mergeTemplateSpans(spans)

	if len(merged) == 0 {
		return it.StringLiteral("")
	}
	if len(merged) == 1 && merged[0].Kind == SpanText {
		return it.StringLiteral(merged[0].Text)
	}
	return it.internRaw(TypeKey{Kind: KindTemplateLiteral, Template: merged})
}

// StringIntrinsic interns a built-in string mapping type application.
// Reduction over literal arguments is the Evaluator's job.
func (it *Interner) StringIntrinsic(kind StringIntrinsicKind, arg TypeID) TypeID {
	return it.internRaw(TypeKey{Kind: KindStringIntrinsic, Intrinsic: kind, Ref: arg})
}

func mergeTemplateSpans(spans []TemplateSpan) []TemplateSpan {
	merged := make([]TemplateSpan, 0, len(spans))
	for _, span := range spans {
		if span.Kind == SpanText {
			if span.Text == "" {
				continue
			}
			if n := len(merged); n > 0 && merged[n-1].Kind == SpanText {
				merged[n-1].Text += span.Text
				continue
			}
		}
		merged = append(merged, span)
	}
	return merged
}

// Union interns the union of the given members, normalized:
// nested unions are flattened, never members are dropped, any and unknown
// absorb, duplicate handles and literals subsumed by their present base
// primitive are removed, true|false collapses to boolean, and members are
// sorted into canonical order. An empty result is never; a single member
// is returned as itself.
func (it *Interner) Union(members []TypeID) TypeID {
	flat := make([]TypeID, 0, len(members))
	flat = it.flattenInto(flat, members, KindUnion)

	sawUnknown := false
	hasString, hasNumber, hasBoolean, hasBigInt := false, false, false, false
	for _, id := range flat {
		switch it.KindOf(id) {
		case KindAny:
			return TypeAny
		case KindUnknown:
			sawUnknown = true
		case KindString:
			hasString = true
		case KindNumber:
			hasNumber = true
		case KindBoolean:
			hasBoolean = true
		case KindBigInt:
			hasBigInt = true
		}
	}
	if sawUnknown {
		return TypeUnknown
	}

	seen := make(map[TypeID]struct{}, len(flat))
	result := make([]TypeID, 0, len(flat))
	sawTrue, sawFalse := false, false
	for _, id := range flat {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		switch it.KindOf(id) {
		case KindNever:
			continue
		case KindStringLiteral:
			if hasString {
				continue
			}
		case KindNumberLiteral:
			if hasNumber {
				continue
			}
		case KindBigIntLiteral:
			if hasBigInt {
				continue
			}
		case KindBooleanLiteral:
			if hasBoolean {
				continue
			}
			if id == TypeTrue {
				sawTrue = true
			} else {
				sawFalse = true
			}
		}
		result = append(result, id)
	}

	// true | false is boolean
	if sawTrue && sawFalse {
		replaced := result[:0]
		added := false
		for _, id := range result {
			if id == TypeTrue || id == TypeFalse {
				if !added {
					replaced = append(replaced, TypeBoolean)
					added = true
				}
				continue
			}
			replaced = append(replaced, id)
		}
		result = replaced
	}

	switch len(result) {
	case 0:
		return TypeNever
	case 1:
		return result[0]
	}

	sortIDs(result)
	return it.internRaw(TypeKey{Kind: KindUnion, List: result})
}

// Union2 interns the union of two types.
func (it *Interner) Union2(a, b TypeID) TypeID {
	if a == b {
		return a
	}
	return it.Union([]TypeID{a, b})
}

// Intersection interns the intersection of the given members, normalized:
// nested intersections are flattened, unknown members are dropped, never
// and the error sentinel propagate, any absorbs, duplicates are removed,
// and members are sorted into canonical order. An empty result is unknown;
// a single member is returned as itself.
func (it *Interner) Intersection(members []TypeID) TypeID {
	flat := make([]TypeID, 0, len(members))
	flat = it.flattenInto(flat, members, KindIntersection)

	sawAny := false
	for _, id := range flat {
		switch it.KindOf(id) {
		case KindNever:
			return TypeNever
		case KindError:
			return TypeError
		case KindAny:
			sawAny = true
		}
	}
	if sawAny {
		return TypeAny
	}

	seen := make(map[TypeID]struct{}, len(flat))
	result := make([]TypeID, 0, len(flat))
	for _, id := range flat {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if it.KindOf(id) == KindUnknown {
			continue
		}
		result = append(result, id)
	}

	switch len(result) {
	case 0:
		return TypeUnknown
	case 1:
		return result[0]
	}

	sortIDs(result)
	return it.internRaw(TypeKey{Kind: KindIntersection, List: result})
}

func (it *Interner) flattenInto(dst []TypeID, members []TypeID, kind Kind) []TypeID {
	for _, id := range members {
		key := it.Lookup(id)
		if key.Kind == kind {
			dst = it.flattenInto(dst, key.List, kind)
			continue
		}
		dst = append(dst, id)
	}
	return dst
}

// WidenFreshness maps a fresh object literal type to its regular
// counterpart. Unions widen member-wise. Other types pass through.
func (it *Interner) WidenFreshness(id TypeID) TypeID {
	key := it.Lookup(id)
	switch key.Kind {
	case KindObject:
		if !key.Object.IsFresh() {
			return id
		}
		widened := *key.Object
		widened.Flags &^= ShapeFlagFresh
		return it.Object(&widened)

	case KindUnion:
		members := make([]TypeID, len(key.List))
		changed := false
		for i, member := range key.List {
			members[i] = it.WidenFreshness(member)
			changed = changed || members[i] != member
		}
		if !changed {
			return id
		}
		return it.Union(members)

	default:
		return id
	}
}

// WidenLiteral maps a literal type to its base primitive. Enum members
// widen to their enum type. Unions widen member-wise. Other types pass
// through.
func (it *Interner) WidenLiteral(id TypeID) TypeID {
	key := it.Lookup(id)
	switch key.Kind {
	case KindStringLiteral:
		return TypeString
	case KindNumberLiteral:
		return TypeNumber
	case KindBooleanLiteral:
		return TypeBoolean
	case KindBigIntLiteral:
		return TypeBigInt
	case KindEnumMember:
		return it.EnumType(key.Def)
	case KindUnion:
		members := make([]TypeID, len(key.List))
		changed := false
		for i, member := range key.List {
			members[i] = it.WidenLiteral(member)
			changed = changed || members[i] != member
		}
		if !changed {
			return id
		}
		return it.Union(members)
	default:
		return id
	}
}
