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

// TypeSubstitution maps type parameter handles to argument handles.
type TypeSubstitution struct {
	mapping map[TypeID]TypeID
}

// NewTypeSubstitution returns an empty substitution.
func NewTypeSubstitution() *TypeSubstitution {
	return &TypeSubstitution{
		mapping: make(map[TypeID]TypeID),
	}
}

// Set binds a type parameter to an argument.
func (s *TypeSubstitution) Set(param, arg TypeID) {
	s.mapping[param] = arg
}

// Get returns the binding for a type parameter.
func (s *TypeSubstitution) Get(param TypeID) (TypeID, bool) {
	arg, ok := s.mapping[param]
	return arg, ok
}

// Len returns the number of bindings.
func (s *TypeSubstitution) Len() int {
	return len(s.mapping)
}

// Instantiate substitutes a generic declaration's type parameters with
// the given arguments and evaluates the result. Missing trailing
// arguments take declared defaults; a missing argument without a
// default binds the unresolvable sentinel. A non-generic target ignores
// its arguments, and a non-reference target is returned evaluated but
// otherwise untouched, since positional substitution needs the
// declaration that owns the parameters.
func (ev *Evaluator) Instantiate(generic TypeID, args []TypeID) TypeID {
	key := ev.interner.Lookup(generic)
	switch key.Kind {
	case KindLazy, KindTypeQuery:
		return ev.evaluate(ev.interner.Application(generic, args))
	case KindApplication:
		// Re-application targets the underlying generic.
		return ev.Instantiate(key.App.Base, args)
	}
	return ev.evaluate(generic)
}

// instantiator walks a type, replacing bound type parameters, infer
// placeholders, and the this type, rebuilding composite types only where
// something actually changed so untouched types keep their handles.
//
// An instantiator is private to one evaluation; it is not shared.
type instantiator struct {
	ev    *Evaluator
	subst *TypeSubstitution

	// inferArgs substitutes Infer placeholders by slot index when the
	// chosen branch of a conditional is taken. nil leaves Infer alone.
	inferArgs []TypeID

	// thisType substitutes the polymorphic this type when valid.
	thisType TypeID

	// shadowed holds type parameters redeclared by inner generic
	// signatures and mapped types. Shadowed parameters never substitute.
	shadowed map[TypeID]int
}

func (ev *Evaluator) newInstantiator(subst *TypeSubstitution) *instantiator {
	return &instantiator{
		ev:    ev,
		subst: subst,
	}
}

func (in *instantiator) shadow(param TypeID) {
	if in.shadowed == nil {
		in.shadowed = make(map[TypeID]int)
	}
	in.shadowed[param]++
}

func (in *instantiator) unshadow(param TypeID) {
	in.shadowed[param]--
	if in.shadowed[param] == 0 {
		delete(in.shadowed, param)
	}
}

func (in *instantiator) isShadowed(param TypeID) bool {
	return in.shadowed[param] > 0
}

// substitutionFromArgs builds the positional substitution of a generic's
// parameters. Missing trailing arguments take the parameter's default,
// instantiated under the bindings accumulated so far, so later defaults
// may reference earlier parameters. A missing argument without a default
// binds the unresolvable sentinel.
func (ev *Evaluator) substitutionFromArgs(
	owner DefID,
	params []TypeParamInfo,
	args []TypeID,
) *TypeSubstitution {
	subst := NewTypeSubstitution()

	for i := range params {
		param := ev.interner.TypeParameter(owner, uint32(i), &params[i])

		var arg TypeID
		switch {
		case i < len(args) && args[i].Valid():
			arg = args[i]
		case params[i].Default.Valid():
			arg = ev.newInstantiator(subst).instantiate(params[i].Default)
		default:
			arg = TypeError
		}
		subst.Set(param, arg)
	}

	return subst
}

// instantiate rewrites one type under the substitution.
func (in *instantiator) instantiate(id TypeID) TypeID {
	if !id.Valid() || id.IsWellKnown() {
		return id
	}
	if !in.ev.guard.spend() {
		return id
	}

	it := in.ev.interner
	key := it.Lookup(id)

	switch key.Kind {
	case KindTypeParameter:
		if in.isShadowed(id) {
			return id
		}
		if in.subst != nil {
			if arg, ok := in.subst.Get(id); ok {
				return arg
			}
		}
		return id

	case KindInfer:
		if in.inferArgs != nil && int(key.Index) < len(in.inferArgs) {
			if arg := in.inferArgs[key.Index]; arg.Valid() {
				return arg
			}
		}
		return id

	case KindThis:
		if in.thisType.Valid() {
			return in.thisType
		}
		return id

	case KindLazy, KindTypeQuery, KindEnum, KindUniqueSymbol,
		KindStringLiteral, KindNumberLiteral, KindBooleanLiteral,
		KindBigIntLiteral, KindEnumMember:
		// Nominal and literal types have no type parameter positions.
		return id

	case KindArray:
		element := in.instantiate(key.Ref)
		if element == key.Ref {
			return id
		}
		if key.Readonly {
			return it.ReadonlyArray(element)
		}
		return it.Array(element)

	case KindTuple:
		return in.instantiateTuple(id, key)

	case KindUnion:
		members, changed := in.instantiateList(key.List)
		if !changed {
			return id
		}
		return it.Union(members)

	case KindIntersection:
		members, changed := in.instantiateList(key.List)
		if !changed {
			return id
		}
		return it.Intersection(members)

	case KindObject:
		return in.instantiateObject(id, key)

	case KindFunction:
		return in.instantiateFunction(id, key)

	case KindCallable:
		return in.instantiateCallable(id, key)

	case KindApplication:
		args, changed := in.instantiateList(key.App.Args)
		base := in.instantiate(key.App.Base)
		if !changed && base == key.App.Base {
			return id
		}
		return it.Application(base, args)

	case KindConditional:
		return in.instantiateConditional(id, key)

	case KindMapped:
		return in.instantiateMapped(id, key)

	case KindKeyOf:
		operand := in.instantiate(key.Ref)
		if operand == key.Ref {
			return id
		}
		// Reduce eagerly: equal instantiations must intern to equal
		// handles even when the operand only just became concrete.
		return in.ev.evaluate(it.KeyOfType(operand))

	case KindIndexAccess:
		object := in.instantiate(key.Ref)
		index := in.instantiate(key.Aux)
		if object == key.Ref && index == key.Aux {
			return id
		}
		return in.ev.evaluate(it.IndexAccessType(object, index))

	case KindTemplateLiteral:
		return in.instantiateTemplate(id, key)

	case KindStringIntrinsic:
		arg := in.instantiate(key.Ref)
		if arg == key.Ref {
			return id
		}
		return in.ev.evaluate(it.StringIntrinsic(key.Intrinsic, arg))

	default:
		return id
	}
}

func (in *instantiator) instantiateList(ids []TypeID) ([]TypeID, bool) {
	changed := false
	result := make([]TypeID, len(ids))
	for i, id := range ids {
		result[i] = in.instantiate(id)
		changed = changed || result[i] != id
	}
	return result, changed
}

func (in *instantiator) instantiateTuple(id TypeID, key *TypeKey) TypeID {
	shape := key.Tuple
	changed := false
	elements := make([]TupleElement, len(shape.Elements))
	for i := range shape.Elements {
		elements[i] = shape.Elements[i]
		elements[i].Type = in.instantiate(elements[i].Type)
		changed = changed || elements[i].Type != shape.Elements[i].Type
	}
	if !changed {
		return id
	}
	return in.ev.interner.Tuple(&TupleShape{
		Elements: elements,
		Readonly: shape.Readonly,
	})
}

func (in *instantiator) instantiateProperties(props []PropertyInfo) ([]PropertyInfo, bool) {
	changed := false
	result := make([]PropertyInfo, len(props))
	for i := range props {
		result[i] = props[i]
		result[i].Type = in.instantiate(result[i].Type)
		if result[i].WriteType.Valid() {
			result[i].WriteType = in.instantiate(result[i].WriteType)
		}
		changed = changed ||
			result[i].Type != props[i].Type ||
			result[i].WriteType != props[i].WriteType
	}
	return result, changed
}

func (in *instantiator) instantiateIndexInfo(info *IndexInfo) (*IndexInfo, bool) {
	if info == nil {
		return nil, false
	}
	value := in.instantiate(info.Value)
	if value == info.Value {
		return info, false
	}
	return &IndexInfo{Value: value, Readonly: info.Readonly}, true
}

func (in *instantiator) instantiateObject(id TypeID, key *TypeKey) TypeID {
	shape := key.Object
	properties, changed := in.instantiateProperties(shape.Properties)
	stringIndex, sChanged := in.instantiateIndexInfo(shape.StringIndex)
	numberIndex, nChanged := in.instantiateIndexInfo(shape.NumberIndex)
	if !changed && !sChanged && !nChanged {
		return id
	}
	return in.ev.interner.Object(&ObjectShape{
		Flags:       shape.Flags,
		Properties:  properties,
		StringIndex: stringIndex,
		NumberIndex: numberIndex,
	})
}

func (in *instantiator) instantiateFunction(id TypeID, key *TypeKey) TypeID {
	shape := key.Function
	it := in.ev.interner

	// An inner generic signature redeclares its parameters; they must
	// not pick up outer bindings of the same parameter handle.
	var shadowedParams []TypeID
	if len(shape.TypeParams) > 0 {
		shadowedParams = make([]TypeID, len(shape.TypeParams))
		for i := range shape.TypeParams {
			// The owner of signature-level parameters is unknown here;
			// shadowing matches on whatever handle the body references.
			param := it.TypeParameter(InvalidDefID, uint32(i), &shape.TypeParams[i])
			shadowedParams[i] = param
			in.shadow(param)
		}
		defer func() {
			for _, param := range shadowedParams {
				in.unshadow(param)
			}
		}()
	}

	changed := false
	params := make([]ParamInfo, len(shape.Params))
	for i := range shape.Params {
		params[i] = shape.Params[i]
		params[i].Type = in.instantiate(params[i].Type)
		changed = changed || params[i].Type != shape.Params[i].Type
	}

	ret := in.instantiate(shape.Return)
	this := shape.This
	if this.Valid() {
		this = in.instantiate(this)
	}
	changed = changed || ret != shape.Return || this != shape.This

	typeParams, tpChanged := in.instantiateTypeParams(shape.TypeParams)
	changed = changed || tpChanged

	if !changed {
		return id
	}
	return it.FunctionType(&FunctionShape{
		TypeParams: typeParams,
		Params:     params,
		Return:     ret,
		This:       this,
		Flags:      shape.Flags,
	})
}

func (in *instantiator) instantiateTypeParams(params []TypeParamInfo) ([]TypeParamInfo, bool) {
	if len(params) == 0 {
		return nil, false
	}
	changed := false
	result := make([]TypeParamInfo, len(params))
	for i := range params {
		result[i] = params[i]
		if result[i].Constraint.Valid() {
			result[i].Constraint = in.instantiate(result[i].Constraint)
		}
		if result[i].Default.Valid() {
			result[i].Default = in.instantiate(result[i].Default)
		}
		changed = changed ||
			result[i].Constraint != params[i].Constraint ||
			result[i].Default != params[i].Default
	}
	return result, changed
}

func (in *instantiator) instantiateCallable(id TypeID, key *TypeKey) TypeID {
	shape := key.Callable
	calls, callsChanged := in.instantiateList(shape.CallSignatures)
	constructs, constructsChanged := in.instantiateList(shape.ConstructSignatures)
	properties, propsChanged := in.instantiateProperties(shape.Properties)
	stringIndex, sChanged := in.instantiateIndexInfo(shape.StringIndex)
	numberIndex, nChanged := in.instantiateIndexInfo(shape.NumberIndex)
	if !callsChanged && !constructsChanged && !propsChanged && !sChanged && !nChanged {
		return id
	}
	return in.ev.interner.CallableType(&CallableShape{
		CallSignatures:      calls,
		ConstructSignatures: constructs,
		Properties:          properties,
		StringIndex:         stringIndex,
		NumberIndex:         numberIndex,
	})
}

// instantiateConditional distributes a distributive conditional over a
// union check type at instantiation time, member by member, re-unioning
// the evaluated results. Distribution width is bounded; exceeding the
// bound yields the error sentinel, truncated.
func (in *instantiator) instantiateConditional(id TypeID, key *TypeKey) TypeID {
	it := in.ev.interner
	cond := key.Cond

	check := in.instantiate(cond.Check)

	if cond.Distributive && check != cond.Check {
		checkKey := it.Lookup(check)
		switch checkKey.Kind {
		case KindNever:
			// Distributing over no members yields no members.
			return TypeNever

		case KindUnion:
			members := checkKey.List
			if len(members) > in.ev.guard.budgets.DistributionWidth {
				in.ev.guard.trip(BudgetDistributionWidth)
				return TypeError
			}
			results := make([]TypeID, 0, len(members))
			for _, member := range members {
				results = append(results, in.distributeMember(cond, member))
			}
			return it.Union(results)
		}
	}

	extends := in.instantiate(cond.Extends)
	whenTrue := in.instantiate(cond.True)
	whenFalse := in.instantiate(cond.False)

	if check == cond.Check &&
		extends == cond.Extends &&
		whenTrue == cond.True &&
		whenFalse == cond.False {
		return id
	}

	rebuilt := it.internRaw(TypeKey{
		Kind: KindConditional,
		Cond: &ConditionalShape{
			Check:        check,
			Extends:      extends,
			True:         whenTrue,
			False:        whenFalse,
			Distributive: cond.Distributive,
			InferCount:   cond.InferCount,
		},
	})
	return in.ev.evaluate(rebuilt)
}

// distributeMember instantiates the conditional for one union member:
// branch occurrences of the original check type stand for the member.
func (in *instantiator) distributeMember(cond *ConditionalShape, member TypeID) TypeID {
	memberSubst := NewTypeSubstitution()
	if in.subst != nil {
		for param, arg := range in.subst.mapping {
			memberSubst.Set(param, arg)
		}
	}
	memberSubst.Set(cond.Check, member)

	inner := in.ev.newInstantiator(memberSubst)
	inner.thisType = in.thisType
	inner.inferArgs = in.inferArgs

	it := in.ev.interner
	rebuilt := it.internRaw(TypeKey{
		Kind: KindConditional,
		Cond: &ConditionalShape{
			Check:        member,
			Extends:      inner.instantiate(cond.Extends),
			True:         inner.instantiate(cond.True),
			False:        inner.instantiate(cond.False),
			Distributive: false,
			InferCount:   cond.InferCount,
		},
	})
	return in.ev.evaluate(rebuilt)
}

func (in *instantiator) instantiateMapped(id TypeID, key *TypeKey) TypeID {
	shape := key.Mapped
	it := in.ev.interner

	in.shadow(shape.TypeParam)
	defer in.unshadow(shape.TypeParam)

	keySource := in.instantiate(shape.KeySource)
	template := in.instantiate(shape.Template)
	nameType := shape.NameType
	if nameType.Valid() {
		nameType = in.instantiate(nameType)
	}

	if keySource == shape.KeySource &&
		template == shape.Template &&
		nameType == shape.NameType {
		return id
	}
	return it.MappedType(&MappedShape{
		TypeParam:   shape.TypeParam,
		KeySource:   keySource,
		Template:    template,
		NameType:    nameType,
		ReadonlyMod: shape.ReadonlyMod,
		OptionalMod: shape.OptionalMod,
	})
}

func (in *instantiator) instantiateTemplate(id TypeID, key *TypeKey) TypeID {
	changed := false
	spans := make([]TemplateSpan, len(key.Template))
	for i, span := range key.Template {
		spans[i] = span
		if span.Kind == SpanType {
			spans[i].Type = in.instantiate(span.Type)
			changed = changed || spans[i].Type != span.Type
		}
	}
	if !changed {
		return id
	}
	return in.ev.evaluate(in.ev.interner.TemplateLiteralType(spans))
}
