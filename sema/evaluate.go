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
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Evaluator reduces meta types to structural form: conditional types,
// indexed access, mapped types, keyof, template literals, string
// intrinsics, generic applications, and deferred references. Reduction
// is idempotent: evaluating an already-evaluated type returns the same
// handle.
//
// An Evaluator serves one query. It shares the query's guard with the
// Judge it carries, so one budget bounds the combined work of
// evaluation and subtyping.
type Evaluator struct {
	interner *Interner
	env      *Environment
	guard    *guard
	profile  *CompatProfile
	judge    *Judge

	cache    map[TypeID]TypeID
	visiting map[TypeID]struct{}
	depth    int
}

func newEvaluator(env *Environment, g *guard, profile *CompatProfile) *Evaluator {
	if profile == nil {
		profile = DefaultProfile()
	}
	ev := &Evaluator{
		interner: env.Interner(),
		env:      env,
		guard:    g,
		profile:  profile,
		cache:    make(map[TypeID]TypeID),
		visiting: make(map[TypeID]struct{}),
	}
	ev.judge = newJudge(ev)
	return ev
}

// Evaluate reduces one type. Types the budgets cut short come back
// unreduced; the guard records the first cause.
func (ev *Evaluator) Evaluate(id TypeID) TypeID {
	return ev.evaluate(id)
}

func (ev *Evaluator) isSubtype(source, target TypeID) bool {
	return ev.judge.isSubtypeOf(source, target)
}

func (ev *Evaluator) evaluate(id TypeID) TypeID {
	if !id.Valid() || id.IsWellKnown() {
		return id
	}

	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindConditional, KindIndexAccess, KindMapped, KindKeyOf,
		KindApplication, KindTemplateLiteral, KindStringIntrinsic,
		KindLazy, KindTypeQuery:
	default:
		// Structural types are already in evaluated form.
		return id
	}

	if cached, ok := ev.cache[id]; ok {
		return cached
	}
	if !ev.guard.spend() {
		return id
	}
	if ev.depth >= ev.guard.budgets.EvaluateDepth {
		ev.guard.trip(BudgetEvaluateDepth)
		return id
	}
	if _, busy := ev.visiting[id]; busy {
		// A meta type reached while still reducing itself cannot shrink
		// further. Mapped types collapse to the empty object so that
		// self-referential maps terminate; everything else stays put.
		if key.Kind == KindMapped {
			return ev.interner.Object(&ObjectShape{})
		}
		return id
	}
	ev.visiting[id] = struct{}{}
	ev.depth++

	var result TypeID
	switch key.Kind {
	case KindConditional:
		result = ev.evaluateConditional(id, key.Cond)
	case KindIndexAccess:
		result = ev.evaluateIndexAccess(key.Ref, key.Aux)
	case KindMapped:
		result = ev.evaluateMapped(id, key.Mapped)
	case KindKeyOf:
		result = ev.evaluateKeyOf(key.Ref)
	case KindApplication:
		result = ev.evaluateApplication(id, key.App)
	case KindTemplateLiteral:
		result = ev.evaluateTemplateLiteral(id, key.Template)
	case KindStringIntrinsic:
		result = ev.evaluateStringIntrinsic(id, key.Intrinsic, key.Ref)
	case KindLazy, KindTypeQuery:
		resolved := ev.env.Resolve(id)
		if resolved == id {
			result = id
		} else {
			result = ev.evaluate(resolved)
		}
	}

	ev.depth--
	delete(ev.visiting, id)
	ev.cache[id] = result
	return result
}

// Conditional types

func (ev *Evaluator) evaluateConditional(id TypeID, cond *ConditionalShape) TypeID {
	it := ev.interner

	check := ev.evaluate(cond.Check)
	extends := ev.evaluate(cond.Extends)

	// Distributing over no members yields no members.
	if cond.Distributive && check == TypeNever {
		return TypeNever
	}

	// any satisfies and fails every test at once: both branches apply.
	if check == TypeAny {
		return it.Union2(ev.evaluate(cond.True), ev.evaluate(cond.False))
	}

	if cond.Distributive {
		if checkKey := it.Lookup(check); checkKey.Kind == KindUnion {
			return ev.distributeConditional(check, checkKey.List, cond)
		}
	}

	hasInfer := cond.InferCount > 0 || ev.typeContainsInfer(extends)

	checkKey := it.Lookup(check)
	switch checkKey.Kind {
	case KindTypeParameter, KindInfer:
		// An abstract check type cannot be decided yet. When the test
		// carries infer positions, a constraint on the check type may
		// still determine the bindings.
		if hasInfer {
			constraint := checkKey.Ref
			if checkKey.Kind == KindTypeParameter {
				constraint = checkKey.Param.Constraint
			}
			if constraint.Valid() && constraint != check {
				bindings := newInferBindings(cond.InferCount)
				visited := make(map[typePair]struct{})
				if ev.matchInferPattern(constraint, extends, bindings, visited) {
					return ev.evaluate(ev.substituteInfer(cond.True, bindings))
				}
			}
		}
		return id
	}

	if hasInfer {
		bindings := newInferBindings(cond.InferCount)
		visited := make(map[typePair]struct{})
		if ev.matchInferPattern(check, extends, bindings, visited) {
			return ev.evaluate(ev.substituteInfer(cond.True, bindings))
		}
		return ev.evaluate(cond.False)
	}

	if ev.isSubtype(check, extends) {
		return ev.evaluate(cond.True)
	}
	return ev.evaluate(cond.False)
}

// distributeConditional evaluates a distributive conditional per union
// member and re-unions the results. Branch occurrences of the original
// check type stand for the member.
func (ev *Evaluator) distributeConditional(check TypeID, members []TypeID, cond *ConditionalShape) TypeID {
	it := ev.interner

	if len(members) > ev.guard.budgets.DistributionWidth {
		ev.guard.trip(BudgetDistributionWidth)
		return TypeError
	}

	results := make([]TypeID, 0, len(members))
	for _, member := range members {
		whenTrue := cond.True
		if whenTrue == cond.Check || whenTrue == check {
			whenTrue = member
		}
		whenFalse := cond.False
		if whenFalse == cond.Check || whenFalse == check {
			whenFalse = member
		}
		memberCond := it.internRaw(TypeKey{
			Kind: KindConditional,
			Cond: &ConditionalShape{
				Check:        member,
				Extends:      cond.Extends,
				True:         whenTrue,
				False:        whenFalse,
				Distributive: false,
				InferCount:   cond.InferCount,
			},
		})
		results = append(results, ev.evaluate(memberCond))
	}
	return it.Union(results)
}

// Infer bindings

// inferBindings holds the types inferred for the infer placeholders of
// one conditional, indexed by placeholder slot. TypeNone marks an
// unbound slot.
type inferBindings struct {
	slots []TypeID
}

func newInferBindings(count uint32) *inferBindings {
	return &inferBindings{slots: make([]TypeID, count)}
}

func (b *inferBindings) at(index uint32) TypeID {
	if int(index) < len(b.slots) {
		return b.slots[index]
	}
	return TypeNone
}

func (b *inferBindings) set(index uint32, id TypeID) {
	for int(index) >= len(b.slots) {
		b.slots = append(b.slots, TypeNone)
	}
	b.slots[index] = id
}

func (b *inferBindings) clone() *inferBindings {
	slots := make([]TypeID, len(b.slots))
	copy(slots, b.slots)
	return &inferBindings{slots: slots}
}

// typePair keys cycle detection and memoization of binary type walks.
type typePair struct {
	source TypeID
	target TypeID
}

// substituteInfer rewrites bound infer placeholders to their inferred
// types. Unbound placeholders stay.
func (ev *Evaluator) substituteInfer(id TypeID, bindings *inferBindings) TypeID {
	if bindings == nil || len(bindings.slots) == 0 {
		return id
	}
	in := ev.newInstantiator(nil)
	in.inferArgs = bindings.slots
	return in.instantiate(id)
}

// typeContainsInfer reports whether any infer placeholder occurs in the
// type. Cyclic shapes terminate through the seen set.
func (ev *Evaluator) typeContainsInfer(id TypeID) bool {
	return ev.containsInfer(id, make(map[TypeID]struct{}))
}

func (ev *Evaluator) containsInfer(id TypeID, seen map[TypeID]struct{}) bool {
	if !id.Valid() || id.IsWellKnown() {
		return false
	}
	if _, ok := seen[id]; ok {
		return false
	}
	seen[id] = struct{}{}

	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindInfer:
		return true
	case KindArray, KindKeyOf, KindStringIntrinsic:
		return ev.containsInfer(key.Ref, seen)
	case KindIndexAccess:
		return ev.containsInfer(key.Ref, seen) || ev.containsInfer(key.Aux, seen)
	case KindUnion, KindIntersection:
		for _, member := range key.List {
			if ev.containsInfer(member, seen) {
				return true
			}
		}
	case KindTuple:
		for i := range key.Tuple.Elements {
			if ev.containsInfer(key.Tuple.Elements[i].Type, seen) {
				return true
			}
		}
	case KindObject:
		return ev.shapeContainsInfer(key.Object.Properties, key.Object.StringIndex, key.Object.NumberIndex, seen)
	case KindFunction:
		return ev.signatureContainsInfer(key.Function, seen)
	case KindCallable:
		for _, sig := range key.Callable.CallSignatures {
			if ev.containsInfer(sig, seen) {
				return true
			}
		}
		for _, sig := range key.Callable.ConstructSignatures {
			if ev.containsInfer(sig, seen) {
				return true
			}
		}
		return ev.shapeContainsInfer(key.Callable.Properties, key.Callable.StringIndex, key.Callable.NumberIndex, seen)
	case KindTypeParameter:
		return ev.containsInfer(key.Param.Constraint, seen) ||
			ev.containsInfer(key.Param.Default, seen)
	case KindApplication:
		if ev.containsInfer(key.App.Base, seen) {
			return true
		}
		for _, arg := range key.App.Args {
			if ev.containsInfer(arg, seen) {
				return true
			}
		}
	case KindConditional:
		return ev.containsInfer(key.Cond.Check, seen) ||
			ev.containsInfer(key.Cond.Extends, seen) ||
			ev.containsInfer(key.Cond.True, seen) ||
			ev.containsInfer(key.Cond.False, seen)
	case KindMapped:
		return ev.containsInfer(key.Mapped.KeySource, seen) ||
			ev.containsInfer(key.Mapped.Template, seen) ||
			ev.containsInfer(key.Mapped.NameType, seen)
	case KindTemplateLiteral:
		for i := range key.Template {
			span := &key.Template[i]
			if span.Kind == SpanType && ev.containsInfer(span.Type, seen) {
				return true
			}
		}
	}
	return false
}

func (ev *Evaluator) shapeContainsInfer(props []PropertyInfo, stringIndex, numberIndex *IndexInfo, seen map[TypeID]struct{}) bool {
	for i := range props {
		if ev.containsInfer(props[i].Type, seen) || ev.containsInfer(props[i].WriteType, seen) {
			return true
		}
	}
	if stringIndex != nil && ev.containsInfer(stringIndex.Value, seen) {
		return true
	}
	if numberIndex != nil && ev.containsInfer(numberIndex.Value, seen) {
		return true
	}
	return false
}

func (ev *Evaluator) signatureContainsInfer(fn *FunctionShape, seen map[TypeID]struct{}) bool {
	for i := range fn.Params {
		if ev.containsInfer(fn.Params[i].Type, seen) {
			return true
		}
	}
	for i := range fn.TypeParams {
		if ev.containsInfer(fn.TypeParams[i].Constraint, seen) ||
			ev.containsInfer(fn.TypeParams[i].Default, seen) {
			return true
		}
	}
	return ev.containsInfer(fn.Return, seen) || ev.containsInfer(fn.This, seen)
}

// filterInferredByConstraint narrows an inferred type to the part
// satisfying the placeholder's constraint. Unions drop non-conforming
// members; dropping everything fails the inference.
func (ev *Evaluator) filterInferredByConstraint(inferred, constraint TypeID) (TypeID, bool) {
	key := ev.interner.Lookup(inferred)
	if key.Kind == KindUnion {
		kept := make([]TypeID, 0, len(key.List))
		for _, member := range key.List {
			if ev.isSubtype(member, constraint) {
				kept = append(kept, member)
			}
		}
		switch {
		case len(kept) == 0:
			return TypeNone, false
		case len(kept) == len(key.List):
			return inferred, true
		}
		return ev.interner.Union(kept), true
	}
	if ev.isSubtype(inferred, constraint) {
		return inferred, true
	}
	return TypeNone, false
}

// bindInfer records one inferred type against a placeholder. A second
// binding of the same slot must be mutually assignable with the first.
func (ev *Evaluator) bindInfer(inferKey *TypeKey, inferred TypeID, bindings *inferBindings) bool {
	if constraint := inferKey.Ref; constraint.Valid() {
		filtered, ok := ev.filterInferredByConstraint(inferred, constraint)
		if !ok {
			return false
		}
		inferred = filtered
	}
	if existing := bindings.at(inferKey.Index); existing.Valid() {
		if existing == inferred {
			return true
		}
		return ev.isSubtype(inferred, existing) && ev.isSubtype(existing, inferred)
	}
	bindings.set(inferKey.Index, inferred)
	return true
}

// bindInferDefaults binds every infer placeholder in the pattern to the
// given type. Matching never against a pattern succeeds vacuously, with
// every placeholder bottoming out.
func (ev *Evaluator) bindInferDefaults(pattern, value TypeID, bindings *inferBindings, seen map[TypeID]struct{}) bool {
	if !pattern.Valid() || pattern.IsWellKnown() {
		return true
	}
	if _, ok := seen[pattern]; ok {
		return true
	}
	seen[pattern] = struct{}{}

	key := ev.interner.Lookup(pattern)
	switch key.Kind {
	case KindInfer:
		return ev.bindInfer(key, value, bindings)
	case KindArray, KindKeyOf, KindStringIntrinsic:
		return ev.bindInferDefaults(key.Ref, value, bindings, seen)
	case KindIndexAccess:
		return ev.bindInferDefaults(key.Ref, value, bindings, seen) &&
			ev.bindInferDefaults(key.Aux, value, bindings, seen)
	case KindUnion, KindIntersection:
		for _, member := range key.List {
			if !ev.bindInferDefaults(member, value, bindings, seen) {
				return false
			}
		}
	case KindTuple:
		for i := range key.Tuple.Elements {
			if !ev.bindInferDefaults(key.Tuple.Elements[i].Type, value, bindings, seen) {
				return false
			}
		}
	case KindObject:
		for i := range key.Object.Properties {
			if !ev.bindInferDefaults(key.Object.Properties[i].Type, value, bindings, seen) {
				return false
			}
		}
		if key.Object.StringIndex != nil {
			if !ev.bindInferDefaults(key.Object.StringIndex.Value, value, bindings, seen) {
				return false
			}
		}
		if key.Object.NumberIndex != nil {
			if !ev.bindInferDefaults(key.Object.NumberIndex.Value, value, bindings, seen) {
				return false
			}
		}
	case KindFunction:
		for i := range key.Function.Params {
			if !ev.bindInferDefaults(key.Function.Params[i].Type, value, bindings, seen) {
				return false
			}
		}
		return ev.bindInferDefaults(key.Function.Return, value, bindings, seen) &&
			ev.bindInferDefaults(key.Function.This, value, bindings, seen)
	case KindCallable:
		for _, sig := range key.Callable.CallSignatures {
			if !ev.bindInferDefaults(sig, value, bindings, seen) {
				return false
			}
		}
		for _, sig := range key.Callable.ConstructSignatures {
			if !ev.bindInferDefaults(sig, value, bindings, seen) {
				return false
			}
		}
	case KindApplication:
		for _, arg := range key.App.Args {
			if !ev.bindInferDefaults(arg, value, bindings, seen) {
				return false
			}
		}
	case KindTemplateLiteral:
		for i := range key.Template {
			span := &key.Template[i]
			if span.Kind == SpanType {
				if !ev.bindInferDefaults(span.Type, value, bindings, seen) {
					return false
				}
			}
		}
	}
	return true
}

// Infer pattern matching

// matchInferPattern structurally matches a source type against a
// pattern containing infer placeholders, accumulating bindings. The
// visited set keeps cyclic shape pairs from re-matching.
func (ev *Evaluator) matchInferPattern(source, pattern TypeID, bindings *inferBindings, visited map[typePair]struct{}) bool {
	if !ev.guard.spend() {
		return false
	}
	pair := typePair{source: source, target: pattern}
	if _, seen := visited[pair]; seen {
		return true
	}
	visited[pair] = struct{}{}

	if source == pattern {
		return true
	}

	it := ev.interner
	patternKey := it.Lookup(pattern)

	// never matches every pattern, bottoming out all placeholders.
	if source == TypeNever {
		return ev.bindInferDefaults(pattern, TypeNever, bindings, make(map[TypeID]struct{}))
	}

	if patternKey.Kind == KindInfer {
		return ev.bindInfer(patternKey, source, bindings)
	}

	// A union source matches member-wise: every member must match, and
	// the bindings each member produced merge by union.
	if sourceKey := it.Lookup(source); sourceKey.Kind == KindUnion {
		return ev.matchUnionSource(sourceKey.List, pattern, bindings, visited)
	}

	switch patternKey.Kind {
	case KindFunction:
		return ev.matchFunctionPattern(source, pattern, patternKey.Function, bindings, visited)

	case KindCallable:
		shape := patternKey.Callable
		if len(shape.CallSignatures) == 1 &&
			len(shape.ConstructSignatures) == 0 &&
			len(shape.Properties) == 0 {
			sig := it.Lookup(shape.CallSignatures[0])
			return ev.matchFunctionPattern(source, shape.CallSignatures[0], sig.Function, bindings, visited)
		}
		return ev.isSubtype(source, pattern)

	case KindArray:
		return ev.matchArrayPattern(source, patternKey.Ref, bindings, visited)

	case KindTuple:
		sourceKey := it.Lookup(source)
		if sourceKey.Kind != KindTuple {
			return false
		}
		return ev.matchTupleElements(sourceKey.Tuple.Elements, patternKey.Tuple.Elements, bindings, visited)

	case KindObject:
		return ev.matchObjectPattern(source, patternKey.Object, bindings, visited)

	case KindUnion:
		return ev.matchUnionPattern(source, patternKey.List, bindings, visited)

	case KindApplication:
		sourceKey := it.Lookup(source)
		if sourceKey.Kind != KindApplication {
			return false
		}
		return ev.matchApplicationPattern(sourceKey.App, patternKey.App, bindings, visited)

	case KindTemplateLiteral:
		return ev.matchTemplatePattern(source, patternKey.Template, bindings, visited)
	}

	return ev.isSubtype(source, pattern)
}

func (ev *Evaluator) matchUnionSource(members []TypeID, pattern TypeID, bindings *inferBindings, visited map[typePair]struct{}) bool {
	it := ev.interner
	base := bindings.clone()
	merged := bindings.clone()

	for _, member := range members {
		local := base.clone()
		if !ev.matchInferPattern(member, pattern, local, visited) {
			return false
		}
		for i, bound := range local.slots {
			if !bound.Valid() {
				continue
			}
			// Slots bound before the union match keep their binding.
			if base.at(uint32(i)).Valid() {
				continue
			}
			if existing := merged.at(uint32(i)); existing.Valid() {
				if existing != bound {
					merged.set(uint32(i), it.Union2(existing, bound))
				}
			} else {
				merged.set(uint32(i), bound)
			}
		}
	}

	bindings.slots = merged.slots
	return true
}

func (ev *Evaluator) matchFunctionPattern(source, patternID TypeID, pattern *FunctionShape, bindings *inferBindings, visited map[typePair]struct{}) bool {
	sourceFn := ev.singleSignatureOf(source)
	if sourceFn == nil {
		return false
	}

	paramsInfer := false
	for i := range pattern.Params {
		if ev.typeContainsInfer(pattern.Params[i].Type) {
			paramsInfer = true
			break
		}
	}
	returnInfer := ev.typeContainsInfer(pattern.Return)
	thisInfer := pattern.This.Valid() && ev.typeContainsInfer(pattern.This)

	if !paramsInfer && !returnInfer && !thisInfer {
		return ev.isSubtype(source, patternID)
	}

	if paramsInfer {
		if !ev.matchSignatureParams(sourceFn.Params, pattern.Params, bindings, visited) {
			return false
		}
	}
	if returnInfer {
		if !ev.matchInferPattern(sourceFn.Return, pattern.Return, bindings, visited) {
			return false
		}
	}
	if thisInfer {
		sourceThis := sourceFn.This
		if !sourceThis.Valid() {
			sourceThis = TypeUnknown
		}
		if !ev.matchInferPattern(sourceThis, pattern.This, bindings, visited) {
			return false
		}
	}

	// Verify the bound pattern, except when only parameters carried
	// placeholders: parameter positions are contravariant and the
	// check would reject the very bindings just inferred. Rest
	// placeholders like (...args: any[]) get the same leniency, or the
	// contravariant rest rule would reject every fixed-arity source.
	if returnInfer || thisInfer {
		substituted := ev.substituteInfer(patternID, bindings)
		j := ev.judge
		prevRest := j.opts.bivariantRestParams
		j.opts.bivariantRestParams = true
		ok := ev.isSubtype(source, substituted)
		j.opts.bivariantRestParams = prevRest
		return ok
	}
	return true
}

// singleSignatureOf returns the only signature of a function or
// single-call callable source, or nil.
func (ev *Evaluator) singleSignatureOf(source TypeID) *FunctionShape {
	key := ev.interner.Lookup(source)
	switch key.Kind {
	case KindFunction:
		return key.Function
	case KindCallable:
		shape := key.Callable
		if len(shape.CallSignatures) == 1 && len(shape.ConstructSignatures) == 0 {
			return ev.interner.Lookup(shape.CallSignatures[0]).Function
		}
	}
	return nil
}

func (ev *Evaluator) matchSignatureParams(sourceParams, patternParams []ParamInfo, bindings *inferBindings, visited map[typePair]struct{}) bool {
	if len(sourceParams) != len(patternParams) {
		return false
	}
	for i := range patternParams {
		sp := &sourceParams[i]
		pp := &patternParams[i]
		if sp.Rest != pp.Rest || sp.Optional != pp.Optional {
			return false
		}
		sourceType := sp.Type
		if sp.Optional {
			sourceType = ev.interner.Union2(sourceType, TypeUndefined)
		}
		if !ev.matchInferPattern(sourceType, pp.Type, bindings, visited) {
			return false
		}
	}
	return true
}

func (ev *Evaluator) matchArrayPattern(source, elementPattern TypeID, bindings *inferBindings, visited map[typePair]struct{}) bool {
	key := ev.interner.Lookup(source)
	switch key.Kind {
	case KindArray:
		return ev.matchInferPattern(key.Ref, elementPattern, bindings, visited)
	case KindTuple:
		// A tuple flows into an array pattern element-wise.
		element := ev.unionTupleElementTypes(key.Tuple)
		return ev.matchInferPattern(element, elementPattern, bindings, visited)
	}
	return false
}

func (ev *Evaluator) matchTupleElements(sourceElements, patternElements []TupleElement, bindings *inferBindings, visited map[typePair]struct{}) bool {
	it := ev.interner
	si := 0
	for pi := range patternElements {
		pe := &patternElements[pi]

		if pe.Rest {
			// Only a trailing rest pattern packs a remainder.
			if pi != len(patternElements)-1 {
				return false
			}
			rest := make([]TupleElement, len(sourceElements)-si)
			copy(rest, sourceElements[si:])
			packed := it.Tuple(&TupleShape{Elements: rest})
			return ev.matchInferPattern(packed, pe.Type, bindings, visited)
		}

		if si >= len(sourceElements) {
			// Source exhausted: optional pattern elements absorb the
			// shortfall as undefined.
			if !pe.Optional {
				return false
			}
			if ev.typeContainsInfer(pe.Type) &&
				!ev.matchInferPattern(TypeUndefined, pe.Type, bindings, visited) {
				return false
			}
			continue
		}

		se := &sourceElements[si]
		if se.Rest {
			return false
		}
		sourceType := se.Type
		if se.Optional {
			sourceType = it.Union2(sourceType, TypeUndefined)
		}
		if !ev.matchInferPattern(sourceType, pe.Type, bindings, visited) {
			return false
		}
		si++
	}
	return si == len(sourceElements)
}

func (ev *Evaluator) matchObjectPattern(source TypeID, pattern *ObjectShape, bindings *inferBindings, visited map[typePair]struct{}) bool {
	it := ev.interner
	sourceKey := it.Lookup(source)

	switch sourceKey.Kind {
	case KindObject:
		src := sourceKey.Object
		for i := range pattern.Properties {
			pp := &pattern.Properties[i]
			sp := src.Property(pp.Name)
			if sp == nil {
				if !pp.Optional {
					return false
				}
				if ev.typeContainsInfer(pp.Type) &&
					!ev.matchInferPattern(TypeUndefined, pp.Type, bindings, visited) {
					return false
				}
				continue
			}
			sourceType := sp.Type
			if sp.Optional {
				sourceType = it.Union2(sourceType, TypeUndefined)
			}
			if !ev.matchInferPattern(sourceType, pp.Type, bindings, visited) {
				return false
			}
		}
		if pattern.StringIndex != nil {
			sourceValue := ev.unionPropertyTypes(src)
			if src.StringIndex != nil {
				sourceValue = src.StringIndex.Value
			}
			if !ev.matchInferPattern(sourceValue, pattern.StringIndex.Value, bindings, visited) {
				return false
			}
		}
		if pattern.NumberIndex != nil {
			var sourceValue TypeID
			switch {
			case src.NumberIndex != nil:
				sourceValue = src.NumberIndex.Value
			case src.StringIndex != nil:
				sourceValue = src.StringIndex.Value
			default:
				sourceValue = ev.unionNumericPropertyTypes(src)
			}
			if !ev.matchInferPattern(sourceValue, pattern.NumberIndex.Value, bindings, visited) {
				return false
			}
		}
		return true

	case KindIntersection:
		// Property reads see the intersection of the members' views.
		for i := range pattern.Properties {
			pp := &pattern.Properties[i]
			propType, found := ev.intersectionPropertyType(sourceKey.List, pp.Name)
			if !found {
				if !pp.Optional {
					return false
				}
				if ev.typeContainsInfer(pp.Type) &&
					!ev.matchInferPattern(TypeUndefined, pp.Type, bindings, visited) {
					return false
				}
				continue
			}
			if !ev.matchInferPattern(propType, pp.Type, bindings, visited) {
				return false
			}
		}
		return pattern.StringIndex == nil && pattern.NumberIndex == nil
	}
	return false
}

// intersectionPropertyType reads one property across intersection
// members, combining multiple declarations into an intersection.
func (ev *Evaluator) intersectionPropertyType(members []TypeID, name string) (TypeID, bool) {
	it := ev.interner
	var types []TypeID
	allOptional := true
	for _, member := range members {
		key := it.Lookup(member)
		var prop *PropertyInfo
		switch key.Kind {
		case KindObject:
			prop = key.Object.Property(name)
		case KindCallable:
			prop = key.Callable.Property(name)
		}
		if prop == nil {
			continue
		}
		types = append(types, prop.Type)
		allOptional = allOptional && prop.Optional
	}
	if len(types) == 0 {
		return TypeNone, false
	}
	result := it.Intersection(types)
	if allOptional {
		result = it.Union2(result, TypeUndefined)
	}
	return result, true
}

func (ev *Evaluator) matchUnionPattern(source TypeID, members []TypeID, bindings *inferBindings, visited map[typePair]struct{}) bool {
	it := ev.interner

	var inferMember TypeID
	inferCount := 0
	concrete := make([]TypeID, 0, len(members))
	for _, member := range members {
		if it.KindOf(member) == KindInfer {
			inferMember = member
			inferCount++
		} else {
			concrete = append(concrete, member)
		}
	}

	switch {
	case inferCount == 0:
		return ev.isSubtype(source, it.Union(members))
	case inferCount > 1:
		return false
	}

	// A source covered by the concrete members leaves nothing for the
	// placeholder; otherwise the whole remainder binds to it.
	for _, member := range concrete {
		if ev.isSubtype(source, member) {
			return ev.bindInfer(it.Lookup(inferMember), TypeNever, bindings)
		}
	}
	return ev.matchInferPattern(source, inferMember, bindings, visited)
}

func (ev *Evaluator) matchApplicationPattern(source, pattern *ApplicationShape, bindings *inferBindings, visited map[typePair]struct{}) bool {
	if len(source.Args) != len(pattern.Args) {
		return false
	}
	if source.Base != pattern.Base {
		if !ev.isSubtype(source.Base, pattern.Base) || !ev.isSubtype(pattern.Base, source.Base) {
			return false
		}
	}
	for i := range pattern.Args {
		if !ev.matchInferPattern(source.Args[i], pattern.Args[i], bindings, visited) {
			return false
		}
	}
	return true
}

// Template literal pattern matching

func (ev *Evaluator) matchTemplatePattern(source TypeID, pattern []TemplateSpan, bindings *inferBindings, visited map[typePair]struct{}) bool {
	key := ev.interner.Lookup(source)
	switch key.Kind {
	case KindStringLiteral:
		return ev.matchTemplateText(key.Str, pattern, bindings, visited)
	case KindTemplateLiteral:
		return ev.matchTemplateSpans(key.Template, pattern, bindings, visited)
	case KindString:
		// string carries no text: only all-placeholder patterns match,
		// each placeholder seeing string.
		for i := range pattern {
			span := &pattern[i]
			if span.Kind == SpanText {
				if span.Text != "" {
					return false
				}
				continue
			}
			if !ev.matchInferPattern(TypeString, span.Type, bindings, visited) {
				return false
			}
		}
		return true
	}
	return false
}

// matchTemplateText matches literal text against template spans. A
// placeholder directly followed by another placeholder captures exactly
// one character; a placeholder followed by text captures up to the
// text's next occurrence; a trailing placeholder captures the rest.
func (ev *Evaluator) matchTemplateText(text string, spans []TemplateSpan, bindings *inferBindings, visited map[typePair]struct{}) bool {
	it := ev.interner
	pos := 0
	for i := 0; i < len(spans); i++ {
		span := &spans[i]
		if span.Kind == SpanText {
			if !strings.HasPrefix(text[pos:], span.Text) {
				return false
			}
			pos += len(span.Text)
			continue
		}

		var captured string
		switch {
		case i+1 < len(spans) && spans[i+1].Kind == SpanType:
			r, size := utf8.DecodeRuneInString(text[pos:])
			if size == 0 || r == utf8.RuneError && size == 1 {
				return false
			}
			captured = text[pos : pos+size]
			pos += size
		case i+1 < len(spans):
			idx := strings.Index(text[pos:], spans[i+1].Text)
			if idx < 0 {
				return false
			}
			captured = text[pos : pos+idx]
			pos += idx
		default:
			captured = text[pos:]
			pos = len(text)
		}

		if !ev.matchInferPattern(it.StringLiteral(captured), span.Type, bindings, visited) {
			return false
		}
	}
	return pos == len(text)
}

// matchTemplateSpans matches two templates span-wise: text spans must
// agree exactly, placeholder spans match recursively.
func (ev *Evaluator) matchTemplateSpans(source, pattern []TemplateSpan, bindings *inferBindings, visited map[typePair]struct{}) bool {
	if len(source) != len(pattern) {
		return false
	}
	for i := range pattern {
		ps := &pattern[i]
		ss := &source[i]
		if ps.Kind != ss.Kind {
			return false
		}
		if ps.Kind == SpanText {
			if ps.Text != ss.Text {
				return false
			}
			continue
		}
		if !ev.matchInferPattern(ss.Type, ps.Type, bindings, visited) {
			return false
		}
	}
	return true
}

// Indexed access

func (ev *Evaluator) evaluateIndexAccess(object, index TypeID) TypeID {
	it := ev.interner

	for {
		eo, ei := ev.evaluate(object), ev.evaluate(index)
		if eo == object && ei == index {
			break
		}
		object, index = eo, ei
		if !ev.guard.spend() {
			break
		}
	}

	switch {
	case object == TypeAny || index == TypeAny:
		return TypeAny
	case object == TypeError || index == TypeError:
		return TypeError
	case object == TypeNever:
		return TypeNever
	}

	key := it.Lookup(object)
	switch key.Kind {
	case KindObject:
		if result := ev.indexObjectShape(key.Object, index); result.Valid() {
			return result
		}
	case KindArray:
		if result := ev.indexArray(key.Ref, index); result.Valid() {
			return result
		}
	case KindTuple:
		if result := ev.indexTuple(key.Tuple, index); result.Valid() {
			return result
		}
	case KindUnion:
		return ev.indexUnion(key.List, index)
	case KindEnum:
		return ev.evaluateIndexAccess(ev.env.EnumValueUnion(key.Def), index)
	case KindEnumMember:
		return ev.evaluateIndexAccess(key.Ref, index)
	default:
		apparentKind := key.Kind
		if apparentKind == KindTemplateLiteral || apparentKind == KindStringIntrinsic {
			apparentKind = KindString
		}
		if shapeID, ok := it.ApparentPrimitiveShape(apparentKind); ok {
			if result := ev.indexObjectShape(it.Lookup(shapeID).Object, index); result.Valid() {
				return result
			}
		}
	}

	// Abstract operand or key: the access stays deferred.
	return it.IndexAccessType(object, index)
}

func (ev *Evaluator) indexUnion(members []TypeID, index TypeID) TypeID {
	results := make([]TypeID, 0, len(members))
	skipped := false
	for _, member := range members {
		result := ev.evaluateIndexAccess(member, index)
		// Members lacking the key read undefined; outside the unchecked
		// index mode those reads drop out of the union.
		if result == TypeUndefined && !ev.profile.NoUncheckedIndexedAccess {
			skipped = true
			continue
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		if skipped {
			return TypeUndefined
		}
		return TypeNever
	}
	return ev.interner.Union(results)
}

// indexObjectShape reads one key from an object shape. TypeNone means
// the key is too abstract to decide and the access stays deferred.
func (ev *Evaluator) indexObjectShape(shape *ObjectShape, index TypeID) TypeID {
	it := ev.interner
	key := it.Lookup(index)

	switch key.Kind {
	case KindStringLiteral:
		if prop := shape.Property(key.Str); prop != nil {
			return ev.readPropertyType(prop)
		}
		if isNumericPropertyName(key.Str) && shape.NumberIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.NumberIndex.Value)
		}
		if shape.StringIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.StringIndex.Value)
		}
		return TypeUndefined

	case KindNumberLiteral:
		if prop := shape.Property(NumberLiteralText(key.Num)); prop != nil {
			return ev.readPropertyType(prop)
		}
		if shape.NumberIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.NumberIndex.Value)
		}
		if shape.StringIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.StringIndex.Value)
		}
		return TypeUndefined

	case KindString:
		if shape.StringIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.StringIndex.Value)
		}
		if u := ev.unionPropertyTypes(shape); u != TypeNever {
			return ev.addUndefinedIfUnchecked(u)
		}
		return TypeUndefined

	case KindNumber:
		if shape.NumberIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.NumberIndex.Value)
		}
		if shape.StringIndex != nil {
			return ev.addUndefinedIfUnchecked(shape.StringIndex.Value)
		}
		if u := ev.unionPropertyTypes(shape); u != TypeNever {
			return ev.addUndefinedIfUnchecked(u)
		}
		return TypeUndefined

	case KindUnion:
		results := make([]TypeID, 0, len(key.List))
		for _, member := range key.List {
			result := ev.indexObjectShape(shape, member)
			if !result.Valid() {
				return TypeNone
			}
			results = append(results, result)
		}
		return it.Union(results)

	case KindEnumMember:
		return ev.indexObjectShape(shape, key.Ref)

	case KindBooleanLiteral, KindBigIntLiteral, KindBoolean, KindBigInt,
		KindSymbol, KindUniqueSymbol, KindUndefined, KindNull, KindVoid:
		return TypeUndefined
	}
	return TypeNone
}

func (ev *Evaluator) indexArray(element, index TypeID) TypeID {
	it := ev.interner
	key := it.Lookup(index)

	switch key.Kind {
	case KindNumber, KindNumberLiteral:
		return ev.addUndefinedIfUnchecked(element)

	case KindString:
		return ev.arrayMemberUnion()

	case KindStringLiteral:
		if isNumericPropertyName(key.Str) {
			return ev.addUndefinedIfUnchecked(element)
		}
		if t, ok := it.arrayMemberType(key.Str); ok {
			return t
		}
		return TypeUndefined

	case KindUnion:
		results := make([]TypeID, 0, len(key.List))
		for _, member := range key.List {
			result := ev.indexArray(element, member)
			if !result.Valid() {
				return TypeNone
			}
			results = append(results, result)
		}
		return it.Union(results)

	case KindEnumMember:
		return ev.indexArray(element, key.Ref)
	}
	return TypeNone
}

func (ev *Evaluator) indexTuple(shape *TupleShape, index TypeID) TypeID {
	it := ev.interner
	key := it.Lookup(index)

	switch key.Kind {
	case KindNumberLiteral:
		if idx, ok := integralIndex(key.Num); ok {
			if t, found := ev.tupleIndexAt(shape.Elements, idx); found {
				return t
			}
		}
		return TypeUndefined

	case KindNumber:
		u := ev.unionTupleElementTypes(shape)
		if u == TypeNever {
			return TypeNever
		}
		return ev.addUndefinedIfUnchecked(u)

	case KindString:
		members := []TypeID{ev.arrayMemberUnion()}
		if u := ev.unionTupleElementTypes(shape); u != TypeNever {
			members = append(members, u)
		}
		return ev.addUndefinedIfUnchecked(it.Union(members))

	case KindStringLiteral:
		if key.Str == "length" && !shape.HasRest() {
			return it.NumberLiteral(float64(len(shape.Elements)))
		}
		if isNumericPropertyName(key.Str) {
			if value, err := strconv.ParseFloat(key.Str, 64); err == nil {
				if idx, ok := integralIndex(value); ok {
					if t, found := ev.tupleIndexAt(shape.Elements, idx); found {
						return t
					}
				}
			}
			return TypeUndefined
		}
		if t, ok := it.arrayMemberType(key.Str); ok {
			return t
		}
		return TypeUndefined

	case KindUnion:
		results := make([]TypeID, 0, len(key.List))
		for _, member := range key.List {
			result := ev.indexTuple(shape, member)
			if !result.Valid() {
				return TypeNone
			}
			results = append(results, result)
		}
		return it.Union(results)

	case KindEnumMember:
		return ev.indexTuple(shape, key.Ref)
	}
	return TypeNone
}

// tupleIndexAt resolves one integral index against tuple elements,
// descending into tuple-typed rest elements.
func (ev *Evaluator) tupleIndexAt(elements []TupleElement, index int) (TypeID, bool) {
	logical := 0
	for i := range elements {
		el := &elements[i]
		if el.Rest {
			inner := ev.interner.Lookup(el.Type)
			if inner.Kind == KindTuple {
				rest := index - logical
				if rest < 0 {
					rest = 0
				}
				return ev.tupleIndexAt(inner.Tuple.Elements, rest)
			}
			// An open-ended rest covers every remaining index.
			return ev.restElementType(el.Type), true
		}
		if logical == index {
			return ev.tupleElementType(el), true
		}
		logical++
	}
	return TypeNone, false
}

func (ev *Evaluator) tupleElementType(el *TupleElement) TypeID {
	if el.Rest {
		return ev.restElementType(el.Type)
	}
	if el.Optional {
		return ev.interner.Union2(el.Type, TypeUndefined)
	}
	return el.Type
}

// restElementType is the per-index type a rest element contributes.
func (ev *Evaluator) restElementType(id TypeID) TypeID {
	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindArray:
		return key.Ref
	case KindTuple:
		return ev.unionTupleElementTypes(key.Tuple)
	}
	return id
}

func (ev *Evaluator) unionTupleElementTypes(shape *TupleShape) TypeID {
	if len(shape.Elements) == 0 {
		return TypeNever
	}
	types := make([]TypeID, 0, len(shape.Elements))
	for i := range shape.Elements {
		types = append(types, ev.tupleElementType(&shape.Elements[i]))
	}
	return ev.interner.Union(types)
}

// arrayMemberUnion is the union of everything reachable from an array
// by an arbitrary string key.
func (ev *Evaluator) arrayMemberUnion() TypeID {
	it := ev.interner
	types := make([]TypeID, 0, len(arrayMemberNames))
	for _, name := range arrayMemberNames {
		if t, ok := it.arrayMemberType(name); ok {
			types = append(types, t)
		}
	}
	return it.Union(types)
}

func (ev *Evaluator) readPropertyType(prop *PropertyInfo) TypeID {
	if prop.Optional {
		return ev.interner.Union2(prop.Type, TypeUndefined)
	}
	return prop.Type
}

func (ev *Evaluator) addUndefinedIfUnchecked(id TypeID) TypeID {
	if ev.profile.NoUncheckedIndexedAccess {
		return ev.interner.Union2(id, TypeUndefined)
	}
	return id
}

// unionPropertyTypes is the union of all property read types, never for
// an empty shape.
func (ev *Evaluator) unionPropertyTypes(shape *ObjectShape) TypeID {
	if len(shape.Properties) == 0 {
		return TypeNever
	}
	types := make([]TypeID, 0, len(shape.Properties))
	for i := range shape.Properties {
		types = append(types, ev.readPropertyType(&shape.Properties[i]))
	}
	return ev.interner.Union(types)
}

func (ev *Evaluator) unionNumericPropertyTypes(shape *ObjectShape) TypeID {
	var types []TypeID
	for i := range shape.Properties {
		if isNumericPropertyName(shape.Properties[i].Name) {
			types = append(types, ev.readPropertyType(&shape.Properties[i]))
		}
	}
	if len(types) == 0 {
		return TypeNever
	}
	return ev.interner.Union(types)
}

// isNumericPropertyName reports whether the name is the canonical text
// of a number, the form under which numeric keys reach number index
// signatures.
func isNumericPropertyName(name string) bool {
	if name == "" {
		return false
	}
	value, err := strconv.ParseFloat(name, 64)
	if err != nil {
		return false
	}
	return NumberLiteralText(value) == name
}

func integralIndex(value float64) (int, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value != math.Trunc(value) || value < 0 || value >= 1<<31 {
		return 0, false
	}
	return int(value), true
}

// Mapped types

// mappedKeys is the key set one mapped type iterates: the literal keys
// plus whether arbitrary string or number keys flow in.
type mappedKeys struct {
	literals  []string
	hasString bool
	hasNumber bool
}

func (ev *Evaluator) evaluateMapped(id TypeID, shape *MappedShape) TypeID {
	it := ev.interner

	keySource := ev.evaluate(shape.KeySource)
	keys, ok := ev.extractMappedKeys(keySource)
	if !ok {
		// Keys still abstract: the mapped type stays deferred.
		return id
	}

	// Homomorphic maps, those iterating keyof of a source type, carry
	// the source property's optional and readonly flags through.
	var sourceShape *ObjectShape
	if srcKey := it.Lookup(shape.KeySource); srcKey.Kind == KindKeyOf {
		sourceShape = ev.objectShapeOf(ev.evaluate(srcKey.Ref))
	}

	var result ObjectShape
	for _, name := range keys.literals {
		keyType := it.StringLiteral(name)

		propName := name
		if shape.NameType.Valid() {
			remapped := ev.remapMappedKey(shape, keyType)
			if remapped == TypeNever {
				continue
			}
			remappedKey := it.Lookup(remapped)
			if remappedKey.Kind != KindStringLiteral {
				return id
			}
			propName = remappedKey.Str
		}

		sourceOptional, sourceReadonly := false, false
		if sourceShape != nil {
			if prop := sourceShape.Property(name); prop != nil {
				sourceOptional, sourceReadonly = prop.Optional, prop.Readonly
			}
		}
		optional := applyModifier(shape.OptionalMod, sourceOptional)
		readonly := applyModifier(shape.ReadonlyMod, sourceReadonly)

		value := ev.evaluate(ev.instantiateMappedTemplate(shape, keyType))
		if sourceOptional && shape.OptionalMod == ModifierRemove {
			value = ev.stripUndefined(value)
		}

		result.Properties = append(result.Properties, PropertyInfo{
			Name:     propName,
			Type:     value,
			Optional: optional,
			Readonly: readonly,
		})
	}

	if keys.hasString {
		if shape.NameType.Valid() && ev.remapMappedKey(shape, TypeString) != TypeString {
			return id
		}
		value := ev.evaluate(ev.instantiateMappedTemplate(shape, TypeString))
		if shape.OptionalMod == ModifierAdd {
			value = it.Union2(value, TypeUndefined)
		}
		result.StringIndex = &IndexInfo{
			Value:    value,
			Readonly: shape.ReadonlyMod == ModifierAdd,
		}
	}
	if keys.hasNumber {
		if shape.NameType.Valid() && ev.remapMappedKey(shape, TypeNumber) != TypeNumber {
			return id
		}
		value := ev.evaluate(ev.instantiateMappedTemplate(shape, TypeNumber))
		if shape.OptionalMod == ModifierAdd {
			value = it.Union2(value, TypeUndefined)
		}
		result.NumberIndex = &IndexInfo{
			Value:    value,
			Readonly: shape.ReadonlyMod == ModifierAdd,
		}
	}

	return it.Object(&result)
}

func applyModifier(mod Modifier, inherited bool) bool {
	switch mod {
	case ModifierAdd:
		return true
	case ModifierRemove:
		return false
	}
	return inherited
}

func (ev *Evaluator) instantiateMappedTemplate(shape *MappedShape, keyType TypeID) TypeID {
	subst := NewTypeSubstitution()
	subst.Set(shape.TypeParam, keyType)
	return ev.newInstantiator(subst).instantiate(shape.Template)
}

func (ev *Evaluator) remapMappedKey(shape *MappedShape, keyType TypeID) TypeID {
	subst := NewTypeSubstitution()
	subst.Set(shape.TypeParam, keyType)
	return ev.evaluate(ev.newInstantiator(subst).instantiate(shape.NameType))
}

func (ev *Evaluator) extractMappedKeys(keySource TypeID) (*mappedKeys, bool) {
	keys := &mappedKeys{}
	if !ev.insertMappedKey(keys, keySource) {
		return nil, false
	}
	return keys, true
}

func (ev *Evaluator) insertMappedKey(keys *mappedKeys, id TypeID) bool {
	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindStringLiteral:
		keys.literals = append(keys.literals, key.Str)
	case KindNumberLiteral:
		keys.literals = append(keys.literals, NumberLiteralText(key.Num))
	case KindString:
		keys.hasString = true
	case KindNumber:
		keys.hasNumber = true
	case KindNever, KindSymbol, KindUniqueSymbol:
		// Symbol keys are not modeled as properties; they drop out.
	case KindEnum:
		return ev.insertMappedKey(keys, ev.env.EnumValueUnion(key.Def))
	case KindEnumMember:
		return ev.insertMappedKey(keys, key.Ref)
	case KindUnion:
		for _, member := range key.List {
			if !ev.insertMappedKey(keys, member) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

// objectShapeOf returns the object shape of a type, consulting the
// apparent shape for primitives. nil when the type has none.
func (ev *Evaluator) objectShapeOf(id TypeID) *ObjectShape {
	it := ev.interner
	key := it.Lookup(id)
	if key.Kind == KindObject {
		return key.Object
	}
	if shapeID, ok := it.ApparentPrimitiveShape(key.Kind); ok {
		return it.Lookup(shapeID).Object
	}
	return nil
}

func (ev *Evaluator) stripUndefined(id TypeID) TypeID {
	it := ev.interner
	key := it.Lookup(id)
	if id == TypeUndefined {
		return TypeNever
	}
	if key.Kind != KindUnion {
		return id
	}
	kept := make([]TypeID, 0, len(key.List))
	for _, member := range key.List {
		if member == TypeUndefined {
			continue
		}
		kept = append(kept, member)
	}
	if len(kept) == len(key.List) {
		return id
	}
	return it.Union(kept)
}

// keyof

func (ev *Evaluator) evaluateKeyOf(operand TypeID) TypeID {
	it := ev.interner
	evaluated := ev.evaluate(operand)
	key := it.Lookup(evaluated)

	switch key.Kind {
	case KindAny:
		return it.Union([]TypeID{TypeString, TypeNumber, TypeSymbol})

	case KindError:
		return TypeError

	case KindUnknown, KindNever, KindVoid, KindNull, KindUndefined, KindNonPrimitive:
		return TypeNever

	case KindObject:
		return ev.objectKeyUnion(key.Object)

	case KindCallable:
		shape := ObjectShape{
			Properties:  key.Callable.Properties,
			StringIndex: key.Callable.StringIndex,
			NumberIndex: key.Callable.NumberIndex,
		}
		return ev.objectKeyUnion(&shape)

	case KindArray:
		return ev.arrayKeyUnion(nil)

	case KindTuple:
		return ev.arrayKeyUnion(key.Tuple)

	case KindString, KindStringLiteral, KindTemplateLiteral, KindStringIntrinsic,
		KindNumber, KindNumberLiteral, KindBoolean, KindBooleanLiteral,
		KindBigInt, KindBigIntLiteral, KindSymbol, KindUniqueSymbol:
		apparentKind := key.Kind
		if apparentKind == KindTemplateLiteral || apparentKind == KindStringIntrinsic {
			apparentKind = KindString
		}
		if shapeID, ok := it.ApparentPrimitiveShape(apparentKind); ok {
			return ev.objectKeyUnion(it.Lookup(shapeID).Object)
		}
		return TypeNever

	case KindEnum:
		return ev.evaluateKeyOf(ev.env.EnumValueUnion(key.Def))

	case KindEnumMember:
		return ev.evaluateKeyOf(key.Ref)

	case KindUnion:
		return ev.intersectKeyofSets(key.List)

	case KindIntersection:
		// Keys of an intersection are readable through any member.
		keyofs := make([]TypeID, len(key.List))
		for i, member := range key.List {
			keyofs[i] = ev.evaluateKeyOf(member)
		}
		return it.Union(keyofs)

	case KindTypeParameter:
		// keyof stays symbolic over type parameters. Reducing through
		// the constraint would equate keyof V and keyof T whenever
		// V extends T; the relation rules consult the constraint with
		// the reversal intact.
		return it.KeyOfType(evaluated)

	case KindInfer:
		if c := key.Ref; c.Valid() {
			return ev.evaluateKeyOf(c)
		}
		return it.KeyOfType(evaluated)
	}

	return it.KeyOfType(evaluated)
}

func (ev *Evaluator) objectKeyUnion(shape *ObjectShape) TypeID {
	it := ev.interner
	members := make([]TypeID, 0, len(shape.Properties)+2)
	for i := range shape.Properties {
		members = append(members, it.StringLiteral(shape.Properties[i].Name))
	}
	if shape.StringIndex != nil {
		// A string index admits every string and, through numeric
		// coercion, every number.
		members = append(members, TypeString, TypeNumber)
	} else if shape.NumberIndex != nil {
		members = append(members, TypeNumber)
	}
	if len(members) == 0 {
		return TypeNever
	}
	return it.Union(members)
}

func (ev *Evaluator) arrayKeyUnion(tuple *TupleShape) TypeID {
	it := ev.interner
	members := []TypeID{TypeNumber}
	if tuple != nil {
		ev.appendTupleIndexKeys(tuple.Elements, 0, &members)
	}
	for _, name := range arrayMemberNames {
		members = append(members, it.StringLiteral(name))
	}
	return it.Union(members)
}

// appendTupleIndexKeys collects the index literals of fixed tuple
// positions, descending into tuple-typed rest elements. Open-ended rest
// elements end the walk: number already covers their positions.
func (ev *Evaluator) appendTupleIndexKeys(elements []TupleElement, logical int, members *[]TypeID) int {
	it := ev.interner
	for i := range elements {
		el := &elements[i]
		if el.Rest {
			inner := it.Lookup(el.Type)
			if inner.Kind == KindTuple {
				logical = ev.appendTupleIndexKeys(inner.Tuple.Elements, logical, members)
				continue
			}
			return logical
		}
		*members = append(*members, it.StringLiteral(strconv.Itoa(logical)))
		logical++
	}
	return logical
}

// keyofKeySet is the parsed form of one keyof result, used to intersect
// the key sets of union members.
type keyofKeySet struct {
	order     []string
	literals  map[string]struct{}
	hasString bool
	hasNumber bool
	hasSymbol bool
}

func newKeyofKeySet() *keyofKeySet {
	return &keyofKeySet{literals: make(map[string]struct{})}
}

func (s *keyofKeySet) add(name string) {
	if _, ok := s.literals[name]; ok {
		return
	}
	s.literals[name] = struct{}{}
	s.order = append(s.order, name)
}

// intersectKeyofSets computes keyof of a union: only keys present in
// every member survive. Key sets that cannot be parsed fall back to a
// symbolic intersection of the member keyofs.
func (ev *Evaluator) intersectKeyofSets(operands []TypeID) TypeID {
	it := ev.interner

	keyofs := make([]TypeID, len(operands))
	sets := make([]*keyofKeySet, len(operands))
	for i, operand := range operands {
		keyofs[i] = ev.evaluateKeyOf(operand)
		set := newKeyofKeySet()
		if !ev.collectKeyofSet(keyofs[i], set) {
			return it.Intersection(keyofs)
		}
		sets[i] = set
	}

	result := sets[0]
	for _, next := range sets[1:] {
		result = intersectKeySets(result, next)
	}

	members := make([]TypeID, 0, len(result.order)+3)
	for _, name := range result.order {
		members = append(members, it.StringLiteral(name))
	}
	if result.hasString {
		members = append(members, TypeString)
	}
	if result.hasNumber {
		members = append(members, TypeNumber)
	}
	if result.hasSymbol {
		members = append(members, TypeSymbol)
	}
	if len(members) == 0 {
		return TypeNever
	}
	return it.Union(members)
}

func (ev *Evaluator) collectKeyofSet(id TypeID, set *keyofKeySet) bool {
	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindNever:
	case KindStringLiteral:
		set.add(key.Str)
	case KindNumberLiteral:
		set.add(NumberLiteralText(key.Num))
	case KindString:
		set.hasString = true
	case KindNumber:
		set.hasNumber = true
	case KindSymbol, KindUniqueSymbol:
		set.hasSymbol = true
	case KindUnion:
		for _, member := range key.List {
			if !ev.collectKeyofSet(member, set) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

func intersectKeySets(a, b *keyofKeySet) *keyofKeySet {
	out := newKeyofKeySet()
	survive := func(from, other *keyofKeySet) {
		for _, name := range from.order {
			_, inOther := other.literals[name]
			if inOther || other.hasString ||
				(other.hasNumber && isNumericPropertyName(name)) {
				out.add(name)
			}
		}
	}
	survive(a, b)
	survive(b, a)
	out.hasString = a.hasString && b.hasString
	out.hasNumber = a.hasNumber && b.hasNumber
	out.hasSymbol = a.hasSymbol && b.hasSymbol
	return out
}

// Template literals

func (ev *Evaluator) evaluateTemplateLiteral(id TypeID, spans []TemplateSpan) TypeID {
	it := ev.interner

	combinations := []string{""}
	for i := range spans {
		span := &spans[i]
		if span.Kind == SpanText {
			for j := range combinations {
				combinations[j] += span.Text
			}
			continue
		}

		evaluated := ev.evaluate(span.Type)
		if evaluated == TypeAny {
			// An any interpolation widens the whole template to string.
			return TypeString
		}
		if evaluated == TypeNever {
			return TypeNever
		}

		choices, ok := ev.templateSpanChoices(evaluated)
		if !ok {
			// A non-literal interpolation keeps the template symbolic.
			return id
		}

		if len(combinations)*len(choices) > ev.guard.budgets.TemplateExpansion {
			ev.guard.trip(BudgetTemplateExpansion)
			return TypeString
		}
		next := make([]string, 0, len(combinations)*len(choices))
		for _, prefix := range combinations {
			for _, choice := range choices {
				next = append(next, prefix+choice)
			}
		}
		combinations = next
	}

	if len(combinations) == 0 {
		return TypeNever
	}
	members := make([]TypeID, len(combinations))
	for i, text := range combinations {
		members[i] = it.StringLiteral(text)
	}
	return it.Union(members)
}

// templateSpanChoices lists the texts one interpolated type can take.
func (ev *Evaluator) templateSpanChoices(id TypeID) ([]string, bool) {
	key := ev.interner.Lookup(id)
	switch key.Kind {
	case KindStringLiteral:
		return []string{key.Str}, true
	case KindNumberLiteral:
		return []string{NumberLiteralText(key.Num)}, true
	case KindBigIntLiteral:
		return []string{key.Str}, true
	case KindBooleanLiteral:
		if key.Bool {
			return []string{"true"}, true
		}
		return []string{"false"}, true
	case KindBoolean:
		return []string{"false", "true"}, true
	case KindUndefined:
		return []string{"undefined"}, true
	case KindNull:
		return []string{"null"}, true
	case KindEnumMember:
		return ev.templateSpanChoices(key.Ref)
	case KindUnion:
		choices := make([]string, 0, len(key.List))
		for _, member := range key.List {
			memberChoices, ok := ev.templateSpanChoices(member)
			if !ok {
				return nil, false
			}
			choices = append(choices, memberChoices...)
		}
		return choices, true
	}
	return nil, false
}

// String intrinsics

func (ev *Evaluator) evaluateStringIntrinsic(id TypeID, kind StringIntrinsicKind, arg TypeID) TypeID {
	it := ev.interner
	evaluated := ev.evaluate(arg)
	key := it.Lookup(evaluated)

	switch key.Kind {
	case KindStringLiteral:
		return it.StringLiteral(applyStringIntrinsic(kind, key.Str))

	case KindNever:
		return TypeNever

	case KindUnion:
		members := make([]TypeID, 0, len(key.List))
		for _, member := range key.List {
			memberKey := it.Lookup(member)
			if memberKey.Kind != KindStringLiteral {
				if evaluated == arg {
					return id
				}
				return it.StringIntrinsic(kind, evaluated)
			}
			members = append(members, it.StringLiteral(applyStringIntrinsic(kind, memberKey.Str)))
		}
		return it.Union(members)
	}

	if evaluated == arg {
		return id
	}
	return it.StringIntrinsic(kind, evaluated)
}

// applyStringIntrinsic maps literal text with the full Unicode default
// case mapping. The Capitalize forms map the first character only.
func applyStringIntrinsic(kind StringIntrinsicKind, value string) string {
	switch kind {
	case IntrinsicUppercase:
		return cases.Upper(language.Und).String(value)
	case IntrinsicLowercase:
		return cases.Lower(language.Und).String(value)
	case IntrinsicCapitalize:
		_, size := utf8.DecodeRuneInString(value)
		if size == 0 {
			return value
		}
		return cases.Upper(language.Und).String(value[:size]) + value[size:]
	case IntrinsicUncapitalize:
		_, size := utf8.DecodeRuneInString(value)
		if size == 0 {
			return value
		}
		return cases.Lower(language.Und).String(value[:size]) + value[size:]
	}
	return value
}

// Generic applications

func (ev *Evaluator) evaluateApplication(id TypeID, app *ApplicationShape) TypeID {
	it := ev.interner

	baseKey := it.Lookup(app.Base)
	switch baseKey.Kind {
	case KindLazy, KindTypeQuery:
	default:
		// Applications are built over references; anything else has no
		// declaration to expand and stays deferred.
		return id
	}

	body := ev.env.Resolve(app.Base)
	if body == TypeError {
		return TypeError
	}

	params := ev.env.TypeParams(baseKey.Def)
	if len(params) == 0 {
		// A non-generic target ignores its arguments.
		return ev.evaluate(body)
	}

	args := make([]TypeID, len(app.Args))
	for i, arg := range app.Args {
		args[i] = ev.evaluate(arg)
	}

	subst := ev.substitutionFromArgs(baseKey.Def, params, args)
	return ev.evaluate(ev.newInstantiator(subst).instantiate(body))
}
