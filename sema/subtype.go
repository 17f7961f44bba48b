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
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// The Judge decides the structural relation: may a value of the source
// type stand wherever the target type is expected. The relation is
// strict by default; every deliberate leniency of the surface language
// (any escapes, method bivariance, weak-type tolerance) is an option
// the policy layer switches on, never a built-in.
//
// Meta types reduce through the Evaluator before they relate, so the
// rules below see evaluated forms; a conditional or application that
// still appears here is one the Evaluator had to defer.

// relation is the three-valued internal answer of one pair check.
type relation uint8

const (
	relationFalse relation = iota
	relationTrue
	// relationProvisional marks a pair answered by its own in-progress
	// assumption. It holds for the asking step but is not proven.
	relationProvisional
)

// isTrue treats a provisional answer as holding: a pair reached again
// while still being decided cannot be the sole disproof of itself.
func (r relation) isTrue() bool {
	return r != relationFalse
}

func toRelation(ok bool) relation {
	if ok {
		return relationTrue
	}
	return relationFalse
}

// judgeOptions parameterize the relation. The zero value is the fully
// strict relation; the Lawyer derives lenient settings from a
// CompatProfile.
type judgeOptions struct {
	// anyEscape accepts any as a source everywhere. The strict relation
	// treats any as a top type only.
	anyEscape bool
	// lenientNullish accepts undefined and null as a source everywhere.
	lenientNullish bool
	// bivariantParams compares parameter types in both directions.
	bivariantParams bool
	// bivariantArity drops the required-parameter-count check.
	// Flipped together with bivariantParams during method retries.
	bivariantArity bool
	// methodBivariance keeps bivariant parameter checks for members
	// declared with method syntax even when bivariantParams is off.
	methodBivariance bool
	// exactOptional compares optional member types without the implied
	// undefined arm.
	exactOptional bool
	// weakTypeChecks rejects sources sharing no member with an
	// all-optional object target.
	weakTypeChecks bool
	// voidReturnEscape accepts any source return type when the target
	// returns void: the produced value is discarded, not read.
	voidReturnEscape bool
	// bivariantRestParams short-circuits parameter checks when a rest
	// element type is any or unknown.
	bivariantRestParams bool
}

// typePairMode keys the relation memo: the pair plus the variance mode
// it was decided under, since method retries flip variance mid-query.
type typePairMode struct {
	pair typePair
	mode uint8
}

// Judge evaluates the structural relation against one Interner and
// Environment. Not safe for concurrent use; each query session owns
// its own.
type Judge struct {
	ev       *Evaluator
	interner *Interner
	env      *Environment
	guard    *guard
	opts     judgeOptions

	depth      int
	inProgress map[typePair]struct{}
	memo       map[typePairMode]relation
	// assumptionUses counts provisional answers handed out. A result
	// computed while the counter moved leaned on an assumption and is
	// not proven for reuse.
	assumptionUses int
	// explaining guards the failure explanation walk against recursive
	// pairs. Allocated on first use; explanation is the slow path.
	explaining map[typePair]struct{}
}

func newJudge(ev *Evaluator) *Judge {
	return newJudgeWithOptions(ev, judgeOptions{})
}

func newJudgeWithOptions(ev *Evaluator, opts judgeOptions) *Judge {
	return &Judge{
		ev:         ev,
		interner:   ev.interner,
		env:        ev.env,
		guard:      ev.guard,
		opts:       opts,
		inProgress: make(map[typePair]struct{}),
		memo:       make(map[typePairMode]relation),
	}
}

// isSubtypeOf reports whether source may stand in for target.
func (j *Judge) isSubtypeOf(source, target TypeID) bool {
	return j.check(source, target).isTrue()
}

// identical reports mutual subtyping.
func (j *Judge) identical(a, b TypeID) bool {
	if a == b {
		return true
	}
	return j.check(a, b).isTrue() && j.check(b, a).isTrue()
}

func (j *Judge) mode() uint8 {
	var mode uint8
	if j.opts.bivariantParams {
		mode |= 1
	}
	if j.opts.bivariantArity {
		mode |= 2
	}
	if j.opts.bivariantRestParams {
		mode |= 4
	}
	return mode
}

func (j *Judge) check(source, target TypeID) relation {
	if source == target {
		return relationTrue
	}
	if !source.Valid() || !target.Valid() {
		return relationFalse
	}

	// Tops and bottom.
	if target == TypeAny || target == TypeUnknown {
		return relationTrue
	}
	if source == TypeNever {
		return relationTrue
	}
	if j.opts.anyEscape && source == TypeAny {
		return relationTrue
	}

	// Meta types reduce before they relate.
	es, et := j.ev.evaluate(source), j.ev.evaluate(target)
	if es != source || et != target {
		return j.check(es, et)
	}

	if target == TypeNever {
		return relationFalse
	}
	// The unresolvable sentinel relates to nothing.
	if source == TypeError || target == TypeError {
		return relationFalse
	}

	pair := typePair{source: source, target: target}
	key := typePairMode{pair: pair, mode: j.mode()}
	if cached, ok := j.memo[key]; ok {
		return cached
	}

	if !j.guard.spend() {
		return relationFalse
	}
	if j.depth >= j.guard.budgets.SubtypeDepth {
		j.guard.trip(BudgetSubtypeDepth)
		return relationFalse
	}

	if _, busy := j.inProgress[pair]; busy {
		j.assumptionUses++
		return relationProvisional
	}

	j.inProgress[pair] = struct{}{}
	j.depth++
	uses := j.assumptionUses

	result := j.checkInner(source, target)

	j.depth--
	delete(j.inProgress, pair)

	// Only settled answers are kept: a result that leaned on a
	// coinductive assumption or on an exhausted budget is not proven.
	if result != relationProvisional && j.assumptionUses == uses {
		if _, truncated := j.guard.Truncated(); !truncated {
			j.memo[key] = result
		}
	}
	return result
}

func (j *Judge) checkInner(source, target TypeID) relation {
	it := j.interner
	sk := it.Lookup(source)
	tk := it.Lookup(target)

	if j.opts.lenientNullish && (sk.Kind == KindUndefined || sk.Kind == KindNull) {
		return relationTrue
	}

	if j.opts.weakTypeChecks && j.violatesWeakType(sk, tk) {
		return relationFalse
	}

	// A primitive meeting an object target is measured by its apparent
	// shape, the member surface its values carry.
	if tk.Kind == KindObject && sk.Kind != KindObject {
		if apparent, ok := j.apparentShape(sk); ok {
			return j.check(apparent, target)
		}
	}

	// Conditionals the Evaluator had to defer relate through their
	// branches: whichever way the test resolves, the branch must fit.
	switch {
	case sk.Kind == KindConditional && tk.Kind == KindConditional:
		return j.checkConditionalPair(sk.Cond, tk.Cond)
	case sk.Kind == KindConditional:
		return toRelation(j.check(sk.Cond.True, target).isTrue() &&
			j.check(sk.Cond.False, target).isTrue())
	case tk.Kind == KindConditional:
		return toRelation(j.check(source, tk.Cond.True).isTrue() &&
			j.check(source, tk.Cond.False).isTrue())
	}

	// Literal and intrinsic rules.
	switch sk.Kind {
	case KindUndefined:
		if tk.Kind == KindVoid {
			return relationTrue
		}
	case KindStringLiteral:
		if tk.Kind == KindString {
			return relationTrue
		}
		if tk.Kind == KindTemplateLiteral {
			return toRelation(j.matchTemplateLiteral(sk.Str, tk.Template))
		}
	case KindNumberLiteral:
		if tk.Kind == KindNumber {
			return relationTrue
		}
	case KindBooleanLiteral:
		if tk.Kind == KindBoolean {
			return relationTrue
		}
	case KindBigIntLiteral:
		if tk.Kind == KindBigInt {
			return relationTrue
		}
	case KindUniqueSymbol:
		if tk.Kind == KindSymbol {
			return relationTrue
		}
	case KindTemplateLiteral, KindStringIntrinsic:
		// Every template expansion and every case mapping is a string.
		if tk.Kind == KindString {
			return relationTrue
		}
	}

	// Unions and intersections distribute before any shape rule.
	switch {
	case sk.Kind == KindUnion && tk.Kind == KindIntersection:
		// (A|B) ⊑ (C&D): every union member satisfies every part.
		for _, member := range sk.List {
			for _, want := range tk.List {
				if !j.check(member, want).isTrue() {
					return relationFalse
				}
			}
		}
		return relationTrue

	case sk.Kind == KindUnion:
		for _, member := range sk.List {
			if !j.check(member, target).isTrue() {
				return relationFalse
			}
		}
		return relationTrue

	case tk.Kind == KindUnion:
		// keyof never escapes string|number|symbol.
		if sk.Kind == KindKeyOf && unionCoversKeySpace(tk.List) {
			return relationTrue
		}
		for _, member := range tk.List {
			if j.check(source, member).isTrue() {
				return relationTrue
			}
		}
		return relationFalse

	case sk.Kind == KindIntersection:
		return j.checkIntersectionSource(sk.List, target)

	case tk.Kind == KindIntersection:
		for _, member := range tk.List {
			if !j.check(source, member).isTrue() {
				return relationFalse
			}
		}
		return relationTrue
	}

	// Nominal enum views devolve to their member and value structure
	// here; opacity between them is the Lawyer's business.
	switch {
	case sk.Kind == KindEnum:
		return j.check(j.env.EnumValueUnion(sk.Def), target)
	case tk.Kind == KindEnum:
		return j.check(source, j.env.EnumValueUnion(tk.Def))
	case sk.Kind == KindEnumMember:
		return j.check(sk.Ref, target)
	case tk.Kind == KindEnumMember:
		return j.check(source, tk.Ref)
	}

	if sk.Kind == KindTypeParameter {
		return j.checkTypeParameterSource(sk, target, tk)
	}

	// The object keyword admits every non-primitive.
	if tk.Kind == KindNonPrimitive {
		return toRelation(j.isNonPrimitiveSource(sk))
	}

	// The root callable admits everything callable, without reading
	// its signature structurally.
	if target == TypeFunction {
		return toRelation(j.isCallableSource(source, sk, bitset.New(128)))
	}

	// Element containers.
	switch {
	case sk.Kind == KindArray && tk.Kind == KindArray:
		if sk.Readonly && !tk.Readonly {
			return relationFalse
		}
		return j.check(sk.Ref, tk.Ref)

	case sk.Kind == KindTuple && tk.Kind == KindTuple:
		if sk.Tuple.Readonly && !tk.Tuple.Readonly {
			return relationFalse
		}
		return j.checkTuples(sk.Tuple, tk.Tuple)

	case sk.Kind == KindTuple && tk.Kind == KindArray:
		if sk.Tuple.Readonly && !tk.Readonly {
			return relationFalse
		}
		return j.checkTupleIntoArray(sk.Tuple, tk.Ref)

	case sk.Kind == KindArray && tk.Kind == KindTuple:
		// An array never proves the arity a tuple promises.
		return relationFalse
	}

	if sk.Kind == KindObject && tk.Kind == KindObject {
		return j.checkObjects(sk.Object, tk.Object)
	}

	// Callables.
	switch {
	case sk.Kind == KindFunction && tk.Kind == KindFunction:
		return j.checkFunctions(sk.Function, tk.Function)

	case sk.Kind == KindCallable && tk.Kind == KindCallable:
		return j.checkCallables(sk.Callable, tk.Callable)

	case sk.Kind == KindFunction && tk.Kind == KindCallable:
		// A lone signature must satisfy every target overload.
		for _, want := range tk.Callable.CallSignatures {
			if !j.checkSignaturePair(sk.Function, j.signatureShape(want), true).isTrue() {
				return relationFalse
			}
		}
		return relationTrue

	case sk.Kind == KindCallable && tk.Kind == KindFunction:
		// Some overload must satisfy the lone target signature.
		sigs := sk.Callable.CallSignatures
		if tk.Function.Flags&FunctionFlagConstructor != 0 {
			sigs = sk.Callable.ConstructSignatures
		}
		for _, sig := range sigs {
			if j.checkSignaturePair(j.signatureShape(sig), tk.Function, true).isTrue() {
				return relationTrue
			}
		}
		return relationFalse
	}

	// Applications that survived evaluation have an unexpandable base;
	// they relate only pointwise.
	if sk.Kind == KindApplication && tk.Kind == KindApplication {
		s, t := sk.App, tk.App
		if len(s.Args) != len(t.Args) {
			return relationFalse
		}
		if !j.check(s.Base, t.Base).isTrue() {
			return relationFalse
		}
		for i := range s.Args {
			if !j.check(s.Args[i], t.Args[i]).isTrue() {
				return relationFalse
			}
		}
		return relationTrue
	}

	if sk.Kind == KindIndexAccess && tk.Kind == KindIndexAccess {
		if !j.check(sk.Ref, tk.Ref).isTrue() {
			return relationFalse
		}
		return toRelation(j.check(sk.Aux, tk.Aux).isTrue())
	}

	// keyof reverses: a wider operand yields narrower keys.
	if sk.Kind == KindKeyOf && tk.Kind == KindKeyOf {
		return j.check(tk.Ref, sk.Ref)
	}

	return relationFalse
}

// Weak types

// violatesWeakType rejects a source that shares no member with a weak
// target: an all-optional object that anything would otherwise satisfy.
func (j *Judge) violatesWeakType(sk, tk *TypeKey) bool {
	if tk.Kind != KindObject || !tk.Object.IsWeak() {
		return false
	}
	return j.weakTypeNoOverlap(sk, tk.Object)
}

func (j *Judge) weakTypeNoOverlap(sk *TypeKey, target *ObjectShape) bool {
	switch sk.Kind {
	case KindObject:
		source := sk.Object
		if len(source.Properties) == 0 {
			return false
		}
		for i := range source.Properties {
			if target.Property(source.Properties[i].Name) != nil {
				return false
			}
		}
		return true
	case KindUnion:
		for _, member := range sk.List {
			if j.weakTypeNoOverlap(j.interner.Lookup(member), target) {
				return true
			}
		}
	}
	return false
}

// Apparent shapes

// apparentShape returns the object standing in for a primitive source,
// when one exists.
func (j *Judge) apparentShape(sk *TypeKey) (TypeID, bool) {
	kind := sk.Kind
	switch kind {
	case KindTemplateLiteral, KindStringIntrinsic:
		kind = KindString
	}
	return j.interner.ApparentPrimitiveShape(kind)
}

// Conditionals

func (j *Judge) checkConditionalPair(s, t *ConditionalShape) relation {
	if s.Distributive != t.Distributive {
		return relationFalse
	}
	if !j.identical(s.Check, t.Check) || !j.identical(s.Extends, t.Extends) {
		return relationFalse
	}
	return toRelation(j.check(s.True, t.True).isTrue() &&
		j.check(s.False, t.False).isTrue())
}

// Unions and intersections

// unionCoversKeySpace reports whether the members include string,
// number, and symbol: the whole space keyof ranges over.
func unionCoversKeySpace(members []TypeID) bool {
	var hasString, hasNumber, hasSymbol bool
	for _, member := range members {
		switch member {
		case TypeString:
			hasString = true
		case TypeNumber:
			hasNumber = true
		case TypeSymbol:
			hasSymbol = true
		}
	}
	return hasString && hasNumber && hasSymbol
}

func (j *Judge) checkIntersectionSource(members []TypeID, target TypeID) relation {
	for _, member := range members {
		if j.check(member, target).isTrue() {
			return relationTrue
		}
	}

	// A type parameter member may still succeed once its constraint is
	// narrowed by the other members: T & string where T extends
	// string|undefined lands in string.
	for i, member := range members {
		key := j.interner.Lookup(member)
		if key.Kind != KindTypeParameter || key.Param == nil || !key.Param.Constraint.Valid() {
			continue
		}
		narrowed := make([]TypeID, 0, len(members))
		narrowed = append(narrowed, key.Param.Constraint)
		for k, other := range members {
			if k != i {
				narrowed = append(narrowed, other)
			}
		}
		if j.check(j.interner.Intersection(narrowed), target).isTrue() {
			return relationTrue
		}
	}

	return relationFalse
}

// Type parameters

func (j *Judge) checkTypeParameterSource(sk *TypeKey, target TypeID, tk *TypeKey) relation {
	constraint := TypeNone
	if sk.Param != nil {
		constraint = sk.Param.Constraint
	}

	if tk.Kind == KindTypeParameter {
		// Distinct parameters relate only through bounds: U with
		// U extends T lands in T, directly or transitively. Sharing a
		// bound proves nothing.
		if constraint.Valid() {
			if constraint == target {
				return relationTrue
			}
			return toRelation(j.check(constraint, target).isTrue())
		}
		return relationFalse
	}

	// Against a concrete target the parameter offers only its bound.
	// An unconstrained parameter ranges over unknown and fits nothing.
	if constraint.Valid() {
		return j.check(constraint, target)
	}
	return relationFalse
}

// Keyword targets

// isNonPrimitiveSource decides source ⊑ object.
func (j *Judge) isNonPrimitiveSource(sk *TypeKey) bool {
	switch sk.Kind {
	case KindObject, KindArray, KindTuple, KindFunction, KindCallable,
		KindMapped, KindApplication, KindThis:
		return true
	case KindTypeParameter:
		if sk.Param != nil && sk.Param.Constraint.Valid() {
			return j.check(sk.Param.Constraint, TypeNonPrimitive).isTrue()
		}
	}
	return false
}

// isCallableSource decides source ⊑ Function. Constraint chains may
// cycle, so visited tracks the handles already crossed.
func (j *Judge) isCallableSource(source TypeID, sk *TypeKey, visited *bitset.BitSet) bool {
	if visited.Test(uint(source)) {
		return false
	}
	visited.Set(uint(source))

	switch sk.Kind {
	case KindFunction, KindCallable:
		return true
	case KindUnion:
		for _, member := range sk.List {
			if !j.isCallableSource(member, j.interner.Lookup(member), visited) {
				return false
			}
		}
		return true
	case KindIntersection:
		for _, member := range sk.List {
			if j.isCallableSource(member, j.interner.Lookup(member), visited) {
				return true
			}
		}
	case KindTypeParameter:
		if sk.Param != nil && sk.Param.Constraint.Valid() {
			constraint := sk.Param.Constraint
			return j.isCallableSource(constraint, j.interner.Lookup(constraint), visited)
		}
	case KindLazy, KindTypeQuery:
		resolved := j.ev.evaluate(source)
		if resolved != source {
			return j.isCallableSource(resolved, j.interner.Lookup(resolved), visited)
		}
	}
	return false
}

// Tuples

type tupleRestExpansion struct {
	fixed    []TupleElement
	variadic TypeID
}

// expandTupleRest flattens the operand of a rest element: an array
// contributes a variadic element type, a tuple contributes its fixed
// prefix and recurses into its own rest, anything else stands as the
// variadic type itself.
func (j *Judge) expandTupleRest(id TypeID) tupleRestExpansion {
	key := j.interner.Lookup(id)
	switch key.Kind {
	case KindArray:
		return tupleRestExpansion{variadic: key.Ref}
	case KindTuple:
		var fixed []TupleElement
		for i := range key.Tuple.Elements {
			el := key.Tuple.Elements[i]
			if el.Rest {
				inner := j.expandTupleRest(el.Type)
				fixed = append(fixed, inner.fixed...)
				return tupleRestExpansion{fixed: fixed, variadic: inner.variadic}
			}
			fixed = append(fixed, el)
		}
		return tupleRestExpansion{fixed: fixed}
	}
	return tupleRestExpansion{variadic: id}
}

func countRequiredElements(elements []TupleElement) int {
	count := 0
	for i := range elements {
		if !elements[i].Optional && !elements[i].Rest {
			count++
		}
	}
	return count
}

func (j *Judge) checkTuples(s, t *TupleShape) relation {
	if countRequiredElements(s.Elements) < countRequiredElements(t.Elements) {
		return relationFalse
	}

	for i := range t.Elements {
		te := &t.Elements[i]
		if te.Rest {
			return j.checkTupleRestTail(s.Elements, i, t.Elements)
		}

		if i < len(s.Elements) {
			se := &s.Elements[i]
			if se.Rest {
				// A source rest cannot pin a fixed target slot.
				return relationFalse
			}
			if !j.check(se.Type, te.Type).isTrue() {
				return relationFalse
			}
		} else if !te.Optional {
			return relationFalse
		}
	}

	// Closed target: the source may not carry extras, fixed or rest.
	if len(s.Elements) > len(t.Elements) {
		return relationFalse
	}
	for i := range s.Elements {
		if s.Elements[i].Rest {
			return relationFalse
		}
	}
	return relationTrue
}

// checkTupleRestTail matches a target rest element and the fixed
// elements after it against the source elements from restIndex on.
func (j *Judge) checkTupleRestTail(source []TupleElement, restIndex int, target []TupleElement) relation {
	expansion := j.expandTupleRest(target[restIndex].Type)

	// Fixed target elements after the rest bind to the source suffix,
	// matched backward. Optional tail slots may give up on mismatch.
	tail := target[restIndex+1:]
	sourceEnd := len(source)
	for k := len(tail) - 1; k >= 0; k-- {
		tailElem := &tail[k]
		if sourceEnd <= restIndex {
			if !tailElem.Optional {
				return relationFalse
			}
			break
		}
		se := &source[sourceEnd-1]
		if se.Rest {
			if !tailElem.Optional {
				return relationFalse
			}
			break
		}
		ok := j.check(se.Type, tailElem.Type).isTrue()
		if !ok {
			if tailElem.Optional {
				break
			}
			return relationFalse
		}
		sourceEnd--
	}

	// The expansion's fixed prefix consumes source slots in order.
	next := restIndex
	for f := range expansion.fixed {
		fixed := &expansion.fixed[f]
		if next < sourceEnd {
			se := &source[next]
			if se.Rest {
				return relationFalse
			}
			if !j.check(se.Type, fixed.Type).isTrue() {
				return relationFalse
			}
			next++
		} else if !fixed.Optional {
			return relationFalse
		}
	}

	// The variadic part absorbs whatever source remains.
	if expansion.variadic.Valid() {
		variadicArray := j.interner.Array(expansion.variadic)
		for ; next < sourceEnd; next++ {
			se := &source[next]
			if se.Rest {
				if !j.check(se.Type, variadicArray).isTrue() {
					return relationFalse
				}
			} else if !j.check(se.Type, expansion.variadic).isTrue() {
				return relationFalse
			}
		}
		return relationTrue
	}

	if next < sourceEnd {
		return relationFalse
	}
	return relationTrue
}

func (j *Judge) checkTupleIntoArray(s *TupleShape, element TypeID) relation {
	for i := range s.Elements {
		el := &s.Elements[i]
		if el.Rest {
			expansion := j.expandTupleRest(el.Type)
			for f := range expansion.fixed {
				if !j.check(expansion.fixed[f].Type, element).isTrue() {
					return relationFalse
				}
			}
			if expansion.variadic.Valid() && !j.check(expansion.variadic, element).isTrue() {
				return relationFalse
			}
		} else if !j.check(el.Type, element).isTrue() {
			return relationFalse
		}
	}
	return relationTrue
}

// Objects

func (j *Judge) checkObjects(s, t *ObjectShape) relation {
	sourceIndexed := s.StringIndex != nil || s.NumberIndex != nil
	targetIndexed := t.StringIndex != nil || t.NumberIndex != nil

	// A source answering reads through index signatures keeps readonly
	// members usable against a mutable plain target.
	relaxReadonly := sourceIndexed && !targetIndexed

	for i := range t.Properties {
		tp := &t.Properties[i]
		sp := s.Property(tp.Name)
		if sp == nil {
			if sourceIndexed && !targetIndexed {
				if !j.missingPropertyFromIndex(s, tp).isTrue() {
					return relationFalse
				}
				continue
			}
			if !tp.Optional {
				return relationFalse
			}
			continue
		}
		if !j.checkProperty(sp, tp, relaxReadonly).isTrue() {
			return relationFalse
		}
	}

	if !j.checkStringIndex(s, t).isTrue() {
		return relationFalse
	}
	if !j.checkNumberIndex(s, t).isTrue() {
		return relationFalse
	}
	if !j.checkPropertiesAgainstIndexes(s.Properties, t).isTrue() {
		return relationFalse
	}

	// A source carrying both signatures must read numbers consistently:
	// numeric access also answers through the string signature.
	if targetIndexed && s.StringIndex != nil && s.NumberIndex != nil {
		if !j.check(s.NumberIndex.Value, s.StringIndex.Value).isTrue() {
			return relationFalse
		}
	}

	return relationTrue
}

func (j *Judge) checkProperty(sp, tp *PropertyInfo, relaxReadonly bool) relation {
	// Non-public members are nominal: both sides must name the same
	// originating declaration.
	if sp.Visibility != VisibilityPublic || tp.Visibility != VisibilityPublic {
		if sp.Visibility != tp.Visibility || sp.Parent != tp.Parent {
			return relationFalse
		}
	}

	if sp.Optional && !tp.Optional {
		return relationFalse
	}
	if !relaxReadonly && sp.Readonly && !tp.Readonly {
		return relationFalse
	}

	allowBivariant := sp.Method || tp.Method

	// Reads are covariant.
	if !j.checkWithMethodVariance(j.readType(sp), j.readType(tp), allowBivariant) {
		return relationFalse
	}

	// Split accessors write through a separate contravariant channel.
	// A readonly target never writes, so its write side is moot.
	splitAccessor := sp.WriteType.Valid() || tp.WriteType.Valid()
	if !tp.Readonly && splitAccessor {
		if !j.checkWithMethodVariance(j.writeType(tp), j.writeType(sp), allowBivariant) {
			return relationFalse
		}
	}

	return relationTrue
}

// readType is the member type observed by a read: optional members may
// also produce undefined unless exact optional matching is on.
func (j *Judge) readType(p *PropertyInfo) TypeID {
	if p.Optional && !j.opts.exactOptional {
		return j.interner.Union2(p.Type, TypeUndefined)
	}
	return p.Type
}

func (j *Judge) writeType(p *PropertyInfo) TypeID {
	write := p.EffectiveWriteType()
	if p.Optional && !j.opts.exactOptional {
		return j.interner.Union2(write, TypeUndefined)
	}
	return write
}

// checkWithMethodVariance runs one check, relaxing parameter variance
// when a method member grants it.
func (j *Judge) checkWithMethodVariance(source, target TypeID, allowBivariant bool) bool {
	if !allowBivariant || !j.opts.methodBivariance {
		return j.check(source, target).isTrue()
	}
	prevParams := j.opts.bivariantParams
	prevArity := j.opts.bivariantArity
	j.opts.bivariantParams = true
	j.opts.bivariantArity = true
	ok := j.check(source, target).isTrue()
	j.opts.bivariantParams = prevParams
	j.opts.bivariantArity = prevArity
	return ok
}

// missingPropertyFromIndex asks the source's index signatures to stand
// in for a target property the source does not name.
func (j *Judge) missingPropertyFromIndex(s *ObjectShape, tp *PropertyInfo) relation {
	checked := false
	want := j.readType(tp)

	if isNumericPropertyName(tp.Name) && s.NumberIndex != nil {
		checked = true
		if s.NumberIndex.Readonly && !tp.Readonly {
			return relationFalse
		}
		if !j.checkWithMethodVariance(s.NumberIndex.Value, want, tp.Method) {
			return relationFalse
		}
	}

	if s.StringIndex != nil {
		checked = true
		if s.StringIndex.Readonly && !tp.Readonly {
			return relationFalse
		}
		if !j.checkWithMethodVariance(s.StringIndex.Value, want, tp.Method) {
			return relationFalse
		}
	}

	return toRelation(checked || tp.Optional)
}

func (j *Judge) checkStringIndex(s, t *ObjectShape) relation {
	if t.StringIndex == nil {
		return relationTrue
	}

	if s.StringIndex != nil {
		if s.StringIndex.Readonly && !t.StringIndex.Readonly {
			return relationFalse
		}
		return toRelation(j.check(s.StringIndex.Value, t.StringIndex.Value).isTrue())
	}

	// No source signature: every named source member must satisfy the
	// target's signature instead.
	for i := range s.Properties {
		sp := &s.Properties[i]
		if !t.StringIndex.Readonly && sp.Readonly {
			return relationFalse
		}
		if !j.check(j.readType(sp), t.StringIndex.Value).isTrue() {
			return relationFalse
		}
	}
	return relationTrue
}

func (j *Judge) checkNumberIndex(s, t *ObjectShape) relation {
	if t.NumberIndex == nil {
		return relationTrue
	}

	if s.NumberIndex != nil {
		if s.NumberIndex.Readonly && !t.NumberIndex.Readonly {
			return relationFalse
		}
		return toRelation(j.check(s.NumberIndex.Value, t.NumberIndex.Value).isTrue())
	}

	// Numeric members are checked by checkPropertiesAgainstIndexes.
	return relationTrue
}

// checkPropertiesAgainstIndexes verifies each named source member
// against the target's index signatures, which promise what any
// matching access yields.
func (j *Judge) checkPropertiesAgainstIndexes(props []PropertyInfo, t *ObjectShape) relation {
	if t.StringIndex == nil && t.NumberIndex == nil {
		return relationTrue
	}

	for i := range props {
		sp := &props[i]
		read := j.readType(sp)

		if t.NumberIndex != nil && isNumericPropertyName(sp.Name) {
			if !j.checkWithMethodVariance(read, t.NumberIndex.Value, sp.Method) {
				return relationFalse
			}
			if !t.NumberIndex.Readonly && sp.Readonly {
				return relationFalse
			}
		}

		if t.StringIndex != nil {
			if !t.StringIndex.Readonly && sp.Readonly {
				return relationFalse
			}
			if !j.checkWithMethodVariance(read, t.StringIndex.Value, sp.Method) {
				return relationFalse
			}
		}
	}
	return relationTrue
}

// Functions and callables

func (j *Judge) checkFunctions(s, t *FunctionShape) relation {
	if s.Flags&FunctionFlagConstructor != t.Flags&FunctionFlagConstructor {
		return relationFalse
	}
	return j.checkSignaturePair(s, t, true)
}

func (j *Judge) checkCallables(s, t *CallableShape) relation {
	for _, want := range t.CallSignatures {
		if !j.someSignatureSatisfies(s.CallSignatures, want) {
			return relationFalse
		}
	}
	for _, want := range t.ConstructSignatures {
		if !j.someSignatureSatisfies(s.ConstructSignatures, want) {
			return relationFalse
		}
	}

	// The hybrid's member surface compares as an object. Non-public
	// statics are nominal noise and stay out of it.
	return j.checkObjects(callableMembersShape(s), callableMembersShape(t))
}

func (j *Judge) someSignatureSatisfies(sigs []TypeID, want TypeID) bool {
	target := j.signatureShape(want)
	for _, sig := range sigs {
		if j.checkSignaturePair(j.signatureShape(sig), target, false).isTrue() {
			return true
		}
	}
	return false
}

// signatureShape resolves a callable's signature handle.
func (j *Judge) signatureShape(id TypeID) *FunctionShape {
	key := j.interner.Lookup(id)
	if key.Kind != KindFunction {
		return nil
	}
	return key.Function
}

// callableMembersShape views a callable's property surface as an
// object shape.
func callableMembersShape(s *CallableShape) *ObjectShape {
	props := make([]PropertyInfo, 0, len(s.Properties))
	for i := range s.Properties {
		if s.Properties[i].Visibility == VisibilityPublic {
			props = append(props, s.Properties[i])
		}
	}
	return &ObjectShape{
		Properties:  props,
		StringIndex: s.StringIndex,
		NumberIndex: s.NumberIndex,
	}
}

// checkSignaturePair relates two signatures: covariant return,
// contravariant parameters, required source slots bounded by the
// target's parameter capacity.
func (j *Judge) checkSignaturePair(s, t *FunctionShape, compareThis bool) relation {
	if s == nil || t == nil {
		return relationFalse
	}

	if !j.checkReturn(s.Return, t.Return).isTrue() {
		return relationFalse
	}

	if compareThis && !j.thisParametersCompatible(s.This, t.This) {
		return relationFalse
	}

	isMethod := s.IsMethod() || t.IsMethod()

	targetHasRest := t.HasRest()
	sourceHasRest := s.HasRest()

	restElem := TypeNone
	if targetHasRest {
		restElem = j.arrayElementOf(t.Params[len(t.Params)-1].Type)
	}
	restIsTop := j.opts.bivariantRestParams && (restElem == TypeAny || restElem == TypeUnknown)

	// Every required source slot needs a target slot to bind to. Optional
	// target slots count as slots; a target rest covers any overflow.
	sourceRequired := countRequiredParams(s.Params)

	if !j.opts.bivariantArity && !restIsTop && !targetHasRest &&
		sourceRequired > len(t.Params) {
		return relationFalse
	}

	targetFixed := len(t.Params)
	if targetHasRest {
		targetFixed--
	}
	sourceFixed := len(s.Params)
	if sourceHasRest {
		sourceFixed--
	}

	compare := min(sourceFixed, targetFixed)
	for i := 0; i < compare; i++ {
		sp := &s.Params[i]
		tp := &t.Params[i]

		// An optional source slot fills a required target slot only
		// when the target slot accepts undefined.
		if sp.Optional && !tp.Optional {
			if !j.check(TypeUndefined, tp.Type).isTrue() {
				return relationFalse
			}
		}
		if !j.parametersCompatible(sp.Type, tp.Type, isMethod) {
			return relationFalse
		}
	}

	if targetHasRest {
		if restIsTop {
			return relationTrue
		}
		for i := targetFixed; i < sourceFixed; i++ {
			if !j.parametersCompatible(s.Params[i].Type, restElem, isMethod) {
				return relationFalse
			}
		}
		if sourceHasRest {
			sourceRest := j.arrayElementOf(s.Params[len(s.Params)-1].Type)
			if !j.parametersCompatible(sourceRest, restElem, isMethod) {
				return relationFalse
			}
		}
	}

	if sourceHasRest {
		sourceRest := j.arrayElementOf(s.Params[len(s.Params)-1].Type)
		sourceRestIsTop := j.opts.bivariantRestParams &&
			(sourceRest == TypeAny || sourceRest == TypeUnknown)
		if !sourceRestIsTop {
			// The source rest covers the target's remaining fixed slots.
			for i := sourceFixed; i < targetFixed; i++ {
				if !j.parametersCompatible(sourceRest, t.Params[i].Type, isMethod) {
					return relationFalse
				}
			}
		}
	}

	return relationTrue
}

func (j *Judge) checkReturn(source, target TypeID) relation {
	// A void-returning target discards the produced value.
	if j.opts.voidReturnEscape && target == TypeVoid {
		return relationTrue
	}
	return j.check(source, target)
}

// thisParametersCompatible compares declared this parameters. An
// undeclared side defaults to unknown, never any.
func (j *Judge) thisParametersCompatible(source, target TypeID) bool {
	if !source.Valid() && !target.Valid() {
		return true
	}
	if !source.Valid() {
		source = TypeUnknown
	}
	if !target.Valid() {
		target = TypeUnknown
	}
	if !j.opts.bivariantParams {
		return j.check(target, source).isTrue()
	}
	return j.check(source, target).isTrue() || j.check(target, source).isTrue()
}

// parametersCompatible compares one parameter position: contravariant
// under strict variance, either direction when bivariance is granted.
func (j *Judge) parametersCompatible(source, target TypeID, isMethod bool) bool {
	bivariant := j.opts.bivariantParams || (isMethod && j.opts.methodBivariance)

	if !bivariant {
		// A this-typed parameter narrows along the declaration chain,
		// so it compares covariantly.
		if j.containsThisType(source) || j.containsThisType(target) {
			return j.check(source, target).isTrue()
		}
		return j.check(target, source).isTrue()
	}

	if j.check(target, source).isTrue() {
		return true
	}
	return j.check(source, target).isTrue()
}

func countRequiredParams(params []ParamInfo) int {
	count := 0
	for i := range params {
		if !params[i].Optional && !params[i].Rest {
			count++
		}
	}
	return count
}

// arrayElementOf unwraps a rest parameter's array annotation to its
// element. Any stays any; a non-array annotation stands for itself.
func (j *Judge) arrayElementOf(id TypeID) TypeID {
	if id == TypeAny {
		return TypeAny
	}
	if key := j.interner.Lookup(id); key.Kind == KindArray {
		return key.Ref
	}
	return id
}

// containsThisType reports whether a polymorphic this occurs anywhere
// in the type.
func (j *Judge) containsThisType(id TypeID) bool {
	return j.containsThis(id, bitset.New(128))
}

func (j *Judge) containsThis(id TypeID, visited *bitset.BitSet) bool {
	if !id.Valid() {
		return false
	}
	if visited.Test(uint(id)) {
		return false
	}
	visited.Set(uint(id))

	key := j.interner.Lookup(id)
	switch key.Kind {
	case KindThis:
		return true
	case KindArray, KindKeyOf, KindStringIntrinsic:
		return j.containsThis(key.Ref, visited)
	case KindIndexAccess:
		return j.containsThis(key.Ref, visited) || j.containsThis(key.Aux, visited)
	case KindTuple:
		for i := range key.Tuple.Elements {
			if j.containsThis(key.Tuple.Elements[i].Type, visited) {
				return true
			}
		}
	case KindUnion, KindIntersection:
		for _, member := range key.List {
			if j.containsThis(member, visited) {
				return true
			}
		}
	case KindObject:
		shape := key.Object
		for i := range shape.Properties {
			p := &shape.Properties[i]
			if j.containsThis(p.Type, visited) || j.containsThis(p.WriteType, visited) {
				return true
			}
		}
		if shape.StringIndex != nil && j.containsThis(shape.StringIndex.Value, visited) {
			return true
		}
		if shape.NumberIndex != nil && j.containsThis(shape.NumberIndex.Value, visited) {
			return true
		}
	case KindFunction:
		fn := key.Function
		for i := range fn.Params {
			if j.containsThis(fn.Params[i].Type, visited) {
				return true
			}
		}
		if j.containsThis(fn.Return, visited) {
			return true
		}
		return j.containsThis(fn.This, visited)
	}
	return false
}

// Template literal matching

// matchTemplateLiteral reports whether a string literal inhabits a
// template literal type.
func (j *Judge) matchTemplateLiteral(value string, spans []TemplateSpan) bool {
	return j.matchTemplateSuffix(value, spans)
}

func (j *Judge) matchTemplateSuffix(value string, spans []TemplateSpan) bool {
	if len(spans) == 0 {
		return value == ""
	}

	span := &spans[0]
	rest := spans[1:]

	if span.Kind == SpanText {
		if !strings.HasPrefix(value, span.Text) {
			return false
		}
		return j.matchTemplateSuffix(value[len(span.Text):], rest)
	}

	return j.matchTypeSpan(value, span.Type, rest)
}

// matchTypeSpan tries every admissible prefix for one interpolated span
// and backtracks through the remaining spans.
func (j *Judge) matchTypeSpan(value string, spanType TypeID, rest []TemplateSpan) bool {
	if !j.guard.spend() {
		return false
	}

	key := j.interner.Lookup(spanType)
	switch key.Kind {
	case KindString:
		return j.matchStringWildcard(value, rest)

	case KindNumber:
		// Longest admissible numeric prefix first.
		for length := numericPrefixLength(value); length > 0; length-- {
			if !isTemplateNumber(value[:length]) {
				continue
			}
			if j.matchTemplateSuffix(value[length:], rest) {
				return true
			}
		}
		return false

	case KindBigInt:
		for length := integerPrefixLength(value); length > 0; length-- {
			if !isTemplateBigInt(value[:length]) {
				continue
			}
			if j.matchTemplateSuffix(value[length:], rest) {
				return true
			}
		}
		return false

	case KindBoolean:
		for _, text := range [...]string{"true", "false"} {
			if strings.HasPrefix(value, text) && j.matchTemplateSuffix(value[len(text):], rest) {
				return true
			}
		}
		return false

	case KindStringLiteral:
		if !strings.HasPrefix(value, key.Str) {
			return false
		}
		return j.matchTemplateSuffix(value[len(key.Str):], rest)

	case KindNumberLiteral:
		text := NumberLiteralText(key.Num)
		if !strings.HasPrefix(value, text) {
			return false
		}
		return j.matchTemplateSuffix(value[len(text):], rest)

	case KindBooleanLiteral:
		text := "false"
		if key.Bool {
			text = "true"
		}
		if !strings.HasPrefix(value, text) {
			return false
		}
		return j.matchTemplateSuffix(value[len(text):], rest)

	case KindBigIntLiteral:
		// Interpolated bigints print without the n suffix.
		if !strings.HasPrefix(value, key.Str) {
			return false
		}
		return j.matchTemplateSuffix(value[len(key.Str):], rest)

	case KindEnumMember:
		return j.matchTypeSpan(value, key.Ref, rest)

	case KindUnion:
		for _, member := range key.List {
			if j.matchTypeSpan(value, member, rest) {
				return true
			}
		}
		return false

	case KindTemplateLiteral:
		combined := make([]TemplateSpan, 0, len(key.Template)+len(rest))
		combined = append(combined, key.Template...)
		combined = append(combined, rest...)
		return j.matchTemplateSuffix(value, combined)
	}

	return false
}

// matchStringWildcard lets a string span consume any prefix. A
// following text span anchors the search; otherwise every split point
// is tried.
func (j *Judge) matchStringWildcard(value string, rest []TemplateSpan) bool {
	if len(rest) == 0 {
		return true
	}

	if next := &rest[0]; next.Kind == SpanText && next.Text != "" {
		offset := 0
		for {
			i := strings.Index(value[offset:], next.Text)
			if i < 0 {
				return false
			}
			at := offset + i
			if j.matchTemplateSuffix(value[at:], rest) {
				return true
			}
			offset = at + 1
		}
	}

	for cut := 0; cut <= len(value); cut++ {
		if j.matchTemplateSuffix(value[cut:], rest) {
			return true
		}
	}
	return false
}

// numericPrefixLength scans the longest prefix shaped like a number
// literal: optional sign, Infinity, NaN, or digits with at most one
// dot and one exponent.
func numericPrefixLength(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		return i + len("Infinity")
	}
	if strings.HasPrefix(s[i:], "NaN") {
		return i + len("NaN")
	}

	digits := 0
	dot := false
	exp := false
	for i < len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
			i++
		case c == '.' && !dot && !exp:
			dot = true
			i++
		case (c == 'e' || c == 'E') && digits > 0 && !exp:
			// An exponent counts only with digits after its sign.
			k := i + 1
			if k < len(s) && (s[k] == '+' || s[k] == '-') {
				k++
			}
			if k < len(s) && s[k] >= '0' && s[k] <= '9' {
				exp = true
				i = k
			} else {
				return i
			}
		default:
			return i
		}
	}
	return i
}

// isTemplateNumber reports whether text is the canonical printed form
// of some number, the only strings a number placeholder produces.
func isTemplateNumber(text string) bool {
	switch text {
	case "Infinity", "-Infinity", "NaN":
		return true
	case "":
		return false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return false
	}
	return NumberLiteralText(value) == text
}

func integerPrefixLength(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0
	}
	return i
}

// isTemplateBigInt reports whether text is the canonical printed form
// of some bigint: an optional minus and digits without leading zeros.
func isTemplateBigInt(text string) bool {
	if text == "" {
		return false
	}
	negative := text[0] == '-'
	if negative {
		text = text[1:]
	}
	if text == "" || (negative && text == "0") {
		return false
	}
	if len(text) > 1 && text[0] == '0' {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
