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
)

// Failure explanation is the slow path of the relation: it runs only
// after check answered false, re-walks the same rules, and reports the
// first one that rejected. Every step recomputes through the memoized
// check, so the walk stays cheap relative to the failed query.

// explainFailure explains why source does not fit target. It returns
// nil when it does fit, so callers may use it directly as a verdict.
func (j *Judge) explainFailure(source, target TypeID) *FailureReason {
	if j.check(source, target).isTrue() {
		return nil
	}
	if kind, truncated := j.guard.Truncated(); truncated {
		return &FailureReason{
			Kind:   FailureBudgetExceeded,
			Source: source,
			Target: target,
			Budget: kind,
		}
	}
	return j.explain(source, target)
}

// explainWithMethodVariance mirrors checkWithMethodVariance for the
// explanation walk.
func (j *Judge) explainWithMethodVariance(source, target TypeID, allowBivariant bool) *FailureReason {
	if !allowBivariant || !j.opts.methodBivariance {
		return j.explainFailure(source, target)
	}
	prevParams := j.opts.bivariantParams
	prevArity := j.opts.bivariantArity
	j.opts.bivariantParams = true
	j.opts.bivariantArity = true
	reason := j.explainFailure(source, target)
	j.opts.bivariantParams = prevParams
	j.opts.bivariantArity = prevArity
	return reason
}

// explain walks a pair known to fail and attributes the rejection.
func (j *Judge) explain(source, target TypeID) *FailureReason {
	generic := &FailureReason{
		Kind:   FailureNotRelated,
		Source: source,
		Target: target,
	}

	if !source.Valid() || !target.Valid() {
		return generic
	}

	// Recursive pairs fail through some other member of the cycle; cut
	// here and let that member carry the explanation.
	pair := typePair{source: source, target: target}
	if _, busy := j.explaining[pair]; busy {
		return generic
	}
	if j.explaining == nil {
		j.explaining = make(map[typePair]struct{})
	}
	j.explaining[pair] = struct{}{}
	defer delete(j.explaining, pair)

	if !j.guard.spend() {
		return &FailureReason{
			Kind:   FailureBudgetExceeded,
			Source: source,
			Target: target,
			Budget: BudgetOperations,
		}
	}

	def := referencedDef(j.interner, source)
	if !def.Valid() {
		def = referencedDef(j.interner, target)
	}
	es, et := j.ev.evaluate(source), j.ev.evaluate(target)
	if es == TypeError || et == TypeError {
		return &FailureReason{
			Kind:   FailureUnresolvedReference,
			Source: source,
			Target: target,
			Def:    def,
		}
	}
	source, target = es, et

	it := j.interner
	sk := it.Lookup(source)
	tk := it.Lookup(target)

	if j.opts.weakTypeChecks && j.violatesWeakType(sk, tk) {
		return &FailureReason{
			Kind:   FailureWeakTypeNoOverlap,
			Source: source,
			Target: target,
		}
	}

	if tk.Kind == KindObject && sk.Kind != KindObject {
		if apparent, ok := j.apparentShape(sk); ok {
			if key := it.Lookup(apparent); key.Kind == KindObject {
				if reason := j.explainObjects(key.Object, tk.Object, source, target); reason != nil {
					return reason
				}
			}
		}
	}

	// A conditional still present here is one the Evaluator could not
	// resolve; branch-wise proof failed, so say that.
	if sk.Kind == KindConditional || tk.Kind == KindConditional {
		return &FailureReason{
			Kind:   FailureConditionalUnresolved,
			Source: source,
			Target: target,
		}
	}

	switch {
	case sk.Kind == KindUnion:
		for _, member := range sk.List {
			if !j.check(member, target).isTrue() {
				generic.Cause = j.explain(member, target)
				return generic
			}
		}
		return generic

	case tk.Kind == KindUnion:
		// No member accepted; there is no single decisive cause.
		return generic

	case sk.Kind == KindIntersection:
		return generic

	case tk.Kind == KindIntersection:
		for _, member := range tk.List {
			if !j.check(source, member).isTrue() {
				generic.Cause = j.explain(source, member)
				return generic
			}
		}
		return generic
	}

	switch {
	case sk.Kind == KindEnum:
		if reason := j.explainFailure(j.env.EnumValueUnion(sk.Def), target); reason != nil {
			return reason
		}
		return generic
	case tk.Kind == KindEnum:
		if reason := j.explainFailure(source, j.env.EnumValueUnion(tk.Def)); reason != nil {
			return reason
		}
		return generic
	case sk.Kind == KindEnumMember:
		if reason := j.explainFailure(sk.Ref, target); reason != nil {
			return reason
		}
		return generic
	case tk.Kind == KindEnumMember:
		if reason := j.explainFailure(source, tk.Ref); reason != nil {
			return reason
		}
		return generic
	}

	if sk.Kind == KindTypeParameter {
		if sk.Param != nil && sk.Param.Constraint.Valid() {
			generic.Cause = j.explainFailure(sk.Param.Constraint, target)
		}
		return generic
	}

	switch {
	case sk.Kind == KindArray && tk.Kind == KindArray:
		if !j.check(sk.Ref, tk.Ref).isTrue() {
			generic.Cause = j.explain(sk.Ref, tk.Ref)
		}
		return generic

	case sk.Kind == KindTuple && tk.Kind == KindTuple:
		if reason := j.explainTuples(sk.Tuple, tk.Tuple, source, target); reason != nil {
			return reason
		}
		return generic

	case sk.Kind == KindTuple && tk.Kind == KindArray:
		for i := range sk.Tuple.Elements {
			el := &sk.Tuple.Elements[i]
			if el.Rest {
				continue
			}
			if !j.check(el.Type, tk.Ref).isTrue() {
				return &FailureReason{
					Kind:   FailurePropertyTypeMismatch,
					Name:   strconv.Itoa(i),
					Source: el.Type,
					Target: tk.Ref,
					Cause:  j.explain(el.Type, tk.Ref),
				}
			}
		}
		return generic
	}

	if sk.Kind == KindObject && tk.Kind == KindObject {
		if reason := j.explainObjects(sk.Object, tk.Object, source, target); reason != nil {
			return reason
		}
		return generic
	}

	switch {
	case sk.Kind == KindFunction && tk.Kind == KindFunction:
		if sk.Function.Flags&FunctionFlagConstructor != tk.Function.Flags&FunctionFlagConstructor {
			return generic
		}
		if reason := j.explainSignaturePair(sk.Function, tk.Function, true); reason != nil {
			return reason
		}
		return generic

	case sk.Kind == KindCallable && tk.Kind == KindCallable:
		if reason := j.explainCallables(sk.Callable, tk.Callable, source, target); reason != nil {
			return reason
		}
		return generic

	case sk.Kind == KindFunction && tk.Kind == KindCallable:
		for _, want := range tk.Callable.CallSignatures {
			shape := j.signatureShape(want)
			if !j.checkSignaturePair(sk.Function, shape, true).isTrue() {
				if reason := j.explainSignaturePair(sk.Function, shape, true); reason != nil {
					return reason
				}
				return generic
			}
		}
		return generic

	case sk.Kind == KindCallable && tk.Kind == KindFunction:
		sigs := sk.Callable.CallSignatures
		if tk.Function.Flags&FunctionFlagConstructor != 0 {
			sigs = sk.Callable.ConstructSignatures
		}
		// With a single overload the failure is attributable.
		if len(sigs) == 1 {
			if reason := j.explainSignaturePair(j.signatureShape(sigs[0]), tk.Function, true); reason != nil {
				return reason
			}
		}
		return generic
	}

	if sk.Kind == KindIndexAccess && tk.Kind == KindIndexAccess {
		if !j.check(sk.Ref, tk.Ref).isTrue() {
			generic.Cause = j.explain(sk.Ref, tk.Ref)
		} else if !j.check(sk.Aux, tk.Aux).isTrue() {
			generic.Cause = j.explain(sk.Aux, tk.Aux)
		}
		return generic
	}

	if sk.Kind == KindKeyOf && tk.Kind == KindKeyOf {
		generic.Cause = j.explainFailure(tk.Ref, sk.Ref)
		return generic
	}

	return generic
}

// referencedDef returns the declaration a lazy reference names, for
// attributing unresolved-reference failures.
func referencedDef(it *Interner, id TypeID) DefID {
	if !id.Valid() {
		return InvalidDefID
	}
	key := it.Lookup(id)
	if key.Kind == KindLazy || key.Kind == KindTypeQuery {
		return key.Def
	}
	return InvalidDefID
}

func propertyNames(props []PropertyInfo) []string {
	names := make([]string, len(props))
	for i := range props {
		names[i] = props[i].Name
	}
	return names
}

func (j *Judge) explainObjects(s, t *ObjectShape, source, target TypeID) *FailureReason {
	sourceIndexed := s.StringIndex != nil || s.NumberIndex != nil
	targetIndexed := t.StringIndex != nil || t.NumberIndex != nil
	relaxReadonly := sourceIndexed && !targetIndexed

	for i := range t.Properties {
		tp := &t.Properties[i]
		sp := s.Property(tp.Name)
		if sp == nil {
			if sourceIndexed && !targetIndexed {
				if reason := j.explainMissingFromIndex(s, tp); reason != nil {
					return reason
				}
				continue
			}
			if !tp.Optional {
				return &FailureReason{
					Kind:        FailurePropertyMissing,
					Source:      source,
					Target:      target,
					Name:        tp.Name,
					Suggestions: propertySuggestions(tp.Name, propertyNames(s.Properties)),
				}
			}
			continue
		}
		if reason := j.explainProperty(sp, tp, relaxReadonly); reason != nil {
			return reason
		}
	}

	if t.StringIndex != nil {
		if s.StringIndex != nil {
			if s.StringIndex.Readonly && !t.StringIndex.Readonly {
				return &FailureReason{
					Kind:   FailureNotRelated,
					Source: source,
					Target: target,
				}
			}
			if !j.check(s.StringIndex.Value, t.StringIndex.Value).isTrue() {
				return &FailureReason{
					Kind:      FailureIndexSignatureMissing,
					Source:    s.StringIndex.Value,
					Target:    t.StringIndex.Value,
					IndexKind: IndexKindString,
					Cause:     j.explain(s.StringIndex.Value, t.StringIndex.Value),
				}
			}
		} else {
			for i := range s.Properties {
				sp := &s.Properties[i]
				if !t.StringIndex.Readonly && sp.Readonly {
					return &FailureReason{
						Kind:   FailureReadonlyViolation,
						Source: source,
						Target: target,
						Name:   sp.Name,
					}
				}
				read := j.readType(sp)
				if !j.check(read, t.StringIndex.Value).isTrue() {
					return &FailureReason{
						Kind:      FailureIndexSignatureMissing,
						Source:    read,
						Target:    t.StringIndex.Value,
						Name:      sp.Name,
						IndexKind: IndexKindString,
						Cause:     j.explain(read, t.StringIndex.Value),
					}
				}
			}
		}
	}

	if t.NumberIndex != nil && s.NumberIndex != nil {
		if s.NumberIndex.Readonly && !t.NumberIndex.Readonly {
			return &FailureReason{
				Kind:   FailureNotRelated,
				Source: source,
				Target: target,
			}
		}
		if !j.check(s.NumberIndex.Value, t.NumberIndex.Value).isTrue() {
			return &FailureReason{
				Kind:      FailureIndexSignatureMissing,
				Source:    s.NumberIndex.Value,
				Target:    t.NumberIndex.Value,
				IndexKind: IndexKindNumber,
				Cause:     j.explain(s.NumberIndex.Value, t.NumberIndex.Value),
			}
		}
	}

	if reason := j.explainPropertiesAgainstIndexes(s.Properties, t); reason != nil {
		return reason
	}

	if targetIndexed && s.StringIndex != nil && s.NumberIndex != nil {
		if !j.check(s.NumberIndex.Value, s.StringIndex.Value).isTrue() {
			return &FailureReason{
				Kind:   FailureNotRelated,
				Source: s.NumberIndex.Value,
				Target: s.StringIndex.Value,
				Cause:  j.explain(s.NumberIndex.Value, s.StringIndex.Value),
			}
		}
	}

	return nil
}

func (j *Judge) explainProperty(sp, tp *PropertyInfo, relaxReadonly bool) *FailureReason {
	if sp.Visibility != VisibilityPublic || tp.Visibility != VisibilityPublic {
		if sp.Visibility != tp.Visibility || sp.Parent != tp.Parent {
			return &FailureReason{
				Kind:   FailurePrivateBrandMismatch,
				Name:   tp.Name,
				Source: sp.Type,
				Target: tp.Type,
			}
		}
	}

	if sp.Optional && !tp.Optional {
		return &FailureReason{
			Kind:   FailurePropertyTypeMismatch,
			Name:   tp.Name,
			Source: sp.Type,
			Target: tp.Type,
			Cause:  j.explainFailure(j.readType(sp), tp.Type),
		}
	}

	if !relaxReadonly && sp.Readonly && !tp.Readonly {
		return &FailureReason{
			Kind:   FailureReadonlyViolation,
			Name:   tp.Name,
			Source: sp.Type,
			Target: tp.Type,
		}
	}

	allowBivariant := sp.Method || tp.Method
	read := j.readType(sp)
	want := j.readType(tp)
	if !j.checkWithMethodVariance(read, want, allowBivariant) {
		return &FailureReason{
			Kind:   FailurePropertyTypeMismatch,
			Name:   tp.Name,
			Source: read,
			Target: want,
			Cause:  j.explainWithMethodVariance(read, want, allowBivariant),
		}
	}

	splitAccessor := sp.WriteType.Valid() || tp.WriteType.Valid()
	if !tp.Readonly && splitAccessor {
		sourceWrite := j.writeType(sp)
		targetWrite := j.writeType(tp)
		if !j.checkWithMethodVariance(targetWrite, sourceWrite, allowBivariant) {
			return &FailureReason{
				Kind:   FailurePropertyTypeMismatch,
				Name:   tp.Name,
				Source: sourceWrite,
				Target: targetWrite,
				Cause:  j.explainWithMethodVariance(targetWrite, sourceWrite, allowBivariant),
			}
		}
	}

	return nil
}

func (j *Judge) explainMissingFromIndex(s *ObjectShape, tp *PropertyInfo) *FailureReason {
	checked := false
	want := j.readType(tp)

	if isNumericPropertyName(tp.Name) && s.NumberIndex != nil {
		checked = true
		if s.NumberIndex.Readonly && !tp.Readonly {
			return &FailureReason{
				Kind:   FailureReadonlyViolation,
				Name:   tp.Name,
				Source: s.NumberIndex.Value,
				Target: tp.Type,
			}
		}
		if !j.checkWithMethodVariance(s.NumberIndex.Value, want, tp.Method) {
			return &FailureReason{
				Kind:      FailureIndexSignatureMissing,
				Name:      tp.Name,
				IndexKind: IndexKindNumber,
				Source:    s.NumberIndex.Value,
				Target:    want,
				Cause:     j.explainWithMethodVariance(s.NumberIndex.Value, want, tp.Method),
			}
		}
	}

	if s.StringIndex != nil {
		checked = true
		if s.StringIndex.Readonly && !tp.Readonly {
			return &FailureReason{
				Kind:   FailureReadonlyViolation,
				Name:   tp.Name,
				Source: s.StringIndex.Value,
				Target: tp.Type,
			}
		}
		if !j.checkWithMethodVariance(s.StringIndex.Value, want, tp.Method) {
			return &FailureReason{
				Kind:      FailureIndexSignatureMissing,
				Name:      tp.Name,
				IndexKind: IndexKindString,
				Source:    s.StringIndex.Value,
				Target:    want,
				Cause:     j.explainWithMethodVariance(s.StringIndex.Value, want, tp.Method),
			}
		}
	}

	if !checked && !tp.Optional {
		return &FailureReason{
			Kind:        FailurePropertyMissing,
			Name:        tp.Name,
			Suggestions: propertySuggestions(tp.Name, propertyNames(s.Properties)),
		}
	}
	return nil
}

func (j *Judge) explainPropertiesAgainstIndexes(props []PropertyInfo, t *ObjectShape) *FailureReason {
	if t.StringIndex == nil && t.NumberIndex == nil {
		return nil
	}

	for i := range props {
		sp := &props[i]
		read := j.readType(sp)

		if t.NumberIndex != nil && isNumericPropertyName(sp.Name) {
			if !j.checkWithMethodVariance(read, t.NumberIndex.Value, sp.Method) {
				return &FailureReason{
					Kind:      FailureIndexSignatureMissing,
					Name:      sp.Name,
					IndexKind: IndexKindNumber,
					Source:    read,
					Target:    t.NumberIndex.Value,
					Cause:     j.explainWithMethodVariance(read, t.NumberIndex.Value, sp.Method),
				}
			}
			if !t.NumberIndex.Readonly && sp.Readonly {
				return &FailureReason{
					Kind:   FailureReadonlyViolation,
					Name:   sp.Name,
					Source: read,
					Target: t.NumberIndex.Value,
				}
			}
		}

		if t.StringIndex != nil {
			if !t.StringIndex.Readonly && sp.Readonly {
				return &FailureReason{
					Kind:   FailureReadonlyViolation,
					Name:   sp.Name,
					Source: read,
					Target: t.StringIndex.Value,
				}
			}
			if !j.checkWithMethodVariance(read, t.StringIndex.Value, sp.Method) {
				return &FailureReason{
					Kind:      FailureIndexSignatureMissing,
					Name:      sp.Name,
					IndexKind: IndexKindString,
					Source:    read,
					Target:    t.StringIndex.Value,
					Cause:     j.explainWithMethodVariance(read, t.StringIndex.Value, sp.Method),
				}
			}
		}
	}
	return nil
}

func (j *Judge) explainTuples(s, t *TupleShape, source, target TypeID) *FailureReason {
	lengthMismatch := &FailureReason{
		Kind:        FailureArityMismatch,
		Source:      source,
		Target:      target,
		SourceArity: len(s.Elements),
		TargetArity: len(t.Elements),
	}

	if countRequiredElements(s.Elements) < countRequiredElements(t.Elements) {
		return lengthMismatch
	}

	elementMismatch := func(index int, sourceElem, targetElem TypeID) *FailureReason {
		return &FailureReason{
			Kind:   FailurePropertyTypeMismatch,
			Name:   strconv.Itoa(index),
			Source: sourceElem,
			Target: targetElem,
			Cause:  j.explain(sourceElem, targetElem),
		}
	}

	for i := range t.Elements {
		te := &t.Elements[i]
		if te.Rest {
			expansion := j.expandTupleRest(te.Type)
			tail := t.Elements[i+1:]
			sourceEnd := len(s.Elements)
			for k := len(tail) - 1; k >= 0; k-- {
				tailElem := &tail[k]
				if sourceEnd <= i {
					if !tailElem.Optional {
						return lengthMismatch
					}
					break
				}
				se := &s.Elements[sourceEnd-1]
				if se.Rest {
					if !tailElem.Optional {
						return lengthMismatch
					}
					break
				}
				ok := j.check(se.Type, tailElem.Type).isTrue()
				if !ok {
					if tailElem.Optional {
						break
					}
					return elementMismatch(sourceEnd-1, se.Type, tailElem.Type)
				}
				sourceEnd--
			}

			next := i
			for f := range expansion.fixed {
				fixed := &expansion.fixed[f]
				if next < sourceEnd {
					se := &s.Elements[next]
					if se.Rest {
						return lengthMismatch
					}
					if !j.check(se.Type, fixed.Type).isTrue() {
						return elementMismatch(next, se.Type, fixed.Type)
					}
					next++
				} else if !fixed.Optional {
					return lengthMismatch
				}
			}

			if expansion.variadic.Valid() {
				variadicArray := j.interner.Array(expansion.variadic)
				for ; next < sourceEnd; next++ {
					se := &s.Elements[next]
					want := expansion.variadic
					if se.Rest {
						want = variadicArray
					}
					if !j.check(se.Type, want).isTrue() {
						return elementMismatch(next, se.Type, want)
					}
				}
				return nil
			}

			if next < sourceEnd {
				return lengthMismatch
			}
			return nil
		}

		if i < len(s.Elements) {
			se := &s.Elements[i]
			if se.Rest {
				return lengthMismatch
			}
			if !j.check(se.Type, te.Type).isTrue() {
				return elementMismatch(i, se.Type, te.Type)
			}
		} else if !te.Optional {
			return lengthMismatch
		}
	}

	if len(s.Elements) > len(t.Elements) {
		return lengthMismatch
	}
	for i := range s.Elements {
		if s.Elements[i].Rest {
			return lengthMismatch
		}
	}
	return nil
}

func (j *Judge) explainCallables(s, t *CallableShape, source, target TypeID) *FailureReason {
	explainOverloads := func(sigs []TypeID, wants []TypeID) *FailureReason {
		for _, want := range wants {
			if j.someSignatureSatisfies(sigs, want) {
				continue
			}
			if len(sigs) == 1 {
				if reason := j.explainSignaturePair(j.signatureShape(sigs[0]), j.signatureShape(want), false); reason != nil {
					return reason
				}
			}
			return &FailureReason{
				Kind:   FailureNotRelated,
				Source: source,
				Target: target,
			}
		}
		return nil
	}

	if reason := explainOverloads(s.CallSignatures, t.CallSignatures); reason != nil {
		return reason
	}
	if reason := explainOverloads(s.ConstructSignatures, t.ConstructSignatures); reason != nil {
		return reason
	}
	return j.explainObjects(callableMembersShape(s), callableMembersShape(t), source, target)
}

func (j *Judge) explainSignaturePair(s, t *FunctionShape, compareThis bool) *FailureReason {
	if s == nil || t == nil {
		return nil
	}

	if !j.checkReturn(s.Return, t.Return).isTrue() {
		return &FailureReason{
			Kind:   FailureReturnIncompatible,
			Source: s.Return,
			Target: t.Return,
			Cause:  j.explainFailure(s.Return, t.Return),
		}
	}

	if compareThis && !j.thisParametersCompatible(s.This, t.This) {
		return &FailureReason{
			Kind:   FailureNotRelated,
			Source: s.This,
			Target: t.This,
			Cause:  j.explainFailure(t.This, s.This),
		}
	}

	isMethod := s.IsMethod() || t.IsMethod()
	targetHasRest := t.HasRest()
	sourceHasRest := s.HasRest()

	restElem := TypeNone
	if targetHasRest {
		restElem = j.arrayElementOf(t.Params[len(t.Params)-1].Type)
	}
	restIsTop := j.opts.bivariantRestParams && (restElem == TypeAny || restElem == TypeUnknown)

	sourceRequired := countRequiredParams(s.Params)

	tooManyParams := !j.opts.bivariantArity && !restIsTop && !targetHasRest &&
		sourceRequired > len(t.Params)

	if tooManyParams {
		return &FailureReason{
			Kind:        FailureArityMismatch,
			SourceArity: sourceRequired,
			TargetArity: len(t.Params),
		}
	}

	parameterMismatch := func(index int, sourceParam, targetParam TypeID) *FailureReason {
		return &FailureReason{
			Kind:   FailureParameterIncompatible,
			Index:  index,
			Source: sourceParam,
			Target: targetParam,
			Cause:  j.explainParameter(sourceParam, targetParam, isMethod),
		}
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
		if sp.Optional && !tp.Optional && !j.check(TypeUndefined, tp.Type).isTrue() {
			return &FailureReason{
				Kind:   FailureParameterIncompatible,
				Index:  i,
				Source: sp.Type,
				Target: tp.Type,
				Cause:  j.explainFailure(TypeUndefined, tp.Type),
			}
		}
		if !j.parametersCompatible(sp.Type, tp.Type, isMethod) {
			return parameterMismatch(i, sp.Type, tp.Type)
		}
	}

	if targetHasRest {
		if restIsTop {
			return nil
		}
		for i := targetFixed; i < sourceFixed; i++ {
			if !j.parametersCompatible(s.Params[i].Type, restElem, isMethod) {
				return parameterMismatch(i, s.Params[i].Type, restElem)
			}
		}
		if sourceHasRest {
			sourceRest := j.arrayElementOf(s.Params[len(s.Params)-1].Type)
			if !j.parametersCompatible(sourceRest, restElem, isMethod) {
				return parameterMismatch(sourceFixed, sourceRest, restElem)
			}
		}
	}

	if sourceHasRest {
		sourceRest := j.arrayElementOf(s.Params[len(s.Params)-1].Type)
		sourceRestIsTop := j.opts.bivariantRestParams &&
			(sourceRest == TypeAny || sourceRest == TypeUnknown)
		if !sourceRestIsTop {
			for i := sourceFixed; i < targetFixed; i++ {
				if !j.parametersCompatible(sourceRest, t.Params[i].Type, isMethod) {
					return parameterMismatch(i, sourceRest, t.Params[i].Type)
				}
			}
		}
	}

	return nil
}

// explainParameter attributes one parameter rejection in the direction
// the variance rule compared it.
func (j *Judge) explainParameter(source, target TypeID, isMethod bool) *FailureReason {
	bivariant := j.opts.bivariantParams || (isMethod && j.opts.methodBivariance)
	if !bivariant {
		if j.containsThisType(source) || j.containsThisType(target) {
			return j.explainFailure(source, target)
		}
		return j.explainFailure(target, source)
	}
	return j.explainFailure(target, source)
}
