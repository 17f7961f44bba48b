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
	_ "embed"
)

// The Lawyer decides assignability: the gradual-typing relation user
// programs are checked against. It layers named compatibility rules over
// the structural Judge. Each rule is an independent function consulted
// in the registry order of compat_rules.gen.go; the first rule with an
// opinion wins. Rules the active profile disables are skipped, so the
// Judge's strict verdict is always the floor underneath the policy.
//
// The split keeps deliberate unsoundness out of the Judge: any-escapes,
// enum opacity, weak-type overlap, excess properties, and method
// bivariance live here and nowhere else.

// compatRulesManifest is the registry's source of truth. The table in
// compat_rules.gen.go is rendered from it; tests hold the two together.
//
//go:embed compat_rules.yaml
var compatRulesManifest []byte

//go:generate go run ./gen -rules compat_rules.yaml -output compat_rules.gen.go

// A Verdict is the Lawyer's answer. Failure is set exactly when OK is
// false and explains the rejection; budget-truncated verdicts carry a
// BudgetExceeded step.
type Verdict struct {
	OK      bool
	Failure *FailureReason
}

// compatRule is one registry entry. The table in compat_rules.gen.go is
// generated from compat_rules.yaml, which fixes the consultation order;
// a nil gate means the rule is always on, and a nil apply marks a rule
// realized as Judge configuration rather than as a decision of its own.
type compatRule struct {
	name  string
	gate  func(*CompatProfile) bool
	apply func(*Lawyer, TypeID, TypeID) (ruleOutcome, *FailureReason)
}

// RuleNames lists the compatibility rules in consultation order.
func RuleNames() []string {
	names := make([]string, len(compatRules))
	for i := range compatRules {
		names[i] = compatRules[i].name
	}
	return names
}

// ruleOutcome is one rule's opinion on a pair.
type ruleOutcome uint8

const (
	// ruleNoMatch defers to the next rule in the registry.
	ruleNoMatch ruleOutcome = iota
	ruleAccept
	ruleReject
)

// Lawyer applies one compatibility profile. It carries its own Judge,
// configured from the profile, so lenient structural verdicts never
// share a memo table with the strict Judge the Evaluator uses for
// conditional types.
type Lawyer struct {
	ev       *Evaluator
	interner *Interner
	env      *Environment
	guard    *guard
	profile  *CompatProfile
	judge    *Judge

	verdicts map[typePair]Verdict
}

func newLawyer(ev *Evaluator) *Lawyer {
	return &Lawyer{
		ev:       ev,
		interner: ev.interner,
		env:      ev.env,
		guard:    ev.guard,
		profile:  ev.profile,
		judge:    newJudgeWithOptions(ev, ev.profile.judgeOptions()),
		verdicts: make(map[typePair]Verdict),
	}
}

// Assignable reports whether source may be used where target is
// expected under the Lawyer's profile.
func (l *Lawyer) Assignable(source, target TypeID) Verdict {
	pair := typePair{source, target}
	if v, ok := l.verdicts[pair]; ok {
		return v
	}

	v := l.decide(source, target)

	// A verdict reached after a budget tripped is conservative, not
	// canonical. Replaying the query against a fresh guard must be
	// allowed to do the full work.
	if _, truncated := l.guard.Truncated(); !truncated {
		l.verdicts[pair] = v
	}
	return v
}

func (l *Lawyer) decide(source, target TypeID) Verdict {
	for i := range compatRules {
		rule := &compatRules[i]
		if rule.gate != nil && !rule.gate(l.profile) {
			continue
		}
		if rule.apply == nil {
			// Registry entries without a body configure the Judge
			// instead of deciding pairs themselves.
			continue
		}
		outcome, failure := rule.apply(l, source, target)
		switch outcome {
		case ruleAccept:
			return Verdict{OK: true}
		case ruleReject:
			return Verdict{OK: false, Failure: failure}
		}
	}

	// The structural fallback never defers, so the registry always
	// produces a verdict.
	return Verdict{OK: false, Failure: l.notRelated(source, target)}
}

func (l *Lawyer) notRelated(source, target TypeID) *FailureReason {
	return &FailureReason{
		Kind:   FailureNotRelated,
		Source: source,
		Target: target,
	}
}

// Rule: trivial escapes

// ruleTrivialEscapes settles the pairs no later rule should see:
// identity, the dynamic any, the top and bottom types, and nullish
// sources and targets when strict null checking is off. unknown as a
// source fits only the tops handled here, so anything else rejects it
// outright.
func (l *Lawyer) ruleTrivialEscapes(source, target TypeID) (ruleOutcome, *FailureReason) {
	if source == target {
		return ruleAccept, nil
	}
	if !source.Valid() || !target.Valid() {
		return ruleReject, l.notRelated(source, target)
	}
	if target == TypeAny {
		return ruleAccept, nil
	}
	if source == TypeAny {
		if target == TypeNever {
			return ruleReject, l.notRelated(source, target)
		}
		return ruleAccept, nil
	}
	if target == TypeUnknown {
		return ruleAccept, nil
	}
	if source == TypeNever {
		return ruleAccept, nil
	}
	if !l.profile.StrictNullChecks && (isNullish(source) || isNullish(target)) {
		return ruleAccept, nil
	}
	if source == TypeUnknown {
		return ruleReject, l.notRelated(source, target)
	}
	return ruleNoMatch, nil
}

func isNullish(id TypeID) bool {
	return id == TypeNull || id == TypeUndefined
}

// Rule: sentinel isolation

// ruleSentinelIsolation keeps the unresolvable sentinel from relating
// to anything. One missing declaration then surfaces once, at its use,
// instead of cascading through every type it touches. Identity and the
// any escapes have already been granted by the time this rule runs.
func (l *Lawyer) ruleSentinelIsolation(source, target TypeID) (ruleOutcome, *FailureReason) {
	if source != TypeError && target != TypeError {
		return ruleNoMatch, nil
	}
	return ruleReject, &FailureReason{
		Kind:   FailureUnresolvedReference,
		Source: source,
		Target: target,
	}
}

// Rule: enum opacity

// ruleEnumOpacity makes enums nominal. Members of distinct enums never
// relate, a member reaches its own enum but not a sibling member, and
// the base primitives are held at arm's length: a numeric-enum member
// widens to number but number does not narrow back, while string enums
// and string do not mix in either direction.
func (l *Lawyer) ruleEnumOpacity(source, target TypeID) (ruleOutcome, *FailureReason) {
	source = l.ev.evaluate(source)
	target = l.ev.evaluate(target)

	srcDef, srcMember, srcIsEnum := l.enumComponents(source)
	tgtDef, tgtMember, tgtIsEnum := l.enumComponents(target)

	opaque := func(def DefID) (ruleOutcome, *FailureReason) {
		return ruleReject, &FailureReason{
			Kind:   FailureEnumOpacityViolation,
			Source: source,
			Target: target,
			Def:    def,
		}
	}

	// A union flowing into an enum must not smuggle in members of a
	// different enum; its non-enum members still face the structural
	// check afterwards.
	if tgtIsEnum && !srcIsEnum {
		if sk := l.interner.Lookup(source); sk.Kind == KindUnion {
			for _, member := range sk.List {
				if def, _, ok := l.enumComponents(member); ok && def != tgtDef {
					return opaque(def)
				}
			}
		}
	}

	switch {
	case srcIsEnum && tgtIsEnum:
		if srcDef != tgtDef {
			return opaque(srcDef)
		}
		if source == target {
			return ruleAccept, nil
		}
		if srcMember && !tgtMember {
			// A member always fits the enum it belongs to.
			return ruleAccept, nil
		}
		if srcMember && tgtMember {
			// Sibling members never cross, whatever their values.
			return opaque(srcDef)
		}
		// Whole enum against one of its members: only a single-member
		// enum can satisfy that, which the structural check decides.
		return ruleNoMatch, nil

	case tgtIsEnum:
		if l.env.IsNumericEnum(tgtDef) {
			// Number literals may still hit a member's exact value;
			// the primitive itself requires explicit narrowing.
			if source == TypeNumber {
				return opaque(tgtDef)
			}
			return ruleNoMatch, nil
		}
		if l.isStringLike(source) {
			return opaque(tgtDef)
		}
		return ruleNoMatch, nil

	case srcIsEnum:
		if !l.env.IsNumericEnum(srcDef) && target == TypeString {
			return opaque(srcDef)
		}
		return ruleNoMatch, nil
	}

	return ruleNoMatch, nil
}

// enumComponents extracts the declaring enum from an enum type or enum
// member, seeing through unions whose members all belong to one enum.
func (l *Lawyer) enumComponents(id TypeID) (def DefID, member, ok bool) {
	key := l.interner.Lookup(id)
	switch key.Kind {
	case KindEnum:
		return key.Def, false, true
	case KindEnumMember:
		return key.Def, true, true
	case KindUnion:
		for i, m := range key.List {
			mDef, _, mOK := l.enumComponents(l.ev.evaluate(m))
			if !mOK || (i > 0 && mDef != def) {
				return InvalidDefID, false, false
			}
			def = mDef
		}
		if len(key.List) == 0 {
			return InvalidDefID, false, false
		}
		return def, false, true
	}
	return InvalidDefID, false, false
}

// isStringLike reports whether a type always holds a string value:
// string itself, string literals, template literals, and type
// parameters constrained to one of those.
func (l *Lawyer) isStringLike(id TypeID) bool {
	if id == TypeString {
		return true
	}
	if !l.guard.spend() {
		return false
	}
	key := l.interner.Lookup(l.ev.evaluate(id))
	switch key.Kind {
	case KindStringLiteral, KindTemplateLiteral, KindStringIntrinsic:
		return true
	case KindTypeParameter:
		if key.Param != nil && key.Param.Constraint.Valid() {
			return l.isStringLike(key.Param.Constraint)
		}
	}
	return false
}

// Rule: literal widening

// ruleLiteralWidening accepts a literal at the primitive it widens to.
// The structural check would reach the same answer; deciding it here
// keeps the hottest literal-to-base pairs out of the Judge entirely.
func (l *Lawyer) ruleLiteralWidening(source, target TypeID) (ruleOutcome, *FailureReason) {
	key := l.interner.Lookup(l.ev.evaluate(source))
	switch key.Kind {
	case KindStringLiteral, KindNumberLiteral, KindBooleanLiteral,
		KindBigIntLiteral, KindUniqueSymbol:
		if target == key.BaseOfLiteral() {
			return ruleAccept, nil
		}
	}
	return ruleNoMatch, nil
}

// Rule: root object acceptance

// ruleRootObjectAcceptance handles targets that declare no members of
// their own: the empty object type and the library root object, whose
// members come from the universal prototype rather than from structural
// matching. Such targets accept every source that is a value at
// runtime, so an empty object literal, a function, or a boxed primitive
// all pass even though none of them declares the target's members.
func (l *Lawyer) ruleRootObjectAcceptance(source, target TypeID) (ruleOutcome, *FailureReason) {
	key := l.interner.Lookup(l.ev.evaluate(target))
	if key.Kind != KindObject {
		return ruleNoMatch, nil
	}
	shape := key.Object
	if !shape.IsRootObject() && !emptyObjectShape(shape) {
		return ruleNoMatch, nil
	}
	if l.acceptsAsRootObject(source) {
		return ruleAccept, nil
	}
	return ruleReject, l.notRelated(source, target)
}

func emptyObjectShape(s *ObjectShape) bool {
	return len(s.Properties) == 0 && s.StringIndex == nil && s.NumberIndex == nil
}

// acceptsAsRootObject reports whether a source has a runtime value to
// offer the universal prototype. Only the tops without values, the
// nullish types under strict null checking, and the unresolvable
// sentinel are turned away.
func (l *Lawyer) acceptsAsRootObject(source TypeID) bool {
	switch source {
	case TypeAny, TypeNever:
		return true
	case TypeError, TypeUnknown, TypeVoid:
		return false
	case TypeNull, TypeUndefined:
		return !l.profile.StrictNullChecks
	}
	if !l.guard.spend() {
		return false
	}
	key := l.interner.Lookup(l.ev.evaluate(source))
	switch key.Kind {
	case KindUnion:
		for _, member := range key.List {
			if !l.acceptsAsRootObject(member) {
				return false
			}
		}
		return true
	case KindIntersection:
		for _, member := range key.List {
			if l.acceptsAsRootObject(member) {
				return true
			}
		}
		return false
	case KindTypeParameter:
		if key.Param != nil && key.Param.Constraint.Valid() {
			return l.acceptsAsRootObject(key.Param.Constraint)
		}
		// An unconstrained parameter could be instantiated with
		// anything, including undefined.
		return false
	}
	return true
}

// Rule: weak type overlap

// ruleWeakTypeOverlap rejects sources that share no member with a weak
// target. A weak type declares only optional members, so the structural
// check would accept nearly anything against it; requiring one point of
// overlap keeps unrelated values from flowing in through the all
// optional loophole.
func (l *Lawyer) ruleWeakTypeOverlap(source, target TypeID) (ruleOutcome, *FailureReason) {
	if l.violatesWeakUnion(source, target) || l.violatesWeakType(source, target) {
		return ruleReject, &FailureReason{
			Kind:   FailureWeakTypeNoOverlap,
			Source: source,
			Target: target,
		}
	}
	return ruleNoMatch, nil
}

// violatesWeakType applies the overlap requirement to a single weak
// target, seeing through lazy references and taking the first object
// member of an intersection as its shape.
func (l *Lawyer) violatesWeakType(source, target TypeID) bool {
	shape := l.weakShape(target)
	if !shape.IsWeak() {
		return false
	}
	return l.lacksOverlapWith(source, shape)
}

// violatesWeakUnion extends the overlap requirement to union targets
// carrying at least one weak member. Members with index signatures or
// no members at all accept anything, so their presence waives the
// requirement for the whole union.
func (l *Lawyer) violatesWeakUnion(source, target TypeID) bool {
	key := l.interner.Lookup(l.ev.evaluate(target))
	if key.Kind != KindUnion {
		return false
	}

	hasWeakMember := false
	shapes := make([]*ObjectShape, 0, len(key.List))
	for _, member := range key.List {
		shape := l.weakShape(member)
		if shape == nil {
			continue
		}
		if len(shape.Properties) == 0 || shape.StringIndex != nil || shape.NumberIndex != nil {
			return false
		}
		shapes = append(shapes, shape)
		if shape.IsWeak() {
			hasWeakMember = true
		}
	}
	if !hasWeakMember {
		return false
	}
	return l.lacksOverlapWithAll(source, shapes)
}

// weakShape extracts the object shape a weak-type check should inspect.
func (l *Lawyer) weakShape(id TypeID) *ObjectShape {
	key := l.interner.Lookup(l.ev.evaluate(id))
	switch key.Kind {
	case KindObject:
		return key.Object
	case KindIntersection:
		for _, member := range key.List {
			if shape := l.weakShape(member); shape != nil {
				return shape
			}
		}
	}
	return nil
}

// lacksOverlapWith reports whether no member of the source appears in
// the target shape. Sources without declared members, and sources whose
// values are not object literals at all, never violate.
func (l *Lawyer) lacksOverlapWith(source TypeID, target *ObjectShape) bool {
	key := l.interner.Lookup(l.ev.evaluate(source))
	switch key.Kind {
	case KindUnion:
		for _, member := range key.List {
			if !l.lacksOverlapWith(member, target) {
				return false
			}
		}
		return len(key.List) > 0
	case KindTypeParameter:
		if key.Param != nil && key.Param.Constraint.Valid() {
			return l.lacksOverlapWith(key.Param.Constraint, target)
		}
		return false
	case KindObject:
		source := key.Object
		if len(source.Properties) == 0 {
			return false
		}
		if source.StringIndex != nil || source.NumberIndex != nil {
			return false
		}
		for i := range source.Properties {
			if target.Property(source.Properties[i].Name) != nil {
				return false
			}
		}
		return true
	}
	return false
}

// lacksOverlapWithAll is the union-target variant: the source must
// share a member with at least one shape to pass.
func (l *Lawyer) lacksOverlapWithAll(source TypeID, targets []*ObjectShape) bool {
	key := l.interner.Lookup(l.ev.evaluate(source))
	switch key.Kind {
	case KindUnion:
		for _, member := range key.List {
			if !l.lacksOverlapWithAll(member, targets) {
				return false
			}
		}
		return len(key.List) > 0
	case KindTypeParameter:
		if key.Param != nil && key.Param.Constraint.Valid() {
			return l.lacksOverlapWithAll(key.Param.Constraint, targets)
		}
		return false
	case KindObject:
		source := key.Object
		if len(source.Properties) == 0 {
			return false
		}
		if source.StringIndex != nil || source.NumberIndex != nil {
			return false
		}
		for _, target := range targets {
			for i := range source.Properties {
				if target.Property(source.Properties[i].Name) != nil {
					return false
				}
			}
		}
		return true
	}
	return false
}

// Rule: excess properties

// ruleExcessProperty rejects a fresh object literal that declares a
// member the target does not know. Freshness is the license: a literal
// written in place cannot be aliasing extra members for someone else,
// so an unknown member is almost certainly a typo. A type mismatch on a
// declared member outranks the excess report, which is why a source
// that also fails structurally is left for the fallback to explain.
func (l *Lawyer) ruleExcessProperty(source, target TypeID) (ruleOutcome, *FailureReason) {
	name, found := l.findExcessProperty(source, target)
	if !found {
		return ruleNoMatch, nil
	}
	if !l.judge.isSubtypeOf(source, target) {
		return ruleNoMatch, nil
	}
	return ruleReject, &FailureReason{
		Kind:   FailureExcessProperty,
		Source: source,
		Target: target,
		Name:   name,
	}
}

// findExcessProperty names the first member of a fresh source literal
// the target does not declare. Targets with a string index signature
// absorb arbitrary members, and union targets are left to the
// structural check, which tries the literal against each arm.
func (l *Lawyer) findExcessProperty(source, target TypeID) (string, bool) {
	sk := l.interner.Lookup(l.ev.evaluate(source))
	if sk.Kind != KindObject || !sk.Object.IsFresh() {
		return "", false
	}

	declared := make(map[string]struct{})
	hasStringIndex := false
	if !l.collectDeclaredProperties(l.ev.evaluate(target), declared, &hasStringIndex) {
		return "", false
	}
	if hasStringIndex {
		return "", false
	}

	props := sk.Object.Properties
	for i := range props {
		if _, ok := declared[props[i].Name]; !ok {
			return props[i].Name, true
		}
	}
	return "", false
}

// collectDeclaredProperties gathers every member name the target can
// absorb. Intersections contribute the union of their members' names.
// Returns false for targets that are not object-shaped.
func (l *Lawyer) collectDeclaredProperties(target TypeID, into map[string]struct{}, hasStringIndex *bool) bool {
	if !l.guard.spend() {
		return false
	}
	key := l.interner.Lookup(l.ev.evaluate(target))
	switch key.Kind {
	case KindObject:
		shape := key.Object
		for i := range shape.Properties {
			into[shape.Properties[i].Name] = struct{}{}
		}
		if shape.StringIndex != nil {
			*hasStringIndex = true
		}
		return true
	case KindIntersection:
		collected := false
		for _, member := range key.List {
			if l.collectDeclaredProperties(member, into, hasStringIndex) {
				collected = true
			}
		}
		return collected
	}
	return false
}

// Rule: method bivariance

// Method parameter bivariance has no body of its own: the profile flag
// reaches the Judge through judgeOptions, and property comparison there
// retries members declared as methods with swapped argument order. The
// registry still lists the rule so the consultation order stays
// documented in one place.

// Rule: private brands

type brandState uint8

const (
	brandUnknown brandState = iota
	brandCompatible
	brandMismatch
)

// rulePrivateBrands enforces nominal identity for private and protected
// members: a brand is satisfied only by a member originating from the
// same declaration. Only mismatches decide the verdict here; matching
// brands still face the structural check, which validates the remaining
// members.
func (l *Lawyer) rulePrivateBrands(source, target TypeID) (ruleOutcome, *FailureReason) {
	state, name := l.brandVerdict(source, target)
	if state != brandMismatch {
		return ruleNoMatch, nil
	}
	return ruleReject, &FailureReason{
		Kind:   FailurePrivateBrandMismatch,
		Source: source,
		Target: target,
		Name:   name,
	}
}

// brandVerdict walks unions and intersections with the polarity of the
// assignment: a union target needs one compatible arm, a union source
// needs every arm compatible, and intersections invert both.
func (l *Lawyer) brandVerdict(source, target TypeID) (brandState, string) {
	if source == target {
		return brandUnknown, ""
	}
	if !l.guard.spend() {
		return brandUnknown, ""
	}

	source = l.ev.evaluate(source)
	target = l.ev.evaluate(target)
	sk := l.interner.Lookup(source)
	tk := l.interner.Lookup(target)

	if tk.Kind == KindUnion {
		firstName := ""
		for _, member := range tk.List {
			state, name := l.brandVerdict(source, member)
			if state != brandMismatch {
				return brandUnknown, ""
			}
			if firstName == "" {
				firstName = name
			}
		}
		if len(tk.List) == 0 {
			return brandUnknown, ""
		}
		return brandMismatch, firstName
	}

	if sk.Kind == KindUnion {
		sawCompatible := false
		for _, member := range sk.List {
			state, name := l.brandVerdict(member, target)
			switch state {
			case brandMismatch:
				return brandMismatch, name
			case brandCompatible:
				sawCompatible = true
			}
		}
		if sawCompatible {
			return brandCompatible, ""
		}
		return brandUnknown, ""
	}

	if tk.Kind == KindIntersection {
		sawCompatible := false
		for _, member := range tk.List {
			state, name := l.brandVerdict(source, member)
			switch state {
			case brandMismatch:
				return brandMismatch, name
			case brandCompatible:
				sawCompatible = true
			}
		}
		if sawCompatible {
			return brandCompatible, ""
		}
		return brandUnknown, ""
	}

	if sk.Kind == KindIntersection {
		firstName := ""
		sawMismatch := false
		for _, member := range sk.List {
			state, name := l.brandVerdict(member, target)
			switch state {
			case brandCompatible:
				return brandCompatible, ""
			case brandMismatch:
				sawMismatch = true
				if firstName == "" {
					firstName = name
				}
			}
		}
		if sawMismatch && firstName != "" {
			return brandMismatch, firstName
		}
		return brandUnknown, ""
	}

	if sk.Kind != KindObject || tk.Kind != KindObject {
		return brandUnknown, ""
	}
	return brandShapes(sk.Object, tk.Object)
}

func brandShapes(source, target *ObjectShape) (brandState, string) {
	seen := false

	// Every brand the target declares must originate from the same
	// declaration in the source.
	for i := range target.Properties {
		tp := &target.Properties[i]
		if tp.Visibility == VisibilityPublic {
			continue
		}
		seen = true
		sp := source.Property(tp.Name)
		if sp == nil || sp.Parent != tp.Parent {
			return brandMismatch, tp.Name
		}
	}

	// A brand the source carries must not land in a slot the target
	// declares public.
	for i := range source.Properties {
		sp := &source.Properties[i]
		if sp.Visibility == VisibilityPublic {
			continue
		}
		seen = true
		if tp := target.Property(sp.Name); tp != nil && tp.Visibility == VisibilityPublic {
			return brandMismatch, sp.Name
		}
	}

	if seen {
		return brandCompatible, ""
	}
	return brandUnknown, ""
}

// Rule: structural fallback

// ruleStructuralFallback hands the pair to the profile-configured
// Judge. It always decides, so it terminates the registry.
func (l *Lawyer) ruleStructuralFallback(source, target TypeID) (ruleOutcome, *FailureReason) {
	if l.judge.isSubtypeOf(source, target) {
		return ruleAccept, nil
	}
	return ruleReject, l.judge.explainFailure(source, target)
}
