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
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradient-lang/gradient/errors"
)

const (
	tracingQueryPrefix = "query."

	tracingAssignable   = tracingQueryPrefix + "assignable"
	tracingSubtype      = tracingQueryPrefix + "subtype"
	tracingIdentical    = tracingQueryPrefix + "identical"
	tracingEvaluate     = tracingQueryPrefix + "evaluate"
	tracingInstantiate  = tracingQueryPrefix + "instantiate"
	tracingApparentType = tracingQueryPrefix + "apparentType"
)

// OnRecordQueryFunc receives one completed top-level query.
type OnRecordQueryFunc func(
	operationName string,
	duration time.Duration,
	attrs []attribute.KeyValue,
)

// QueryTracer reports top-level queries to an embedder-provided hook.
// The zero value is disabled and costs one branch per query.
type QueryTracer struct {
	// OnRecordQuery is triggered when a query completes.
	OnRecordQuery OnRecordQueryFunc
	// TracingEnabled determines if queries are reported.
	TracingEnabled bool
}

func (tracer QueryTracer) reportQuery(
	operationName string,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if tracer.OnRecordQuery == nil {
		return
	}
	tracer.OnRecordQuery(operationName, duration, attrs)
}

func queryPairAttrs(source, target TypeID, ok bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("source", int64(source)),
		attribute.Int64("target", int64(target)),
		attribute.Bool("ok", ok),
	}
}

// Config parameterizes a Session.
type Config struct {
	// Profile selects the compatibility rules Assignable applies.
	// nil selects the default profile.
	Profile *CompatProfile
	// Budgets bounds the work of a single query.
	// nil selects the default budgets.
	Budgets *Budgets
	// Tracer reports completed top-level queries.
	Tracer QueryTracer
	// OnInternalError receives invariant violations recovered at the
	// query boundary, after the query has already produced its
	// conservative answer. nil discards them.
	OnInternalError func(err error)
}

// Session is the solver's front door for one checked program. Many
// checker workers may share one Session: queries are pure given the
// Environment and Interner, and the session's verdict caches accept
// concurrent readers and writers.
//
// Strict verdicts (Subtype, Identical) and lenient verdicts
// (Assignable) live in separate caches; the two never mix, so a
// profile's leniencies cannot leak into the strict relation.
type Session struct {
	env     *Environment
	profile *CompatProfile
	budgets Budgets
	tracer  QueryTracer

	onInternalError func(err error)

	lenient   sync.Map // typePair → Verdict
	strict    sync.Map // typePair → bool
	same      sync.Map // typePair → bool
	evaluated sync.Map // TypeID → TypeID

	stats sessionStats
}

// NewSession returns a Session over the environment.
func NewSession(env *Environment, config Config) *Session {
	profile := config.Profile
	if profile == nil {
		profile = DefaultProfile()
	}
	budgets := DefaultBudgets()
	if config.Budgets != nil {
		budgets = *config.Budgets
	}
	return &Session{
		env:             env,
		profile:         profile,
		budgets:         budgets,
		tracer:          config.Tracer,
		onInternalError: config.OnInternalError,
	}
}

// Environment returns the session's environment.
func (s *Session) Environment() *Environment {
	return s.env
}

// Profile returns the session's compatibility profile.
func (s *Session) Profile() *CompatProfile {
	return s.profile
}

func (s *Session) newQuery() (*guard, *Evaluator) {
	g := newGuard(s.budgets)
	return g, newEvaluator(s.env, g, s.profile)
}

func (s *Session) reportInternalError(err error) {
	if s.onInternalError != nil {
		s.onInternalError(err)
	}
}

// Assignable reports whether source may be used where target is
// expected, under the session's compatibility profile. A negative
// verdict carries the failure reason.
func (s *Session) Assignable(source, target TypeID) (verdict Verdict) {
	pair := typePair{source: source, target: target}
	if cached, ok := s.lenient.Load(pair); ok {
		return cached.(Verdict)
	}

	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingAssignable,
				time.Since(startTime),
				queryPairAttrs(source, target, verdict.OK),
			)
		}()
	}

	// An invariant violation inside one query must not take down the
	// checker; the query answers conservatively instead.
	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		verdict = Verdict{
			OK: false,
			Failure: &FailureReason{
				Kind:   FailureNotRelated,
				Source: source,
				Target: target,
			},
		}
	})

	g, ev := s.newQuery()
	verdict = newLawyer(ev).Assignable(source, target)
	s.stats.assignable.record(g)

	if _, truncated := g.Truncated(); !truncated {
		s.lenient.Store(pair, verdict)
	}
	return verdict
}

// Subtype reports whether source is a strict structural subtype of
// target, free of the profile's leniencies.
func (s *Session) Subtype(source, target TypeID) (ok bool) {
	pair := typePair{source: source, target: target}
	if cached, hit := s.strict.Load(pair); hit {
		return cached.(bool)
	}

	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingSubtype,
				time.Since(startTime),
				queryPairAttrs(source, target, ok),
			)
		}()
	}

	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		ok = false
	})

	g, ev := s.newQuery()
	ok = ev.isSubtype(source, target)
	s.stats.subtype.record(g)

	if _, truncated := g.Truncated(); !truncated {
		s.strict.Store(pair, ok)
	}
	return ok
}

// Identical reports whether the two types are mutual strict subtypes.
func (s *Session) Identical(a, b TypeID) (ok bool) {
	pair := typePair{source: a, target: b}
	if cached, hit := s.same.Load(pair); hit {
		return cached.(bool)
	}

	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingIdentical,
				time.Since(startTime),
				queryPairAttrs(a, b, ok),
			)
		}()
	}

	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		ok = false
	})

	g, ev := s.newQuery()
	ok = ev.judge.identical(a, b)
	s.stats.identical.record(g)

	if _, truncated := g.Truncated(); !truncated {
		s.same.Store(pair, ok)
	}
	return ok
}

// Evaluate reduces a meta type to structural form: conditionals,
// indexed access, mapped types, keyof, template literals, generic
// applications, and deferred references. Already-structural types come
// back unchanged, budget-truncated types come back unreduced.
func (s *Session) Evaluate(id TypeID) (result TypeID) {
	if cached, ok := s.evaluated.Load(id); ok {
		return cached.(TypeID)
	}

	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingEvaluate,
				time.Since(startTime),
				[]attribute.KeyValue{
					attribute.Int64("type", int64(id)),
					attribute.Int64("result", int64(result)),
				},
			)
		}()
	}

	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		result = id
	})

	g, ev := s.newQuery()
	result = ev.Evaluate(id)
	s.stats.evaluate.record(g)

	if _, truncated := g.Truncated(); !truncated {
		s.evaluated.Store(id, result)
	}
	return result
}

// Instantiate substitutes a generic declaration's type parameters with
// args and evaluates the result.
func (s *Session) Instantiate(generic TypeID, args []TypeID) (result TypeID) {
	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingInstantiate,
				time.Since(startTime),
				[]attribute.KeyValue{
					attribute.Int64("generic", int64(generic)),
					attribute.Int("args", len(args)),
					attribute.Int64("result", int64(result)),
				},
			)
		}()
	}

	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		result = generic
	})

	g, ev := s.newQuery()
	result = ev.Instantiate(generic, args)
	s.stats.instantiate.record(g)

	return result
}

// ApparentType returns the type whose members stand in for a value of
// the given type; primitives become their library interface shapes.
func (s *Session) ApparentType(id TypeID) (result TypeID) {
	if s.tracer.TracingEnabled {
		startTime := time.Now()
		defer func() {
			s.tracer.reportQuery(
				tracingApparentType,
				time.Since(startTime),
				[]attribute.KeyValue{
					attribute.Int64("type", int64(id)),
					attribute.Int64("result", int64(result)),
				},
			)
		}()
	}

	defer errors.RecoverErrors(func(err error) {
		s.reportInternalError(err)
		result = id
	})

	g, ev := s.newQuery()
	result = ev.ApparentType(id)
	s.stats.apparent.record(g)

	return result
}

// ExplainFailure explains why source is not assignable to target, nil
// when it is. Equivalent to Assignable(source, target).Failure.
func (s *Session) ExplainFailure(source, target TypeID) *FailureReason {
	return s.Assignable(source, target).Failure
}

// Query statistics

// queryStats accumulates the budget expenditure of one query root.
type queryStats struct {
	calls      atomic.Int64
	operations atomic.Int64
	truncated  atomic.Int64
}

func (st *queryStats) record(g *guard) {
	st.calls.Add(1)
	st.operations.Add(g.spent())
	if _, truncated := g.Truncated(); truncated {
		st.truncated.Add(1)
	}
}

// sessionStats attributes operation-budget expenditure to the
// session's query roots.
type sessionStats struct {
	assignable  queryStats
	subtype     queryStats
	identical   queryStats
	evaluate    queryStats
	instantiate queryStats
	apparent    queryStats
}

func (stats *sessionStats) each(f func(operationName string, st *queryStats)) {
	f(tracingAssignable, &stats.assignable)
	f(tracingSubtype, &stats.subtype)
	f(tracingIdentical, &stats.identical)
	f(tracingEvaluate, &stats.evaluate)
	f(tracingInstantiate, &stats.instantiate)
	f(tracingApparentType, &stats.apparent)
}
