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
	pprof "github.com/google/pprof/profile"
)

// BudgetProfileExporter renders a session's budget expenditure as a
// pprof profile: one sample per query root, attributing operation
// counts, query counts, and budget truncations to the operation that
// spent them. The profile answers "where do the operations go" for a
// whole checking session the same way a CPU profile answers it for
// time.
type BudgetProfileExporter struct {
	Session *Session
	profile *pprof.Profile
}

func NewBudgetProfileExporter(session *Session) *BudgetProfileExporter {
	return &BudgetProfileExporter{
		Session: session,
	}
}

func (e *BudgetProfileExporter) Export() (*pprof.Profile, error) {
	e.profile = &pprof.Profile{}

	e.profile.SampleType = []*pprof.ValueType{
		{
			Type: "operations",
			Unit: "count",
		},
		{
			Type: "queries",
			Unit: "count",
		},
		{
			Type: "truncations",
			Unit: "count",
		},
	}
	e.profile.DefaultSampleType = "operations"

	e.exportSamples()

	return e.profile, nil
}

func (e *BudgetProfileExporter) exportSamples() {
	e.Session.stats.each(func(operationName string, st *queryStats) {
		calls := st.calls.Load()
		if calls == 0 {
			return
		}

		function := &pprof.Function{
			ID:         e.nextFunctionID(),
			Name:       operationName,
			SystemName: operationName,
		}
		e.profile.Function = append(
			e.profile.Function,
			function,
		)

		location := &pprof.Location{
			ID: e.nextLocationID(),
			Line: []pprof.Line{
				{
					Function: function,
				},
			},
		}
		e.profile.Location = append(
			e.profile.Location,
			location,
		)

		sample := &pprof.Sample{
			Location: []*pprof.Location{location},
			Value: []int64{
				st.operations.Load(),
				calls,
				st.truncated.Load(),
			},
		}
		e.profile.Sample = append(
			e.profile.Sample,
			sample,
		)
	})
}

func (e *BudgetProfileExporter) nextFunctionID() uint64 {
	// ID must be non-zero
	return uint64(len(e.profile.Function) + 1)
}

func (e *BudgetProfileExporter) nextLocationID() uint64 {
	// ID must be non-zero
	return uint64(len(e.profile.Location) + 1)
}
