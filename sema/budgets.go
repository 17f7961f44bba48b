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

// Default budgets. Pathological input exhausts a budget and gets a
// conservative answer; nothing in the solver recurses unguarded.
const (
	DefaultSubtypeDepthBudget     = 100
	DefaultEvaluateDepthBudget    = 50
	DefaultInstantiateDepthBudget = 50
	DefaultOperationBudget        = 1_000_000
	DefaultTemplateExpansionLimit = 10_000
	DefaultDistributionWidthLimit = 100
)

// Budgets bound one top-level query.
type Budgets struct {
	// SubtypeDepth bounds relation recursion.
	SubtypeDepth int
	// EvaluateDepth bounds evaluation recursion.
	EvaluateDepth int
	// InstantiateDepth bounds generic instantiation nesting.
	InstantiateDepth int
	// Operations bounds the total work of one query across all of the
	// above, the cooperative cancellation mechanism for runaway input.
	Operations int64
	// TemplateExpansion bounds the cross-product size of one template
	// literal expansion.
	TemplateExpansion int
	// DistributionWidth bounds the union width a distributive
	// conditional is instantiated over.
	DistributionWidth int
}

// DefaultBudgets returns the standard limits.
func DefaultBudgets() Budgets {
	return Budgets{
		SubtypeDepth:      DefaultSubtypeDepthBudget,
		EvaluateDepth:     DefaultEvaluateDepthBudget,
		InstantiateDepth:  DefaultInstantiateDepthBudget,
		Operations:        DefaultOperationBudget,
		TemplateExpansion: DefaultTemplateExpansionLimit,
		DistributionWidth: DefaultDistributionWidthLimit,
	}
}

// BudgetKind names the budget a truncated result ran into.
type BudgetKind uint8

const (
	BudgetNone BudgetKind = iota
	BudgetSubtypeDepth
	BudgetEvaluateDepth
	BudgetInstantiateDepth
	BudgetOperations
	BudgetTemplateExpansion
	BudgetDistributionWidth
)

func (k BudgetKind) String() string {
	switch k {
	case BudgetNone:
		return "none"
	case BudgetSubtypeDepth:
		return "subtype depth"
	case BudgetEvaluateDepth:
		return "evaluation depth"
	case BudgetInstantiateDepth:
		return "instantiation depth"
	case BudgetOperations:
		return "operation count"
	case BudgetTemplateExpansion:
		return "template expansion"
	case BudgetDistributionWidth:
		return "distribution width"
	default:
		return "unknown"
	}
}

// guard carries the safety counters of one top-level query. It is private
// to that query: never shared across goroutines, so counting is plain.
type guard struct {
	budgets    Budgets
	operations int64
	truncated  BudgetKind
}

func newGuard(budgets Budgets) *guard {
	return &guard{budgets: budgets}
}

// spend consumes operation budget. It reports false once the budget is
// exhausted; callers must then return their conservative answer.
func (g *guard) spend() bool {
	g.operations++
	if g.operations > g.budgets.Operations {
		g.trip(BudgetOperations)
		return false
	}
	return true
}

// trip records the first exhausted budget. The first cause is kept:
// an operation-budget trip inside a depth-truncated branch should not
// replace the original cause.
func (g *guard) trip(kind BudgetKind) {
	if g.truncated == BudgetNone {
		g.truncated = kind
	}
}

// Truncated reports whether any budget was exhausted, and which.
func (g *guard) Truncated() (BudgetKind, bool) {
	return g.truncated, g.truncated != BudgetNone
}

// spent returns the operations consumed so far.
func (g *guard) spent() int64 {
	return g.operations
}
