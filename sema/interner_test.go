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
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternerWellKnownHandles(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	assert.Equal(t, KindError, it.KindOf(TypeError))
	assert.Equal(t, KindNever, it.KindOf(TypeNever))
	assert.Equal(t, KindUnknown, it.KindOf(TypeUnknown))
	assert.Equal(t, KindAny, it.KindOf(TypeAny))
	assert.Equal(t, KindVoid, it.KindOf(TypeVoid))
	assert.Equal(t, KindUndefined, it.KindOf(TypeUndefined))
	assert.Equal(t, KindNull, it.KindOf(TypeNull))
	assert.Equal(t, KindBoolean, it.KindOf(TypeBoolean))
	assert.Equal(t, KindNumber, it.KindOf(TypeNumber))
	assert.Equal(t, KindString, it.KindOf(TypeString))
	assert.Equal(t, KindBigInt, it.KindOf(TypeBigInt))
	assert.Equal(t, KindSymbol, it.KindOf(TypeSymbol))
	assert.Equal(t, KindNonPrimitive, it.KindOf(TypeNonPrimitive))

	assert.True(t, TypeString.IsWellKnown())
	assert.True(t, TypeString.Valid())
	assert.False(t, TypeNone.Valid())

	// Interning a well-known kind returns its fixed handle instead of
	// allocating a user slot.
	assert.Equal(t, TypeString, it.Intern(TypeKey{Kind: KindString}))
	assert.Equal(t, TypeNever, it.Intern(TypeKey{Kind: KindNever}))
}

func TestInternerIdempotent(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	a := it.StringLiteral("hello")
	b := it.StringLiteral("hello")
	assert.Equal(t, a, b)
	assert.False(t, a.IsWellKnown())

	c := it.StringLiteral("world")
	assert.NotEqual(t, a, c)

	key := it.Lookup(a)
	require.Equal(t, KindStringLiteral, key.Kind)
	assert.Equal(t, "hello", key.Str)
}

func TestInternerNumberLiterals(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	assert.Equal(t, it.NumberLiteral(42), it.NumberLiteral(42))
	assert.NotEqual(t, it.NumberLiteral(42), it.NumberLiteral(43))

	// Negative zero compares equal to zero in Go but the two are
	// distinct literal types.
	zero := it.NumberLiteral(0)
	negZero := it.NumberLiteral(math.Copysign(0, -1))
	assert.NotEqual(t, zero, negZero)

	nan := it.NumberLiteral(math.NaN())
	assert.Equal(t, nan, it.NumberLiteral(math.NaN()))
}

func TestInternerBooleanLiterals(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	assert.Equal(t, TypeTrue, it.BooleanLiteral(true))
	assert.Equal(t, TypeFalse, it.BooleanLiteral(false))
	assert.Equal(t, TypeTrue, it.Intern(TypeKey{Kind: KindBooleanLiteral, Bool: true}))
}

func TestInternerObjects(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	shape := func() *ObjectShape {
		return &ObjectShape{
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString, Optional: true},
			},
		}
	}

	a := it.Object(shape())
	b := it.Object(shape())
	assert.Equal(t, a, b)

	// Property order is part of the identity.
	swapped := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "y", Type: TypeString, Optional: true},
			{Name: "x", Type: TypeNumber},
		},
	})
	assert.NotEqual(t, a, swapped)

	// Freshness is part of the identity too.
	fresh := it.ObjectFresh(shape())
	assert.NotEqual(t, a, fresh)
	assert.True(t, it.Lookup(fresh).Object.IsFresh())
	assert.Equal(t, a, it.WidenFreshness(fresh))
}

func TestInternerLargeShapePropertyLookup(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	properties := make([]PropertyInfo, 0, 40)
	for i := 0; i < 40; i++ {
		properties = append(properties, PropertyInfo{
			Name: fmt.Sprintf("p%d", i),
			Type: TypeNumber,
		})
	}
	id := it.Object(&ObjectShape{Properties: properties})

	shape := it.Lookup(id).Object
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("p%d", i)
		prop := shape.Property(name)
		require.NotNil(t, prop, "property %s", name)
		assert.Equal(t, name, prop.Name)
	}
	assert.Nil(t, shape.Property("missing"))
}

func TestInternerComposites(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	array := it.Array(TypeString)
	assert.Equal(t, array, it.Array(TypeString))
	assert.NotEqual(t, array, it.ReadonlyArray(TypeString))
	assert.NotEqual(t, array, it.Array(TypeNumber))

	key := it.Lookup(array)
	assert.Equal(t, KindArray, key.Kind)
	assert.Equal(t, TypeString, key.Ref)
	assert.False(t, key.Readonly)

	tuple := it.Tuple(&TupleShape{
		Elements: []TupleElement{
			{Type: TypeString},
			{Type: TypeNumber, Optional: true},
		},
	})
	assert.Equal(t, tuple, it.Tuple(&TupleShape{
		Elements: []TupleElement{
			{Type: TypeString},
			{Type: TypeNumber, Optional: true},
		},
	}))

	fn := it.FunctionType(&FunctionShape{
		Params: []ParamInfo{{Name: "x", Type: TypeNumber}},
		Return: TypeString,
	})
	assert.Equal(t, KindFunction, it.KindOf(fn))
}

func TestInternerWidenLiteral(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	assert.Equal(t, TypeString, it.WidenLiteral(it.StringLiteral("a")))
	assert.Equal(t, TypeNumber, it.WidenLiteral(it.NumberLiteral(1)))
	assert.Equal(t, TypeBoolean, it.WidenLiteral(TypeTrue))
	assert.Equal(t, TypeBigInt, it.WidenLiteral(it.BigIntLiteral("10")))

	// Non-literal types pass through.
	assert.Equal(t, TypeString, it.WidenLiteral(TypeString))

	// Unions widen member-wise.
	widened := it.WidenLiteral(it.Union([]TypeID{
		it.StringLiteral("a"),
		it.NumberLiteral(1),
	}))
	assert.Equal(t, it.Union([]TypeID{TypeString, TypeNumber}), widened)
}

func TestInternerConcurrent(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	const goroutines = 8
	const perGoroutine = 200

	ids := make([][]TypeID, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			ids[g] = make([]TypeID, 0, perGoroutine*2)
			for i := 0; i < perGoroutine; i++ {
				ids[g] = append(ids[g],
					it.StringLiteral(fmt.Sprintf("key%d", i)),
					it.Array(it.NumberLiteral(float64(i))),
				)
			}
		}(g)
	}
	wg.Wait()

	// Every goroutine must observe the same handle for the same key.
	for g := 1; g < goroutines; g++ {
		assert.Equal(t, ids[0], ids[g])
	}
}

func TestInternerListSharing(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	union := it.Union([]TypeID{TypeString, TypeNumber, TypeBoolean})
	intersection := it.Intersection([]TypeID{TypeString, TypeNumber, TypeBoolean})
	require.NotEqual(t, union, intersection)

	// Distinct composites with the same canonical member list share one
	// backing array.
	unionList := it.Lookup(union).List
	intersectionList := it.Lookup(intersection).List
	require.Len(t, unionList, 3)
	require.Len(t, intersectionList, 3)
	assert.Same(t, &unionList[0], &intersectionList[0])
}
