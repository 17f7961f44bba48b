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
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionNormalization(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	t.Run("empty is never", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeNever, it.Union(nil))
	})

	t.Run("singleton is the member", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeString, it.Union([]TypeID{TypeString}))
	})

	t.Run("never drops out", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeString, it.Union([]TypeID{TypeString, TypeNever}))
		assert.Equal(t, TypeNever, it.Union([]TypeID{TypeNever, TypeNever}))
	})

	t.Run("any absorbs", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeAny, it.Union([]TypeID{TypeString, TypeAny}))
		assert.Equal(t, TypeAny, it.Union([]TypeID{TypeUnknown, TypeAny}))
	})

	t.Run("unknown absorbs everything but any", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeUnknown, it.Union([]TypeID{TypeString, TypeUnknown}))
		assert.Equal(t, TypeUnknown, it.Union([]TypeID{TypeNever, TypeUnknown}))
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			it.Union([]TypeID{TypeString, TypeNumber}),
			it.Union([]TypeID{TypeString, TypeNumber, TypeString, TypeNumber}),
		)
	})

	t.Run("order insensitive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			it.Union([]TypeID{TypeString, TypeNumber, TypeBoolean}),
			it.Union([]TypeID{TypeBoolean, TypeString, TypeNumber}),
		)
	})

	t.Run("nested unions flatten", func(t *testing.T) {
		t.Parallel()
		inner := it.Union([]TypeID{TypeString, TypeNumber})
		outer := it.Union([]TypeID{inner, TypeBoolean})
		assert.Equal(t,
			it.Union([]TypeID{TypeString, TypeNumber, TypeBoolean}),
			outer,
		)
	})

	t.Run("base primitive absorbs its literals", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			TypeString,
			it.Union([]TypeID{it.StringLiteral("a"), TypeString}),
		)
		assert.Equal(t,
			TypeNumber,
			it.Union([]TypeID{it.NumberLiteral(1), TypeNumber}),
		)
		assert.Equal(t,
			TypeBigInt,
			it.Union([]TypeID{it.BigIntLiteral("1"), TypeBigInt}),
		)
		assert.Equal(t,
			TypeBoolean,
			it.Union([]TypeID{TypeTrue, TypeBoolean}),
		)

		// Literals without their base stay.
		both := it.Union([]TypeID{it.StringLiteral("a"), it.StringLiteral("b")})
		key := it.Lookup(both)
		require.Equal(t, KindUnion, key.Kind)
		assert.Len(t, key.List, 2)
	})

	t.Run("true and false collapse to boolean", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeBoolean, it.Union([]TypeID{TypeTrue, TypeFalse}))
		assert.Equal(t,
			it.Union([]TypeID{TypeBoolean, TypeString}),
			it.Union([]TypeID{TypeTrue, TypeString, TypeFalse}),
		)
	})

	t.Run("Union2", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeString, it.Union2(TypeString, TypeString))
		assert.Equal(t,
			it.Union([]TypeID{TypeString, TypeNumber}),
			it.Union2(TypeNumber, TypeString),
		)
	})
}

func TestIntersectionNormalization(t *testing.T) {

	t.Parallel()

	it := NewInterner()

	t.Run("empty is unknown", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeUnknown, it.Intersection(nil))
	})

	t.Run("singleton is the member", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeString, it.Intersection([]TypeID{TypeString}))
	})

	t.Run("never propagates", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeNever, it.Intersection([]TypeID{TypeString, TypeNever}))
		assert.Equal(t, TypeNever, it.Intersection([]TypeID{TypeNever, TypeAny}))
	})

	t.Run("error propagates", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeError, it.Intersection([]TypeID{TypeString, TypeError}))
	})

	t.Run("any absorbs", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeAny, it.Intersection([]TypeID{TypeString, TypeAny}))
	})

	t.Run("unknown drops out", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TypeString, it.Intersection([]TypeID{TypeString, TypeUnknown}))
		assert.Equal(t, TypeUnknown, it.Intersection([]TypeID{TypeUnknown, TypeUnknown}))
	})

	t.Run("duplicates collapse and order is canonical", func(t *testing.T) {
		t.Parallel()
		a := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "a", Type: TypeNumber}},
		})
		b := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "b", Type: TypeString}},
		})
		assert.Equal(t,
			it.Intersection([]TypeID{a, b}),
			it.Intersection([]TypeID{b, a, b}),
		)
	})

	t.Run("nested intersections flatten", func(t *testing.T) {
		t.Parallel()
		a := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "a", Type: TypeNumber}},
		})
		b := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "b", Type: TypeString}},
		})
		c := it.Object(&ObjectShape{
			Properties: []PropertyInfo{{Name: "c", Type: TypeBoolean}},
		})
		assert.Equal(t,
			it.Intersection([]TypeID{a, b, c}),
			it.Intersection([]TypeID{it.Intersection([]TypeID{a, b}), c}),
		)
	})
}

func TestUnionProperties(t *testing.T) {

	it := NewInterner()

	pool := []TypeID{
		TypeString,
		TypeNumber,
		TypeBoolean,
		TypeNever,
		TypeUndefined,
		TypeNull,
		it.StringLiteral("a"),
		it.StringLiteral("b"),
		it.NumberLiteral(1),
		TypeTrue,
		TypeFalse,
	}

	memberGen := gen.OneConstOf(
		pool[0], pool[1], pool[2], pool[3], pool[4], pool[5],
		pool[6], pool[7], pool[8], pool[9], pool[10],
	)

	properties := gopter.NewProperties(nil)

	properties.Property("union is order insensitive", prop.ForAll(
		func(members []TypeID) bool {
			reversed := make([]TypeID, len(members))
			for i, id := range members {
				reversed[len(members)-1-i] = id
			}
			return it.Union(members) == it.Union(reversed)
		},
		gen.SliceOf(memberGen),
	))

	properties.Property("union is idempotent", prop.ForAll(
		func(members []TypeID) bool {
			once := it.Union(members)
			return it.Union([]TypeID{once}) == once
		},
		gen.SliceOf(memberGen),
	))

	properties.Property("union absorbs itself", prop.ForAll(
		func(members []TypeID) bool {
			once := it.Union(members)
			return it.Union(append(members, members...)) == once
		},
		gen.SliceOf(memberGen),
	))

	properties.Property("never is the union identity", prop.ForAll(
		func(members []TypeID) bool {
			return it.Union(append(members, TypeNever)) == it.Union(members)
		},
		gen.SliceOf(memberGen),
	))

	properties.TestingRun(t)
}

func TestIntersectionProperties(t *testing.T) {

	it := NewInterner()

	memberGen := gen.OneConstOf(
		TypeString,
		TypeNumber,
		TypeBoolean,
		TypeUnknown,
		it.StringLiteral("a"),
		it.NumberLiteral(1),
	)

	properties := gopter.NewProperties(nil)

	properties.Property("intersection is order insensitive", prop.ForAll(
		func(members []TypeID) bool {
			reversed := make([]TypeID, len(members))
			for i, id := range members {
				reversed[len(members)-1-i] = id
			}
			return it.Intersection(members) == it.Intersection(reversed)
		},
		gen.SliceOf(memberGen),
	))

	properties.Property("unknown is the intersection identity", prop.ForAll(
		func(members []TypeID) bool {
			return it.Intersection(append(members, TypeUnknown)) ==
				it.Intersection(members)
		},
		gen.SliceOf(memberGen),
	))

	properties.TestingRun(t)
}
