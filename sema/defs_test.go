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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionStoreAdd(t *testing.T) {

	t.Parallel()

	store := NewDefinitionStore()
	assert.Equal(t, 0, store.Len())

	first := store.Add(&DefinitionInfo{
		Kind: DefKindTypeAlias,
		Name: "First",
	})
	second := store.Add(&DefinitionInfo{
		Kind: DefKindInterface,
		Name: "Second",
	})

	assert.True(t, first.Valid())
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, store.Len())

	info := store.Get(first)
	require.NotNil(t, info)
	assert.Equal(t, "First", info.Name)
	assert.Equal(t, DefKindTypeAlias, info.Kind)

	assert.Nil(t, store.Get(InvalidDefID))
	assert.Nil(t, store.Get(second+1))
}

func TestDefinitionStoreForeach(t *testing.T) {

	t.Parallel()

	store := NewDefinitionStore()

	names := []string{"A", "B", "C"}
	ids := make([]DefID, len(names))
	for i, name := range names {
		ids[i] = store.Add(&DefinitionInfo{
			Kind: DefKindTypeAlias,
			Name: name,
		})
	}

	var visitedIDs []DefID
	var visitedNames []string
	store.Foreach(func(id DefID, info *DefinitionInfo) {
		visitedIDs = append(visitedIDs, id)
		visitedNames = append(visitedNames, info.Name)
	})

	assert.Equal(t, ids, visitedIDs)
	assert.Equal(t, names, visitedNames)
}

func TestDefinitionStoreContentAddressing(t *testing.T) {

	t.Parallel()

	store := NewDefinitionStore()

	info := func(body TypeID) *DefinitionInfo {
		return &DefinitionInfo{
			Kind:   DefKindTypeAlias,
			Name:   "Point",
			FileID: 3,
			Span:   Span{Start: 10, End: 42},
			Body:   body,
		}
	}

	id := store.AddContentAddressed(info(TypeString))

	// Re-adding the same declaration keeps the id and replaces the info.
	again := store.AddContentAddressed(info(TypeNumber))
	assert.Equal(t, id, again)
	assert.Equal(t, TypeNumber, store.Get(id).Body)
	assert.Equal(t, 1, store.Len())

	// A different span is a different declaration.
	moved := store.AddContentAddressed(&DefinitionInfo{
		Kind:   DefKindTypeAlias,
		Name:   "Point",
		FileID: 3,
		Span:   Span{Start: 50, End: 82},
	})
	assert.NotEqual(t, id, moved)
	assert.Equal(t, 2, store.Len())

	hash := contentAddress(info(TypeString))
	found, ok := store.ContentAddressOf(hash)
	require.True(t, ok)
	assert.Equal(t, id, found)
}

func TestDefinitionStoreNameNormalization(t *testing.T) {

	t.Parallel()

	store := NewDefinitionStore()

	// The same name in precomposed and decomposed encodings addresses
	// one declaration.
	precomposed := store.AddContentAddressed(&DefinitionInfo{
		Kind: DefKindTypeAlias,
		Name: "café",
	})
	decomposed := store.AddContentAddressed(&DefinitionInfo{
		Kind: DefKindTypeAlias,
		Name: "café",
	})

	assert.Equal(t, precomposed, decomposed)
	assert.Equal(t, 1, store.Len())
}

func TestDefinitionStoreConcurrent(t *testing.T) {

	t.Parallel()

	store := NewDefinitionStore()

	const goroutines = 8
	ids := make([]DefID, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			// Content addressing makes concurrent re-binds idempotent.
			ids[g] = store.AddContentAddressed(&DefinitionInfo{
				Kind:   DefKindInterface,
				Name:   "Shared",
				FileID: 1,
				Span:   Span{Start: 0, End: 10},
			})
		}(g)
	}
	wg.Wait()

	for g := 1; g < goroutines; g++ {
		assert.Equal(t, ids[0], ids[g])
	}
	assert.Equal(t, 1, store.Len())
}

func TestDefinitionInfoIsNumericEnum(t *testing.T) {

	t.Parallel()

	assert.False(t, (*DefinitionInfo)(nil).IsNumericEnum())
	assert.False(t, (&DefinitionInfo{Kind: DefKindTypeAlias}).IsNumericEnum())
	assert.False(t, (&DefinitionInfo{
		Kind:     DefKindEnum,
		EnumKind: EnumKindString,
	}).IsNumericEnum())
	assert.True(t, (&DefinitionInfo{
		Kind:     DefKindEnum,
		EnumKind: EnumKindNumeric,
	}).IsNumericEnum())
}
