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

package orderedmap

// OrderedMap is a map that iterates entries in insertion order.
//
// The zero value is ready to use.
// An OrderedMap is not safe for concurrent use.
type OrderedMap[K comparable, V any] struct {
	pairs   []Pair[K, V]
	indices map[K]int
}

// Pair is a single key-value entry of an OrderedMap.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// New returns a new OrderedMap with capacity for the given number of entries.
func New[K comparable, V any](size int) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		pairs:   make([]Pair[K, V], 0, size),
		indices: make(map[K]int, size),
	}
}

func (om *OrderedMap[K, V]) ensureInitialized() {
	if om.indices == nil {
		om.indices = make(map[K]int)
	}
}

// Get returns the value associated with the given key.
// The second return value indicates if the key is present in the map.
func (om *OrderedMap[K, V]) Get(key K) (result V, present bool) {
	if om == nil || om.indices == nil {
		return
	}

	var index int
	if index, present = om.indices[key]; present {
		return om.pairs[index].Value, true
	}
	return
}

// Contains returns true if the key is present in the map.
func (om *OrderedMap[K, V]) Contains(key K) (present bool) {
	if om == nil || om.indices == nil {
		return
	}

	_, present = om.indices[key]
	return
}

// Index returns the insertion position of the given key,
// or -1 if the key is not present.
func (om *OrderedMap[K, V]) Index(key K) int {
	if om == nil || om.indices == nil {
		return -1
	}

	index, present := om.indices[key]
	if !present {
		return -1
	}
	return index
}

// Set sets the key-value pair, and returns what Get would have returned
// on that key prior to the call to Set.
// Setting an existing key keeps its original insertion position.
func (om *OrderedMap[K, V]) Set(key K, value V) (oldValue V, present bool) {
	om.ensureInitialized()

	var index int
	if index, present = om.indices[key]; present {
		oldValue = om.pairs[index].Value
		om.pairs[index].Value = value
		return
	}

	om.indices[key] = len(om.pairs)
	om.pairs = append(om.pairs, Pair[K, V]{
		Key:   key,
		Value: value,
	})
	return
}

// Delete removes the key-value pair, and returns what Get would have returned
// on that key prior to the call to Delete.
// Deletion preserves the relative order of the remaining entries.
func (om *OrderedMap[K, V]) Delete(key K) (oldValue V, present bool) {
	if om == nil || om.indices == nil {
		return
	}

	var index int
	if index, present = om.indices[key]; !present {
		return
	}

	oldValue = om.pairs[index].Value
	om.pairs = append(om.pairs[:index], om.pairs[index+1:]...)
	delete(om.indices, key)
	for i := index; i < len(om.pairs); i++ {
		om.indices[om.pairs[i].Key] = i
	}
	return
}

// Len returns the number of entries of the map.
func (om *OrderedMap[K, V]) Len() int {
	if om == nil {
		return 0
	}
	return len(om.pairs)
}

// Pairs returns the entries of the map in insertion order.
// The returned slice must not be mutated.
func (om *OrderedMap[K, V]) Pairs() []Pair[K, V] {
	if om == nil {
		return nil
	}
	return om.pairs
}

// Keys returns the keys of the map in insertion order.
func (om *OrderedMap[K, V]) Keys() []K {
	if om == nil || len(om.pairs) == 0 {
		return nil
	}

	keys := make([]K, len(om.pairs))
	for i, pair := range om.pairs {
		keys[i] = pair.Key
	}
	return keys
}

// Values returns the values of the map in insertion order.
func (om *OrderedMap[K, V]) Values() []V {
	if om == nil || len(om.pairs) == 0 {
		return nil
	}

	values := make([]V, len(om.pairs))
	for i, pair := range om.pairs {
		values[i] = pair.Value
	}
	return values
}

// Foreach iterates over the entries of the map in insertion order,
// and invokes the given function for each key-value pair.
func (om *OrderedMap[K, V]) Foreach(f func(key K, value V)) {
	if om == nil {
		return
	}

	for _, pair := range om.pairs {
		f(pair.Key, pair.Value)
	}
}

// ForeachWithError iterates over the entries of the map in insertion order,
// and invokes the given function for each key-value pair.
// If the function returns an error, iteration stops and the error is returned.
func (om *OrderedMap[K, V]) ForeachWithError(f func(key K, value V) error) error {
	if om == nil {
		return nil
	}

	for _, pair := range om.pairs {
		err := f(pair.Key, pair.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

// ForAnyKey iterates over the keys of the map in insertion order,
// and returns true as soon as the given predicate returns true.
func (om *OrderedMap[K, V]) ForAnyKey(predicate func(key K) bool) bool {
	if om == nil {
		return false
	}

	for _, pair := range om.pairs {
		if predicate(pair.Key) {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy of the map.
func (om *OrderedMap[K, V]) Clone() *OrderedMap[K, V] {
	if om == nil {
		return nil
	}

	clone := New[K, V](len(om.pairs))
	for _, pair := range om.pairs {
		clone.Set(pair.Key, pair.Value)
	}
	return clone
}
