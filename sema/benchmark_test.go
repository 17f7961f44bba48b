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
	"testing"
)

func benchmarkObjectPair(it *Interner, size int) (TypeID, TypeID) {
	wider := make([]PropertyInfo, size)
	for i := range wider {
		wider[i] = PropertyInfo{
			Name: "property" + strconv.Itoa(i),
			Type: TypeNumber,
		}
	}
	narrower := make([]PropertyInfo, size/2)
	copy(narrower, wider)

	return it.Object(&ObjectShape{Properties: wider}),
		it.Object(&ObjectShape{Properties: narrower})
}

func BenchmarkIntern(b *testing.B) {

	b.Run("hit", func(b *testing.B) {
		it := NewInterner()
		shape := &ObjectShape{
			Properties: []PropertyInfo{
				{Name: "x", Type: TypeNumber},
				{Name: "y", Type: TypeString},
			},
		}
		it.Object(shape)

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			it.Object(shape)
		}
	})

	b.Run("miss", func(b *testing.B) {
		it := NewInterner()

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			it.StringLiteral(strconv.Itoa(i))
		}
	})
}

func BenchmarkSubtype(b *testing.B) {

	env := newTestEnvironment()
	source, target := benchmarkObjectPair(env.Interner(), 32)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		session := NewSession(env, Config{})
		if !session.Subtype(source, target) {
			b.Fatal("expected subtype")
		}
	}
}

func BenchmarkAssignable(b *testing.B) {

	env := newTestEnvironment()
	source, target := benchmarkObjectPair(env.Interner(), 32)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		session := NewSession(env, Config{})
		if !session.Assignable(source, target).OK {
			b.Fatal("expected assignable")
		}
	}
}

func BenchmarkEvaluate(b *testing.B) {

	env := newTestEnvironment()
	it := env.Interner()
	object, _ := benchmarkObjectPair(it, 32)

	defs := env.Definitions()
	params := []TypeParamInfo{{Name: "K"}}
	def := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Flags",
		TypeParams: params,
	})
	kParam := it.TypeParameter(def, 0, &params[0])

	mapped := it.MappedType(&MappedShape{
		TypeParam: kParam,
		KeySource: it.KeyOfType(object),
		Template:  it.IndexAccessType(object, kParam),
	})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		session := NewSession(env, Config{})
		session.Evaluate(mapped)
	}
}
