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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEnvironment() *Environment {
	return NewEnvironment(NewInterner(), NewDefinitionStore())
}

func newTestSession(env *Environment) *Session {
	return NewSession(env, Config{})
}

func TestSessionStrictAndLenientVerdictsDiffer(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	// any flows into string under the default profile but is no strict
	// subtype of it.
	require.True(t, session.Assignable(TypeAny, TypeString).OK)
	require.False(t, session.Subtype(TypeAny, TypeString))

	// Asking again answers from the per-relation caches and must not
	// leak one relation's answer into the other.
	require.True(t, session.Assignable(TypeAny, TypeString).OK)
	require.False(t, session.Subtype(TypeAny, TypeString))
}

func TestSessionSubtype(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	assert.True(t, session.Subtype(TypeString, TypeString))
	assert.True(t, session.Subtype(TypeString, TypeUnknown))
	assert.True(t, session.Subtype(TypeString, TypeAny))
	assert.True(t, session.Subtype(TypeNever, TypeString))

	assert.False(t, session.Subtype(TypeString, TypeNumber))
	assert.False(t, session.Subtype(TypeUnknown, TypeString))
	assert.False(t, session.Subtype(TypeError, TypeString))
	assert.False(t, session.Subtype(TypeString, TypeError))
}

func TestSessionIdentical(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	assert.True(t, session.Identical(TypeString, TypeString))
	assert.False(t, session.Identical(TypeString, TypeNumber))

	// Mutual subtyping, not handle equality: an alias body and the
	// structural type it names are identical.
	a := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "x", Type: TypeNumber},
		},
	})
	b := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "x", Type: TypeNumber},
		},
	})
	assert.Equal(t, a, b)
	assert.True(t, session.Identical(a, b))

	// One-directional subtyping is not identity.
	wider := it.Object(&ObjectShape{})
	assert.True(t, session.Subtype(a, wider))
	assert.False(t, session.Identical(a, wider))
}

func TestSessionEvaluate(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	// Structural types come back unchanged.
	assert.Equal(t, TypeString, session.Evaluate(TypeString))

	object := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "name", Type: TypeString},
		},
	})
	assert.Equal(t, object, session.Evaluate(object))

	// keyof reduces to the property name literals.
	keys := session.Evaluate(it.KeyOfType(object))
	assert.Equal(t, it.StringLiteral("name"), keys)

	// Repeated queries answer from the evaluated cache.
	assert.Equal(t, keys, session.Evaluate(it.KeyOfType(object)))
}

func TestSessionExplainFailure(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := newTestSession(env)

	assert.Nil(t, session.ExplainFailure(TypeString, TypeString))

	failure := session.ExplainFailure(TypeString, TypeNumber)
	require.NotNil(t, failure)
	assert.Equal(t, TypeString, failure.Source)
	assert.Equal(t, TypeNumber, failure.Target)
}

func TestSessionTracer(t *testing.T) {

	t.Parallel()

	type recordedQuery struct {
		operationName string
		attrs         []attribute.KeyValue
	}

	var mu sync.Mutex
	var recorded []recordedQuery

	env := newTestEnvironment()
	session := NewSession(env, Config{
		Tracer: QueryTracer{
			TracingEnabled: true,
			OnRecordQuery: func(
				operationName string,
				_ time.Duration,
				attrs []attribute.KeyValue,
			) {
				mu.Lock()
				defer mu.Unlock()
				recorded = append(recorded, recordedQuery{
					operationName: operationName,
					attrs:         attrs,
				})
			},
		},
	})

	require.True(t, session.Subtype(TypeString, TypeString))
	require.True(t, session.Assignable(TypeString, TypeString).OK)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, recorded, 2)
	assert.Equal(t, "query.subtype", recorded[0].operationName)
	assert.Equal(t, "query.assignable", recorded[1].operationName)

	require.Len(t, recorded[0].attrs, 3)
	assert.Equal(t,
		attribute.Int64("source", int64(TypeString)),
		recorded[0].attrs[0],
	)
	assert.Equal(t,
		attribute.Bool("ok", true),
		recorded[0].attrs[2],
	)
}

func TestSessionTracerDisabled(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	session := NewSession(env, Config{
		Tracer: QueryTracer{
			TracingEnabled: false,
			OnRecordQuery: func(string, time.Duration, []attribute.KeyValue) {
				t.Fatal("tracer must not fire when disabled")
			},
		},
	})

	require.True(t, session.Subtype(TypeString, TypeString))
}

func TestSessionCachedVerdictSkipsTracer(t *testing.T) {

	t.Parallel()

	var mu sync.Mutex
	count := 0

	env := newTestEnvironment()
	session := NewSession(env, Config{
		Tracer: QueryTracer{
			TracingEnabled: true,
			OnRecordQuery: func(string, time.Duration, []attribute.KeyValue) {
				mu.Lock()
				defer mu.Unlock()
				count++
			},
		},
	})

	require.True(t, session.Subtype(TypeString, TypeString))
	require.True(t, session.Subtype(TypeString, TypeString))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestSessionConcurrentQueries(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	object := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "x", Type: TypeNumber},
			{Name: "y", Type: TypeString},
		},
	})
	narrower := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "x", Type: TypeNumber},
		},
	})

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.True(t, session.Subtype(object, narrower))
				assert.False(t, session.Subtype(narrower, object))
				assert.True(t, session.Assignable(object, narrower).OK)
				assert.Equal(t, object, session.Evaluate(object))
			}
		}()
	}

	wg.Wait()
}

func TestSessionInstantiate(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	defs := env.Definitions()
	session := newTestSession(env)

	// type Box<T> = { value: T }
	boxParams := []TypeParamInfo{{Name: "T"}}
	boxDef := defs.Add(&DefinitionInfo{
		Kind:       DefKindTypeAlias,
		Name:       "Box",
		TypeParams: boxParams,
	})
	boxParam := it.TypeParameter(boxDef, 0, &boxParams[0])
	boxBody := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "value", Type: boxParam},
		},
	})
	defs.Get(boxDef).Body = boxBody

	box := it.Lazy(boxDef)

	instantiated := session.Instantiate(box, []TypeID{TypeString})
	expected := it.Object(&ObjectShape{
		Properties: []PropertyInfo{
			{Name: "value", Type: TypeString},
		},
	})
	assert.Equal(t, expected, instantiated)

	// A non-generic, non-reference target is just evaluated.
	assert.Equal(t, TypeString, session.Instantiate(TypeString, []TypeID{TypeNumber}))
}

func TestSessionApparentType(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()
	it := env.Interner()
	session := newTestSession(env)

	apparent := session.ApparentType(TypeString)
	key := it.Lookup(apparent)
	require.Equal(t, KindObject, key.Kind)

	length := key.Object.Property("length")
	require.NotNil(t, length)
	assert.Equal(t, TypeNumber, length.Type)
}

func TestSessionProfile(t *testing.T) {

	t.Parallel()

	env := newTestEnvironment()

	session := newTestSession(env)
	assert.Equal(t, DefaultProfile(), session.Profile())
	assert.Same(t, env, session.Environment())

	strict, err := LoadProfile("strict")
	require.NoError(t, err)
	strictSession := NewSession(env, Config{Profile: strict})
	assert.Same(t, strict, strictSession.Profile())
}
