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
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/gradient-lang/gradient/errors"
)

const (
	// shardBits selects how many shards the interner spreads entries
	// over. Each shard has its own lock, so unrelated interns from
	// different goroutines proceed without contention.
	shardBits  = 6
	shardCount = 1 << shardBits
	shardMask  = shardCount - 1

	// propertyMapThreshold is the shape size at which the interner
	// builds a property name lookup map.
	propertyMapThreshold = 24
)

// Interner owns canonical, deduplicated type storage.
//
// Intern is idempotent: structurally equal keys yield the same TypeID.
// Entries are never mutated after insertion. An Interner is safe for
// concurrent use; its lifetime must cover every Environment built on it.
type Interner struct {
	shards   [shardCount]internerShard
	lists    listInterner
	apparent apparentShapeCache
}

type internerShard struct {
	mu    sync.RWMutex
	byKey map[string]TypeID
	slots []TypeKey
}

// NewInterner returns an Interner with the well-known types pre-interned.
func NewInterner() *Interner {
	it := &Interner{}
	for i := range it.shards {
		it.shards[i].byKey = make(map[string]TypeID)
	}
	return it
}

// idFor composes a TypeID from a shard number and the slot index inside it.
func idFor(shard, local int) TypeID {
	return firstUserTypeID + TypeID(local<<shardBits|shard)
}

// shardAndLocal splits a user TypeID back into shard and slot index.
func shardAndLocal(id TypeID) (shard, local int) {
	n := int(id - firstUserTypeID)
	return n & shardMask, n >> shardBits
}

// Intern returns the canonical handle for the given key, creating it if
// needed. Union and intersection keys are normalized first, so Intern is
// total: any two structurally equal inputs map to one handle.
func (it *Interner) Intern(key TypeKey) TypeID {
	switch key.Kind {
	case KindUnion:
		return it.Union(key.List)
	case KindIntersection:
		return it.Intersection(key.List)
	case KindTemplateLiteral:
		return it.TemplateLiteralType(key.Template)
	case KindBooleanLiteral:
		if key.Bool {
			return TypeTrue
		}
		return TypeFalse
	}
	if id, ok := kindOfWellKnown(key.Kind); ok {
		return id
	}
	return it.internRaw(key)
}

// internRaw stores the key as given, without normalization.
func (it *Interner) internRaw(key TypeKey) TypeID {
	key = it.canonicalizeLists(key)

	var buf [128]byte
	fp := appendFingerprint(buf[:0], &key)
	shardIndex := int(fnv1a(fp)) & shardMask
	shard := &it.shards[shardIndex]

	shard.mu.RLock()
	if id, ok := shard.byKey[string(fp)]; ok {
		shard.mu.RUnlock()
		return id
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if id, ok := shard.byKey[string(fp)]; ok {
		return id
	}

	if key.Object != nil {
		key.Object = finishShape(key.Object)
	}

	local := len(shard.slots)
	shard.slots = append(shard.slots, key)
	id := idFor(shardIndex, local)
	shard.byKey[string(fp)] = id
	return id
}

// Lookup returns the key behind a handle. It is total for every handle the
// Interner issued. The result must not be mutated.
func (it *Interner) Lookup(id TypeID) *TypeKey {
	if id <= lastWellKnownTypeID {
		return &wellKnownKeys[id]
	}
	if id < firstUserTypeID {
		panic(errors.NewUnexpectedError("lookup of reserved type id %d", id))
	}

	shardIndex, local := shardAndLocal(id)
	shard := &it.shards[shardIndex]

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if local >= len(shard.slots) {
		panic(errors.NewUnexpectedError("lookup of unissued type id %d", id))
	}
	return &shard.slots[local]
}

// KindOf returns the kind of the type behind a handle.
func (it *Interner) KindOf(id TypeID) Kind {
	return it.Lookup(id).Kind
}

// canonicalizeLists routes every contained type id slice through the list
// interner, so shapes sharing a member list share one backing array.
func (it *Interner) canonicalizeLists(key TypeKey) TypeKey {
	if key.List != nil {
		key.List = it.lists.intern(key.List)
	}
	if key.App != nil && key.App.Args != nil {
		app := *key.App
		app.Args = it.lists.intern(app.Args)
		key.App = &app
	}
	if key.Callable != nil {
		callable := *key.Callable
		callable.CallSignatures = it.lists.intern(callable.CallSignatures)
		callable.ConstructSignatures = it.lists.intern(callable.ConstructSignatures)
		key.Callable = &callable
	}
	return key
}

// finishShape builds the name lookup map for large shapes.
func finishShape(shape *ObjectShape) *ObjectShape {
	if len(shape.Properties) < propertyMapThreshold || shape.nameIndex != nil {
		return shape
	}
	finished := *shape
	finished.nameIndex = make(map[string]int, len(finished.Properties))
	for i := range finished.Properties {
		finished.nameIndex[finished.Properties[i].Name] = i
	}
	return &finished
}

// listInterner deduplicates type id sequences. Parameter lists, union
// member lists, and argument lists recur constantly; storing each distinct
// sequence once keeps large programs compact.
type listInterner struct {
	mu    sync.RWMutex
	lists map[string][]TypeID
}

func (li *listInterner) intern(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}

	var buf [64]byte
	fp := buf[:0]
	for _, id := range ids {
		fp = binary.AppendUvarint(fp, uint64(id))
	}

	li.mu.RLock()
	if canonical, ok := li.lists[string(fp)]; ok {
		li.mu.RUnlock()
		return canonical
	}
	li.mu.RUnlock()

	li.mu.Lock()
	defer li.mu.Unlock()

	if li.lists == nil {
		li.lists = make(map[string][]TypeID)
	}
	if canonical, ok := li.lists[string(fp)]; ok {
		return canonical
	}

	canonical := make([]TypeID, len(ids))
	copy(canonical, ids)
	li.lists[string(fp)] = canonical
	return canonical
}

// fnv1a hashes a fingerprint for shard selection.
func fnv1a(data []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// appendFingerprint writes a canonical byte encoding of the key. Two keys
// are structurally equal exactly when their fingerprints are equal; all
// nested structure is already reduced to TypeID/DefID handles, so the
// encoding is shallow.
func appendFingerprint(b []byte, key *TypeKey) []byte {
	b = append(b, byte(key.Kind))

	appendID := func(id TypeID) {
		b = binary.AppendUvarint(b, uint64(id))
	}
	appendDef := func(id DefID) {
		b = binary.AppendUvarint(b, uint64(id))
	}
	appendString := func(s string) {
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	}
	appendBool := func(v bool) {
		if v {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}
	appendList := func(ids []TypeID) {
		b = binary.AppendUvarint(b, uint64(len(ids)))
		for _, id := range ids {
			b = binary.AppendUvarint(b, uint64(id))
		}
	}
	appendIndexInfo := func(info *IndexInfo) {
		if info == nil {
			b = append(b, 0)
			return
		}
		b = append(b, 1)
		appendID(info.Value)
		appendBool(info.Readonly)
	}
	appendProperties := func(props []PropertyInfo) {
		b = binary.AppendUvarint(b, uint64(len(props)))
		for i := range props {
			p := &props[i]
			appendString(p.Name)
			appendID(p.Type)
			appendID(p.WriteType)
			var bits byte
			if p.Optional {
				bits |= 1
			}
			if p.Readonly {
				bits |= 2
			}
			if p.Method {
				bits |= 4
			}
			bits |= byte(p.Visibility) << 3
			b = append(b, bits)
			appendDef(p.Parent)
		}
	}

	switch key.Kind {
	case KindNone, KindError, KindNever, KindUnknown, KindAny, KindVoid,
		KindUndefined, KindNull, KindBoolean, KindNumber, KindString,
		KindBigInt, KindSymbol, KindNonPrimitive, KindThis:
		// kind byte only

	case KindStringLiteral, KindBigIntLiteral:
		appendString(key.Str)

	case KindNumberLiteral:
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(key.Num))

	case KindBooleanLiteral:
		appendBool(key.Bool)

	case KindUniqueSymbol, KindLazy, KindTypeQuery, KindEnum:
		appendDef(key.Def)

	case KindEnumMember:
		appendDef(key.Def)
		appendString(key.Str)
		appendID(key.Ref)

	case KindObject:
		shape := key.Object
		b = append(b, byte(shape.Flags))
		appendProperties(shape.Properties)
		appendIndexInfo(shape.StringIndex)
		appendIndexInfo(shape.NumberIndex)

	case KindArray:
		appendID(key.Ref)
		appendBool(key.Readonly)

	case KindTuple:
		shape := key.Tuple
		appendBool(shape.Readonly)
		b = binary.AppendUvarint(b, uint64(len(shape.Elements)))
		for i := range shape.Elements {
			e := &shape.Elements[i]
			appendID(e.Type)
			appendString(e.Label)
			appendBool(e.Optional)
			appendBool(e.Rest)
		}

	case KindUnion, KindIntersection:
		appendList(key.List)

	case KindFunction:
		shape := key.Function
		b = append(b, byte(shape.Flags))
		b = binary.AppendUvarint(b, uint64(len(shape.TypeParams)))
		for i := range shape.TypeParams {
			tp := &shape.TypeParams[i]
			appendString(tp.Name)
			appendID(tp.Constraint)
			appendID(tp.Default)
			appendBool(tp.IsConst)
		}
		b = binary.AppendUvarint(b, uint64(len(shape.Params)))
		for i := range shape.Params {
			p := &shape.Params[i]
			appendString(p.Name)
			appendID(p.Type)
			appendBool(p.Optional)
			appendBool(p.Rest)
		}
		appendID(shape.Return)
		appendID(shape.This)

	case KindCallable:
		shape := key.Callable
		appendList(shape.CallSignatures)
		appendList(shape.ConstructSignatures)
		appendProperties(shape.Properties)
		appendIndexInfo(shape.StringIndex)
		appendIndexInfo(shape.NumberIndex)

	case KindTypeParameter:
		appendDef(key.Def)
		b = binary.AppendUvarint(b, uint64(key.Index))
		param := key.Param
		appendString(param.Name)
		appendID(param.Constraint)
		appendID(param.Default)
		appendBool(param.IsConst)

	case KindApplication:
		appendID(key.App.Base)
		appendList(key.App.Args)

	case KindConditional:
		cond := key.Cond
		appendID(cond.Check)
		appendID(cond.Extends)
		appendID(cond.True)
		appendID(cond.False)
		appendBool(cond.Distributive)
		b = binary.AppendUvarint(b, uint64(cond.InferCount))

	case KindMapped:
		mapped := key.Mapped
		appendID(mapped.TypeParam)
		appendID(mapped.KeySource)
		appendID(mapped.Template)
		appendID(mapped.NameType)
		b = append(b, byte(mapped.ReadonlyMod), byte(mapped.OptionalMod))

	case KindTemplateLiteral:
		b = binary.AppendUvarint(b, uint64(len(key.Template)))
		for i := range key.Template {
			span := &key.Template[i]
			b = append(b, byte(span.Kind))
			if span.Kind == SpanText {
				appendString(span.Text)
			} else {
				appendID(span.Type)
			}
		}

	case KindStringIntrinsic:
		b = append(b, byte(key.Intrinsic))
		appendID(key.Ref)

	case KindIndexAccess:
		appendID(key.Ref)
		appendID(key.Aux)

	case KindKeyOf:
		appendID(key.Ref)

	case KindInfer:
		b = binary.AppendUvarint(b, uint64(key.Index))
		appendID(key.Ref)

	default:
		panic(errors.NewUnreachableError())
	}

	return b
}

// sortIDs sorts a type id slice in place into canonical order.
func sortIDs(ids []TypeID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
}
