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
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"

	"github.com/gradient-lang/gradient/common/bimap"
	"github.com/gradient-lang/gradient/common/orderedmap"
)

// DefID is the stable identity of a declaration, assigned once during
// binding. All cross-reference type construction goes through Lazy(DefID)
// so forward references and recursive declarations never need a type
// handle to exist yet.
//
// The zero value is invalid.
type DefID uint32

// InvalidDefID is the zero DefID, denoting no declaration.
const InvalidDefID DefID = 0

// firstValidDefID is the first DefID handed out by a DefinitionStore.
const firstValidDefID DefID = 1

// Valid returns true if the id denotes a declaration.
func (id DefID) Valid() bool {
	return id != InvalidDefID
}

// DefKind discriminates declaration kinds.
type DefKind uint8

const (
	DefKindUnknown DefKind = iota
	// DefKindTypeAlias declarations are always expanded to their body.
	DefKindTypeAlias
	// DefKindInterface declarations resolve to their declared shape,
	// lazily, so recursive interfaces terminate.
	DefKindInterface
	// DefKindClass declarations have an instance shape and a static shape.
	DefKindClass
	DefKindEnum
	DefKindNamespace
	DefKindFunction
	DefKindVariable
)

func (k DefKind) String() string {
	switch k {
	case DefKindUnknown:
		return "unknown"
	case DefKindTypeAlias:
		return "type alias"
	case DefKindInterface:
		return "interface"
	case DefKindClass:
		return "class"
	case DefKindEnum:
		return "enum"
	case DefKindNamespace:
		return "namespace"
	case DefKindFunction:
		return "function"
	case DefKindVariable:
		return "variable"
	default:
		return "invalid"
	}
}

// EnumKind classifies an enum declaration by its member values.
type EnumKind uint8

const (
	EnumKindNumeric EnumKind = iota
	EnumKindString
	EnumKindHeterogeneous
)

// EnumMemberValueKind discriminates enum member values.
type EnumMemberValueKind uint8

const (
	EnumValueNumber EnumMemberValueKind = iota
	EnumValueString
	// EnumValueComputed members have no compile-time value.
	// Their type is the enum's base primitive.
	EnumValueComputed
)

// EnumMemberValue is the compile-time value of one enum member.
type EnumMemberValue struct {
	Kind EnumMemberValueKind
	Num  float64
	Str  string
}

// Span locates a declaration inside its file, in byte offsets.
type Span struct {
	Start uint32
	End   uint32
}

// DefinitionInfo is everything the solver needs to know about one
// declaration. The binder populates it; all contained types are handles,
// typically Lazy ones.
type DefinitionInfo struct {
	Kind       DefKind
	Name       string
	TypeParams []TypeParamInfo

	// Body is the declared type: the alias body, the variable's type,
	// or the function's type. TypeNone when not applicable.
	Body TypeID

	// InstanceShape and StaticShape are set for classes and interfaces.
	InstanceShape TypeID
	StaticShape   TypeID

	Extends    []TypeID
	Implements []TypeID

	EnumKind    EnumKind
	EnumMembers *orderedmap.OrderedMap[string, EnumMemberValue]

	Exports *orderedmap.OrderedMap[string, DefID]

	FileID uint32
	Span   Span
}

// IsNumericEnum returns true for enums whose members are all numeric.
func (info *DefinitionInfo) IsNumericEnum() bool {
	return info != nil && info.Kind == DefKindEnum && info.EnumKind == EnumKindNumeric
}

// ContentHash is a stable content address for a declaration.
type ContentHash [blake2b.Size256]byte

// DefinitionStore issues DefIDs and owns declaration info for the lifetime
// of one checked program.
//
// A DefinitionStore is safe for concurrent use. Lookups of already-added
// definitions and new additions may race; additions are idempotent under
// content addressing.
type DefinitionStore struct {
	mu        sync.RWMutex
	infos     []*DefinitionInfo // index = DefID - firstValidDefID
	addresses *bimap.BiMap[ContentHash, DefID]
}

// NewDefinitionStore returns an empty store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		addresses: bimap.NewBiMap[ContentHash, DefID](),
	}
}

// Add registers a declaration and returns its fresh DefID.
func (s *DefinitionStore) Add(info *DefinitionInfo) DefID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(info)
}

func (s *DefinitionStore) addLocked(info *DefinitionInfo) DefID {
	s.infos = append(s.infos, info)
	return firstValidDefID + DefID(len(s.infos)-1)
}

// AddContentAddressed registers a declaration under its content address:
// re-adding a declaration with the same normalized name, file, and span
// returns the previously issued DefID with the info replaced, keeping
// identities stable across incremental re-binds.
func (s *DefinitionStore) AddContentAddressed(info *DefinitionInfo) DefID {
	hash := contentAddress(info)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.addresses.Get(hash); ok {
		s.infos[id-firstValidDefID] = info
		return id
	}

	id := s.addLocked(info)
	s.addresses.Insert(hash, id)
	return id
}

// ContentAddressOf returns the DefID previously issued for the given
// content address, if any.
func (s *DefinitionStore) ContentAddressOf(hash ContentHash) (DefID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addresses.Get(hash)
}

// Get returns the info for a DefID, or nil for unknown ids.
func (s *DefinitionStore) Get(id DefID) *DefinitionInfo {
	if !id.Valid() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	index := int(id - firstValidDefID)
	if index >= len(s.infos) {
		return nil
	}
	return s.infos[index]
}

// Len returns the number of registered declarations.
func (s *DefinitionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.infos)
}

// Foreach invokes f for every registered declaration, in DefID order.
func (s *DefinitionStore) Foreach(f func(id DefID, info *DefinitionInfo)) {
	s.mu.RLock()
	infos := s.infos
	s.mu.RUnlock()

	for i, info := range infos {
		f(firstValidDefID+DefID(i), info)
	}
}

// contentAddress hashes the declaration's identity: its NFC-normalized
// name, its file, and its span. Normalization keeps addresses stable when
// a source file is re-encoded.
func contentAddress(info *DefinitionInfo) ContentHash {
	var buf [13]byte
	buf[0] = byte(info.Kind)
	binary.LittleEndian.PutUint32(buf[1:], info.FileID)
	binary.LittleEndian.PutUint32(buf[5:], info.Span.Start)
	binary.LittleEndian.PutUint32(buf[9:], info.Span.End)

	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	_, _ = h.Write([]byte(norm.NFC.String(info.Name)))
	_, _ = h.Write(buf[:])

	var hash ContentHash
	h.Sum(hash[:0])
	return hash
}
