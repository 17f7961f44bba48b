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
)

// Environment maps declaration identities to type handles for the lifetime
// of one checked program. It resolves Lazy and TypeQuery references on
// demand and caches the results.
//
// An Environment is safe for concurrent use. A lookup may race with the
// first resolution of the same id; resolution is deterministic and
// idempotent, so duplicated work converges on the same handle.
type Environment struct {
	interner *Interner
	defs     *DefinitionStore

	// resolved caches DefID → declared TypeID.
	// Written insert-if-absent, read lock-free.
	resolved sync.Map

	// queried caches DefID → typeof TypeID.
	queried sync.Map
}

// NewEnvironment returns an Environment over the given interner and
// definition store. The interner must outlive the environment.
func NewEnvironment(interner *Interner, defs *DefinitionStore) *Environment {
	return &Environment{
		interner: interner,
		defs:     defs,
	}
}

// Interner returns the environment's interner.
func (e *Environment) Interner() *Interner {
	return e.interner
}

// Definitions returns the environment's definition store.
func (e *Environment) Definitions() *DefinitionStore {
	return e.defs
}

// ResolveLazy returns the declared type of a definition:
// the body of an alias, the instance shape of an interface or class,
// the nominal enum type of an enum, the declared type of a function or
// variable, and the exports object of a namespace.
//
// A missing or unknown definition resolves to the unresolvable sentinel
// TypeError, so one missing declaration cannot cascade.
func (e *Environment) ResolveLazy(def DefID) TypeID {
	if cached, ok := e.resolved.Load(def); ok {
		return cached.(TypeID)
	}

	resolved := e.resolveLazyUncached(def)

	actual, _ := e.resolved.LoadOrStore(def, resolved)
	return actual.(TypeID)
}

func (e *Environment) resolveLazyUncached(def DefID) TypeID {
	info := e.defs.Get(def)
	if info == nil {
		return TypeError
	}

	switch info.Kind {
	case DefKindTypeAlias, DefKindFunction, DefKindVariable:
		if !info.Body.Valid() {
			return TypeError
		}
		return info.Body

	case DefKindInterface, DefKindClass:
		if !info.InstanceShape.Valid() {
			return TypeError
		}
		return info.InstanceShape

	case DefKindEnum:
		return e.interner.EnumType(def)

	case DefKindNamespace:
		return e.exportsObject(info)

	default:
		return TypeError
	}
}

// ResolveTypeQuery returns the type of the value named by a declaration
// (`typeof decl`): the static shape of a class, the members object of an
// enum, and the declared type of a function or variable.
func (e *Environment) ResolveTypeQuery(def DefID) TypeID {
	if cached, ok := e.queried.Load(def); ok {
		return cached.(TypeID)
	}

	resolved := e.resolveTypeQueryUncached(def)

	actual, _ := e.queried.LoadOrStore(def, resolved)
	return actual.(TypeID)
}

func (e *Environment) resolveTypeQueryUncached(def DefID) TypeID {
	info := e.defs.Get(def)
	if info == nil {
		return TypeError
	}

	switch info.Kind {
	case DefKindClass:
		if !info.StaticShape.Valid() {
			return TypeError
		}
		return info.StaticShape

	case DefKindEnum:
		return e.enumMembersObject(def, info)

	case DefKindFunction, DefKindVariable:
		if !info.Body.Valid() {
			return TypeError
		}
		return info.Body

	case DefKindNamespace:
		return e.exportsObject(info)

	default:
		// Type-only declarations have no value.
		return TypeError
	}
}

// ResolveStep resolves Lazy and TypeQuery handles one step.
// Any other handle is returned unchanged.
func (e *Environment) ResolveStep(id TypeID) TypeID {
	key := e.interner.Lookup(id)
	switch key.Kind {
	case KindLazy:
		return e.ResolveLazy(key.Def)
	case KindTypeQuery:
		return e.ResolveTypeQuery(key.Def)
	default:
		return id
	}
}

// Resolve follows Lazy and TypeQuery handles until a structural type is
// reached. A reference cycle that never reaches structure (an alias whose
// body is itself, directly or through other aliases) resolves to the
// unresolvable sentinel.
func (e *Environment) Resolve(id TypeID) TypeID {
	var visited map[TypeID]struct{}

	for {
		key := e.interner.Lookup(id)
		if key.Kind != KindLazy && key.Kind != KindTypeQuery {
			return id
		}

		if visited == nil {
			visited = make(map[TypeID]struct{}, 4)
		}
		if _, cycle := visited[id]; cycle {
			return TypeError
		}
		visited[id] = struct{}{}

		id = e.ResolveStep(id)
	}
}

// TypeParams returns the type parameters of a declaration, nil for
// non-generic or unknown declarations.
func (e *Environment) TypeParams(def DefID) []TypeParamInfo {
	info := e.defs.Get(def)
	if info == nil {
		return nil
	}
	return info.TypeParams
}

// EnumMemberType returns the nominal member type of one enum member, and
// false if the declaration is not an enum or has no such member.
func (e *Environment) EnumMemberType(def DefID, name string) (TypeID, bool) {
	info := e.defs.Get(def)
	if info == nil || info.Kind != DefKindEnum || info.EnumMembers == nil {
		return TypeNone, false
	}

	value, ok := info.EnumMembers.Get(name)
	if !ok {
		return TypeNone, false
	}

	return e.interner.EnumMember(def, name, e.enumValueType(value)), true
}

// IsNumericEnum returns true if the declaration is an enum whose members
// are all numeric.
func (e *Environment) IsNumericEnum(def DefID) bool {
	return e.defs.Get(def).IsNumericEnum()
}

// EnumValueUnion returns the union of an enum's member value types. This
// is the structural view the relation rules compare against, under the
// nominal opacity rules.
func (e *Environment) EnumValueUnion(def DefID) TypeID {
	info := e.defs.Get(def)
	if info == nil || info.Kind != DefKindEnum || info.EnumMembers == nil {
		return TypeError
	}

	members := make([]TypeID, 0, info.EnumMembers.Len())
	info.EnumMembers.Foreach(func(name string, value EnumMemberValue) {
		members = append(members, e.interner.EnumMember(def, name, e.enumValueType(value)))
	})
	if len(members) == 0 {
		return TypeNever
	}
	return e.interner.Union(members)
}

func (e *Environment) enumValueType(value EnumMemberValue) TypeID {
	switch value.Kind {
	case EnumValueNumber:
		return e.interner.NumberLiteral(value.Num)
	case EnumValueString:
		return e.interner.StringLiteral(value.Str)
	default:
		return TypeNumber
	}
}

// enumMembersObject builds the `typeof E` object: one readonly property
// per member, typed with the member's nominal type.
func (e *Environment) enumMembersObject(def DefID, info *DefinitionInfo) TypeID {
	if info.EnumMembers == nil {
		return e.interner.Object(&ObjectShape{})
	}

	properties := make([]PropertyInfo, 0, info.EnumMembers.Len())
	info.EnumMembers.Foreach(func(name string, value EnumMemberValue) {
		properties = append(properties, PropertyInfo{
			Name:     name,
			Type:     e.interner.EnumMember(def, name, e.enumValueType(value)),
			Readonly: true,
		})
	})
	return e.interner.Object(&ObjectShape{Properties: properties})
}

// exportsObject builds the object type of a namespace's exports.
func (e *Environment) exportsObject(info *DefinitionInfo) TypeID {
	if info.Exports == nil {
		return e.interner.Object(&ObjectShape{})
	}

	properties := make([]PropertyInfo, 0, info.Exports.Len())
	info.Exports.Foreach(func(name string, exported DefID) {
		properties = append(properties, PropertyInfo{
			Name:     name,
			Type:     e.interner.Lazy(exported),
			Readonly: true,
		})
	})
	return e.interner.Object(&ObjectShape{Properties: properties})
}

// Export returns the declaration exported under the given name, if any.
func (e *Environment) Export(def DefID, name string) (DefID, bool) {
	info := e.defs.Get(def)
	if info == nil || info.Exports == nil {
		return InvalidDefID, false
	}
	return info.Exports.Get(name)
}

// BaseTypes returns the declared base types of a class or interface.
func (e *Environment) BaseTypes(def DefID) []TypeID {
	info := e.defs.Get(def)
	if info == nil {
		return nil
	}
	return info.Extends
}
