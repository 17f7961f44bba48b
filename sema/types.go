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

// Package sema implements the semantic core of the Gradient type checker:
// canonical interned type representation, lazy definition resolution,
// the strict structural relation engine (the Judge), evaluation of derived
// type expressions (conditional, mapped, template-literal, indexed-access,
// keyof, generic application), and the compatibility policy layer
// (the Lawyer) that reproduces the reference language's assignability,
// including its deliberate unsoundnesses.
//
// Types are represented as TypeKey values interned behind TypeID handles.
// Handle equality implies structural equality. TypeKey payloads reference
// other types exclusively through TypeID and DefID handles, never through
// direct embedding, so cyclic type graphs are ordinary integer graphs.
package sema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gradient-lang/gradient/errors"
)

// TypeID is an opaque handle to an interned type.
// Two ids issued by the same Interner are equal
// if and only if their types are structurally identical.
//
// The zero value is TypeNone, the absence of a type.
type TypeID uint32

// Well-known types, pre-interned by every Interner at fixed handles.
const (
	TypeNone TypeID = iota
	// TypeError is the error type, also used as the unresolvable sentinel:
	// it relates to nothing except itself and any.
	TypeError
	TypeNever
	TypeUnknown
	TypeAny
	TypeVoid
	TypeUndefined
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeBigInt
	TypeSymbol
	// TypeNonPrimitive is the `object` keyword type.
	TypeNonPrimitive
	TypeTrue
	TypeFalse
	// TypeFunction is the root callable type that every function is
	// assignable to.
	TypeFunction

	lastWellKnownTypeID = TypeFunction
)

// firstUserTypeID is the first handle handed out for interned user types.
// The gap above the well-known handles is reserved.
const firstUserTypeID TypeID = 100

// IsWellKnown returns true if the id is one of the pre-interned handles.
func (id TypeID) IsWellKnown() bool {
	return id <= lastWellKnownTypeID
}

// Valid returns true if the id denotes a type, i.e. is not TypeNone.
func (id TypeID) Valid() bool {
	return id != TypeNone
}

// Kind discriminates the variants of a TypeKey.
type Kind uint8

const (
	KindNone Kind = iota
	KindError
	KindNever
	KindUnknown
	KindAny
	KindVoid
	KindUndefined
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	// KindNonPrimitive is the `object` keyword.
	KindNonPrimitive
	KindStringLiteral
	KindNumberLiteral
	KindBooleanLiteral
	KindBigIntLiteral
	KindUniqueSymbol
	KindObject
	KindArray
	KindTuple
	KindUnion
	KindIntersection
	KindFunction
	KindCallable
	KindTypeParameter
	KindApplication
	KindConditional
	KindMapped
	KindTemplateLiteral
	KindStringIntrinsic
	KindIndexAccess
	KindKeyOf
	KindEnum
	KindEnumMember
	KindLazy
	KindTypeQuery
	KindInfer
	KindThis
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindError:
		return "error"
	case KindNever:
		return "never"
	case KindUnknown:
		return "unknown"
	case KindAny:
		return "any"
	case KindVoid:
		return "void"
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBigInt:
		return "bigint"
	case KindSymbol:
		return "symbol"
	case KindNonPrimitive:
		return "object"
	case KindStringLiteral:
		return "string literal"
	case KindNumberLiteral:
		return "number literal"
	case KindBooleanLiteral:
		return "boolean literal"
	case KindBigIntLiteral:
		return "bigint literal"
	case KindUniqueSymbol:
		return "unique symbol"
	case KindObject:
		return "object type"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	case KindFunction:
		return "function"
	case KindCallable:
		return "callable"
	case KindTypeParameter:
		return "type parameter"
	case KindApplication:
		return "generic application"
	case KindConditional:
		return "conditional type"
	case KindMapped:
		return "mapped type"
	case KindTemplateLiteral:
		return "template literal type"
	case KindStringIntrinsic:
		return "string intrinsic"
	case KindIndexAccess:
		return "indexed access"
	case KindKeyOf:
		return "keyof"
	case KindEnum:
		return "enum"
	case KindEnumMember:
		return "enum member"
	case KindLazy:
		return "unresolved reference"
	case KindTypeQuery:
		return "type query"
	case KindInfer:
		return "infer"
	case KindThis:
		return "this"
	default:
		panic(errors.NewUnreachableError())
	}
}

// IsPrimitive returns true for the primitive keyword kinds.
func (k Kind) IsPrimitive() bool {
	return k >= KindError && k <= KindNonPrimitive
}

// IsLiteral returns true for the literal kinds, including unique symbols
// and enum members, which behave as nominal literals.
func (k Kind) IsLiteral() bool {
	switch k {
	case KindStringLiteral,
		KindNumberLiteral,
		KindBooleanLiteral,
		KindBigIntLiteral,
		KindUniqueSymbol,
		KindEnumMember:
		return true
	default:
		return false
	}
}

// Visibility of an object member.
type Visibility uint8

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityProtected:
		return "protected"
	case VisibilityPrivate:
		return "private"
	default:
		panic(errors.NewUnreachableError())
	}
}

// PropertyInfo describes one member of an object or callable shape.
//
// Type is the read type. WriteType, when valid, is an independent write
// type for split accessors: reads are covariant, writes contravariant.
// When WriteType is TypeNone the member reads and writes the same type.
type PropertyInfo struct {
	Name       string
	Type       TypeID
	WriteType  TypeID
	Optional   bool
	Readonly   bool
	Method     bool
	Visibility Visibility
	// Parent is the declaration that introduced a non-public member.
	// Private and protected members are compatible only when they
	// originate from the same declaration.
	Parent DefID
}

// EffectiveWriteType returns the type checked on assignment to the member.
func (p PropertyInfo) EffectiveWriteType() TypeID {
	if p.WriteType.Valid() {
		return p.WriteType
	}
	return p.Type
}

// IndexKind discriminates string and number index signatures.
type IndexKind uint8

const (
	IndexKindString IndexKind = iota
	IndexKindNumber
)

func (k IndexKind) String() string {
	switch k {
	case IndexKindString:
		return "string"
	case IndexKindNumber:
		return "number"
	default:
		panic(errors.NewUnreachableError())
	}
}

// IndexInfo describes an index signature.
type IndexInfo struct {
	Value    TypeID
	Readonly bool
}

// ShapeFlags carry non-structural object facts that are still part of the
// interned identity.
type ShapeFlags uint8

const (
	// ShapeFlagFresh marks an object literal type that has not been
	// widened yet. Fresh literals are subject to excess-property and
	// weak-type checks.
	ShapeFlagFresh ShapeFlags = 1 << iota
	// ShapeFlagRootObject marks the shape of the universal root object
	// declaration. Empty object literals are assignable to it even
	// though structural matching would find no members.
	ShapeFlagRootObject
)

// ObjectShape is the structural description of an object type.
// Properties are ordered by declaration.
type ObjectShape struct {
	Flags       ShapeFlags
	Properties  []PropertyInfo
	StringIndex *IndexInfo
	NumberIndex *IndexInfo

	// nameIndex is a lookup accelerator built by the Interner for shapes
	// past a size threshold. Not part of the interned identity.
	nameIndex map[string]int
}

// Property returns the named property, or nil.
func (s *ObjectShape) Property(name string) *PropertyInfo {
	if s == nil {
		return nil
	}
	if s.nameIndex != nil {
		if i, ok := s.nameIndex[name]; ok {
			return &s.Properties[i]
		}
		return nil
	}
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i]
		}
	}
	return nil
}

// IsFresh returns true for a not-yet-widened object literal type.
func (s *ObjectShape) IsFresh() bool {
	return s != nil && s.Flags&ShapeFlagFresh != 0
}

// IsRootObject returns true for the universal root object shape.
func (s *ObjectShape) IsRootObject() bool {
	return s != nil && s.Flags&ShapeFlagRootObject != 0
}

// IsWeak returns true if the shape has members and all of them are optional,
// and there are no index signatures. Weak targets require member overlap.
func (s *ObjectShape) IsWeak() bool {
	if s == nil || len(s.Properties) == 0 {
		return false
	}
	if s.StringIndex != nil || s.NumberIndex != nil {
		return false
	}
	for i := range s.Properties {
		if !s.Properties[i].Optional {
			return false
		}
	}
	return true
}

// ParamInfo describes one parameter of a function signature.
type ParamInfo struct {
	Name     string
	Type     TypeID
	Optional bool
	Rest     bool
}

// TypeParamInfo describes one type parameter of a generic signature,
// declaration, or mapped type.
type TypeParamInfo struct {
	Name       string
	Constraint TypeID
	Default    TypeID
	IsConst    bool
}

// FunctionFlags carry signature-level facts.
type FunctionFlags uint8

const (
	// FunctionFlagMethod marks a signature declared with method syntax.
	// Method parameters may be checked bivariantly by the Lawyer.
	FunctionFlagMethod FunctionFlags = 1 << iota
	// FunctionFlagConstructor marks a construct signature.
	FunctionFlagConstructor
)

// FunctionShape is the structural description of a single signature.
type FunctionShape struct {
	TypeParams []TypeParamInfo
	Params     []ParamInfo
	Return     TypeID
	// This is the declared this-parameter type, or TypeNone.
	This  TypeID
	Flags FunctionFlags
}

// IsMethod returns true for signatures declared with method syntax.
func (s *FunctionShape) IsMethod() bool {
	return s != nil && s.Flags&FunctionFlagMethod != 0
}

// MinArity returns the number of required parameters.
func (s *FunctionShape) MinArity() int {
	count := 0
	for i := range s.Params {
		p := &s.Params[i]
		if p.Optional || p.Rest {
			break
		}
		count++
	}
	return count
}

// HasRest returns true if the final parameter is a rest parameter.
func (s *FunctionShape) HasRest() bool {
	n := len(s.Params)
	return n > 0 && s.Params[n-1].Rest
}

// CallableShape is the structural description of an overloaded or hybrid
// callable: ordered call and construct signature lists, each element a
// KindFunction handle, plus properties and index signatures.
type CallableShape struct {
	CallSignatures      []TypeID
	ConstructSignatures []TypeID
	Properties          []PropertyInfo
	StringIndex         *IndexInfo
	NumberIndex         *IndexInfo
}

// Property returns the named property, or nil.
func (s *CallableShape) Property(name string) *PropertyInfo {
	if s == nil {
		return nil
	}
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i]
		}
	}
	return nil
}

// TupleElement describes one element of a tuple type.
type TupleElement struct {
	Type     TypeID
	Label    string
	Optional bool
	Rest     bool
}

// TupleShape is the structural description of a tuple type.
type TupleShape struct {
	Elements []TupleElement
	Readonly bool
}

// MinLength returns the number of elements before the first optional or
// rest element.
func (s *TupleShape) MinLength() int {
	count := 0
	for i := range s.Elements {
		e := &s.Elements[i]
		if e.Optional || e.Rest {
			break
		}
		count++
	}
	return count
}

// HasRest returns true if the tuple ends in a rest element.
func (s *TupleShape) HasRest() bool {
	n := len(s.Elements)
	return n > 0 && s.Elements[n-1].Rest
}

// ApplicationShape is a still-unreduced generic instantiation:
// a reference to a generic declaration applied to type arguments.
type ApplicationShape struct {
	Base TypeID
	Args []TypeID
}

// ConditionalShape is `Check extends Extends ? True : False`.
//
// Distributive is decided once, at construction, by whether Check is a
// naked type parameter. InferCount is the number of infer declarations
// inside Extends; their indices are 0..InferCount-1.
type ConditionalShape struct {
	Check        TypeID
	Extends      TypeID
	True         TypeID
	False        TypeID
	Distributive bool
	InferCount   uint32
}

// Modifier is a mapped-type modifier operation.
type Modifier uint8

const (
	// ModifierKeep leaves the modifier as inherited from the source
	// property when mapping homomorphically, absent otherwise.
	ModifierKeep Modifier = iota
	ModifierAdd
	ModifierRemove
)

// MappedShape is `{ [K in KeySource as NameType]?: Template }`.
//
// TypeParam is the iteration parameter K (a KindTypeParameter handle).
// NameType is TypeNone when there is no key remap clause.
type MappedShape struct {
	TypeParam   TypeID
	KeySource   TypeID
	Template    TypeID
	NameType    TypeID
	ReadonlyMod Modifier
	OptionalMod Modifier
}

// TemplateSpanKind discriminates literal text and interpolation spans.
type TemplateSpanKind uint8

const (
	SpanText TemplateSpanKind = iota
	SpanType
)

// TemplateSpan is one span of a template literal type.
type TemplateSpan struct {
	Kind TemplateSpanKind
	Text string
	Type TypeID
}

// StringIntrinsicKind enumerates the built-in string mapping types.
type StringIntrinsicKind uint8

const (
	IntrinsicUppercase StringIntrinsicKind = iota
	IntrinsicLowercase
	IntrinsicCapitalize
	IntrinsicUncapitalize
)

func (k StringIntrinsicKind) String() string {
	switch k {
	case IntrinsicUppercase:
		return "Uppercase"
	case IntrinsicLowercase:
		return "Lowercase"
	case IntrinsicCapitalize:
		return "Capitalize"
	case IntrinsicUncapitalize:
		return "Uncapitalize"
	default:
		panic(errors.NewUnreachableError())
	}
}

// TypeKey is the structural description of one type. Which payload fields
// are meaningful depends on Kind:
//
//	primitive kinds          no payload
//	KindStringLiteral        Str
//	KindNumberLiteral        Num
//	KindBooleanLiteral       Bool
//	KindBigIntLiteral        Str (decimal text, '-' prefixed if negative)
//	KindUniqueSymbol         Def
//	KindObject               Object
//	KindArray                Ref (element), Readonly
//	KindTuple                Tuple
//	KindUnion                List
//	KindIntersection         List
//	KindFunction             Function
//	KindCallable             Callable
//	KindTypeParameter        Param, Def (owner), Index (position)
//	KindApplication          App
//	KindConditional          Cond
//	KindMapped               Mapped
//	KindTemplateLiteral      Template
//	KindStringIntrinsic      Intrinsic, Ref (argument)
//	KindIndexAccess          Ref (object), Aux (index)
//	KindKeyOf                Ref (operand)
//	KindEnum                 Def
//	KindEnumMember           Def (enum), Str (member name), Ref (value type)
//	KindLazy                 Def
//	KindTypeQuery            Def
//	KindInfer                Index, Ref (constraint or TypeNone)
//	KindThis                 no payload
type TypeKey struct {
	Kind Kind

	Str  string
	Num  float64
	Bool bool

	Def   DefID
	Ref   TypeID
	Aux   TypeID
	Index uint32

	Readonly  bool
	Intrinsic StringIntrinsicKind

	List []TypeID

	Object   *ObjectShape
	Function *FunctionShape
	Callable *CallableShape
	Tuple    *TupleShape
	Param    *TypeParamInfo
	App      *ApplicationShape
	Cond     *ConditionalShape
	Mapped   *MappedShape
	Template []TemplateSpan
}

// NumberLiteralText formats a number literal value with the reference
// language's number-to-string rules: integral values print without a
// fraction, magnitudes at or above 1e21 print in exponent form.
func NumberLiteralText(value float64) string {
	if math.IsInf(value, 1) {
		return "Infinity"
	}
	if math.IsInf(value, -1) {
		return "-Infinity"
	}
	if math.IsNaN(value) {
		return "NaN"
	}
	abs := math.Abs(value)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		text := strconv.FormatFloat(value, 'e', -1, 64)
		// ECMA-262 prints "1e+21", Go prints "1e+21" too, but without a
		// two digit exponent guarantee. Normalize "e+05" style to "e+5".
		if i := strings.IndexAny(text, "eE"); i >= 0 {
			mantissa, exponent := text[:i], text[i+1:]
			sign := ""
			if len(exponent) > 0 && (exponent[0] == '+' || exponent[0] == '-') {
				sign, exponent = string(exponent[0]), exponent[1:]
			}
			exponent = strings.TrimLeft(exponent, "0")
			if exponent == "" {
				exponent = "0"
			}
			if sign == "" {
				sign = "+"
			}
			text = mantissa + "e" + sign + exponent
		}
		return text
	}
	if value == math.Trunc(value) && abs < 1e21 {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// LiteralText returns the source-like text of a literal key.
// It panics for non-literal kinds.
func (k *TypeKey) LiteralText() string {
	switch k.Kind {
	case KindStringLiteral:
		return strconv.Quote(k.Str)
	case KindNumberLiteral:
		return NumberLiteralText(k.Num)
	case KindBooleanLiteral:
		if k.Bool {
			return "true"
		}
		return "false"
	case KindBigIntLiteral:
		return k.Str + "n"
	case KindEnumMember:
		return k.Str
	case KindUniqueSymbol:
		return fmt.Sprintf("unique symbol #%d", k.Def)
	default:
		panic(errors.NewUnreachableError())
	}
}

// BaseOfLiteral returns the primitive a literal kind widens to.
// It panics for non-literal kinds.
func (k *TypeKey) BaseOfLiteral() TypeID {
	switch k.Kind {
	case KindStringLiteral:
		return TypeString
	case KindNumberLiteral:
		return TypeNumber
	case KindBooleanLiteral:
		return TypeBoolean
	case KindBigIntLiteral:
		return TypeBigInt
	case KindUniqueSymbol:
		return TypeSymbol
	case KindEnumMember:
		// The member's value primitive. The nominal enum base is a
		// separate notion, handled by the relation rules.
		return k.Ref
	default:
		panic(errors.NewUnreachableError())
	}
}

// wellKnownKeys lists the pre-interned types in handle order.
// The slot index is the TypeID.
var wellKnownKeys = [...]TypeKey{
	TypeNone:         {Kind: KindNone},
	TypeError:        {Kind: KindError},
	TypeNever:        {Kind: KindNever},
	TypeUnknown:      {Kind: KindUnknown},
	TypeAny:          {Kind: KindAny},
	TypeVoid:         {Kind: KindVoid},
	TypeUndefined:    {Kind: KindUndefined},
	TypeNull:         {Kind: KindNull},
	TypeBoolean:      {Kind: KindBoolean},
	TypeNumber:       {Kind: KindNumber},
	TypeString:       {Kind: KindString},
	TypeBigInt:       {Kind: KindBigInt},
	TypeSymbol:       {Kind: KindSymbol},
	TypeNonPrimitive: {Kind: KindNonPrimitive},
	TypeTrue:         {Kind: KindBooleanLiteral, Bool: true},
	TypeFalse:        {Kind: KindBooleanLiteral, Bool: false},
	TypeFunction:     {Kind: KindFunction, Function: rootFunctionShape},
}

// rootFunctionShape is the shape of the root callable type:
// (...args: any[]) => any, accepting any call.
var rootFunctionShape = &FunctionShape{
	Params: []ParamInfo{
		{Name: "args", Type: TypeAny, Rest: true},
	},
	Return: TypeAny,
}

// kindOfWellKnown maps primitive kinds back to their sentinel handles.
func kindOfWellKnown(kind Kind) (TypeID, bool) {
	switch kind {
	case KindNone:
		return TypeNone, true
	case KindError:
		return TypeError, true
	case KindNever:
		return TypeNever, true
	case KindUnknown:
		return TypeUnknown, true
	case KindAny:
		return TypeAny, true
	case KindVoid:
		return TypeVoid, true
	case KindUndefined:
		return TypeUndefined, true
	case KindNull:
		return TypeNull, true
	case KindBoolean:
		return TypeBoolean, true
	case KindNumber:
		return TypeNumber, true
	case KindString:
		return TypeString, true
	case KindBigInt:
		return TypeBigInt, true
	case KindSymbol:
		return TypeSymbol, true
	case KindNonPrimitive:
		return TypeNonPrimitive, true
	default:
		return TypeNone, false
	}
}
