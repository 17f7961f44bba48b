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
	"bytes"
	"math"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/mod/semver"

	"github.com/gradient-lang/gradient/common/orderedmap"
	"github.com/gradient-lang/gradient/errors"
)

// CurrentSnapshotVersion identifies the snapshot image layout. Decoding
// accepts images whose major version matches.
//
// Snapshots are a debugging and test aid, not a persistence contract:
// the layout may change between releases without migration support.
const CurrentSnapshotVersion = "v1.0.0"

var snapshotEncMode = func() cbor.EncMode {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return encMode
}()

var snapshotDecMode = func() cbor.DecMode {
	decMode, err := cbor.DecOptions{
		IntDec:           cbor.IntDecConvertNone,
		MaxArrayElements: math.MaxInt64,
		MaxMapPairs:      math.MaxInt64,
		MaxNestedLevels:  math.MaxInt16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return decMode
}()

type encodedSnapshot struct {
	Version string              `cbor:"0,keyasint"`
	Types   []encodedTypeEntry  `cbor:"1,keyasint,omitempty"`
	Defs    []encodedDefinition `cbor:"2,keyasint,omitempty"`
}

type encodedTypeEntry struct {
	ID  uint32         `cbor:"0,keyasint"`
	Key encodedTypeKey `cbor:"1,keyasint"`
}

// encodedTypeKey mirrors TypeKey. Num has no omitempty: negative zero
// compares equal to zero but is a distinct interned identity, so it must
// survive encoding.
type encodedTypeKey struct {
	Kind      uint8                 `cbor:"0,keyasint"`
	Str       string                `cbor:"1,keyasint,omitempty"`
	Num       float64               `cbor:"2,keyasint"`
	Bool      bool                  `cbor:"3,keyasint,omitempty"`
	Def       uint32                `cbor:"4,keyasint,omitempty"`
	Ref       uint32                `cbor:"5,keyasint,omitempty"`
	Aux       uint32                `cbor:"6,keyasint,omitempty"`
	Index     uint32                `cbor:"7,keyasint,omitempty"`
	Readonly  bool                  `cbor:"8,keyasint,omitempty"`
	Intrinsic uint8                 `cbor:"9,keyasint,omitempty"`
	List      []uint32              `cbor:"10,keyasint,omitempty"`
	Object    *encodedObjectShape   `cbor:"11,keyasint,omitempty"`
	Function  *encodedFunctionShape `cbor:"12,keyasint,omitempty"`
	Callable  *encodedCallableShape `cbor:"13,keyasint,omitempty"`
	Tuple     *encodedTupleShape    `cbor:"14,keyasint,omitempty"`
	Param     *encodedTypeParam     `cbor:"15,keyasint,omitempty"`
	App       *encodedApplication   `cbor:"16,keyasint,omitempty"`
	Cond      *encodedConditional   `cbor:"17,keyasint,omitempty"`
	Mapped    *encodedMapped        `cbor:"18,keyasint,omitempty"`
	Template  []encodedTemplateSpan `cbor:"19,keyasint,omitempty"`
}

type encodedObjectShape struct {
	Flags       uint8             `cbor:"0,keyasint,omitempty"`
	Properties  []encodedProperty `cbor:"1,keyasint,omitempty"`
	StringIndex *encodedIndex     `cbor:"2,keyasint,omitempty"`
	NumberIndex *encodedIndex     `cbor:"3,keyasint,omitempty"`
}

type encodedProperty struct {
	Name       string `cbor:"0,keyasint"`
	Type       uint32 `cbor:"1,keyasint,omitempty"`
	WriteType  uint32 `cbor:"2,keyasint,omitempty"`
	Optional   bool   `cbor:"3,keyasint,omitempty"`
	Readonly   bool   `cbor:"4,keyasint,omitempty"`
	Method     bool   `cbor:"5,keyasint,omitempty"`
	Visibility uint8  `cbor:"6,keyasint,omitempty"`
	Parent     uint32 `cbor:"7,keyasint,omitempty"`
}

type encodedIndex struct {
	Value    uint32 `cbor:"0,keyasint,omitempty"`
	Readonly bool   `cbor:"1,keyasint,omitempty"`
}

type encodedFunctionShape struct {
	TypeParams []encodedTypeParam `cbor:"0,keyasint,omitempty"`
	Params     []encodedParam     `cbor:"1,keyasint,omitempty"`
	Return     uint32             `cbor:"2,keyasint,omitempty"`
	This       uint32             `cbor:"3,keyasint,omitempty"`
	Flags      uint8              `cbor:"4,keyasint,omitempty"`
}

type encodedParam struct {
	Name     string `cbor:"0,keyasint,omitempty"`
	Type     uint32 `cbor:"1,keyasint,omitempty"`
	Optional bool   `cbor:"2,keyasint,omitempty"`
	Rest     bool   `cbor:"3,keyasint,omitempty"`
}

type encodedTypeParam struct {
	Name       string `cbor:"0,keyasint,omitempty"`
	Constraint uint32 `cbor:"1,keyasint,omitempty"`
	Default    uint32 `cbor:"2,keyasint,omitempty"`
	IsConst    bool   `cbor:"3,keyasint,omitempty"`
}

type encodedCallableShape struct {
	CallSignatures      []uint32          `cbor:"0,keyasint,omitempty"`
	ConstructSignatures []uint32          `cbor:"1,keyasint,omitempty"`
	Properties          []encodedProperty `cbor:"2,keyasint,omitempty"`
	StringIndex         *encodedIndex     `cbor:"3,keyasint,omitempty"`
	NumberIndex         *encodedIndex     `cbor:"4,keyasint,omitempty"`
}

type encodedTupleShape struct {
	Elements []encodedTupleElement `cbor:"0,keyasint,omitempty"`
	Readonly bool                  `cbor:"1,keyasint,omitempty"`
}

type encodedTupleElement struct {
	Type     uint32 `cbor:"0,keyasint,omitempty"`
	Label    string `cbor:"1,keyasint,omitempty"`
	Optional bool   `cbor:"2,keyasint,omitempty"`
	Rest     bool   `cbor:"3,keyasint,omitempty"`
}

type encodedApplication struct {
	Base uint32   `cbor:"0,keyasint,omitempty"`
	Args []uint32 `cbor:"1,keyasint,omitempty"`
}

type encodedConditional struct {
	Check        uint32 `cbor:"0,keyasint,omitempty"`
	Extends      uint32 `cbor:"1,keyasint,omitempty"`
	True         uint32 `cbor:"2,keyasint,omitempty"`
	False        uint32 `cbor:"3,keyasint,omitempty"`
	Distributive bool   `cbor:"4,keyasint,omitempty"`
	InferCount   uint32 `cbor:"5,keyasint,omitempty"`
}

type encodedMapped struct {
	TypeParam   uint32 `cbor:"0,keyasint,omitempty"`
	KeySource   uint32 `cbor:"1,keyasint,omitempty"`
	Template    uint32 `cbor:"2,keyasint,omitempty"`
	NameType    uint32 `cbor:"3,keyasint,omitempty"`
	ReadonlyMod uint8  `cbor:"4,keyasint,omitempty"`
	OptionalMod uint8  `cbor:"5,keyasint,omitempty"`
}

type encodedTemplateSpan struct {
	Kind uint8  `cbor:"0,keyasint,omitempty"`
	Text string `cbor:"1,keyasint,omitempty"`
	Type uint32 `cbor:"2,keyasint,omitempty"`
}

// encodedDefinition mirrors DefinitionInfo. EnumMemberNum has no
// omitempty for the same negative zero reason as encodedTypeKey.Num.
type encodedDefinition struct {
	Kind          uint8               `cbor:"0,keyasint,omitempty"`
	Name          string              `cbor:"1,keyasint,omitempty"`
	TypeParams    []encodedTypeParam  `cbor:"2,keyasint,omitempty"`
	Body          uint32              `cbor:"3,keyasint,omitempty"`
	InstanceShape uint32              `cbor:"4,keyasint,omitempty"`
	StaticShape   uint32              `cbor:"5,keyasint,omitempty"`
	Extends       []uint32            `cbor:"6,keyasint,omitempty"`
	Implements    []uint32            `cbor:"7,keyasint,omitempty"`
	EnumKind      uint8               `cbor:"8,keyasint,omitempty"`
	EnumMembers   []encodedEnumMember `cbor:"9,keyasint,omitempty"`
	Exports       []encodedExport     `cbor:"10,keyasint,omitempty"`
	FileID        uint32              `cbor:"11,keyasint,omitempty"`
	SpanStart     uint32              `cbor:"12,keyasint,omitempty"`
	SpanEnd       uint32              `cbor:"13,keyasint,omitempty"`
}

type encodedEnumMember struct {
	Name string  `cbor:"0,keyasint"`
	Kind uint8   `cbor:"1,keyasint,omitempty"`
	Num  float64 `cbor:"2,keyasint"`
	Str  string  `cbor:"3,keyasint,omitempty"`
}

type encodedExport struct {
	Name string `cbor:"0,keyasint"`
	Def  uint32 `cbor:"1,keyasint,omitempty"`
}

// EncodeSnapshot returns a deterministic CBOR image of the environment:
// every interned type and every registered declaration. Encoding the same
// environment twice yields identical bytes.
//
// The caller must quiesce interning and definition registration for the
// duration of the call; an image taken during concurrent mutation may
// reference entries it does not contain.
func EncodeSnapshot(env *Environment) ([]byte, error) {
	if env == nil {
		return nil, errors.NewDefaultUserError("cannot encode nil environment")
	}

	var w bytes.Buffer
	enc := snapshotEncMode.NewEncoder(&w)

	err := enc.Encode(prepareSnapshot(env))
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func prepareSnapshot(env *Environment) encodedSnapshot {
	entries := env.interner.sortedEntries()

	types := make([]encodedTypeEntry, 0, len(entries))
	for _, entry := range entries {
		types = append(types, encodedTypeEntry{
			ID:  uint32(entry.id),
			Key: prepareTypeKey(entry.key),
		})
	}

	var defs []encodedDefinition
	env.defs.Foreach(func(_ DefID, info *DefinitionInfo) {
		defs = append(defs, prepareDefinition(info))
	})

	return encodedSnapshot{
		Version: CurrentSnapshotVersion,
		Types:   types,
		Defs:    defs,
	}
}

// internEntry pairs an issued handle with its key for snapshot iteration.
type internEntry struct {
	id  TypeID
	key *TypeKey
}

// sortedEntries returns every user-interned entry in ascending id order.
// Replaying the entries in this order through internRaw re-issues each
// entry the same id: the shard is a function of the key fingerprint, and
// ascending id order presents each shard's keys in insertion order.
func (it *Interner) sortedEntries() []internEntry {
	var entries []internEntry
	for i := range it.shards {
		shard := &it.shards[i]
		shard.mu.RLock()
		slots := shard.slots
		shard.mu.RUnlock()

		for local := range slots {
			entries = append(entries, internEntry{
				id:  idFor(i, local),
				key: &slots[local],
			})
		}
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].id < entries[b].id
	})
	return entries
}

func prepareTypeKey(key *TypeKey) encodedTypeKey {
	return encodedTypeKey{
		Kind:      uint8(key.Kind),
		Str:       key.Str,
		Num:       key.Num,
		Bool:      key.Bool,
		Def:       uint32(key.Def),
		Ref:       uint32(key.Ref),
		Aux:       uint32(key.Aux),
		Index:     key.Index,
		Readonly:  key.Readonly,
		Intrinsic: uint8(key.Intrinsic),
		List:      prepareIDs(key.List),
		Object:    prepareObjectShape(key.Object),
		Function:  prepareFunctionShape(key.Function),
		Callable:  prepareCallableShape(key.Callable),
		Tuple:     prepareTupleShape(key.Tuple),
		Param:     prepareTypeParamPtr(key.Param),
		App:       prepareApplication(key.App),
		Cond:      prepareConditional(key.Cond),
		Mapped:    prepareMapped(key.Mapped),
		Template:  prepareTemplate(key.Template),
	}
}

func prepareIDs(ids []TypeID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func prepareObjectShape(shape *ObjectShape) *encodedObjectShape {
	if shape == nil {
		return nil
	}
	return &encodedObjectShape{
		Flags:       uint8(shape.Flags),
		Properties:  prepareProperties(shape.Properties),
		StringIndex: prepareIndex(shape.StringIndex),
		NumberIndex: prepareIndex(shape.NumberIndex),
	}
}

func prepareProperties(props []PropertyInfo) []encodedProperty {
	if len(props) == 0 {
		return nil
	}
	out := make([]encodedProperty, len(props))
	for i := range props {
		p := &props[i]
		out[i] = encodedProperty{
			Name:       p.Name,
			Type:       uint32(p.Type),
			WriteType:  uint32(p.WriteType),
			Optional:   p.Optional,
			Readonly:   p.Readonly,
			Method:     p.Method,
			Visibility: uint8(p.Visibility),
			Parent:     uint32(p.Parent),
		}
	}
	return out
}

func prepareIndex(index *IndexInfo) *encodedIndex {
	if index == nil {
		return nil
	}
	return &encodedIndex{
		Value:    uint32(index.Value),
		Readonly: index.Readonly,
	}
}

func prepareFunctionShape(shape *FunctionShape) *encodedFunctionShape {
	if shape == nil {
		return nil
	}
	return &encodedFunctionShape{
		TypeParams: prepareTypeParams(shape.TypeParams),
		Params:     prepareParams(shape.Params),
		Return:     uint32(shape.Return),
		This:       uint32(shape.This),
		Flags:      uint8(shape.Flags),
	}
}

func prepareTypeParams(params []TypeParamInfo) []encodedTypeParam {
	if len(params) == 0 {
		return nil
	}
	out := make([]encodedTypeParam, len(params))
	for i := range params {
		out[i] = *prepareTypeParamPtr(&params[i])
	}
	return out
}

func prepareTypeParamPtr(param *TypeParamInfo) *encodedTypeParam {
	if param == nil {
		return nil
	}
	return &encodedTypeParam{
		Name:       param.Name,
		Constraint: uint32(param.Constraint),
		Default:    uint32(param.Default),
		IsConst:    param.IsConst,
	}
}

func prepareParams(params []ParamInfo) []encodedParam {
	if len(params) == 0 {
		return nil
	}
	out := make([]encodedParam, len(params))
	for i := range params {
		p := &params[i]
		out[i] = encodedParam{
			Name:     p.Name,
			Type:     uint32(p.Type),
			Optional: p.Optional,
			Rest:     p.Rest,
		}
	}
	return out
}

func prepareCallableShape(shape *CallableShape) *encodedCallableShape {
	if shape == nil {
		return nil
	}
	return &encodedCallableShape{
		CallSignatures:      prepareIDs(shape.CallSignatures),
		ConstructSignatures: prepareIDs(shape.ConstructSignatures),
		Properties:          prepareProperties(shape.Properties),
		StringIndex:         prepareIndex(shape.StringIndex),
		NumberIndex:         prepareIndex(shape.NumberIndex),
	}
}

func prepareTupleShape(shape *TupleShape) *encodedTupleShape {
	if shape == nil {
		return nil
	}
	elements := make([]encodedTupleElement, len(shape.Elements))
	for i := range shape.Elements {
		e := &shape.Elements[i]
		elements[i] = encodedTupleElement{
			Type:     uint32(e.Type),
			Label:    e.Label,
			Optional: e.Optional,
			Rest:     e.Rest,
		}
	}
	return &encodedTupleShape{
		Elements: elements,
		Readonly: shape.Readonly,
	}
}

func prepareApplication(app *ApplicationShape) *encodedApplication {
	if app == nil {
		return nil
	}
	return &encodedApplication{
		Base: uint32(app.Base),
		Args: prepareIDs(app.Args),
	}
}

func prepareConditional(cond *ConditionalShape) *encodedConditional {
	if cond == nil {
		return nil
	}
	return &encodedConditional{
		Check:        uint32(cond.Check),
		Extends:      uint32(cond.Extends),
		True:         uint32(cond.True),
		False:        uint32(cond.False),
		Distributive: cond.Distributive,
		InferCount:   cond.InferCount,
	}
}

func prepareMapped(mapped *MappedShape) *encodedMapped {
	if mapped == nil {
		return nil
	}
	return &encodedMapped{
		TypeParam:   uint32(mapped.TypeParam),
		KeySource:   uint32(mapped.KeySource),
		Template:    uint32(mapped.Template),
		NameType:    uint32(mapped.NameType),
		ReadonlyMod: uint8(mapped.ReadonlyMod),
		OptionalMod: uint8(mapped.OptionalMod),
	}
}

func prepareTemplate(spans []TemplateSpan) []encodedTemplateSpan {
	if len(spans) == 0 {
		return nil
	}
	out := make([]encodedTemplateSpan, len(spans))
	for i := range spans {
		s := &spans[i]
		out[i] = encodedTemplateSpan{
			Kind: uint8(s.Kind),
			Text: s.Text,
			Type: uint32(s.Type),
		}
	}
	return out
}

func prepareDefinition(info *DefinitionInfo) encodedDefinition {
	encoded := encodedDefinition{
		Kind:          uint8(info.Kind),
		Name:          info.Name,
		TypeParams:    prepareTypeParams(info.TypeParams),
		Body:          uint32(info.Body),
		InstanceShape: uint32(info.InstanceShape),
		StaticShape:   uint32(info.StaticShape),
		Extends:       prepareIDs(info.Extends),
		Implements:    prepareIDs(info.Implements),
		EnumKind:      uint8(info.EnumKind),
		FileID:        info.FileID,
		SpanStart:     info.Span.Start,
		SpanEnd:       info.Span.End,
	}

	if info.EnumMembers != nil {
		info.EnumMembers.Foreach(func(name string, value EnumMemberValue) {
			encoded.EnumMembers = append(encoded.EnumMembers, encodedEnumMember{
				Name: name,
				Kind: uint8(value.Kind),
				Num:  value.Num,
				Str:  value.Str,
			})
		})
	}

	if info.Exports != nil {
		info.Exports.Foreach(func(name string, def DefID) {
			encoded.Exports = append(encoded.Exports, encodedExport{
				Name: name,
				Def:  uint32(def),
			})
		})
	}

	return encoded
}

// DecodeSnapshot rebuilds an environment from an EncodeSnapshot image.
//
// Types are replayed through the interner in image order and must re-issue
// the ids the image records; a divergence means the image is corrupt or
// was produced by an incompatible version. Declarations are restored with
// their original DefIDs and re-registered under their content addresses.
func DecodeSnapshot(data []byte) (*Environment, error) {
	var image encodedSnapshot
	err := snapshotDecMode.Unmarshal(data, &image)
	if err != nil {
		return nil, errors.NewDefaultUserError("malformed snapshot: %s", err)
	}

	if !semver.IsValid(image.Version) {
		return nil, errors.NewDefaultUserError(
			"malformed snapshot version %q",
			image.Version,
		)
	}
	if semver.Major(image.Version) != semver.Major(CurrentSnapshotVersion) {
		return nil, errors.NewDefaultUserError(
			"unsupported snapshot version %s, this build reads %s",
			image.Version,
			semver.Major(CurrentSnapshotVersion),
		)
	}

	interner := NewInterner()
	for i := range image.Types {
		entry := &image.Types[i]

		key, err := decodeTypeKey(&entry.Key)
		if err != nil {
			return nil, err
		}

		id := interner.internRaw(key)
		if id != TypeID(entry.ID) {
			return nil, errors.NewDefaultUserError(
				"snapshot type %d replayed as %d, image is corrupt",
				entry.ID,
				id,
			)
		}
	}

	defs := NewDefinitionStore()
	for i := range image.Defs {
		info, err := decodeDefinition(&image.Defs[i])
		if err != nil {
			return nil, err
		}
		defs.restore(info)
	}

	return NewEnvironment(interner, defs), nil
}

// restore appends a decoded declaration and re-registers its content
// address, keeping replayed DefIDs dense and in image order.
func (s *DefinitionStore) restore(info *DefinitionInfo) DefID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.addLocked(info)
	s.addresses.Insert(contentAddress(info), id)
	return id
}

func snapshotRangeError(what string, got, max uint8) error {
	return errors.NewDefaultUserError(
		"snapshot %s %d out of range, max %d",
		what,
		got,
		max,
	)
}

func decodeTypeKey(encoded *encodedTypeKey) (TypeKey, error) {
	if encoded.Kind > uint8(KindThis) {
		return TypeKey{}, snapshotRangeError("type kind", encoded.Kind, uint8(KindThis))
	}
	if encoded.Intrinsic > uint8(IntrinsicUncapitalize) {
		return TypeKey{}, snapshotRangeError("string intrinsic", encoded.Intrinsic, uint8(IntrinsicUncapitalize))
	}

	key := TypeKey{
		Kind:      Kind(encoded.Kind),
		Str:       encoded.Str,
		Num:       encoded.Num,
		Bool:      encoded.Bool,
		Def:       DefID(encoded.Def),
		Ref:       TypeID(encoded.Ref),
		Aux:       TypeID(encoded.Aux),
		Index:     encoded.Index,
		Readonly:  encoded.Readonly,
		Intrinsic: StringIntrinsicKind(encoded.Intrinsic),
		List:      decodeIDs(encoded.List),
	}

	var err error
	if key.Object, err = decodeObjectShape(encoded.Object); err != nil {
		return TypeKey{}, err
	}
	if key.Function, err = decodeFunctionShape(encoded.Function); err != nil {
		return TypeKey{}, err
	}
	if key.Callable, err = decodeCallableShape(encoded.Callable); err != nil {
		return TypeKey{}, err
	}
	key.Tuple = decodeTupleShape(encoded.Tuple)
	key.Param = decodeTypeParamPtr(encoded.Param)
	key.App = decodeApplication(encoded.App)
	key.Cond = decodeConditional(encoded.Cond)
	if key.Mapped, err = decodeMapped(encoded.Mapped); err != nil {
		return TypeKey{}, err
	}
	if key.Template, err = decodeTemplate(encoded.Template); err != nil {
		return TypeKey{}, err
	}

	return key, nil
}

func decodeIDs(ids []uint32) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	for i, id := range ids {
		out[i] = TypeID(id)
	}
	return out
}

func decodeObjectShape(encoded *encodedObjectShape) (*ObjectShape, error) {
	if encoded == nil {
		return nil, nil
	}
	props, err := decodeProperties(encoded.Properties)
	if err != nil {
		return nil, err
	}
	return &ObjectShape{
		Flags:       ShapeFlags(encoded.Flags),
		Properties:  props,
		StringIndex: decodeIndex(encoded.StringIndex),
		NumberIndex: decodeIndex(encoded.NumberIndex),
	}, nil
}

func decodeProperties(props []encodedProperty) ([]PropertyInfo, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make([]PropertyInfo, len(props))
	for i := range props {
		p := &props[i]
		if p.Visibility > uint8(VisibilityPrivate) {
			return nil, snapshotRangeError("member visibility", p.Visibility, uint8(VisibilityPrivate))
		}
		out[i] = PropertyInfo{
			Name:       p.Name,
			Type:       TypeID(p.Type),
			WriteType:  TypeID(p.WriteType),
			Optional:   p.Optional,
			Readonly:   p.Readonly,
			Method:     p.Method,
			Visibility: Visibility(p.Visibility),
			Parent:     DefID(p.Parent),
		}
	}
	return out, nil
}

func decodeIndex(encoded *encodedIndex) *IndexInfo {
	if encoded == nil {
		return nil
	}
	return &IndexInfo{
		Value:    TypeID(encoded.Value),
		Readonly: encoded.Readonly,
	}
}

func decodeFunctionShape(encoded *encodedFunctionShape) (*FunctionShape, error) {
	if encoded == nil {
		return nil, nil
	}
	return &FunctionShape{
		TypeParams: decodeTypeParams(encoded.TypeParams),
		Params:     decodeParams(encoded.Params),
		Return:     TypeID(encoded.Return),
		This:       TypeID(encoded.This),
		Flags:      FunctionFlags(encoded.Flags),
	}, nil
}

func decodeTypeParams(params []encodedTypeParam) []TypeParamInfo {
	if len(params) == 0 {
		return nil
	}
	out := make([]TypeParamInfo, len(params))
	for i := range params {
		out[i] = *decodeTypeParamPtr(&params[i])
	}
	return out
}

func decodeTypeParamPtr(encoded *encodedTypeParam) *TypeParamInfo {
	if encoded == nil {
		return nil
	}
	return &TypeParamInfo{
		Name:       encoded.Name,
		Constraint: TypeID(encoded.Constraint),
		Default:    TypeID(encoded.Default),
		IsConst:    encoded.IsConst,
	}
}

func decodeParams(params []encodedParam) []ParamInfo {
	if len(params) == 0 {
		return nil
	}
	out := make([]ParamInfo, len(params))
	for i := range params {
		p := &params[i]
		out[i] = ParamInfo{
			Name:     p.Name,
			Type:     TypeID(p.Type),
			Optional: p.Optional,
			Rest:     p.Rest,
		}
	}
	return out
}

func decodeCallableShape(encoded *encodedCallableShape) (*CallableShape, error) {
	if encoded == nil {
		return nil, nil
	}
	props, err := decodeProperties(encoded.Properties)
	if err != nil {
		return nil, err
	}
	return &CallableShape{
		CallSignatures:      decodeIDs(encoded.CallSignatures),
		ConstructSignatures: decodeIDs(encoded.ConstructSignatures),
		Properties:          props,
		StringIndex:         decodeIndex(encoded.StringIndex),
		NumberIndex:         decodeIndex(encoded.NumberIndex),
	}, nil
}

func decodeTupleShape(encoded *encodedTupleShape) *TupleShape {
	if encoded == nil {
		return nil
	}
	elements := make([]TupleElement, len(encoded.Elements))
	for i := range encoded.Elements {
		e := &encoded.Elements[i]
		elements[i] = TupleElement{
			Type:     TypeID(e.Type),
			Label:    e.Label,
			Optional: e.Optional,
			Rest:     e.Rest,
		}
	}
	return &TupleShape{
		Elements: elements,
		Readonly: encoded.Readonly,
	}
}

func decodeApplication(encoded *encodedApplication) *ApplicationShape {
	if encoded == nil {
		return nil
	}
	return &ApplicationShape{
		Base: TypeID(encoded.Base),
		Args: decodeIDs(encoded.Args),
	}
}

func decodeConditional(encoded *encodedConditional) *ConditionalShape {
	if encoded == nil {
		return nil
	}
	return &ConditionalShape{
		Check:        TypeID(encoded.Check),
		Extends:      TypeID(encoded.Extends),
		True:         TypeID(encoded.True),
		False:        TypeID(encoded.False),
		Distributive: encoded.Distributive,
		InferCount:   encoded.InferCount,
	}
}

func decodeMapped(encoded *encodedMapped) (*MappedShape, error) {
	if encoded == nil {
		return nil, nil
	}
	if encoded.ReadonlyMod > uint8(ModifierRemove) {
		return nil, snapshotRangeError("readonly modifier", encoded.ReadonlyMod, uint8(ModifierRemove))
	}
	if encoded.OptionalMod > uint8(ModifierRemove) {
		return nil, snapshotRangeError("optional modifier", encoded.OptionalMod, uint8(ModifierRemove))
	}
	return &MappedShape{
		TypeParam:   TypeID(encoded.TypeParam),
		KeySource:   TypeID(encoded.KeySource),
		Template:    TypeID(encoded.Template),
		NameType:    TypeID(encoded.NameType),
		ReadonlyMod: Modifier(encoded.ReadonlyMod),
		OptionalMod: Modifier(encoded.OptionalMod),
	}, nil
}

func decodeTemplate(spans []encodedTemplateSpan) ([]TemplateSpan, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	out := make([]TemplateSpan, len(spans))
	for i := range spans {
		s := &spans[i]
		if s.Kind > uint8(SpanType) {
			return nil, snapshotRangeError("template span kind", s.Kind, uint8(SpanType))
		}
		out[i] = TemplateSpan{
			Kind: TemplateSpanKind(s.Kind),
			Text: s.Text,
			Type: TypeID(s.Type),
		}
	}
	return out, nil
}

func decodeDefinition(encoded *encodedDefinition) (*DefinitionInfo, error) {
	if encoded.Kind > uint8(DefKindVariable) {
		return nil, snapshotRangeError("definition kind", encoded.Kind, uint8(DefKindVariable))
	}
	if encoded.EnumKind > uint8(EnumKindHeterogeneous) {
		return nil, snapshotRangeError("enum kind", encoded.EnumKind, uint8(EnumKindHeterogeneous))
	}

	info := &DefinitionInfo{
		Kind:          DefKind(encoded.Kind),
		Name:          encoded.Name,
		TypeParams:    decodeTypeParams(encoded.TypeParams),
		Body:          TypeID(encoded.Body),
		InstanceShape: TypeID(encoded.InstanceShape),
		StaticShape:   TypeID(encoded.StaticShape),
		Extends:       decodeIDs(encoded.Extends),
		Implements:    decodeIDs(encoded.Implements),
		EnumKind:      EnumKind(encoded.EnumKind),
		FileID:        encoded.FileID,
		Span: Span{
			Start: encoded.SpanStart,
			End:   encoded.SpanEnd,
		},
	}

	if len(encoded.EnumMembers) > 0 {
		members := orderedmap.New[string, EnumMemberValue](len(encoded.EnumMembers))
		for _, m := range encoded.EnumMembers {
			if m.Kind > uint8(EnumValueComputed) {
				return nil, snapshotRangeError("enum member value kind", m.Kind, uint8(EnumValueComputed))
			}
			members.Set(m.Name, EnumMemberValue{
				Kind: EnumMemberValueKind(m.Kind),
				Num:  m.Num,
				Str:  m.Str,
			})
		}
		info.EnumMembers = members
	}

	if len(encoded.Exports) > 0 {
		exports := orderedmap.New[string, DefID](len(encoded.Exports))
		for _, e := range encoded.Exports {
			exports.Set(e.Name, DefID(e.Def))
		}
		info.Exports = exports
	}

	return info, nil
}
