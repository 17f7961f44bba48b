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
	"fmt"
	"strconv"
	"strings"

	"github.com/turbolent/prettier"
)

// formatMaxLineWidth is the column budget for rendered types.
const formatMaxLineWidth = 80

// formatDepthLimit caps structural recursion when rendering. Interned type
// graphs are acyclic, but deeply nested shapes are elided past this depth.
const formatDepthLimit = 10

var elidedDoc prettier.Doc = prettier.Text("...")

var memberSeparatorDoc prettier.Doc = prettier.Concat{
	prettier.Text(";"),
	prettier.Line{},
}

var listSeparatorDoc prettier.Doc = prettier.Concat{
	prettier.Text(","),
	prettier.Line{},
}

var unionSeparatorDoc prettier.Doc = prettier.Concat{
	prettier.Line{},
	prettier.Text("| "),
}

var intersectionSeparatorDoc prettier.Doc = prettier.Concat{
	prettier.Line{},
	prettier.Text("& "),
}

// FormatType renders a type handle in source syntax. Declaration names come
// from the environment's definition store; unresolved references render as
// numbered placeholders.
func FormatType(env *Environment, id TypeID) string {
	f := typeFormatter{
		interner: env.Interner(),
		defs:     env.Definitions(),
	}

	var b strings.Builder
	prettier.Prettier(&b, f.doc(id), formatMaxLineWidth, "    ")
	return b.String()
}

// FormatType renders a type handle in source syntax.
func (s *Session) FormatType(id TypeID) string {
	return FormatType(s.env, id)
}

// Type display grammar, loosest binding first. A child whose level is below
// its context's required level is parenthesized.
const (
	precConditional = iota
	precFunction
	precUnion
	precIntersection
	precOperator
	precPostfix
	precAtom
)

func typePrecedence(key *TypeKey) int {
	switch key.Kind {
	case KindConditional:
		return precConditional
	case KindFunction:
		return precFunction
	case KindUnion:
		return precUnion
	case KindIntersection:
		return precIntersection
	case KindKeyOf, KindInfer:
		return precOperator
	case KindArray, KindIndexAccess:
		return precPostfix
	default:
		return precAtom
	}
}

type typeFormatter struct {
	interner *Interner
	defs     *DefinitionStore
	depth    int
}

func (f *typeFormatter) doc(id TypeID) prettier.Doc {
	if !id.Valid() {
		return prettier.Text("none")
	}
	if f.depth >= formatDepthLimit {
		return elidedDoc
	}
	f.depth++
	defer func() { f.depth-- }()

	key := f.interner.Lookup(id)

	switch key.Kind {
	case KindError, KindNever, KindUnknown, KindAny, KindVoid,
		KindUndefined, KindNull, KindBoolean, KindNumber, KindString,
		KindBigInt, KindSymbol, KindNonPrimitive:
		return prettier.Text(key.Kind.String())

	case KindThis:
		return prettier.Text("this")

	case KindStringLiteral:
		return prettier.Text(strconv.Quote(key.Str))

	case KindNumberLiteral:
		return prettier.Text(NumberLiteralText(key.Num))

	case KindBooleanLiteral:
		if key.Bool {
			return prettier.Text("true")
		}
		return prettier.Text("false")

	case KindBigIntLiteral:
		return prettier.Text(key.Str + "n")

	case KindUniqueSymbol:
		return prettier.Text("unique symbol")

	case KindObject:
		return f.objectDoc(key.Object)

	case KindArray:
		return f.arrayDoc(key)

	case KindTuple:
		return f.tupleDoc(key.Tuple)

	case KindUnion:
		return f.joinedDoc(key.List, unionSeparatorDoc, precUnion)

	case KindIntersection:
		return f.joinedDoc(key.List, intersectionSeparatorDoc, precIntersection)

	case KindFunction:
		return f.functionDoc(key.Function)

	case KindCallable:
		return f.callableDoc(key.Callable)

	case KindTypeParameter:
		if key.Param != nil && key.Param.Name != "" {
			return prettier.Text(key.Param.Name)
		}
		return prettier.Text(fmt.Sprintf("T%d", key.Index))

	case KindApplication:
		return f.applicationDoc(key.App)

	case KindConditional:
		return f.conditionalDoc(key.Cond)

	case KindMapped:
		return f.mappedDoc(key.Mapped)

	case KindTemplateLiteral:
		return f.templateDoc(key.Template)

	case KindStringIntrinsic:
		return prettier.Concat{
			prettier.Text(key.Intrinsic.String()),
			prettier.Text("<"),
			f.doc(key.Ref),
			prettier.Text(">"),
		}

	case KindIndexAccess:
		return prettier.Concat{
			f.childDoc(key.Ref, precPostfix),
			prettier.WrapBrackets(f.doc(key.Aux), prettier.SoftLine{}),
		}

	case KindKeyOf:
		return prettier.Concat{
			prettier.Text("keyof "),
			f.childDoc(key.Ref, precPostfix),
		}

	case KindEnum, KindLazy:
		return prettier.Text(f.definitionName(key.Def))

	case KindEnumMember:
		return prettier.Text(f.definitionName(key.Def) + "." + key.Str)

	case KindTypeQuery:
		return prettier.Text("typeof " + f.definitionName(key.Def))

	case KindInfer:
		doc := prettier.Concat{
			prettier.Text(fmt.Sprintf("infer T%d", key.Index)),
		}
		if key.Ref.Valid() {
			doc = append(doc,
				prettier.Text(" extends "),
				f.childDoc(key.Ref, precOperator),
			)
		}
		return doc

	default:
		return prettier.Text(f.fallbackName(id))
	}
}

// childDoc renders a nested type, parenthesizing it when its own binding is
// looser than the context requires.
func (f *typeFormatter) childDoc(id TypeID, required int) prettier.Doc {
	doc := f.doc(id)
	if !id.Valid() {
		return doc
	}
	if typePrecedence(f.interner.Lookup(id)) < required {
		return prettier.WrapParentheses(doc, prettier.SoftLine{})
	}
	return doc
}

func (f *typeFormatter) joinedDoc(members []TypeID, separator prettier.Doc, required int) prettier.Doc {
	memberDocs := make([]prettier.Doc, len(members))
	for i, member := range members {
		memberDocs[i] = f.childDoc(member, required+1)
	}
	return prettier.Group{
		Doc: prettier.Join(separator, memberDocs...),
	}
}

func (f *typeFormatter) arrayDoc(key *TypeKey) prettier.Doc {
	doc := prettier.Concat{
		f.childDoc(key.Ref, precPostfix),
		prettier.Text("[]"),
	}
	if key.Readonly {
		return append(prettier.Concat{prettier.Text("readonly ")}, doc...)
	}
	return doc
}

func (f *typeFormatter) objectDoc(shape *ObjectShape) prettier.Doc {
	memberDocs := f.memberDocs(shape.Properties, shape.StringIndex, shape.NumberIndex)
	if len(memberDocs) == 0 {
		return prettier.Text("{}")
	}
	return prettier.WrapBraces(
		prettier.Join(memberSeparatorDoc, memberDocs...),
		prettier.Line{},
	)
}

func (f *typeFormatter) memberDocs(
	props []PropertyInfo,
	stringIndex *IndexInfo,
	numberIndex *IndexInfo,
) []prettier.Doc {
	docs := make([]prettier.Doc, 0, len(props)+2)
	for i := range props {
		docs = append(docs, f.propertyDoc(&props[i]))
	}
	if stringIndex != nil {
		docs = append(docs, f.indexDoc("string", stringIndex))
	}
	if numberIndex != nil {
		docs = append(docs, f.indexDoc("number", numberIndex))
	}
	return docs
}

func (f *typeFormatter) propertyDoc(p *PropertyInfo) prettier.Doc {
	var doc prettier.Concat
	if p.Readonly {
		doc = append(doc, prettier.Text("readonly "))
	}
	doc = append(doc, prettier.Text(propertyNameText(p.Name)))
	if p.Optional {
		doc = append(doc, prettier.Text("?"))
	}

	if p.Method {
		if key := f.interner.Lookup(p.Type); key.Kind == KindFunction {
			return append(doc, f.signatureDoc(key.Function, ": "))
		}
	}

	return append(doc, prettier.Text(": "), f.doc(p.Type))
}

func (f *typeFormatter) indexDoc(keyword string, index *IndexInfo) prettier.Doc {
	var doc prettier.Concat
	if index.Readonly {
		doc = append(doc, prettier.Text("readonly "))
	}
	return append(doc,
		prettier.Text("[x: "+keyword+"]: "),
		f.doc(index.Value),
	)
}

// propertyNameText quotes member names that are not plain identifiers.
func propertyNameText(name string) string {
	if name == "" {
		return strconv.Quote(name)
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			i > 0 && r >= '0' && r <= '9':
		default:
			return strconv.Quote(name)
		}
	}
	return name
}

func (f *typeFormatter) functionDoc(shape *FunctionShape) prettier.Doc {
	var doc prettier.Concat
	if shape.Flags&FunctionFlagConstructor != 0 {
		doc = append(doc, prettier.Text("new "))
	}
	doc = append(doc, f.typeParamsDoc(shape.TypeParams))
	doc = append(doc,
		f.paramsDoc(shape.Params),
		prettier.Text(" => "),
		f.doc(shape.Return),
	)
	return doc
}

// signatureDoc renders a method-style signature: parameters, then the
// return type after the given separator.
func (f *typeFormatter) signatureDoc(shape *FunctionShape, returnSeparator string) prettier.Doc {
	return prettier.Concat{
		f.typeParamsDoc(shape.TypeParams),
		f.paramsDoc(shape.Params),
		prettier.Text(returnSeparator),
		f.doc(shape.Return),
	}
}

func (f *typeFormatter) typeParamsDoc(params []TypeParamInfo) prettier.Doc {
	if len(params) == 0 {
		return prettier.Concat{}
	}
	paramDocs := make([]prettier.Doc, len(params))
	for i := range params {
		p := &params[i]
		var doc prettier.Concat
		if p.IsConst {
			doc = append(doc, prettier.Text("const "))
		}
		doc = append(doc, prettier.Text(typeParamNameText(p, i)))
		if p.Constraint.Valid() {
			doc = append(doc, prettier.Text(" extends "), f.doc(p.Constraint))
		}
		if p.Default.Valid() {
			doc = append(doc, prettier.Text(" = "), f.doc(p.Default))
		}
		paramDocs[i] = doc
	}
	return prettier.Wrap(
		prettier.Text("<"),
		prettier.Join(listSeparatorDoc, paramDocs...),
		prettier.Text(">"),
		prettier.SoftLine{},
	)
}

func typeParamNameText(p *TypeParamInfo, index int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("T%d", index)
}

func (f *typeFormatter) paramsDoc(params []ParamInfo) prettier.Doc {
	if len(params) == 0 {
		return prettier.Text("()")
	}
	paramDocs := make([]prettier.Doc, len(params))
	for i := range params {
		p := &params[i]
		var doc prettier.Concat
		if p.Rest {
			doc = append(doc, prettier.Text("..."))
		}
		if p.Name != "" {
			doc = append(doc, prettier.Text(p.Name))
			if p.Optional {
				doc = append(doc, prettier.Text("?"))
			}
			doc = append(doc, prettier.Text(": "))
		}
		doc = append(doc, f.doc(p.Type))
		paramDocs[i] = doc
	}
	return prettier.WrapParentheses(
		prettier.Join(listSeparatorDoc, paramDocs...),
		prettier.SoftLine{},
	)
}

func (f *typeFormatter) callableDoc(shape *CallableShape) prettier.Doc {
	var memberDocs []prettier.Doc
	for _, sig := range shape.CallSignatures {
		if key := f.interner.Lookup(sig); key.Kind == KindFunction {
			memberDocs = append(memberDocs, f.signatureDoc(key.Function, ": "))
		}
	}
	for _, sig := range shape.ConstructSignatures {
		if key := f.interner.Lookup(sig); key.Kind == KindFunction {
			memberDocs = append(memberDocs, prettier.Concat{
				prettier.Text("new "),
				f.signatureDoc(key.Function, ": "),
			})
		}
	}
	memberDocs = append(
		memberDocs,
		f.memberDocs(shape.Properties, shape.StringIndex, shape.NumberIndex)...,
	)
	if len(memberDocs) == 0 {
		return prettier.Text("{}")
	}
	return prettier.WrapBraces(
		prettier.Join(memberSeparatorDoc, memberDocs...),
		prettier.Line{},
	)
}

func (f *typeFormatter) tupleDoc(shape *TupleShape) prettier.Doc {
	elementDocs := make([]prettier.Doc, len(shape.Elements))
	for i := range shape.Elements {
		e := &shape.Elements[i]
		var doc prettier.Concat
		if e.Rest {
			doc = append(doc, prettier.Text("..."))
		}
		if e.Label != "" {
			doc = append(doc, prettier.Text(e.Label))
			if e.Optional {
				doc = append(doc, prettier.Text("?"))
			}
			doc = append(doc, prettier.Text(": "), f.doc(e.Type))
		} else {
			doc = append(doc, f.childDoc(e.Type, precPostfix))
			if e.Optional {
				doc = append(doc, prettier.Text("?"))
			}
		}
		elementDocs[i] = doc
	}

	doc := prettier.WrapBrackets(
		prettier.Join(listSeparatorDoc, elementDocs...),
		prettier.SoftLine{},
	)
	if shape.Readonly {
		return prettier.Concat{prettier.Text("readonly "), doc}
	}
	return doc
}

func (f *typeFormatter) applicationDoc(app *ApplicationShape) prettier.Doc {
	argDocs := make([]prettier.Doc, len(app.Args))
	for i, arg := range app.Args {
		argDocs[i] = f.doc(arg)
	}
	return prettier.Concat{
		f.childDoc(app.Base, precPostfix),
		prettier.Wrap(
			prettier.Text("<"),
			prettier.Join(listSeparatorDoc, argDocs...),
			prettier.Text(">"),
			prettier.SoftLine{},
		),
	}
}

func (f *typeFormatter) conditionalDoc(cond *ConditionalShape) prettier.Doc {
	return prettier.Group{
		Doc: prettier.Concat{
			f.childDoc(cond.Check, precFunction),
			prettier.Text(" extends "),
			f.childDoc(cond.Extends, precFunction),
			prettier.Indent{
				Doc: prettier.Concat{
					prettier.Line{},
					prettier.Text("? "),
					f.doc(cond.True),
					prettier.Line{},
					prettier.Text(": "),
					f.doc(cond.False),
				},
			},
		},
	}
}

func (f *typeFormatter) mappedDoc(mapped *MappedShape) prettier.Doc {
	var paramName string
	if key := f.interner.Lookup(mapped.TypeParam); key.Kind == KindTypeParameter {
		paramName = typeParamNameText(key.Param, int(key.Index))
	} else {
		paramName = "K"
	}

	var doc prettier.Concat
	switch mapped.ReadonlyMod {
	case ModifierAdd:
		doc = append(doc, prettier.Text("readonly "))
	case ModifierRemove:
		doc = append(doc, prettier.Text("-readonly "))
	}

	doc = append(doc,
		prettier.Text("["+paramName+" in "),
		f.doc(mapped.KeySource),
	)
	if mapped.NameType.Valid() {
		doc = append(doc, prettier.Text(" as "), f.doc(mapped.NameType))
	}
	doc = append(doc, prettier.Text("]"))

	switch mapped.OptionalMod {
	case ModifierAdd:
		doc = append(doc, prettier.Text("?"))
	case ModifierRemove:
		doc = append(doc, prettier.Text("-?"))
	}

	doc = append(doc, prettier.Text(": "), f.doc(mapped.Template))

	return prettier.WrapBraces(doc, prettier.Line{})
}

func (f *typeFormatter) templateDoc(spans []TemplateSpan) prettier.Doc {
	var b strings.Builder
	b.WriteByte('`')

	var docs prettier.Concat
	flush := func() {
		docs = append(docs, prettier.Text(b.String()))
		b.Reset()
	}

	for i := range spans {
		span := &spans[i]
		switch span.Kind {
		case SpanText:
			b.WriteString(templateEscaper.Replace(span.Text))
		case SpanType:
			b.WriteString("${")
			flush()
			docs = append(docs, f.doc(span.Type))
			b.WriteString("}")
		}
	}
	b.WriteByte('`')
	flush()

	return docs
}

var templateEscaper = strings.NewReplacer(
	"`", "\\`",
	"${", "\\${",
	"\\", "\\\\",
)

func (f *typeFormatter) definitionName(def DefID) string {
	if info := f.defs.Get(def); info != nil && info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("#%d", uint32(def))
}

func (f *typeFormatter) fallbackName(id TypeID) string {
	if id <= lastWellKnownTypeID {
		return f.interner.Lookup(id).Kind.String()
	}
	return fmt.Sprintf("type#%d", uint32(id))
}
