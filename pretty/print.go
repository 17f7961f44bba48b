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

// Package pretty renders assignability failures as multi-line diagnostics:
// a headline, an excerpt block showing the two types with a caret under the
// failing member, and one note per nested reason.
package pretty

import (
	"io"
	"strings"

	"github.com/logrusorgru/aurora/v4"
	"github.com/rivo/uniseg"

	"github.com/gradient-lang/gradient/sema"
)

// excerptMaxWidth caps each excerpt line, in grapheme clusters.
const excerptMaxWidth = 100

const (
	errorPrefix  = "error: "
	sourceLabel  = "source: "
	targetLabel  = "target: "
	barPrefix    = "  | "
	emptyBarLine = "  |"
	notePrefix   = "  = note: "
)

// FailurePrettyPrinter writes diagnostics for failure reasons.
type FailurePrettyPrinter struct {
	writer   io.Writer
	useColor bool
}

func NewFailurePrettyPrinter(writer io.Writer, useColor bool) FailurePrettyPrinter {
	return FailurePrettyPrinter{
		writer:   writer,
		useColor: useColor,
	}
}

// FormatFailure renders a failure reason to a string.
func FormatFailure(
	failure *sema.FailureReason,
	env *sema.Environment,
	useColor bool,
) string {
	var sb strings.Builder
	printer := NewFailurePrettyPrinter(&sb, useColor)
	err := printer.PrettyPrintFailure(failure, env)
	if err != nil {
		// Writes to a strings.Builder cannot fail.
		panic(err)
	}
	return sb.String()
}

// PrettyPrintFailure writes the diagnostic for the given failure reason.
// The environment supplies declaration names for type rendering; it may be
// nil, in which case the excerpt block is omitted.
func (p FailurePrettyPrinter) PrettyPrintFailure(
	failure *sema.FailureReason,
	env *sema.Environment,
) error {
	if failure == nil {
		return nil
	}

	err := p.writeLine(
		p.colorizeError(errorPrefix) + p.colorizeMessage(failure.Summary()),
	)
	if err != nil {
		return err
	}

	if env != nil && failure.Source.Valid() && failure.Target.Valid() {
		err = p.writeExcerpt(failure, env)
		if err != nil {
			return err
		}
	}

	for _, step := range failure.Chain()[1:] {
		err = p.writeNote(step, env)
		if err != nil {
			return err
		}
	}

	return nil
}

// writeExcerpt prints the compared types in a bar block:
//
//	  |
//	  | source: { name: string }
//	  | target: { name: number }
//	  |           ^^^^
//
// The caret marks the failing member in the target rendering when the
// rendering fits on one line.
func (p FailurePrettyPrinter) writeExcerpt(
	failure *sema.FailureReason,
	env *sema.Environment,
) error {
	err := p.writeLine(p.colorizeMeta(emptyBarLine))
	if err != nil {
		return err
	}

	err = p.writeRendering(sourceLabel, sema.FormatType(env, failure.Source))
	if err != nil {
		return err
	}

	targetText := sema.FormatType(env, failure.Target)
	err = p.writeRendering(targetLabel, targetText)
	if err != nil {
		return err
	}

	caret := caretLine(targetLabel, targetText, failure.Name)
	if caret == "" {
		return nil
	}
	return p.writeLine(p.colorizeMeta(barPrefix) + p.colorizeCaret(caret))
}

// writeRendering prints one rendered type inside the bar block. The label
// goes on the first line; continuation lines are indented to match.
func (p FailurePrettyPrinter) writeRendering(label, rendered string) error {
	continuationIndent := strings.Repeat(" ", len(label))

	for i, line := range strings.Split(rendered, "\n") {
		prefix := continuationIndent
		if i == 0 {
			prefix = label
		}
		err := p.writeLine(
			p.colorizeMeta(barPrefix) + prefix + truncateGraphemes(line, excerptMaxWidth),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p FailurePrettyPrinter) writeNote(
	step *sema.FailureReason,
	env *sema.Environment,
) error {
	note := step.Summary()
	if env != nil && step.Source.Valid() && step.Target.Valid() {
		note += " (" +
			inlineType(env, step.Source) +
			" vs " +
			inlineType(env, step.Target) +
			")"
	}
	return p.writeLine(p.colorizeMeta(notePrefix) + note)
}

func (p FailurePrettyPrinter) writeLine(line string) error {
	_, err := io.WriteString(p.writer, line+"\n")
	return err
}

// caretLine positions carets under the named member in a one-line type
// rendering. It returns "" when the member cannot be located.
func caretLine(label, rendered, name string) string {
	if name == "" || strings.ContainsRune(rendered, '\n') {
		return ""
	}

	index := memberIndex(rendered, name)
	if index < 0 {
		return ""
	}

	prefixWidth := uniseg.GraphemeClusterCount(label + rendered[:index])
	caretWidth := uniseg.GraphemeClusterCount(name)
	if prefixWidth+caretWidth > excerptMaxWidth {
		return ""
	}

	return strings.Repeat(" ", prefixWidth) + strings.Repeat("^", caretWidth)
}

// memberIndex finds the byte offset of a member name in a rendering,
// trying the quoted form first since non-identifier names render quoted.
func memberIndex(rendered, name string) int {
	quoted := `"` + name + `"`
	if index := strings.Index(rendered, quoted); index >= 0 {
		return index + 1
	}
	return strings.Index(rendered, name)
}

// inlineType renders a type for inline mention in a note, collapsed to one
// line and truncated.
func inlineType(env *sema.Environment, id sema.TypeID) string {
	text := sema.FormatType(env, id)
	if strings.ContainsRune(text, '\n') {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		text = strings.Join(lines, " ")
	}
	return truncateGraphemes(text, 40)
}

// truncateGraphemes cuts a string after the given number of grapheme
// clusters, appending an ellipsis when anything was dropped.
func truncateGraphemes(s string, max int) string {
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}

	graphemes := uniseg.NewGraphemes(s)
	count := 0
	for graphemes.Next() {
		count++
		if count == max {
			_, end := graphemes.Positions()
			return s[:end] + "..."
		}
	}
	return s
}

func (p FailurePrettyPrinter) colorizeError(message string) string {
	if !p.useColor {
		return message
	}
	return aurora.Colorize(message, aurora.RedFg|aurora.BrightFg|aurora.BoldFm).String()
}

func (p FailurePrettyPrinter) colorizeMessage(message string) string {
	if !p.useColor {
		return message
	}
	return aurora.Colorize(message, aurora.BoldFm).String()
}

func (p FailurePrettyPrinter) colorizeMeta(message string) string {
	if !p.useColor {
		return message
	}
	return aurora.Colorize(message, aurora.CyanFg|aurora.BoldFm).String()
}

func (p FailurePrettyPrinter) colorizeCaret(message string) string {
	if !p.useColor {
		return message
	}
	return aurora.Colorize(message, aurora.RedFg|aurora.BrightFg|aurora.BoldFm).String()
}
