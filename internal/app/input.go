/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package app

import (
	"parsec/internal/scene"
	"parsec/internal/tool"
	"parsec/internal/wire"
)

// InputKind selects which fields of Input are meaningful.
type InputKind uint8

const (
	InputPointerDown InputKind = iota
	InputPointerMove
	InputPointerUp
	InputCaptureLost
	InputKey
	InputZoom
	InputTool
	InputDrawTool
	InputCommitText
	InputReparent
	InputReorderLayer
	InputSetPresentationOrder
	InputAddToPresentation
	InputReorderSlide
	InputRefresh
	InputPrompt
)

// Input is one event from the host: raw pointer and keyboard input, or a
// command from a panel such as the layer list.
type Input struct {
	Kind    InputKind
	Pointer tool.PointerEvent
	Key     tool.KeyEvent
	Zoom    float64
	Mode    tool.Mode

	DrawKind  scene.Kind
	DrawShape scene.ShapeType

	Text string

	// ID and Target name the dragged and the target element for reparent,
	// reorder-layer and reorder-slide. Target is the new parent on reparent.
	ID       string
	Target   string
	Position wire.Position
	IDs      []string
}

func PointerDown(ev tool.PointerEvent) Input { return Input{Kind: InputPointerDown, Pointer: ev} }
func PointerMove(ev tool.PointerEvent) Input { return Input{Kind: InputPointerMove, Pointer: ev} }
func PointerUp(ev tool.PointerEvent) Input   { return Input{Kind: InputPointerUp, Pointer: ev} }
func Key(ev tool.KeyEvent) Input             { return Input{Kind: InputKey, Key: ev} }
func Zoom(z float64) Input                   { return Input{Kind: InputZoom, Zoom: z} }
func Tool(m tool.Mode) Input                 { return Input{Kind: InputTool, Mode: m} }

// DrawTool arms the draw tool for kind; shape only matters for shapes.
func DrawTool(kind scene.Kind, shape scene.ShapeType) Input {
	return Input{Kind: InputDrawTool, DrawKind: kind, DrawShape: shape}
}

// CommitText ends text editing with content.
func CommitText(content string) Input { return Input{Kind: InputCommitText, Text: content} }

// Prompt asks the authority's agent to edit the current selection.
func Prompt(text string) Input { return Input{Kind: InputPrompt, Text: text} }
