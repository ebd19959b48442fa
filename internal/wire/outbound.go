/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wire

import (
	"parsec/internal/scene"
)

// Outbound message types.
const (
	TypeCreateElement           = "create_element"
	TypeCreateElementsBatch     = "create_elements_batch"
	TypeUpdateElement           = "update_element"
	TypeDeleteElement           = "delete_element"
	TypeGroupElements           = "group_elements"
	TypeUngroupElement          = "ungroup_element"
	TypeReparentElement         = "reparent_element"
	TypeReorderElement          = "reorder_element"
	TypeReorderLayer            = "reorder_layer"
	TypeUpdatePresentationOrder = "update_presentation_order"
	TypeReorderSlide            = "reorder_slide"
	TypeUndo                    = "undo"
	TypeRedo                    = "redo"
	TypeRequestWorkspaceState   = "request_workspace_state"
	TypeUserPrompt              = "user_prompt"
)

// ReorderCommand moves an element among its siblings.
type ReorderCommand string

const (
	BringToFront ReorderCommand = "BRING_TO_FRONT"
	BringForward ReorderCommand = "BRING_FORWARD"
	SendBackward ReorderCommand = "SEND_BACKWARD"
	SendToBack   ReorderCommand = "SEND_TO_BACK"
)

// Position is the drop side relative to a target sibling or slide.
type Position string

const (
	Above Position = "above"
	Below Position = "below"
)

func CreateElement(e *scene.Element) (Message, error) {
	return newMessage(TypeCreateElement, e)
}

func CreateElementsBatch(es []*scene.Element) (Message, error) {
	return newMessage(TypeCreateElementsBatch, struct {
		Elements []*scene.Element `json:"elements"`
	}{es})
}

// UpdateElement carries a patch. Ephemeral updates are flagged so the
// authority keeps them out of its history.
func UpdateElement(p scene.Patch, class Class) (Message, error) {
	fields := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		fields[k] = v
	}
	fields["id"] = p.ID
	fields["commit_history"] = class == Committed
	m, err := newMessage(TypeUpdateElement, fields)
	if err != nil {
		return Message{}, err
	}
	m.Class = class
	if class == Ephemeral {
		m.ElementID = p.ID
	}
	return m, nil
}

type idPayload struct {
	ID string `json:"id"`
}

func DeleteElement(id string) (Message, error) {
	return newMessage(TypeDeleteElement, idPayload{id})
}

func GroupElements(ids []string) (Message, error) {
	return newMessage(TypeGroupElements, struct {
		IDs []string `json:"ids"`
	}{ids})
}

func UngroupElement(id string) (Message, error) {
	return newMessage(TypeUngroupElement, idPayload{id})
}

// ReparentElement moves child under parent; an empty parent means top level.
func ReparentElement(child, parent string) (Message, error) {
	var np *string
	if parent != "" {
		np = &parent
	}
	return newMessage(TypeReparentElement, struct {
		ChildID     string  `json:"childId"`
		NewParentID *string `json:"newParentId"`
	}{child, np})
}

func ReorderElement(id string, cmd ReorderCommand) (Message, error) {
	return newMessage(TypeReorderElement, struct {
		ID      string         `json:"id"`
		Command ReorderCommand `json:"command"`
	}{id, cmd})
}

func ReorderLayer(dragged, target string, pos Position) (Message, error) {
	return newMessage(TypeReorderLayer, struct {
		DraggedID string   `json:"draggedId"`
		TargetID  string   `json:"targetId"`
		Position  Position `json:"position"`
	}{dragged, target, pos})
}

// SetPresentationOrder replaces the whole slide order.
func SetPresentationOrder(frameIDs []string) (Message, error) {
	return newMessage(TypeUpdatePresentationOrder, struct {
		Action          string   `json:"action"`
		OrderedFrameIDs []string `json:"ordered_frame_ids"`
	}{"set", frameIDs})
}

// AddToPresentation appends one frame to the slide order.
func AddToPresentation(frameID string) (Message, error) {
	return newMessage(TypeUpdatePresentationOrder, struct {
		Action  string `json:"action"`
		FrameID string `json:"frame_id"`
	}{"add", frameID})
}

func ReorderSlide(dragged, target string, pos Position) (Message, error) {
	return newMessage(TypeReorderSlide, struct {
		DraggedID string   `json:"dragged_id"`
		TargetID  string   `json:"target_id"`
		Position  Position `json:"position"`
	}{dragged, target, pos})
}

func Undo() (Message, error) { return newMessage(TypeUndo, struct{}{}) }

func Redo() (Message, error) { return newMessage(TypeRedo, struct{}{}) }

// RequestWorkspaceState asks for a full snapshot. It is not a user action
// and goes out unsequenced.
func RequestWorkspaceState() (Message, error) {
	return newMessage(TypeRequestWorkspaceState, struct{}{})
}

// UserPrompt hands free text to the authority's agent along with the
// selection it refers to. The resulting edits come back as ordinary pushes.
func UserPrompt(text string, selected []string) (Message, error) {
	if selected == nil {
		selected = []string{}
	}
	return newMessage(TypeUserPrompt, struct {
		Text        string   `json:"text"`
		SelectedIDs []string `json:"selected_ids"`
	}{text, selected})
}
