/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wire

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"parsec/internal/scene"
	"parsec/internal/vector"
)

func validateOutbound(t *testing.T, m Message) {
	t.Helper()
	schemaBytes, err := os.ReadFile(filepath.Join("testdata", "outbound.schema.json"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(data))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("%s does not conform to schema: %s", m.Type, data)
	}
}

func TestOutboundMessagesConformToSchema(t *testing.T) {
	e, err := scene.New(scene.KindShape, vector.R(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	build := []func() (Message, error){
		func() (Message, error) { return CreateElement(e) },
		func() (Message, error) { return CreateElementsBatch([]*scene.Element{e}) },
		func() (Message, error) { return UpdateElement(scene.MovePatch(e.ID, 1, 2), Ephemeral) },
		func() (Message, error) { return UpdateElement(scene.MovePatch(e.ID, 1, 2), Committed) },
		func() (Message, error) { return DeleteElement(e.ID) },
		func() (Message, error) { return GroupElements([]string{"a", "b"}) },
		func() (Message, error) { return UngroupElement("g") },
		func() (Message, error) { return ReparentElement("a", "") },
		func() (Message, error) { return ReparentElement("a", "f") },
		func() (Message, error) { return ReorderElement("a", SendToBack) },
		func() (Message, error) { return ReorderLayer("a", "b", Above) },
		func() (Message, error) { return SetPresentationOrder([]string{"f1", "f2"}) },
		func() (Message, error) { return AddToPresentation("f3") },
		func() (Message, error) { return ReorderSlide("f1", "f2", Below) },
		Undo,
		Redo,
		RequestWorkspaceState,
		func() (Message, error) { return UserPrompt("align these", []string{"a"}) },
		func() (Message, error) { return UserPrompt("add a title", nil) },
	}
	for _, b := range build {
		m, err := b()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		validateOutbound(t, m)
	}
}

func TestUpdateElementFlags(t *testing.T) {
	m, err := UpdateElement(scene.MovePatch("shape_1", 3, 4), Ephemeral)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var p map[string]any
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p["commit_history"] != false || p["id"] != "shape_1" || p["x"] != 3.0 {
		t.Fatalf("unexpected payload %v", p)
	}
	if m.Class != Ephemeral || m.ElementID != "shape_1" {
		t.Fatalf("ephemeral metadata missing: %+v", m)
	}
}

func TestDecodeWorkspaceState(t *testing.T) {
	raw := `{"type":"SET_WORKSPACE_STATE","payload":{"elements":[
		{"id":"frame_1","element_type":"frame","x":0,"y":0,"width":100,"height":100,"zIndex":0,"parentId":null},
		{"id":"text_1","element_type":"text","x":5,"y":5,"width":50,"height":20,"parentId":"frame_1","content":"hi"}
	],"componentDefinitions":[{"id":"def_1","name":"Card"}],"assets":[]}}`
	in, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Snapshot == nil || len(in.Snapshot.Elements) != 2 || len(in.Snapshot.ComponentDefinitions) != 1 {
		t.Fatalf("unexpected snapshot %+v", in.Snapshot)
	}
	txt := in.Snapshot.Elements[1]
	if txt.ParentID != "frame_1" || txt.Props.(*scene.TextProps).Content != "hi" || !txt.Visible {
		t.Fatalf("text element decoded wrong: %+v", txt)
	}
}

func TestDecodeBatchAndDelete(t *testing.T) {
	in, err := Decode([]byte(`{"type":"ELEMENTS_CREATED","payload":[{"id":"a","element_type":"group"},{"id":"b","element_type":"image","src":"x.png"}]}`))
	if err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(in.Elements) != 2 || in.Elements[1].Props.(*scene.ImageProps).Src != "x.png" {
		t.Fatalf("unexpected batch %+v", in.Elements)
	}
	in, err = Decode([]byte(`{"type":"ELEMENT_DELETED","payload":{"id":"a"}}`))
	if err != nil || in.DeletedID != "a" {
		t.Fatalf("decode delete: %v %+v", err, in)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`not json`, ErrMalformed},
		{`{"type":"TELEPORT","payload":{}}`, ErrUnknownType},
		{`{"type":"ELEMENT_CREATED","payload":{"id":"a"}}`, ErrMalformed},
		{`{"type":"ELEMENT_CREATED","payload":{"id":"a","element_type":"hologram"}}`, ErrMalformed},
		{`{"type":"ELEMENTS_UPDATED","payload":{"id":"a","element_type":"shape"}}`, ErrMalformed},
		{`{"type":"ELEMENT_DELETED","payload":{}}`, ErrMalformed},
		{`{"type":"ELEMENT_UPDATED","payload":{"id":"p","element_type":"path","points":3}}`, ErrMalformed},
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c.raw)); !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.raw, c.want, err)
		}
	}
}

func TestDecodeStatusIsOpaque(t *testing.T) {
	in, err := Decode([]byte(`{"type":"STATUS_UPDATE","payload":{"agent":"busy","progress":0.5}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(in.Status) == 0 {
		t.Fatalf("status payload dropped")
	}
}
