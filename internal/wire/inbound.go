/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wire

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"parsec/internal/scene"
)

// Inbound push types.
const (
	TypeSetWorkspaceState          = "SET_WORKSPACE_STATE"
	TypeElementCreated             = "ELEMENT_CREATED"
	TypeElementsCreated            = "ELEMENTS_CREATED"
	TypeElementUpdated             = "ELEMENT_UPDATED"
	TypeElementsUpdated            = "ELEMENTS_UPDATED"
	TypeElementDeleted             = "ELEMENT_DELETED"
	TypeComponentDefinitionCreated = "COMPONENT_DEFINITION_CREATED"
	TypeWorkspaceReset             = "WORKSPACE_RESET"
	TypeStatusUpdate               = "STATUS_UPDATE"
	TypeAssetCreated               = "ASSET_CREATED"
	TypeAssetDeleted               = "ASSET_DELETED"
)

//go:embed inbound.schema.json
var inboundSchema []byte

var compiledInbound = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(inboundSchema))
})

// Inbound is a decoded push. Exactly the fields relevant to Type are set.
type Inbound struct {
	Type       string
	Seq        uint64
	Snapshot   *scene.Snapshot
	Elements   []*scene.Element
	DeletedID  string
	Definition *scene.ComponentDefinition
	Asset      *scene.Asset
	Status     json.RawMessage
}

// Decode validates and decodes one inbound frame. Failures wrap
// ErrMalformed or ErrUnknownType so the caller can drop the single message.
func Decode(data []byte) (Inbound, error) {
	schema, err := compiledInbound()
	if err != nil {
		return Inbound{}, fmt.Errorf("wire: compile schema: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !knownInbound(env.Type) {
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Inbound{}, fmt.Errorf("%w: %s: %s", ErrMalformed, env.Type, strings.Join(msgs, "; "))
	}

	in := Inbound{Type: env.Type, Seq: env.Seq}
	switch env.Type {
	case TypeSetWorkspaceState, TypeWorkspaceReset:
		var s scene.Snapshot
		err = json.Unmarshal(env.Payload, &s)
		in.Snapshot = &s
	case TypeElementCreated, TypeElementUpdated:
		var e scene.Element
		err = json.Unmarshal(env.Payload, &e)
		in.Elements = []*scene.Element{&e}
	case TypeElementsCreated, TypeElementsUpdated:
		err = json.Unmarshal(env.Payload, &in.Elements)
	case TypeElementDeleted:
		var p idPayload
		err = json.Unmarshal(env.Payload, &p)
		in.DeletedID = p.ID
	case TypeComponentDefinitionCreated:
		var d scene.ComponentDefinition
		err = json.Unmarshal(env.Payload, &d)
		in.Definition = &d
	case TypeAssetCreated:
		var a scene.Asset
		err = json.Unmarshal(env.Payload, &a)
		in.Asset = &a
	case TypeAssetDeleted:
		var p idPayload
		err = json.Unmarshal(env.Payload, &p)
		in.DeletedID = p.ID
	case TypeStatusUpdate:
		in.Status = env.Payload
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return in, nil
}

func knownInbound(t string) bool {
	switch t {
	case TypeSetWorkspaceState, TypeElementCreated, TypeElementsCreated, TypeElementUpdated,
		TypeElementsUpdated, TypeElementDeleted, TypeComponentDefinitionCreated, TypeWorkspaceReset,
		TypeStatusUpdate, TypeAssetCreated, TypeAssetDeleted:
		return true
	}
	return false
}
