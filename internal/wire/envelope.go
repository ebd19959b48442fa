/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package wire defines the message vocabulary exchanged with the remote
// authority: a JSON envelope carrying a type tag, a payload and, for
// committed commands, a sequence number.
package wire

import (
	"encoding/json"
	"errors"
)

var (
	ErrMalformed   = errors.New("wire: malformed message")
	ErrUnknownType = errors.New("wire: unknown message type")
)

// Envelope is the frame every message travels in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Seq     uint64          `json:"seq,omitempty"`
}

// Class tells the transport how a message may be treated under pressure.
type Class uint8

const (
	// Committed messages are sent exactly once and never dropped.
	Committed Class = iota
	// Ephemeral messages may be coalesced or dropped.
	Ephemeral
)

// Message is an outbound envelope plus its delivery class and, for
// ephemeral element updates, the element it concerns.
type Message struct {
	Envelope
	Class     Class
	ElementID string
}

// Encode marshals the envelope.
func (m Message) Encode() ([]byte, error) { return json.Marshal(m.Envelope) }

func newMessage(typ string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Envelope: Envelope{Type: typ, Payload: raw}}, nil
}
