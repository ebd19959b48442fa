/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

const (
	PaintSolid          = "solid"
	PaintLinearGradient = "linear-gradient"
)

type GradientStop struct {
	Color  string  `json:"color"`
	Offset float64 `json:"offset"`
}

// Paint is a solid color or a linear gradient, discriminated by Type.
type Paint struct {
	Type  string         `json:"type"`
	Color string         `json:"color,omitempty"`
	Angle float64        `json:"angle,omitempty"`
	Stops []GradientStop `json:"stops,omitempty"`
}

func Solid(color string) *Paint { return &Paint{Type: PaintSolid, Color: color} }

func LinearGradient(angle float64, stops ...GradientStop) *Paint {
	return &Paint{Type: PaintLinearGradient, Angle: angle, Stops: stops}
}

func (p *Paint) Clone() *Paint {
	if p == nil {
		return nil
	}
	c := *p
	c.Stops = append([]GradientStop(nil), p.Stops...)
	return &c
}

// Representative returns one color for renderers that cannot draw gradients:
// the solid color, or the first stop.
func (p *Paint) Representative() (string, bool) {
	if p == nil {
		return "", false
	}
	if p.Type == PaintLinearGradient {
		if len(p.Stops) == 0 {
			return "", false
		}
		return p.Stops[0].Color, true
	}
	return p.Color, p.Color != ""
}
