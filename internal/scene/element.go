/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"parsec/internal/vector"
)

// Kind is the closed set of element variants.
type Kind string

const (
	KindShape    Kind = "shape"
	KindText     Kind = "text"
	KindPath     Kind = "path"
	KindFrame    Kind = "frame"
	KindGroup    Kind = "group"
	KindImage    Kind = "image"
	KindInstance Kind = "component_instance"
)

// Kinds lists every element kind.
var Kinds = []Kind{KindShape, KindText, KindPath, KindFrame, KindGroup, KindImage, KindInstance}

// IsContainer reports whether elements of this kind may parent other elements.
func (k Kind) IsContainer() bool { return k == KindFrame || k == KindGroup }

var ErrUnknownKind = errors.New("scene: unknown element kind")

// Element is one node of the scene. Geometry is parent-relative and
// describes the box before rotation is applied around its center.
type Element struct {
	ID       string
	X, Y     float64
	Width    float64
	Height   float64
	Rotation float64
	ZIndex   int
	ParentID string
	Visible  bool
	Name     string
	Props    Props
}

// Kind returns the variant carried by Props.
func (e *Element) Kind() Kind {
	if e.Props == nil {
		return ""
	}
	return e.Props.Kind()
}

// Box returns the parent-relative, pre-rotation bounding box.
func (e *Element) Box() vector.Rect { return vector.R(e.X, e.Y, e.Width, e.Height) }

// Clone returns a deep copy.
func (e *Element) Clone() *Element {
	c := *e
	if e.Props != nil {
		c.Props = e.Props.clone()
	}
	return &c
}

// Props is the kind-specific part of an element. The set of
// implementations is closed to this package.
type Props interface {
	Kind() Kind
	clone() Props
}

type ShapeType string

const (
	ShapeRect    ShapeType = "rect"
	ShapeCircle  ShapeType = "circle"
	ShapeEllipse ShapeType = "ellipse"
)

type ShapeProps struct {
	ShapeType    ShapeType `json:"shape_type"`
	Fill         *Paint    `json:"fill"`
	Stroke       *Paint    `json:"stroke"`
	StrokeWidth  float64   `json:"strokeWidth"`
	CornerRadius float64   `json:"cornerRadius"`
}

type TextProps struct {
	Content       string  `json:"content"`
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	FontColor     string  `json:"fontColor"`
	Align         string  `json:"align"`
	VerticalAlign string  `json:"verticalAlign"`
}

type PathProps struct {
	Points      []vector.PathPoint `json:"points"`
	IsClosed    bool               `json:"isClosed"`
	Fill        *Paint             `json:"fill"`
	Stroke      *Paint             `json:"stroke"`
	StrokeWidth float64            `json:"strokeWidth"`
}

type FrameProps struct {
	Fill              *Paint  `json:"fill"`
	Stroke            *Paint  `json:"stroke"`
	StrokeWidth       float64 `json:"strokeWidth"`
	ClipsContent      bool    `json:"clipsContent"`
	CornerRadius      float64 `json:"cornerRadius"`
	PresentationOrder *int    `json:"presentationOrder"`
}

type GroupProps struct{}

type ImageProps struct {
	Src string `json:"src"`
}

// InstanceProps places a component definition; rendering it is the host's job.
type InstanceProps struct {
	DefinitionID string         `json:"definition_id"`
	Properties   map[string]any `json:"properties,omitempty"`
}

func (*ShapeProps) Kind() Kind    { return KindShape }
func (*TextProps) Kind() Kind     { return KindText }
func (*PathProps) Kind() Kind     { return KindPath }
func (*FrameProps) Kind() Kind    { return KindFrame }
func (*GroupProps) Kind() Kind    { return KindGroup }
func (*ImageProps) Kind() Kind    { return KindImage }
func (*InstanceProps) Kind() Kind { return KindInstance }

func (p *ShapeProps) clone() Props {
	c := *p
	c.Fill, c.Stroke = p.Fill.Clone(), p.Stroke.Clone()
	return &c
}

func (p *TextProps) clone() Props { c := *p; return &c }

func (p *PathProps) clone() Props {
	c := *p
	c.Points = vector.ClonePoints(p.Points)
	c.Fill, c.Stroke = p.Fill.Clone(), p.Stroke.Clone()
	return &c
}

func (p *FrameProps) clone() Props {
	c := *p
	c.Fill, c.Stroke = p.Fill.Clone(), p.Stroke.Clone()
	if p.PresentationOrder != nil {
		o := *p.PresentationOrder
		c.PresentationOrder = &o
	}
	return &c
}

func (p *GroupProps) clone() Props { return &GroupProps{} }

func (p *ImageProps) clone() Props { c := *p; return &c }

func (p *InstanceProps) clone() Props {
	c := *p
	if p.Properties != nil {
		c.Properties = make(map[string]any, len(p.Properties))
		for k, v := range p.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// NewProps returns the props of kind k filled with the authority's defaults.
func NewProps(k Kind) (Props, error) {
	switch k {
	case KindShape:
		return &ShapeProps{ShapeType: ShapeRect, Fill: Solid("#ffffff"), StrokeWidth: 1}, nil
	case KindText:
		return &TextProps{Content: "Type something...", FontFamily: "Inter", FontSize: 16, FontColor: "#000000", Align: "left", VerticalAlign: "top"}, nil
	case KindPath:
		return &PathProps{Fill: Solid("#ffffff"), Stroke: Solid("#333333"), StrokeWidth: 1}, nil
	case KindFrame:
		return &FrameProps{Fill: Solid("#ffffff"), Stroke: Solid("#888888"), StrokeWidth: 1, ClipsContent: true}, nil
	case KindGroup:
		return &GroupProps{}, nil
	case KindImage:
		return &ImageProps{}, nil
	case KindInstance:
		return &InstanceProps{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

// New builds an element of kind k with a fresh id and default props.
func New(k Kind, box vector.Rect) (*Element, error) {
	p, err := NewProps(k)
	if err != nil {
		return nil, err
	}
	return &Element{
		ID:      NewID(string(k)),
		X:       box.X,
		Y:       box.Y,
		Width:   box.W,
		Height:  box.H,
		Visible: true,
		Props:   p,
	}, nil
}

// elementBase is the flat wire layout shared by every kind.
type elementBase struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"element_type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ZIndex   int     `json:"zIndex"`
	Visible  *bool   `json:"isVisible,omitempty"`
	ParentID *string `json:"parentId"`
	Name     string  `json:"name"`
}

// MarshalJSON writes the element as one flat object with kind fields next
// to the base fields.
func (e *Element) MarshalJSON() ([]byte, error) {
	if e.Props == nil {
		return nil, fmt.Errorf("%w: element %s has no props", ErrUnknownKind, e.ID)
	}
	vis := e.Visible
	b := elementBase{
		ID: e.ID, Kind: e.Kind(), X: e.X, Y: e.Y, Rotation: e.Rotation,
		Width: e.Width, Height: e.Height, ZIndex: e.ZIndex, Visible: &vis, Name: e.Name,
	}
	if e.ParentID != "" {
		pid := e.ParentID
		b.ParentID = &pid
	}
	fields := map[string]json.RawMessage{}
	if err := mergeInto(fields, e.Props); err != nil {
		return nil, err
	}
	if err := mergeInto(fields, b); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func mergeInto(dst map[string]json.RawMessage, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range m {
		dst[k] = v
	}
	return nil
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var b elementBase
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	p, err := NewProps(b.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("scene: decode %s props: %w", b.Kind, err)
	}
	*e = Element{
		ID: b.ID, X: b.X, Y: b.Y, Width: b.Width, Height: b.Height, Rotation: b.Rotation,
		ZIndex: b.ZIndex, Visible: b.Visible == nil || *b.Visible, Name: b.Name, Props: p,
	}
	if b.ParentID != nil {
		e.ParentID = *b.ParentID
	}
	return nil
}

// Outline maps the element onto a hit-test outline in the given absolute box.
func (e *Element) Outline(abs vector.Rect) vector.Shape {
	s := vector.Shape{Outline: vector.OutlineBox, Box: abs, Rotation: e.Rotation}
	switch p := e.Props.(type) {
	case *ShapeProps:
		switch p.ShapeType {
		case ShapeCircle, ShapeEllipse:
			s.Outline = vector.OutlineEllipse
		default:
			if p.CornerRadius > 0 {
				s.Outline, s.Radius = vector.OutlineRoundedBox, p.CornerRadius
			}
		}
	case *FrameProps:
		if p.CornerRadius > 0 {
			s.Outline, s.Radius = vector.OutlineRoundedBox, p.CornerRadius
		}
	case *TextProps, *PathProps, *GroupProps, *ImageProps, *InstanceProps:
	}
	return s
}
