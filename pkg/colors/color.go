// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package colors implements the RGB(A) color value used by classes and objects.
package colors

import (
	"fmt"
	"strconv"
	"strings"

	"annostore.io/annostore/pkg/annoterr"
)

// Color is an RGBA color. Components are expected to be in [0, 255];
// values outside of the range are representable but not valid.
type Color struct {
	Red   int
	Green int
	Blue  int
	Alpha int
}

// RGB returns an opaque color.
func RGB(red, green, blue int) Color {
	return Color{Red: red, Green: green, Blue: blue, Alpha: 255}
}

// RGBA returns a color with an explicit alpha component.
func RGBA(red, green, blue, alpha int) Color {
	return Color{Red: red, Green: green, Blue: blue, Alpha: alpha}
}

// IsValid reports whether all components are in [0, 255].
func (c Color) IsValid() bool {
	for _, v := range c.ToRGBA() {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}

// ToRGB returns the red, green and blue components.
func (c Color) ToRGB() [3]int { return [3]int{c.Red, c.Green, c.Blue} }

// ToRGBA returns all four components.
func (c Color) ToRGBA() [4]int { return [4]int{c.Red, c.Green, c.Blue, c.Alpha} }

// Floats returns the components scaled to [0, 1].
func (c Color) Floats() [4]float64 {
	return [4]float64{
		float64(c.Red) / 255,
		float64(c.Green) / 255,
		float64(c.Blue) / 255,
		float64(c.Alpha) / 255,
	}
}

// PackedRGB packs the color into a signed 32 bit integer with the alpha
// byte forced to 0xff.
func (c Color) PackedRGB() int32 {
	return int32(uint32(0xff)<<24 | uint32(c.Red&0xff)<<16 | uint32(c.Green&0xff)<<8 | uint32(c.Blue&0xff))
}

// PackedRGBA packs the color including its alpha byte into a signed 32 bit integer.
func (c Color) PackedRGBA() int32 {
	return int32(uint32(c.Alpha&0xff)<<24 | uint32(c.Red&0xff)<<16 | uint32(c.Green&0xff)<<8 | uint32(c.Blue&0xff))
}

// FromPackedRGB unpacks a color, ignoring the alpha byte.
func FromPackedRGB(v int32) Color {
	u := uint32(v)
	return RGB(int(u>>16&0xff), int(u>>8&0xff), int(u&0xff))
}

// FromPackedRGBA unpacks a color including its alpha byte.
func FromPackedRGBA(v int32) Color {
	u := uint32(v)
	return RGBA(int(u>>16&0xff), int(u>>8&0xff), int(u&0xff), int(u>>24&0xff))
}

// Hex returns "#rrggbb", or "#rrggbbaa" for translucent colors.
func (c Color) Hex() string {
	if c.Alpha != 255 {
		return fmt.Sprintf("#%02x%02x%02x%02x", c.Red&0xff, c.Green&0xff, c.Blue&0xff, c.Alpha&0xff)
	}
	return fmt.Sprintf("#%02x%02x%02x", c.Red&0xff, c.Green&0xff, c.Blue&0xff)
}

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa". The leading '#' is optional.
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 && len(h) != 8 {
		return Color{}, annoterr.ErrValidation.New("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, annoterr.ErrValidation.New("invalid hex color %q: %v", s, err)
	}
	if len(h) == 6 {
		return RGB(int(v>>16&0xff), int(v>>8&0xff), int(v&0xff)), nil
	}
	return RGBA(int(v>>24&0xff), int(v>>16&0xff), int(v>>8&0xff), int(v&0xff)), nil
}

// String implements fmt.Stringer.
func (c Color) String() string {
	if c.Alpha != 255 {
		return fmt.Sprintf("<Color rgba(%d, %d, %d, %d)>", c.Red, c.Green, c.Blue, c.Alpha)
	}
	return fmt.Sprintf("<Color rgb(%d, %d, %d)>", c.Red, c.Green, c.Blue)
}
