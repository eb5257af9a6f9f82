// Package model defines the core persona-context data types.
package model

import (
	"fmt"
	"strings"
)

// Element is one of the five diagnostic categories.
type Element string

const (
	Wood  Element = "WOOD"
	Fire  Element = "FIRE"
	Earth Element = "EARTH"
	Metal Element = "METAL"
	Water Element = "WATER"
)

// Elements lists every element in canonical order.
var Elements = []Element{Wood, Fire, Earth, Metal, Water}

// ParseElement accepts any casing of a known element name.
func ParseElement(s string) (Element, error) {
	e := Element(strings.ToUpper(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown element %q", s)
	}
	return e, nil
}

// Valid reports whether e is one of the five elements.
func (e Element) Valid() bool {
	switch e {
	case Wood, Fire, Earth, Metal, Water:
		return true
	default:
		return false
	}
}

// Label is the human-facing name used in prompts.
func (e Element) Label() string {
	switch e {
	case Wood:
		return "Wood"
	case Fire:
		return "Fire"
	case Earth:
		return "Earth"
	case Metal:
		return "Metal"
	case Water:
		return "Water"
	default:
		return string(e)
	}
}
