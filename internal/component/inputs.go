package component

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/spf13/cast"

	"github.com/dshills/ragcore/pkg/types"
)

// Input and output keys shared by the chunking stages
const (
	InputText     = "text"
	InputSections = "sections"
	OutputChunks  = "chunks"
)

// sectionsInput reads the sections of an invocation. "sections" may hold
// []types.Section or a list of {text, position_tag, image} records; a plain
// "text" input becomes one section, or one per line when byLine is set.
func sectionsInput(inputs map[string]any, byLine bool) ([]types.Section, error) {
	if raw, ok := inputs[InputSections]; ok && raw != nil {
		return ParseSections(raw)
	}

	raw, ok := inputs[InputText]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: neither %q nor %q is set", types.ErrMalformedSection, InputSections, InputText)
	}
	text, err := cast.ToStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not text: %w", types.ErrMalformedSection, InputText, err)
	}

	if !byLine {
		return []types.Section{{Text: text}}, nil
	}
	lines := strings.Split(text, "\n")
	sections := make([]types.Section, len(lines))
	for i, l := range lines {
		sections[i] = types.Section{Text: l}
	}
	return sections, nil
}

// ParseSections decodes a list of section records as accepted by the
// "sections" input
func ParseSections(raw any) ([]types.Section, error) {
	if secs, ok := raw.([]types.Section); ok {
		return secs, nil
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: sections must be a list: %w", types.ErrMalformedSection, err)
	}

	sections := make([]types.Section, 0, len(items))
	for i, item := range items {
		sec, err := parseSection(item)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", types.ErrMalformedSection, i, err)
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func parseSection(item any) (types.Section, error) {
	switch v := item.(type) {
	case types.Section:
		return v, nil
	case string:
		return types.Section{Text: v}, nil
	}

	m, err := cast.ToStringMapE(item)
	if err != nil {
		return types.Section{}, err
	}

	rawText, ok := m["text"]
	if !ok {
		return types.Section{}, errors.New("missing text")
	}
	text, err := cast.ToStringE(rawText)
	if err != nil {
		return types.Section{}, fmt.Errorf("text: %w", err)
	}

	sec := types.Section{Text: text}
	if tag, ok := m["position_tag"]; ok && tag != nil {
		if sec.PositionTag, err = cast.ToStringE(tag); err != nil {
			return types.Section{}, fmt.Errorf("position_tag: %w", err)
		}
	}
	if img, ok := m["image"]; ok && img != nil {
		if sec.Image, ok = img.(image.Image); !ok {
			return types.Section{}, fmt.Errorf("image has unsupported type %T", img)
		}
	}
	return sec, nil
}
