// Package outputspec maps the user's size selection onto the output geometry
// requested from the processing service.
package outputspec

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by the processing service.
const (
	ParamOutputFormat = "output_format"
	ParamCustomWidth  = "custom_width"
	ParamCustomHeight = "custom_height"

	// CustomFormat is the output_format marker for explicit dimensions.
	CustomFormat = "custom"
)

var (
	ErrUnknownPreset     = errors.New("unknown preset format")
	ErrInvalidDimensions = errors.New("custom width and height must be positive integers")
	ErrEmptySpec         = errors.New("no output format selected")
	ErrUnknownMode       = errors.New("unknown size mode")
)

// Mode is the size-mode toggle: a named preset or custom dimensions.
type Mode string

const (
	ModePreset Mode = "preset"
	ModeCustom Mode = "custom"
)

// ParseMode accepts "preset" or "custom", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePreset:
		return ModePreset, nil
	case ModeCustom:
		return ModeCustom, nil
	default:
		return "", fmt.Errorf("%w: %q (want preset or custom)", ErrUnknownMode, s)
	}
}

// OutputSpec is either Preset(id) or Custom(width, height).
// The zero value selects nothing and fails Validate.
type OutputSpec struct {
	mode   Mode
	preset PresetID
	width  int
	height int
}

// Preset returns the OutputSpec for a named backend format.
func Preset(id PresetID) OutputSpec {
	return OutputSpec{mode: ModePreset, preset: id}
}

// Custom returns the OutputSpec for explicit pixel dimensions.
func Custom(width, height int) OutputSpec {
	return OutputSpec{mode: ModeCustom, width: width, height: height}
}

// Build maps the size-mode inputs to an OutputSpec. Fields belonging to the
// inactive mode are ignored; custom values are used as given.
func Build(mode Mode, presetID PresetID, customWidth, customHeight int) OutputSpec {
	if mode == ModeCustom {
		return Custom(customWidth, customHeight)
	}
	return Preset(presetID)
}

func (s OutputSpec) Mode() Mode { return s.mode }

// PresetID returns the preset identifier, if s is a preset spec.
func (s OutputSpec) PresetID() (PresetID, bool) {
	return s.preset, s.mode == ModePreset
}

// Dimensions returns width and height, if s is a custom spec.
func (s OutputSpec) Dimensions() (int, int, bool) {
	return s.width, s.height, s.mode == ModeCustom
}

// IsZero reports whether no variant is selected.
func (s OutputSpec) IsZero() bool {
	return s.mode == ""
}

// Token identifies an OutputSpec in filenames: the preset id or "{width}x{height}".
func (s OutputSpec) Token() string {
	switch s.mode {
	case ModePreset:
		return string(s.preset)
	case ModeCustom:
		return fmt.Sprintf("%dx%d", s.width, s.height)
	default:
		return ""
	}
}

func (s OutputSpec) String() string {
	switch s.mode {
	case ModePreset:
		return fmt.Sprintf("Preset(%s)", s.preset)
	case ModeCustom:
		return fmt.Sprintf("Custom(%d, %d)", s.width, s.height)
	default:
		return "None"
	}
}

// Validate rejects specs the backend would refuse, so they are never sent.
func (s OutputSpec) Validate() error {
	switch s.mode {
	case ModePreset:
		if _, ok := LookupPreset(s.preset); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPreset, s.preset)
		}
		return nil
	case ModeCustom:
		if s.width <= 0 || s.height <= 0 {
			return fmt.Errorf("%w (got %dx%d)", ErrInvalidDimensions, s.width, s.height)
		}
		return nil
	default:
		return ErrEmptySpec
	}
}

// Serialize emits the query parameters for s. A preset yields only
// output_format; a custom spec yields output_format=custom plus width and
// height. A zero spec yields no parameters.
func Serialize(s OutputSpec) url.Values {
	values := url.Values{}
	switch s.mode {
	case ModePreset:
		values.Set(ParamOutputFormat, string(s.preset))
	case ModeCustom:
		values.Set(ParamOutputFormat, CustomFormat)
		values.Set(ParamCustomWidth, strconv.Itoa(s.width))
		values.Set(ParamCustomHeight, strconv.Itoa(s.height))
	}
	return values
}
