package outputspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		preset PresetID
		width  int
		height int
		want   OutputSpec
	}{
		{
			name:   "preset ignores custom fields",
			mode:   ModePreset,
			preset: PassportEU,
			width:  600,
			height: 800,
			want:   Preset(PassportEU),
		},
		{
			name:   "custom ignores preset",
			mode:   ModeCustom,
			preset: VisaUS,
			width:  600,
			height: 800,
			want:   Custom(600, 800),
		},
		{
			name:   "custom keeps non-positive values as given",
			mode:   ModeCustom,
			width:  0,
			height: -5,
			want:   Custom(0, -5),
		},
		{
			name:   "unknown mode falls back to preset",
			mode:   Mode("weird"),
			preset: IDCardTR,
			want:   Preset(IDCardTR),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.mode, tt.preset, tt.width, tt.height)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializeHasExactlyOneResolutionPath(t *testing.T) {
	specs := []OutputSpec{
		Preset(PassportEU),
		Preset(PassportTR),
		Preset(VisaUS),
		Preset(IDCardTR),
		Custom(600, 800),
		Custom(1200, 1200),
		Custom(1, 1),
	}

	for _, spec := range specs {
		t.Run(spec.String(), func(t *testing.T) {
			values := Serialize(spec)
			format := values.Get(ParamOutputFormat)
			require.NotEmpty(t, format)

			hasWidth := values.Has(ParamCustomWidth)
			hasHeight := values.Has(ParamCustomHeight)

			if format == CustomFormat {
				assert.True(t, hasWidth && hasHeight, "custom spec must carry both dimensions")
				assert.Len(t, values, 3)
			} else {
				assert.False(t, hasWidth || hasHeight, "preset spec must not carry dimensions")
				assert.Len(t, values, 1)
				_, ok := LookupPreset(PresetID(format))
				assert.True(t, ok)
			}
		})
	}
}

func TestSerializeValues(t *testing.T) {
	assert.Equal(t, "output_format=passport_eu", Serialize(Preset(PassportEU)).Encode())
	assert.Equal(t, "custom_height=800&custom_width=600&output_format=custom", Serialize(Custom(600, 800)).Encode())
	assert.Empty(t, Serialize(OutputSpec{}))
}

func TestSwitchingModesDropsStaleFields(t *testing.T) {
	in := DefaultInput()
	in.Mode = ModeCustom
	in.CustomWidth, in.CustomHeight = 600, 800
	in.Mode = ModePreset

	values := Serialize(in.Build())
	assert.Equal(t, string(DefaultPreset), values.Get(ParamOutputFormat))
	assert.False(t, values.Has(ParamCustomWidth))
	assert.False(t, values.Has(ParamCustomHeight))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Preset(VisaUS).Validate())
	assert.NoError(t, Custom(600, 800).Validate())

	err := Preset("passport_xx").Validate()
	assert.True(t, errors.Is(err, ErrUnknownPreset), "got %v", err)

	err = Custom(0, 800).Validate()
	assert.True(t, errors.Is(err, ErrInvalidDimensions), "got %v", err)

	err = Custom(600, -1).Validate()
	assert.True(t, errors.Is(err, ErrInvalidDimensions), "got %v", err)

	assert.ErrorIs(t, OutputSpec{}.Validate(), ErrEmptySpec)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "passport_eu", Preset(PassportEU).Token())
	assert.Equal(t, "600x800", Custom(600, 800).Token())
	assert.Equal(t, "", OutputSpec{}.Token())
}

func TestAccessors(t *testing.T) {
	id, ok := Preset(PassportTR).PresetID()
	assert.True(t, ok)
	assert.Equal(t, PassportTR, id)
	_, _, ok = Preset(PassportTR).Dimensions()
	assert.False(t, ok)

	w, h, ok := Custom(600, 800).Dimensions()
	assert.True(t, ok)
	assert.Equal(t, 600, w)
	assert.Equal(t, 800, h)
	_, ok = Custom(600, 800).PresetID()
	assert.False(t, ok)

	assert.True(t, OutputSpec{}.IsZero())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Custom")
	require.NoError(t, err)
	assert.Equal(t, ModeCustom, m)

	m, err = ParseMode(" preset ")
	require.NoError(t, err)
	assert.Equal(t, ModePreset, m)

	_, err = ParseMode("auto")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestPresets(t *testing.T) {
	list := Presets()
	require.Len(t, list, 4)
	assert.Equal(t, PassportEU, list[0].ID)

	// Returned slice is a copy
	list[0].Label = "changed"
	p, ok := LookupPreset(PassportEU)
	require.True(t, ok)
	assert.Equal(t, "Passport (EU Standard)", p.Label)
}
