package outputspec

// PresetID names a backend-defined output geometry.
type PresetID string

// Must stay in sync with the processing service's enumerated formats.
const (
	PassportEU PresetID = "passport_eu"
	PassportTR PresetID = "passport_tr"
	VisaUS     PresetID = "visa_us"
	IDCardTR   PresetID = "id_card_tr"
)

// DefaultPreset is selected until the user picks another one.
const DefaultPreset = PassportEU

// Default custom dimensions offered when switching to custom mode.
const (
	DefaultCustomWidth  = 1200
	DefaultCustomHeight = 1200
)

// PresetInfo describes a preset for display.
type PresetInfo struct {
	ID    PresetID `json:"id"`
	Label string   `json:"label"`
}

var presets = []PresetInfo{
	{ID: PassportEU, Label: "Passport (EU Standard)"},
	{ID: PassportTR, Label: "Passport (Turkey)"},
	{ID: VisaUS, Label: "US Visa (2x2 inch)"},
	{ID: IDCardTR, Label: "ID Card (Turkey)"},
}

// Presets returns the recognized presets in display order.
func Presets() []PresetInfo {
	out := make([]PresetInfo, len(presets))
	copy(out, presets)
	return out
}

// LookupPreset finds a recognized preset by id.
func LookupPreset(id PresetID) (PresetInfo, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return PresetInfo{}, false
}

// Input holds the live size selection as the user edits it. Both the preset
// and the custom fields are kept so switching modes back and forth does not
// lose what was typed; Build only reads the active ones.
type Input struct {
	Mode         Mode     `json:"mode"`
	Preset       PresetID `json:"preset"`
	CustomWidth  int      `json:"customWidth"`
	CustomHeight int      `json:"customHeight"`
}

// DefaultInput is the selection a fresh session starts with.
func DefaultInput() Input {
	return Input{
		Mode:         ModePreset,
		Preset:       DefaultPreset,
		CustomWidth:  DefaultCustomWidth,
		CustomHeight: DefaultCustomHeight,
	}
}

// Build materializes the current OutputSpec.
func (in Input) Build() OutputSpec {
	return Build(in.Mode, in.Preset, in.CustomWidth, in.CustomHeight)
}
