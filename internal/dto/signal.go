package dto

// SignalFile is the document layout of a signal definition file.
// It uses "mapstructure" tags so YAML and JSON documents decode through the
// same generic map.
type SignalFile struct {
	Signals map[string]SignalDef `json:"signals" mapstructure:"signals"`
}

// SignalDef describes one signal.
type SignalDef struct {
	Description string    `json:"description" mapstructure:"description"`
	Sequence    []ItemDef `json:"sequence" mapstructure:"sequence"`
}

// ItemDef is one entry of a sequence. Exactly one of Do, Sequence or Use is set.
type ItemDef struct {
	// Do names a registered action factory.
	Do string `json:"do,omitempty" mapstructure:"do"`
	// Name overrides the action name (defaults to Do).
	Name string         `json:"name,omitempty" mapstructure:"name"`
	Args map[string]any `json:"args,omitempty" mapstructure:"args"`
	// Paths maps output names to branch sequences.
	Paths map[string][]ItemDef `json:"paths,omitempty" mapstructure:"paths"`

	// Sequence is an inline group of items.
	Sequence []ItemDef `json:"sequence,omitempty" mapstructure:"sequence"`

	// Use inlines the sequence of another signal in the same load.
	Use string `json:"use,omitempty" mapstructure:"use"`
}
