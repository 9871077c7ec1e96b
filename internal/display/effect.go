package display

// Effect is whatever renders frames for a display. Colour computation
// happens outside this package; the display only tracks which effect is
// applied.
type Effect interface {
	Type() string
}

// NamedEffect is an effect known only by its type name, as set from
// configuration or over MQTT.
type NamedEffect string

// Type returns the effect type name.
func (e NamedEffect) Type() string { return string(e) }
