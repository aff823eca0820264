// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package filetype

import "fmt"

// Label is the classification of an entry's content.
type Label uint8

// Known labels. The zero value is Unknown.
const (
	Unknown Label = iota
	WAN           // sprite (SIR0-wrapped)
	WAT           // sprite variant (SIR0-wrapped)
	Screen        // screen/tilemap (SIR0-wrapped)
	WBA
	SIR0 // SIR0 wrapper with unrecognised content
	AT4PX
	PKDPX
	SIR0AT4PX
	SIR0PKDPX
	WTE
	WTU
	DPLA    // animated palette (SIR0-wrapped)
	SIR0IMG // compressed image tiles (SIR0-wrapped)
	COLVEC
	ZMAPPAT
	BGP
	DPL // palette table
	RAW4BPP

	labelCount
)

type labelInfo struct {
	name string
	ext  string
}

var labels = [labelCount]labelInfo{
	Unknown:   {"Unknown", ".bin"},
	WAN:       {"WAN", ".wan"},
	WAT:       {"WAT", ".wat"},
	Screen:    {"Screen", ".screen"},
	WBA:       {"WBA", ".wba"},
	SIR0:      {"SIR0", ".bin"},
	AT4PX:     {"AT4PX", ".at4px"},
	PKDPX:     {"PKDPX", ".pkdpx"},
	SIR0AT4PX: {"SIR0(AT4PX)", ".at4px"},
	SIR0PKDPX: {"SIR0(PKDPX)", ".pkdpx"},
	WTE:       {"WTE", ".wte"},
	WTU:       {"WTU", ".wtu"},
	DPLA:      {"SIR0(DPLA)", ".dpla"},
	SIR0IMG:   {"SIR0(IMG)", ".img"},
	COLVEC:    {"SIR0(COLVEC)", ".colvec"},
	ZMAPPAT:   {"SIR0(ZMAPPAT)", ".zmappat"},
	BGP:       {"BGP", ".bgp"},
	DPL:       {"DPL", ".dpl"},
	RAW4BPP:   {"RAW_4BPP", ".img"},
}

// String returns the display name of the label.
func (l Label) String() string {
	if l >= labelCount {
		return fmt.Sprintf("Label(%d)", uint8(l))
	}
	return labels[l].name
}

// Ext returns the file extension used when exporting an entry with this label.
func (l Label) Ext() string {
	if l >= labelCount {
		return ".bin"
	}
	return labels[l].ext
}

// Compressed reports whether the label denotes a bare PX container that
// DecodeIfCompressed can unwrap.
func (l Label) Compressed() bool {
	return l == PKDPX || l == AT4PX
}

// Labels returns every known label in declaration order.
func Labels() []Label {
	out := make([]Label, labelCount)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// ParseLabel returns the label with the given display name.
func ParseLabel(name string) (Label, error) {
	for i, info := range labels {
		if info.name == name {
			return Label(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown label %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
