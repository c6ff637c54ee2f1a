package application

import (
	"fmt"
	"strconv"
)

// Facility is a bookable resource. ApproverRole is only shown to users.
type Facility struct {
	Index        int
	Name         string
	ApproverRole string
	Tracked      bool
}

// Facilities is the ordered catalogue of bookable resources.
type Facilities []Facility

// DefaultFacilities returns the standard catalogue.
func DefaultFacilities() Facilities {
	return NewFacilities([]Facility{
		{Name: "L1 Ops Hub", ApproverRole: "ops admin"},
		{Name: "L1 Mercury Planning Room", ApproverRole: "ops admin"},
		{Name: "L2 Venus Planning Room", ApproverRole: "ops admin"},
		{Name: "L3 Terra Planning Room", ApproverRole: "ops admin"},
		{Name: "TRACKED VEHICLE MOVEMENT", ApproverRole: "movement controller", Tracked: true},
	})
}

// NewFacilities assigns indices in list order.
func NewFacilities(list []Facility) Facilities {
	out := make(Facilities, len(list))
	for i, facility := range list {
		facility.Index = i
		out[i] = facility
	}
	return out
}

// Lookup returns the facility at index.
func (f Facilities) Lookup(index int) (Facility, error) {
	if index < 0 || index >= len(f) {
		return Facility{}, newValidationError("facility", fmt.Sprintf("unknown facility %d", index))
	}
	return f[index], nil
}

// Parse resolves a menu selection to a facility.
func (f Facilities) Parse(value string) (Facility, error) {
	index, err := strconv.Atoi(value)
	if err != nil {
		return Facility{}, newValidationError("facility", "please pick a facility from the list")
	}
	return f.Lookup(index)
}

// Tracked returns the facilities whose bookings reserve movement lanes.
func (f Facilities) Tracked() Facilities {
	var out Facilities
	for _, facility := range f {
		if facility.Tracked {
			out = append(out, facility)
		}
	}
	return out
}

// Options renders the catalogue as a choice prompt.
func (f Facilities) Options() []Option {
	options := make([]Option, 0, len(f))
	for _, facility := range f {
		options = append(options, Option{Label: facility.Name, Value: strconv.Itoa(facility.Index)})
	}
	return options
}
