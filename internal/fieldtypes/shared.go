package fieldtypes

import (
	"fmt"
	"strconv"
	"strings"
)

// Characteristic is one shared-characteristic group: a named setting
// concept (e.g. "options") that several field types express through
// their own setting IDs. When a field's type changes, settings mapped
// through a common group keep their values under the new setting ID.
//
// The serialized form is stored independently of code so that extension
// modules can contribute groups:
//
//	options:dropdown=11,multi_select=16,radio_buttons=21|num_rows:textarea=7
type Characteristic struct {
	Name    string
	Members map[string]int // field type identifier -> setting ID
}

// ParseCharacteristics parses the serialized shared-characteristics
// resource. Empty input yields no groups.
func ParseCharacteristics(serialized string) ([]Characteristic, error) {
	serialized = strings.TrimSpace(serialized)
	if serialized == "" {
		return nil, nil
	}

	var groups []Characteristic
	for _, rawGroup := range strings.Split(serialized, "|") {
		name, members, ok := strings.Cut(rawGroup, ":")
		if !ok {
			return nil, fmt.Errorf("malformed characteristic group: %q", rawGroup)
		}

		group := Characteristic{
			Name:    strings.TrimSpace(name),
			Members: make(map[string]int),
		}
		for _, member := range strings.Split(members, ",") {
			ident, idStr, ok := strings.Cut(member, "=")
			if !ok {
				return nil, fmt.Errorf("malformed characteristic member: %q", member)
			}
			settingID, err := strconv.Atoi(strings.TrimSpace(idStr))
			if err != nil {
				return nil, fmt.Errorf("invalid setting ID in %q: %w", member, err)
			}
			group.Members[strings.TrimSpace(ident)] = settingID
		}
		groups = append(groups, group)
	}
	return groups, nil
}
