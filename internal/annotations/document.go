package annotations

import (
	"encoding/json"
	"fmt"

	"github.com/bavix/presence/internal/macaddr"
)

// document mirrors the on-disk layout:
//
//	{"users": {"icon": {MAC: path}, "label": {MAC: text}}, "showAllUsers": bool}
//
// Keys owned by other widgets, at the top level or under "users", are kept verbatim.
type document struct {
	extra      map[string]json.RawMessage
	usersExtra map[string]json.RawMessage
	icon       map[string]string
	label      map[string]string
	showAll    *bool
}

func newDocument() *document {
	return &document{
		extra:      map[string]json.RawMessage{},
		usersExtra: map[string]json.RawMessage{},
		icon:       map[string]string{},
		label:      map[string]string{},
	}
}

func decodeDocument(b []byte) (*document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, err
	}

	d := newDocument()

	for k, v := range top {
		switch k {
		case keyUsers:
			if err := d.decodeUsers(v); err != nil {
				return nil, err
			}
		case keyShowAll:
			if isNull(v) {
				continue
			}

			var show bool
			if err := json.Unmarshal(v, &show); err != nil {
				return nil, fmt.Errorf("%s: %w", keyShowAll, err)
			}

			d.showAll = &show
		default:
			d.extra[k] = v
		}
	}

	return d, nil
}

func (d *document) decodeUsers(raw json.RawMessage) error {
	if isNull(raw) {
		return nil
	}

	var users map[string]json.RawMessage
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("%s: %w", keyUsers, err)
	}

	for k, v := range users {
		var target map[string]string

		switch k {
		case keyIcon:
			target = d.icon
		case keyLabel:
			target = d.label
		default:
			d.usersExtra[k] = v

			continue
		}

		if isNull(v) {
			continue
		}

		var m map[string]string
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("%s.%s: %w", keyUsers, k, err)
		}

		for mac, val := range m {
			if val != "" {
				target[macaddr.Canonical(mac)] = val
			}
		}
	}

	return nil
}

func (d *document) set(field, mac, value string) {
	target := d.icon
	if field == keyLabel {
		target = d.label
	}

	mac = macaddr.Canonical(mac)
	if value == "" {
		delete(target, mac)

		return
	}

	target[mac] = value
}

func (d *document) encode() ([]byte, error) {
	users := make(map[string]any, len(d.usersExtra)+2) //nolint:mnd // icon + label
	for k, v := range d.usersExtra {
		users[k] = v
	}

	users[keyIcon] = d.icon
	users[keyLabel] = d.label

	top := make(map[string]any, len(d.extra)+2) //nolint:mnd // users + showAllUsers
	for k, v := range d.extra {
		top[k] = v
	}

	top[keyUsers] = users

	if d.showAll != nil {
		top[keyShowAll] = *d.showAll
	}

	out, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(out, '\n'), nil
}

func (d *document) snapshot() Snapshot {
	s := Snapshot{entries: make(map[string]Annotation, len(d.icon)+len(d.label)), showAll: true}
	if d.showAll != nil {
		s.showAll = *d.showAll
	}

	for mac, icon := range d.icon {
		a := s.entries[mac]
		a.IconPath = icon
		s.entries[mac] = a
	}

	for mac, label := range d.label {
		a := s.entries[mac]
		a.Label = label
		s.entries[mac] = a
	}

	return s
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
