package xlib

// KeyTranslator maps key events to keysyms and strings. Installed with
// WithKeyTranslator.
type KeyTranslator interface {
	// TranslateKey returns the keysym for keycode under the modifier state
	// and the modifiers it consumed.
	TranslateKey(keycode byte, state uint16) (keysym uint32, consumed uint16)

	// RebindKeysym makes keysym pressed with mods produce s.
	RebindKeysym(keysym uint32, mods []uint32, s string) error
}

// ResourceDatabase answers resource queries.
type ResourceDatabase interface {
	Lookup(names, classes string) (typ, value string, ok bool)
}

// ResourceParser builds a database from the RESOURCE_MANAGER string.
type ResourceParser func(data string) ResourceDatabase

// LookupKeysym translates a key event's keycode and state.
func (d *Display) LookupKeysym(keycode byte, state uint16) (uint32, error) {
	d.lock()
	keys := d.keys
	d.unlock()
	if keys == nil {
		return 0, ErrNoCollaborator
	}
	keysym, _ := keys.TranslateKey(keycode, state)
	return keysym, nil
}

// RebindKeysym changes the string a keysym produces.
func (d *Display) RebindKeysym(keysym uint32, mods []uint32, s string) error {
	d.lock()
	keys := d.keys
	d.unlock()
	if keys == nil {
		return ErrNoCollaborator
	}
	return keys.RebindKeysym(keysym, mods, s)
}

// GetDefault looks up program.option in the resource database built from
// RESOURCE_MANAGER.
func (d *Display) GetDefault(program, option string) (string, error) {
	d.lock()
	db := d.resources
	d.unlock()
	if db == nil {
		return "", ErrNoCollaborator
	}
	_, value, ok := db.Lookup(program+"."+option, "Program."+option)
	if !ok {
		return "", nil
	}
	return value, nil
}
