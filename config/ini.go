package config

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/ini.v1"
)

// LoadProfile preloads store from an ini file with a [bool], [int] and
// [bytes] section, one key per property name (see names.go) — the direct
// generalization of the teacher's EDS-file-driven object dictionary
// (od_variable.go's buildVariable/encode) to this module's flat property
// table. A bench harness or test fixture uses this to set up a known
// adapter configuration without recompiling; LoadProfile is entirely
// optional — NewDefault already builds a working store.
func LoadProfile(path string, store *Store) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading profile %s: %w", path, err)
	}

	if sec, err := cfg.GetSection("bool"); err == nil {
		for i, name := range boolNames {
			if key, err := sec.GetKey(name); err == nil {
				v, err := key.Bool()
				if err != nil {
					return fmt.Errorf("profile %s: bool property %s: %w", path, name, err)
				}
				store.SetBool(BoolProperty(i), v)
			}
		}
	}

	if sec, err := cfg.GetSection("int"); err == nil {
		for i, name := range intNames {
			if key, err := sec.GetKey(name); err == nil {
				v, err := key.Uint()
				if err != nil {
					return fmt.Errorf("profile %s: int property %s: %w", path, name, err)
				}
				store.SetInt(IntProperty(i), uint32(v))
			}
		}
	}

	if sec, err := cfg.GetSection("bytes"); err == nil {
		for i, name := range bytesNames {
			if key, err := sec.GetKey(name); err == nil {
				data, err := hex.DecodeString(key.Value())
				if err != nil {
					return fmt.Errorf("profile %s: bytes property %s: %w", path, name, err)
				}
				store.SetBytes(BytesProperty(i), data)
			}
		}
	}

	return nil
}

// SaveProfile writes every non-zero property currently in store back out
// to an ini file in the same schema LoadProfile reads.
func SaveProfile(path string, store *Store) error {
	cfg := ini.Empty()

	boolSec, err := cfg.NewSection("bool")
	if err != nil {
		return err
	}
	for i, name := range boolNames {
		if v := store.GetBool(BoolProperty(i)); v {
			boolSec.NewKey(name, "true")
		}
	}

	intSec, err := cfg.NewSection("int")
	if err != nil {
		return err
	}
	for i, name := range intNames {
		if v := store.GetInt(IntProperty(i)); v != 0 {
			intSec.NewKey(name, fmt.Sprintf("%d", v))
		}
	}

	bytesSec, err := cfg.NewSection("bytes")
	if err != nil {
		return err
	}
	for i, name := range bytesNames {
		ba := store.GetBytes(BytesProperty(i))
		if ba.Length > 0 {
			bytesSec.NewKey(name, hex.EncodeToString(ba.Data[:ba.Length]))
		}
	}

	return cfg.SaveTo(path)
}
