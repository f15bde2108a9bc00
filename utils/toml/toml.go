// Package toml loads and dumps TOML config files with keys named exactly
// like the Go struct fields.
package toml

import (
	"bufio"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// Settings ensure that TOML keys use the same names as Go struct fields.
var Settings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadFile decodes file into v. Fields missing from the file keep the
// values v already holds.
func LoadFile(file string, v interface{}) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = Settings.NewDecoder(bufio.NewReader(f)).Decode(v)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return errors.Wrap(err, "TOML config file error.\nUse 'dumpconfig' command to get an example config file")
	}
	return nil
}

// Marshal encodes v as TOML.
func Marshal(v interface{}) ([]byte, error) {
	return Settings.Marshal(v)
}
