package hwapi

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/psud/internal/errors"
)

// Attribute files follow hwmon scaling conventions: voltages in mV,
// currents in mA, power in µW, temperatures in m°C.
const (
	scaleMilli = 1000
	scaleMicro = 1000000
)

const attrFilePerm = 0o644

// attrDir reads and writes single-value attribute files in one entity
// directory. A missing file maps to ErrNotSupported, everything else to
// a read or write failure.
type attrDir struct {
	path string
}

func (d attrDir) readString(name string) (string, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errFactory.WithData(ErrNotSupported, name)
		}

		return "", errFactory.Wrap(ErrReadFailed, err)
	}

	return strings.TrimSpace(string(raw)), nil
}

func (d attrDir) readBool(name string) (bool, error) {
	raw, err := d.readString(name)
	if err != nil {
		return false, err
	}

	switch raw {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}

	return false, errors.New().WithData(ErrBadReading, name+"="+raw)
}

func (d attrDir) readScaled(name string, scale float64) (float64, error) {
	raw, err := d.readString(name)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New().WithData(ErrBadReading, name+"="+raw)
	}

	return value / scale, nil
}

func (d attrDir) writeString(name, value string) error {
	errFactory := errors.New()

	path := filepath.Join(d.path, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errFactory.WithData(ErrNotSupported, name)
		}

		return errFactory.Wrap(ErrWriteFailed, err)
	}

	if err := os.WriteFile(path, []byte(value), attrFilePerm); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (d attrDir) exists() bool {
	info, err := os.Stat(d.path)

	return err == nil && info.IsDir()
}
