package hwapi

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/logger"
)

const manifestFile = "platform.json"

// DefaultRoot is where the platform driver publishes the chassis tree.
const DefaultRoot = "/sys/devices/platform/chassis"

// New probes the platform tree under root and returns the chassis
// capability object. Platforms shipping a platform.json manifest are
// loaded from it; older platforms without one are discovered by scanning
// the directory layout. The choice is made once here, never per call.
func New(root string) (Chassis, error) {
	errFactory := errors.New()

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errFactory.WithData(ErrNoPlatform, root)
	}

	if _, err := os.Stat(filepath.Join(root, manifestFile)); err == nil {
		chassis, err := loadManifest(root)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("root", root).Msg("Platform loaded from manifest")

		return chassis, nil
	}

	chassis, err := scanLayout(root)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("root", root).Msg("Platform discovered by directory scan")

	return chassis, nil
}

type manifest struct {
	Name       string           `json:"name"`
	Modular    bool             `json:"modular"`
	PSUs       []manifestPSU    `json:"psus"`
	FanDrawers []manifestEntity `json:"fan_drawers"`
	Modules    []manifestEntity `json:"modules"`
}

type manifestPSU struct {
	Name        string   `json:"name"`
	Dir         string   `json:"dir"`
	Replaceable bool     `json:"replaceable"`
	Fans        []string `json:"fans"`
}

type manifestEntity struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

func loadManifest(root string) (Chassis, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(filepath.Join(root, manifestFile))
	if err != nil {
		return nil, errFactory.Wrap(ErrBadManifest, err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errFactory.Wrap(ErrBadManifest, err)
	}

	if len(m.PSUs) == 0 {
		return nil, errFactory.WithData(ErrNoPlatform, "manifest lists no PSUs")
	}

	chassis := &sysfsChassis{
		dir:     attrDir{path: root},
		name:    m.Name,
		modular: m.Modular,
	}
	if chassis.name == "" {
		chassis.name = "chassis 1"
	}

	for i, mp := range m.PSUs {
		dir := attrDir{path: filepath.Join(root, mp.Dir)}
		if !dir.exists() {
			return nil, errFactory.WithData(ErrBadManifest, "missing PSU dir "+mp.Dir)
		}

		psu := &sysfsPSU{
			dir:         dir,
			name:        mp.Name,
			parent:      chassis.name,
			position:    i + 1,
			replaceable: mp.Replaceable,
		}
		if psu.name == "" {
			psu.name = fmt.Sprintf("PSU %d", i+1)
		}

		for _, fanDir := range mp.Fans {
			psu.fans = append(psu.fans, &sysfsFan{
				dir:  attrDir{path: filepath.Join(root, mp.Dir, fanDir)},
				name: fanDir,
			})
		}

		chassis.psus = append(chassis.psus, psu)
	}

	for _, me := range m.FanDrawers {
		chassis.drawers = append(chassis.drawers, &sysfsConsumer{
			dir:  attrDir{path: filepath.Join(root, me.Dir)},
			name: me.Name,
		})
	}
	for _, me := range m.Modules {
		chassis.modules = append(chassis.modules, &sysfsConsumer{
			dir:  attrDir{path: filepath.Join(root, me.Dir)},
			name: me.Name,
		})
	}

	return chassis, nil
}

// scanLayout discovers entities on manifest-less platforms: psuN/
// directories with fanN/ subdirectories, fandrawerN/ and moduleN/
// consumers, and an optional "modular" flag file at the root.
func scanLayout(root string) (Chassis, error) {
	errFactory := errors.New()

	chassis := &sysfsChassis{
		dir:  attrDir{path: root},
		name: "chassis 1",
	}

	if modular, err := chassis.dir.readBool("modular"); err == nil {
		chassis.modular = modular
	}

	psuDirs, err := sortedGlob(root, "psu[0-9]*")
	if err != nil {
		return nil, errFactory.Wrap(ErrNoPlatform, err)
	}
	if len(psuDirs) == 0 {
		return nil, errFactory.WithData(ErrNoPlatform, root)
	}

	for i, psuDir := range psuDirs {
		psu := &sysfsPSU{
			dir:         attrDir{path: psuDir},
			name:        fmt.Sprintf("PSU %d", i+1),
			parent:      chassis.name,
			position:    i + 1,
			replaceable: true,
		}

		fanDirs, err := sortedGlob(psuDir, "fan[0-9]*")
		if err != nil {
			return nil, errFactory.Wrap(ErrNoPlatform, err)
		}
		for _, fanDir := range fanDirs {
			psu.fans = append(psu.fans, &sysfsFan{
				dir:  attrDir{path: fanDir},
				name: filepath.Base(fanDir),
			})
		}

		chassis.psus = append(chassis.psus, psu)
	}

	drawerDirs, err := sortedGlob(root, "fandrawer[0-9]*")
	if err != nil {
		return nil, errFactory.Wrap(ErrNoPlatform, err)
	}
	for _, dir := range drawerDirs {
		chassis.drawers = append(chassis.drawers, &sysfsConsumer{
			dir:  attrDir{path: dir},
			name: filepath.Base(dir),
		})
	}

	moduleDirs, err := sortedGlob(root, "module[0-9]*")
	if err != nil {
		return nil, errFactory.Wrap(ErrNoPlatform, err)
	}
	for _, dir := range moduleDirs {
		chassis.modules = append(chassis.modules, &sysfsConsumer{
			dir:  attrDir{path: dir},
			name: filepath.Base(dir),
		})
	}

	return chassis, nil
}

// sortedGlob returns matching subdirectories in lexical order so entity
// indices stay stable across restarts.
func sortedGlob(root, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, err
		}
		if info.IsDir() {
			dirs = append(dirs, match)
		}
	}
	sort.Strings(dirs)

	return dirs, nil
}
