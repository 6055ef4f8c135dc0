package installer

import (
	"bufio"
	"os"
	"strings"
)

// readRootIsPurelib reads the Root-Is-Purelib key from a wheel's WHEEL
// metadata file. Absence or any value other than "true" is treated as
// false, matching the default a PEP 427 consumer applies.
func readRootIsPurelib(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "Root-Is-Purelib" {
			return strings.EqualFold(strings.TrimSpace(val), "true"), nil
		}
	}
	return false, scanner.Err()
}

// entryPoint is one console_scripts or gui_scripts line from
// entry_points.txt: name = module[:object].
type entryPoint struct {
	Name   string
	Module string
	Object string
	GUI    bool
}

// parseEntryPoints reads the [console_scripts] and [gui_scripts] sections
// of a dist-info entry_points.txt. A missing file yields no entry points,
// not an error: most wheels don't ship any.
func parseEntryPoints(path string) ([]entryPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []entryPoint
	var section string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			continue
		}
		if section != "console_scripts" && section != "gui_scripts" {
			continue
		}
		name, target, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		target = strings.TrimSpace(target)
		module, object, _ := strings.Cut(target, ":")
		out = append(out, entryPoint{
			Name: name, Module: strings.TrimSpace(module), Object: strings.TrimSpace(object),
			GUI: section == "gui_scripts",
		})
	}
	return out, scanner.Err()
}
