package installer

import (
	"fmt"
	"os"
	"path/filepath"
)

// posixLauncherBody is the entry-point script template, normative text
// lifted from the wheel spec's described format: a shebang into the
// environment's interpreter followed by a sys.exit on the target callable.
const posixLauncherBody = "#!%s\n" +
	"# -*- coding: utf-8 -*-\n" +
	"import sys\n" +
	"from %s import %s\n" +
	"if __name__ == \"__main__\":\n" +
	"    sys.exit(%s())\n"

func writePosixLauncher(env Environment, ep entryPoint) (string, error) {
	path := filepath.Join(env.Scripts, ep.Name)
	body := fmt.Sprintf(posixLauncherBody, env.PythonExe, ep.Module, ep.Object, ep.Object)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
