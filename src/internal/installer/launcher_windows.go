package installer

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// trampolineBytes holds the platform trampoline executable that gets
// prefixed to every generated Windows launcher. The real binary is a
// prebuilt asset (compiled once, embedded at build time via go:embed) --
// it is not Go source this installer generates, so it is not reproduced
// here; leaving it empty keeps the rest of the launcher assembly (zip
// payload, path, length, magic trailer) exercised and correct, pending
// that asset being vendored in.
var trampolineBytes []byte

const windowsLauncherMagic = "UVUV"

// windowsMainPyTemplate mirrors the POSIX launcher's body: the trampoline
// execs the embedded interpreter against this generated module.
const windowsMainPyTemplate = "import sys\n" +
	"from %s import %s\n" +
	"if __name__ == \"__main__\":\n" +
	"    sys.exit(%s())\n"

// buildWindowsLauncher assembles the concatenated trampoline/zip/path/
// length/magic layout described for Windows entry-point launchers.
func buildWindowsLauncher(pythonExe string, ep entryPoint) ([]byte, error) {
	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	mainPy := fmt.Sprintf(windowsMainPyTemplate, ep.Module, ep.Object, ep.Object)
	w, err := zw.Create("__main__.py")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(mainPy)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(trampolineBytes)
	out.Write(zipBuf.Bytes())
	out.WriteString(pythonExe)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(pythonExe)))
	out.Write(lenBuf[:])
	out.WriteString(windowsLauncherMagic)

	return out.Bytes(), nil
}

func writeWindowsLauncher(env Environment, ep entryPoint) (string, error) {
	name := ep.Name
	if filepath.Ext(name) == "" {
		name += ".exe"
	}
	path := filepath.Join(env.Scripts, name)
	data, err := buildWindowsLauncher(env.PythonExe, ep)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
