package installer

import "runtime"

// writeLauncher dispatches to the POSIX or Windows launcher writer based on
// the running platform; the target environment is always built for the
// platform the installer itself runs on.
func writeLauncher(env Environment, ep entryPoint) (string, error) {
	if runtime.GOOS == "windows" {
		return writeWindowsLauncher(env, ep)
	}
	return writePosixLauncher(env, ep)
}
