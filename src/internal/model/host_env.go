package model

import "runtime"

// HostEnvironment reports the concrete marker values for the machine this
// process is running on. It is used where a single, concrete environment
// is genuinely needed — selecting among a lockfile's marker-forked package
// entries at install time — never during universal resolution itself,
// which must stay marker-agnostic so the lockfile it produces is valid
// across environments.
func HostEnvironment() map[MarkerVar]string {
	env := map[MarkerVar]string{
		VarImplementationName: "cpython",
		VarPlatformPyImpl:     "CPython",
	}
	switch runtime.GOOS {
	case "windows":
		env[VarOSName] = "nt"
		env[VarSysPlatform] = "win32"
		env[VarPlatformSystem] = "Windows"
	case "darwin":
		env[VarOSName] = "posix"
		env[VarSysPlatform] = "darwin"
		env[VarPlatformSystem] = "Darwin"
	default:
		env[VarOSName] = "posix"
		env[VarSysPlatform] = "linux"
		env[VarPlatformSystem] = "Linux"
	}
	return env
}
