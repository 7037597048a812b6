package cryptoprim

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HardwareOptions records whether an operator has enabled the detected CPU
// crypto acceleration. It is consulted only by IsHardwareAccelerationEnabled
// and GetHardwareAccelerationInfo for reporting; it does not change which
// AES implementation crypto/aes uses.
type HardwareOptions struct {
	EnableAESNI    bool
	EnableARMv8AES bool
}

// HasAESHardwareSupport checks if the CPU supports AES hardware
// acceleration. Go's crypto/aes already picks this up automatically; this
// is surfaced purely for logging and metrics so operators can tell why a
// 600,000-iteration KDF is fast or slow on a given host.
func HasAESHardwareSupport() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// IsHardwareAccelerationEnabled checks if hardware acceleration is
// supported AND enabled per opts.
func IsHardwareAccelerationEnabled(opts HardwareOptions) bool {
	if !HasAESHardwareSupport() {
		return false
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		return opts.EnableAESNI
	case "arm64":
		return opts.EnableARMv8AES
	default:
		return true
	}
}

// GetHardwareAccelerationInfo returns diagnostic information about
// hardware acceleration support, suitable for a startup log line.
func GetHardwareAccelerationInfo(opts *HardwareOptions) map[string]interface{} {
	info := map[string]interface{}{
		"aes_hardware_support": HasAESHardwareSupport(),
		"architecture":         runtime.GOARCH,
		"goos":                 runtime.GOOS,
		"go_version":           runtime.Version(),
	}

	if opts != nil {
		info["aes_ni_enabled"] = opts.EnableAESNI
		info["armv8_aes_enabled"] = opts.EnableARMv8AES
		info["hardware_acceleration_active"] = IsHardwareAccelerationEnabled(*opts)
	}

	return info
}
