package cryptoprim

import (
	"runtime"
	"testing"
)

func TestHasAESHardwareSupport(t *testing.T) {
	// We can't mock CPU features; just confirm it doesn't panic and returns
	// a boolean.
	_ = HasAESHardwareSupport()
}

func TestIsHardwareAccelerationEnabled(t *testing.T) {
	opts := HardwareOptions{
		EnableAESNI:    true,
		EnableARMv8AES: true,
	}

	expected := HasAESHardwareSupport()
	if IsHardwareAccelerationEnabled(opts) != expected {
		t.Errorf("IsHardwareAccelerationEnabled(true) = %v, want %v (HasAESHardwareSupport)", IsHardwareAccelerationEnabled(opts), expected)
	}

	if HasAESHardwareSupport() {
		disabled := HardwareOptions{EnableAESNI: false, EnableARMv8AES: false}
		if IsHardwareAccelerationEnabled(disabled) {
			if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
				t.Errorf("IsHardwareAccelerationEnabled(false) = true, want false")
			}
		}
	}
}

func TestGetHardwareAccelerationInfo(t *testing.T) {
	info := GetHardwareAccelerationInfo(nil)

	requiredFields := []string{"aes_hardware_support", "architecture", "goos", "go_version"}
	for _, field := range requiredFields {
		if _, ok := info[field]; !ok {
			t.Errorf("GetHardwareAccelerationInfo(nil) missing field: %s", field)
		}
	}

	opts := &HardwareOptions{
		EnableAESNI:    true,
		EnableARMv8AES: true,
	}
	infoWithOpts := GetHardwareAccelerationInfo(opts)
	if _, ok := infoWithOpts["aes_ni_enabled"]; !ok {
		t.Errorf("GetHardwareAccelerationInfo(opts) missing aes_ni_enabled")
	}
	if _, ok := infoWithOpts["hardware_acceleration_active"]; !ok {
		t.Errorf("GetHardwareAccelerationInfo(opts) missing hardware_acceleration_active")
	}
}
