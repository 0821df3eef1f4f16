// Package vkresult translates Vulkan result codes into the sentinel
// errors the rest of the core propagates.
package vkresult

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Fatal/terminal error kinds from spec.md §7 that a vk.Result can carry.
var (
	ErrDeviceLost  = errors.New("vkresult: device lost")
	ErrOutOfMemory = errors.New("vkresult: out of memory")
)

// Check converts a raw vk.Result into an error, or nil on vk.Success.
// Device-lost and out-of-memory codes map onto the shared sentinels so
// callers can errors.Is against them regardless of which Vulkan call
// produced the result; every other non-success code is wrapped with the
// originating result code for diagnostics.
func Check(ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return ErrOutOfMemory
	default:
		return fmt.Errorf("vkresult: call failed with result %d", int32(ret))
	}
}

// MustSucceed is Check, panicking if ret is not vk.Success. Reserved for
// programming-error guards inside this package (never called on results
// derived from caller-controlled input); production call sites use
// Check and propagate the error instead.
func MustSucceed(ret vk.Result) {
	if err := Check(ret); err != nil {
		panic(err)
	}
}
