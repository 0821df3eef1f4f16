package vkresult

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestCheckSuccess(t *testing.T) {
	if err := Check(vk.Success); err != nil {
		t.Fatalf("expected nil error for vk.Success, got %v", err)
	}
}

func TestCheckDeviceLost(t *testing.T) {
	err := Check(vk.ErrorDeviceLost)
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost, got %v", err)
	}
}

func TestCheckOutOfMemory(t *testing.T) {
	for _, ret := range []vk.Result{vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory} {
		err := Check(ret)
		if !errors.Is(err, ErrOutOfMemory) {
			t.Fatalf("result %v: expected ErrOutOfMemory, got %v", ret, err)
		}
	}
}

func TestCheckOtherFailureWraps(t *testing.T) {
	err := Check(vk.ErrorInitializationFailed)
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	if errors.Is(err, ErrDeviceLost) || errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("unexpected sentinel match for unrelated result: %v", err)
	}
}

func TestMustSucceedPanicsOnFailure(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-success result")
		}
	}()
	MustSucceed(vk.ErrorDeviceLost)
}

func TestMustSucceedNoPanicOnSuccess(t *testing.T) {
	MustSucceed(vk.Success)
}
