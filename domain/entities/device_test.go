package entities

import (
	"errors"
	"testing"

	"github.com/satriahrh/lexlink/domain"
)

func validDevice() *Device {
	return &Device{
		TenantID: "tenant-1",
		Name:     "Setor 1",
		Phone:    "5511999999999",
		Status:   DeviceStatusConnected,
		Type:     DeviceTypeQR,
	}
}

func TestDeviceValidate(t *testing.T) {
	battery := 101

	tests := []struct {
		name    string
		mutate  func(d *Device)
		wantErr bool
	}{
		{name: "valid device", mutate: func(d *Device) {}},
		{name: "missing tenant", mutate: func(d *Device) { d.TenantID = "" }, wantErr: true},
		{name: "blank name", mutate: func(d *Device) { d.Name = "  " }, wantErr: true},
		{name: "unknown status", mutate: func(d *Device) { d.Status = "online" }, wantErr: true},
		{name: "unknown type", mutate: func(d *Device) { d.Type = "sms" }, wantErr: true},
		{name: "battery out of range", mutate: func(d *Device) { d.BatteryLevel = &battery }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidDevice) {
					t.Errorf("Expected ErrInvalidDevice, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestDevicePatch(t *testing.T) {
	d := validDevice()

	var empty DevicePatch
	if !empty.Empty() {
		t.Error("Zero patch should be empty")
	}

	name := " Recepção "
	status := DeviceStatusDisconnected
	patch := DevicePatch{Name: &name, Status: &status}
	if err := patch.Validate(); err != nil {
		t.Fatalf("Patch should be valid, got %v", err)
	}

	patch.Apply(d)
	if d.Name != "Recepção" {
		t.Errorf("Expected trimmed name, got %q", d.Name)
	}
	if d.Status != DeviceStatusDisconnected {
		t.Errorf("Expected status disconnected, got %s", d.Status)
	}
	if d.Phone != "5511999999999" {
		t.Error("Phone should be untouched")
	}

	blank := ""
	if err := (DevicePatch{Name: &blank}).Validate(); err == nil {
		t.Error("Blank name patch should be rejected")
	}
}
