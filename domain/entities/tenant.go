package entities

// DefaultDeviceCap is the number of QR devices a tenant may link when no plan says otherwise.
const DefaultDeviceCap = 10

// TenantPlan holds the per-tenant limits relevant to WhatsApp connectivity.
type TenantPlan struct {
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	DeviceCap int    `json:"device_cap" db:"whatsapp_device_cap"`
}
