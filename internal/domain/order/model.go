package order

import (
	"io"
	"time"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

// Order is a prescription/medicine order tracked by the platform.
type Order struct {
	ID              string                `json:"id"`
	Status          Status                `json:"status"`
	PatientID       string                `json:"patientId"`
	SupplierID      *string               `json:"supplierId,omitempty"`
	DeliveryAddress string                `json:"deliveryAddress"`
	DurationInDays  int                   `json:"durationInDays"`
	Prescription    *apiclient.StoredFile `json:"prescription,omitempty"`
	DoctorNotes     *string               `json:"doctorNotes,omitempty"`
	RejectionReason *string               `json:"rejectionReason,omitempty"`
	TrackingNumber  *string               `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// Key identifies the order inside a projection.
func (o Order) Key() string { return o.ID }

// Display returns how the order's status renders.
func (o Order) Display() Display { return DisplayOf(o.Status) }

// UploadRequest is a new prescription upload that creates an order.
type UploadRequest struct {
	Filename        string
	File            io.Reader
	DeliveryAddress string
	DurationInDays  int
	Notes           string
}
