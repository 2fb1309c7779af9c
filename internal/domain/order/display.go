package order

// Color buckets used by dashboards.
const (
	ColorGray   = "gray"
	ColorBlue   = "blue"
	ColorIndigo = "indigo"
	ColorYellow = "yellow"
	ColorPurple = "purple"
	ColorGreen  = "green"
	ColorRed    = "red"
)

// Display is the single glyph, colour bucket and label a status renders as.
type Display struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Label string `json:"label"`
}

var unknownDisplay = Display{Icon: "clock", Color: ColorGray, Label: "Unknown"}

var displays = map[Status]Display{
	StatusUploaded:            {Icon: "upload", Color: ColorBlue, Label: "Uploaded"},
	StatusDoctorApproved:      {Icon: "check-circle", Color: ColorIndigo, Label: "Doctor approved"},
	StatusForwardedToSupplier: {Icon: "send", Color: ColorPurple, Label: "Forwarded to supplier"},
	StatusProcessing:          {Icon: "package", Color: ColorYellow, Label: "Processing"},
	StatusShipped:             {Icon: "truck", Color: ColorBlue, Label: "Shipped"},
	StatusDelivered:           {Icon: "check", Color: ColorGreen, Label: "Delivered"},
	StatusRejected:            {Icon: "x-circle", Color: ColorRed, Label: "Rejected"},
	StatusCancelled:           {Icon: "ban", Color: ColorGray, Label: "Cancelled"},
}

// DisplayOf returns the rendering of s, falling back to the unknown bucket.
func DisplayOf(s Status) Display {
	if d, ok := displays[s]; ok {
		return d
	}
	return unknownDisplay
}
