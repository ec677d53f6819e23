package core

const (
	VendorGeneral    VendorType = "general"
	VendorElectrical VendorType = "electrical"
	VendorPlumbing   VendorType = "plumbing"
	VendorHVAC       VendorType = "hvac"
	VendorCarpentry  VendorType = "carpentry"
	VendorConcrete   VendorType = "concrete"
	VendorMaterials  VendorType = "materials"
	VendorOther      VendorType = "other"
)

// VendorType is the trade category of a vendor.
type VendorType string

var vendorTypes = []struct {
	code  VendorType
	label string
}{
	{VendorGeneral, "General contractor"},
	{VendorElectrical, "Electrical"},
	{VendorPlumbing, "Plumbing"},
	{VendorHVAC, "HVAC"},
	{VendorCarpentry, "Carpentry"},
	{VendorConcrete, "Concrete"},
	{VendorMaterials, "Materials supplier"},
	{VendorOther, "Other"},
}

// DefaultVendorType is the first trade category.
func DefaultVendorType() VendorType {
	return vendorTypes[0].code
}

// VendorTypes returns every trade category in display order.
func VendorTypes() []VendorType {
	out := make([]VendorType, len(vendorTypes))
	for i, vt := range vendorTypes {
		out[i] = vt.code
	}
	return out
}

func (t VendorType) IsValid() bool {
	for _, vt := range vendorTypes {
		if vt.code == t {
			return true
		}
	}
	return false
}

func (t VendorType) Label() string {
	for _, vt := range vendorTypes {
		if vt.code == t {
			return vt.label
		}
	}
	return string(t)
}

// ParseVendorType maps free input to a trade category, falling back to the
// default for empty or unknown values.
func ParseVendorType(s string) VendorType {
	t := VendorType(s)
	if t.IsValid() {
		return t
	}
	return DefaultVendorType()
}
