package enums

import "fmt"

// VoucherType is the fixed-duration voucher product sold through the network.
type VoucherType string

const (
	VoucherJM2Jam   VoucherType = "JM_2jam"
	VoucherMJ15Jam  VoucherType = "MJ_15jam"
	VoucherMJ1Hari  VoucherType = "MJ_1hari"
	VoucherMJ7Hari  VoucherType = "MJ_7hari"
	VoucherMJ30Hari VoucherType = "MJ_30hari"
)

var validVoucherTypes = []VoucherType{
	VoucherJM2Jam,
	VoucherMJ15Jam,
	VoucherMJ1Hari,
	VoucherMJ7Hari,
	VoucherMJ30Hari,
}

// VoucherTypes returns the closed set of sellable voucher types.
func VoucherTypes() []VoucherType {
	out := make([]VoucherType, len(validVoucherTypes))
	copy(out, validVoucherTypes)
	return out
}

// IsValid reports whether the value is one of the sellable voucher types.
func (v VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherType converts raw input into VoucherType.
func ParseVoucherType(value string) (VoucherType, error) {
	for _, candidate := range validVoucherTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}
