package api

// ValueKind identifies the width and interpretation of a formatted value.
// The concrete rendering lives entirely in the external ValueFormatter;
// this core only uses ValueKind to decide whether a read needs a
// whole-buffer byte swap.
type ValueKind int

const (
	ValueKind8 ValueKind = iota
	ValueKind16
	ValueKind32
	ValueKind64
	ValueKindFloat32
	ValueKindFloat64
)

// NeedsSwap reports whether values of this kind require the facade's
// byte-swap when displayed in big-endian form. 8-bit values are never
// swapped; wider values are, matching the {2,4,8}-length swap policy.
func (k ValueKind) NeedsSwap() bool {
	return k != ValueKind8
}

// NumericBase identifies the radix a ValueFormatter should render an
// integer value in. Irrelevant for floating-point kinds.
type NumericBase int

const (
	BaseDecimal NumericBase = iota
	BaseHex
	BaseBinary
)

// ValueFormatter turns raw guest bytes into a display string. No
// implementation ships in this repository; it is an external
// collaborator's responsibility, injected at the call site of
// Facade.FormatValue.
type ValueFormatter interface {
	Format(raw []byte, kind ValueKind, base NumericBase, unsigned bool) string
}
