package domain

// PrintSize identifies one of the poster formats offered by the shop. The raw
// value is the size code used across cart items, storage paths, and order
// documents (for example "21x29.7").
type PrintSize string

const (
	SizeA4     PrintSize = "21x29.7"
	SizeA3     PrintSize = "29.7x42"
	SizeA2     PrintSize = "42x59.4"
	Size50x70  PrintSize = "50x70"
	SizeA1     PrintSize = "59.4x84.1"
	SizeA0     PrintSize = "84.1x118.9"
)

// DefaultPriceCents is charged for size codes outside the catalogue so a
// malformed cart line never prices at zero.
const DefaultPriceCents int64 = 3370

// KnownSizes lists the catalogue formats in ascending size order.
func KnownSizes() []PrintSize {
	return []PrintSize{SizeA4, SizeA3, SizeA2, Size50x70, SizeA1, SizeA0}
}

// PriceCents returns the authoritative price in euro cents for the format.
// The table is the single source of truth: client-supplied prices are never
// trusted over it.
func (s PrintSize) PriceCents() int64 {
	switch s {
	case SizeA4:
		return 2065
	case SizeA3:
		return 3373
	case SizeA2:
		return 3780
	case Size50x70:
		return 3370
	case SizeA1:
		return 5063
	case SizeA0:
		return 5063
	default:
		return DefaultPriceCents
	}
}

// Label returns the customer-facing dimension label. Unknown codes fall back
// to the raw code so the UI still shows something meaningful.
func (s PrintSize) Label() string {
	switch s {
	case SizeA4:
		return "21 x 29,70 cm"
	case SizeA3:
		return "29,70 x 42 cm A3"
	case SizeA2:
		return "42 x 59,40 cm A2"
	case Size50x70:
		return "50 x 70 cm"
	case SizeA1:
		return "59,40 x 84,10 cm A1"
	case SizeA0:
		return "84,10 x 118,90 cm A0"
	default:
		return string(s)
	}
}

// EmailLabel is the variant used in confirmation emails, with the DIN name in
// parentheses. The 50x70 format has no DIN name.
func (s PrintSize) EmailLabel() string {
	switch s {
	case SizeA4:
		return "21 x 29,70 cm (A4)"
	case SizeA3:
		return "29,70 x 42 cm (A3)"
	case SizeA2:
		return "42 x 59,40 cm (A2)"
	case Size50x70:
		return "50 x 70 cm"
	case SizeA1:
		return "59,40 x 84,10 cm (A1)"
	case SizeA0:
		return "84,10 x 118,90 cm (A0)"
	default:
		if s == "" {
			return "Standard"
		}
		return string(s)
	}
}

// Known reports whether the code is part of the catalogue.
func (s PrintSize) Known() bool {
	switch s {
	case SizeA4, SizeA3, SizeA2, Size50x70, SizeA1, SizeA0:
		return true
	default:
		return false
	}
}
