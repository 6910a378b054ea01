package bounds

import (
	"fmt"
	"strings"
)

// Kind says which of a row's lower/upper limits are active.
type Kind int

const (
	Unbounded Kind = iota
	UpperOnly
	LowerOnly
	BothSided
)

// kindTable is the fixed code table understood by the integration routine.
var kindTable = []struct {
	kind Kind
	code int32
	name string
}{
	{Unbounded, -1, "unbounded"},
	{UpperOnly, 0, "upper"},
	{LowerOnly, 1, "lower"},
	{BothSided, 2, "both"},
}

// Code returns the routine's integer code for k.
func (k Kind) Code() int32 {
	for _, e := range kindTable {
		if e.kind == k {
			return e.code
		}
	}
	panic(fmt.Sprintf("bounds: invalid kind %d", int(k)))
}

// Valid reports whether k is one of the four declared kinds.
func (k Kind) Valid() bool {
	return k >= Unbounded && k <= BothSided
}

// FromCode decodes a routine integer code.
func FromCode(code int32) (Kind, error) {
	for _, e := range kindTable {
		if e.code == code {
			return e.kind, nil
		}
	}
	return 0, fmt.Errorf("bounds: unknown code %d", code)
}

func (k Kind) String() string {
	for _, e := range kindTable {
		if e.kind == k {
			return e.name
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names produced by String, case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, e := range kindTable {
		if e.name == name {
			return e.kind, nil
		}
	}
	return 0, fmt.Errorf("bounds: unknown kind %q", s)
}

// HasLower reports whether the lower limit participates.
func (k Kind) HasLower() bool { return k == LowerOnly || k == BothSided }

// HasUpper reports whether the upper limit participates.
func (k Kind) HasUpper() bool { return k == UpperOnly || k == BothSided }

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("bounds: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Repeat returns n copies of k.
func Repeat(k Kind, n int) []Kind {
	kinds := make([]Kind, n)
	for i := range kinds {
		kinds[i] = k
	}
	return kinds
}
