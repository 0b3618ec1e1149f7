// Package bytesize parses and prints volume sizes such as "64Mi" or "10GB".
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. It parses from plain numbers, binary units
// (Ki, Mi, Gi, Ti, with or without a trailing B) and decimal units (K, M,
// G, T, with or without a trailing B). Units are case-insensitive.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"": B, "b": B,
	"k": KB, "kb": KB, "ki": KiB, "kib": KiB,
	"m": MB, "mb": MB, "mi": MiB, "mib": MiB,
	"g": GB, "gb": GB, "gi": GiB, "gib": GiB,
	"t": TB, "tb": TB, "ti": TiB, "tib": TiB,
}

// ParseByteSize parses a size. Fractions are allowed with a unit ("1.5Gi")
// and rounded down to whole bytes.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	multiplier, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unit)
	}

	if !strings.Contains(num, ".") {
		n, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		if n > math.MaxUint64/uint64(multiplier) {
			return 0, fmt.Errorf("invalid byte size %q: overflows 64 bits", s)
		}
		return ByteSize(n) * multiplier, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	total := f * float64(multiplier)
	if total >= math.MaxUint64 {
		return 0, fmt.Errorf("invalid byte size %q: overflows 64 bits", s)
	}
	return ByteSize(total), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// Set implements pflag.Value so sizes can be command-line flags.
func (b *ByteSize) Set(s string) error {
	return b.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string {
	return "size"
}

// String prints the size with the largest binary unit it reaches.
func (b ByteSize) String() string {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		if b >= u.size {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}

// AlignUp rounds b up to a multiple of blockSize. A zero block size leaves
// b unchanged.
func (b ByteSize) AlignUp(blockSize uint32) ByteSize {
	if blockSize == 0 {
		return b
	}
	bs := ByteSize(blockSize)
	return (b + bs - 1) / bs * bs
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}
