package bytesize

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"1024B", 1024, false},
		{"64Mi", 64 * MiB, false},
		{"64mib", 64 * MiB, false},
		{" 1 Gi ", GiB, false},
		{"10GB", 10 * GB, false},
		{"2T", 2 * TB, false},
		{"1.5Gi", GiB + GiB/2, false},
		{"", 0, true},
		{"Mi", 0, true},
		{"12XB", 0, true},
		{"-1", 0, true},
		{"1.2.3Mi", 0, true},
		{"99999999999Ti", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "2.00KiB", (2 * KiB).String())
	assert.Equal(t, "64.00MiB", (64 * MiB).String())
	assert.Equal(t, "1.50GiB", (GiB + GiB/2).String())
	assert.Equal(t, "2.00TiB", (2 * TiB).String())
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, ByteSize(4096), ByteSize(1).AlignUp(4096))
	assert.Equal(t, ByteSize(4096), ByteSize(4096).AlignUp(4096))
	assert.Equal(t, ByteSize(1024), ByteSize(513).AlignUp(512))
	assert.Equal(t, ByteSize(7), ByteSize(7).AlignUp(0))
}

func TestFlag(t *testing.T) {
	var size ByteSize
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&size, "size", "volume size")

	require.NoError(t, fs.Parse([]string{"--size", "8Mi"}))
	assert.Equal(t, 8*MiB, size)
	assert.Equal(t, "size", fs.Lookup("size").Value.Type())

	assert.Error(t, fs.Parse([]string{"--size", "lots"}))
}
