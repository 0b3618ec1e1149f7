package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type pool struct {
	Name     string `json:"name" yaml:"name"`
	Capacity uint64 `json:"capacity" yaml:"capacity"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	table := NewTable("NAME", "CAPACITY").Row("tpool", "64.00MiB")
	require.NoError(t, p.Print([]pool{{Name: "tpool", Capacity: 64 << 20}}, table))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "tpool")
	assert.Contains(t, out, "64.00MiB")

	assert.Error(t, p.Print(pool{}, nil))
}

func TestPrinterStructured(t *testing.T) {
	data := []pool{{Name: "tpool", Capacity: 1024}}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON).Print(data, NewTable("IGNORED")))
	var fromJSON []pool
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, data, fromJSON)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML).Print(data, nil))
	var fromYAML []pool
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, data, fromYAML)
}

func TestNotice(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable).Notice("Pool %q created", "tpool")
	assert.Equal(t, "Pool \"tpool\" created\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatJSON).Notice("Pool %q created", "tpool")
	assert.Empty(t, buf.String())
}

func TestDetails(t *testing.T) {
	var buf bytes.Buffer
	NewDetails().Row("Name", "vol").Row("State", "open").Render(&buf)
	assert.Contains(t, buf.String(), "vol")
	assert.NotContains(t, buf.String(), "NAME")
}

func TestUptime(t *testing.T) {
	assert.Equal(t, "42s", Uptime(42*time.Second))
	assert.Equal(t, "2m 5s", Uptime(125*time.Second))
	assert.Equal(t, "3d 0h 30m 15s", Uptime(72*time.Hour+30*time.Minute+15*time.Second))
}
