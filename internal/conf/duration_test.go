package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration Duration
		encoded  string
	}{
		{"zero", Duration(0), `"0s"`},
		{"seconds", Duration(30 * time.Second), `"30s"`},
		{"minutes", Duration(5 * time.Minute), `"5m0s"`},
		{"mixed", Duration(time.Hour + 30*time.Minute), `"1h30m0s"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := json.Marshal(tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, string(b))

			var back Duration
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.duration, back)
		})
	}
}

func TestDuration_UnmarshalJSON_NullResets(t *testing.T) {
	t.Parallel()

	d := Duration(30 * time.Second)
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, Duration(0), d)
}

func TestDuration_UnmarshalJSON_Rejects(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`"soon"`, `30`, `true`} {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(input), &d), "input %s", input)
	}
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Timeout Duration `yaml:"timeout"`
	}

	var w wrapper
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 90s\n"), &w))
	assert.Equal(t, Duration(90*time.Second), w.Timeout)

	out, err := yaml.Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, "timeout: 1m30s\n", string(out))

	require.Error(t, yaml.Unmarshal([]byte("timeout: [1, 2]\n"), &w))
	require.Error(t, yaml.Unmarshal([]byte("timeout: later\n"), &w))
}

func TestDurationDecodeHook(t *testing.T) {
	t.Parallel()

	type target struct {
		Interval Duration      `mapstructure:"interval"`
		Plain    time.Duration `mapstructure:"plain"`
		Origins  []string      `mapstructure:"origins"`
	}

	var out target
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DurationDecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"interval": "5m",
		"plain":    "2s",
		"origins":  "https://a.example,https://b.example",
	}))
	assert.Equal(t, Duration(5*time.Minute), out.Interval)
	assert.Equal(t, 2*time.Second, out.Plain)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, out.Origins)
}
