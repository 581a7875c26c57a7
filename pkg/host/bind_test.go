package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBindSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    BindSpec
		wantErr bool
	}{
		{
			name: "root path",
			spec: "tcp://0.0.0.0:9000/",
			want: BindSpec{Scheme: "tcp", Host: "0.0.0.0", Port: 9000, Path: "/"},
		},
		{
			name: "path prefix",
			spec: "tcp://127.0.0.1:8080/api/v1/",
			want: BindSpec{Scheme: "tcp", Host: "127.0.0.1", Port: 8080, Path: "/api/v1/"},
		},
		{
			name: "ephemeral port",
			spec: "tcp://127.0.0.1:0/",
			want: BindSpec{Scheme: "tcp", Host: "127.0.0.1", Port: 0, Path: "/"},
		},
		{
			name: "empty path defaults to root",
			spec: "tcp://localhost:9000",
			want: BindSpec{Scheme: "tcp", Host: "localhost", Port: 9000, Path: "/"},
		},
		{
			name:    "missing trailing separator",
			spec:    "tcp://127.0.0.1:9000/api",
			wantErr: true,
		},
		{
			name:    "missing scheme",
			spec:    "//127.0.0.1:9000/",
			wantErr: true,
		},
		{
			name:    "missing port",
			spec:    "tcp://127.0.0.1/",
			wantErr: true,
		},
		{
			name:    "missing host",
			spec:    "tcp:///path/",
			wantErr: true,
		},
		{
			name:    "garbage",
			spec:    "not a url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBindSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestBindSpecListenAddr(t *testing.T) {
	spec, err := ParseBindSpec("tcp://0.0.0.0:2049/")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:2049", spec.ListenAddr())
	assert.Equal(t, "tcp://0.0.0.0:2049/", spec.String())
}
