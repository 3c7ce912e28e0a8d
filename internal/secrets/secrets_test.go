package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/errors"
)

func TestExpand(t *testing.T) {
	t.Setenv("AV_TEST_USER", "admin")
	t.Setenv("AV_TEST_PASS", "s3cret")
	t.Setenv("AV_TEST_EMPTY", "")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "literal", want: "literal"},
		{in: "${AV_TEST_PASS}", want: "s3cret"},
		{in: "${AV_TEST_USER}:${AV_TEST_PASS}@db", want: "admin:s3cret@db"},
		{in: "${AV_TEST_UNSET:-guest}", want: "guest"},
		{in: "${AV_TEST_UNSET:-}", want: ""},
		{in: "${AV_TEST_EMPTY:-x}", want: "x"},
		{in: "${AV_TEST_UNSET}", wantErr: true},
		{in: "${AV_TEST_EMPTY}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Expand(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				assert.NotContains(t, err.Error(), "s3cret")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("tok en\n"), 0o600))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tok en", got, "only trailing newlines are trimmed")

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = ReadFile(empty)
	require.Error(t, err)

	_, err = ReadFile(dir)
	require.Error(t, err)

	big := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(big, make([]byte, maxFileSize+1), 0o600))
	_, err = ReadFile(big)
	require.Error(t, err)

	_, err = ReadFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestResolvePrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))
	t.Setenv("AV_TEST_PW", "from-env")

	got, err := Resolve(path, "${AV_TEST_PW}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = Resolve("", "${AV_TEST_PW}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}
