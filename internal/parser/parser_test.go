package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParseJSONParams(t *testing.T) {
	params, err := ParseJSONParams(strings.NewReader(`{"parameters": {"z_dim": 128, "gan_type": "hinge"}}`))
	assert.NoError(t, err)
	expect.EQ(t, params["z_dim"], float64(128))
	expect.EQ(t, params["gan_type"], "hinge")
}

func TestParseYAMLParams(t *testing.T) {
	params, err := ParseYAMLParams(strings.NewReader("parameters:\n  z_dim: 128\n  sn: true\n"))
	assert.NoError(t, err)
	expect.EQ(t, params["z_dim"], 128)
	expect.EQ(t, params["sn"], true)
}

func TestParseParamsFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(dir, "params.yml")
	assert.NoError(t, os.WriteFile(path, []byte("parameters:\n  ch: 32\n"), 0644))
	params, err := ParseParamsFile(path)
	assert.NoError(t, err)
	expect.EQ(t, params["ch"], 32)

	empty := filepath.Join(dir, "empty.json")
	assert.NoError(t, os.WriteFile(empty, []byte(`{}`), 0644))
	params, err = ParseParamsFile(empty)
	assert.NoError(t, err)
	expect.EQ(t, len(params), 0)

	if _, err := ParseParamsFile(filepath.Join(dir, "params.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "params.txt")
	assert.NoError(t, os.WriteFile(bad, []byte("x"), 0644))
	if _, err := ParseParamsFile(bad); err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Errorf("got %v, want unsupported format error", err)
	}
}
