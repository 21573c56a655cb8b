package shaders

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeLinearChain(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.wgsl": &fstest.MapFile{Data: []byte("// #import b\nfn a() {}\n")},
		"root/b.wgsl": &fstest.MapFile{Data: []byte("fn b() {}\n")},
	}

	out, err := Compose(fsys, "root", "a.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "fn b() {}\nfn a() {}\n", out)
}

func TestComposeDedupDiamond(t *testing.T) {
	fsys := fstest.MapFS{
		"root/entry.wgsl": &fstest.MapFile{Data: []byte("// #import left\n// #import right\nfn entry() {}\n")},
		"root/left.wgsl":   &fstest.MapFile{Data: []byte("// #import shared\nfn left() {}\n")},
		"root/right.wgsl":  &fstest.MapFile{Data: []byte("// #import shared\nfn right() {}\n")},
		"root/shared.wgsl": &fstest.MapFile{Data: []byte("fn shared() {}\n")},
	}

	out, err := Compose(fsys, "root", "entry.wgsl")
	require.NoError(t, err)

	count := 0
	for i := 0; i+len("fn shared()") <= len(out); i++ {
		if out[i:i+len("fn shared()")] == "fn shared()" {
			count++
		}
	}
	assert.Equal(t, 1, count, "shared module should be emitted exactly once, got output:\n%s", out)
	assert.Equal(t, "fn shared() {}\nfn left() {}\nfn right() {}\nfn entry() {}\n", out)
}

func TestComposeSubdirectoryImport(t *testing.T) {
	fsys := fstest.MapFS{
		"root/entry.wgsl":     &fstest.MapFile{Data: []byte("// #import sub/util\nfn entry() {}\n")},
		"root/sub/util.wgsl":  &fstest.MapFile{Data: []byte("fn util() {}\n")},
	}

	out, err := Compose(fsys, "root", "entry.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "fn util() {}\nfn entry() {}\n", out)
}

func TestComposeMissingImportErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"root/entry.wgsl": &fstest.MapFile{Data: []byte("// #import nope\n")},
	}
	_, err := Compose(fsys, "root", "entry.wgsl")
	require.Error(t, err)
}

func TestProgramResolvesRealModules(t *testing.T) {
	for _, name := range []string{"path_trace", "post_process", "blit"} {
		out, err := Program(name)
		require.NoErrorf(t, err, "program %q failed to compose", name)
		assert.NotEmpty(t, out)
	}
}
