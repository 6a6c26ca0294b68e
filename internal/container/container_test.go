package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteParseRoundTrip(t *testing.T) {
	tags := Tags{
		{Key: "title", Value: "Hi"},
		{Key: "length", Value: "1:30"},
		{Key: "utf8", Value: "1"},
	}
	f := MakeNCSF(7, []byte("SDAT-like-program-bytes-here"), tags)

	data, err := Write(f)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, f.Reserved, got.Reserved)
	assert.Equal(t, f.Program, got.Program)
	require.Len(t, got.Tags, 3)
	for i, tag := range tags {
		assert.Equal(t, tag.Key, got.Tags[i].Key)
		assert.Equal(t, tag.Value, got.Tags[i].Value)
	}
	assert.EqualValues(t, 7, got.SequenceNumber())
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := []byte("XSF\x25\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	f := MakeNCSF(0, []byte("x"), nil)
	data, err := Write(f)
	require.NoError(t, err)
	data[3] = 0x24 // 2SF, not NCSF
	_, err = Parse(data)
	require.Error(t, err)
}

func TestTagsLengthRoundTrip(t *testing.T) {
	tags := Tags{{Key: "length", Value: "1:30"}}
	ms, ok := ParseDuration(tags.Get("length"))
	require.True(t, ok)
	assert.EqualValues(t, 90000, ms)
}

func TestLibraryChainOrdering(t *testing.T) {
	tags := Tags{
		{Key: "_lib3", Value: "c.ncsflib"},
		{Key: "_lib", Value: "a.ncsflib"},
		{Key: "_lib2", Value: "b.ncsflib"},
	}
	chain := tags.LibraryChain()
	assert.Equal(t, []string{"a.ncsflib", "b.ncsflib", "c.ncsflib"}, chain)
}

func TestResolveLibraryChainOverlay(t *testing.T) {
	libProgram := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	lib := MakeNCSF(0, libProgram, nil)
	libBytes, err := Write(lib)
	require.NoError(t, err)

	f := MakeNCSF(7, []byte{0xBB, 0xBB}, Tags{{Key: "_lib", Value: "base.ncsflib"}})

	load := func(name string) ([]byte, error) {
		if name == "base.ncsflib" {
			return libBytes, nil
		}
		return nil, errNotFound
	}

	merged, err := ResolveLibraryChain(f, load, true)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(merged, []byte{0xBB, 0xBB, 0xAA, 0xAA}))
}

func TestRewriteTagsPreservesProgramBytes(t *testing.T) {
	f := MakeNCSF(1, []byte("program-bytes"), Tags{{Key: "old", Value: "x"}})
	data, err := Write(f)
	require.NoError(t, err)

	rewritten, err := RewriteTags(data, Tags{{Key: "title", Value: "New"}})
	require.NoError(t, err)

	got, err := Parse(rewritten)
	require.NoError(t, err)
	assert.Equal(t, f.Program, got.Program)
	assert.Equal(t, "New", got.Tags.Get("title"))
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

const errNotFound = simpleError("not found")
