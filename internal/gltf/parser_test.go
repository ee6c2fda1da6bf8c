package gltf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/gltfpress/internal/failure"
)

// Animated, skinned character: 2 animations, 1 skin, 2 meshes (second one
// with morph targets), 4 nodes.
const sampleCharacter = `{
  "asset": { "version": "2.0", "generator": "Blender" },
  "animations": [ { "name": "Walk", "channels": [] }, { "name": "Run", "channels": [] } ],
  "skins": [ { "joints": [1, 2] } ],
  "meshes": [
    { "primitives": [ { "attributes": { "POSITION": 0 } } ] },
    { "primitives": [
        { "attributes": { "POSITION": 1 } },
        { "attributes": { "POSITION": 2 }, "targets": [ { "POSITION": 3 } ] }
    ] }
  ],
  "nodes": [ {}, {}, {}, {} ]
}`

// Static prop: meshes only, empty targets arrays everywhere.
const sampleStatic = `{
  "asset": { "version": "2.0" },
  "meshes": [ { "primitives": [ { "attributes": {}, "targets": [] } ] } ],
  "nodes": [ { "mesh": 0 } ]
}`

const sampleMorphScenario = `{"meshes":[{"primitives":[{"targets":[{}]}]}]}`

// buildGLB assembles a GLB container with a single JSON chunk.
func buildGLB(t *testing.T, doc string) []byte {
	t.Helper()
	body := []byte(doc)
	buf := make([]byte, 20+len(body))
	copy(buf[0:4], "glTF")
	binary.LittleEndian.PutUint32(buf[4:8], 2)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(body)))
	copy(buf[16:20], "JSON")
	copy(buf[20:], body)
	return buf
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseDocument_Character(t *testing.T) {
	s, err := ParseDocument([]byte(sampleCharacter))
	require.NoError(t, err)

	assert.True(t, s.HasAnimations)
	assert.Equal(t, 2, s.AnimationCount)
	assert.True(t, s.HasSkins)
	assert.Equal(t, 1, s.SkinCount)
	assert.True(t, s.HasMorphTargets)
	assert.Equal(t, 2, s.MeshCount)
	assert.Equal(t, 4, s.NodeCount)
}

func TestParseDocument_Static(t *testing.T) {
	s, err := ParseDocument([]byte(sampleStatic))
	require.NoError(t, err)

	assert.False(t, s.HasAnimations)
	assert.Zero(t, s.AnimationCount)
	assert.False(t, s.HasSkins)
	assert.False(t, s.HasMorphTargets, "empty targets arrays must not count")
	assert.Equal(t, 1, s.MeshCount)
	assert.Equal(t, 1, s.NodeCount)
}

func TestParseDocument_MissingFieldsDefaultToZero(t *testing.T) {
	s, err := ParseDocument([]byte(`{"asset":{"version":"2.0"}}`))
	require.NoError(t, err)
	assert.Equal(t, Summary{Kind: KindText}, s)
}

func TestParseDocument_EmptyArraysKeepFlagsFalse(t *testing.T) {
	s, err := ParseDocument([]byte(`{"animations":[],"skins":[]}`))
	require.NoError(t, err)
	assert.False(t, s.HasAnimations)
	assert.False(t, s.HasSkins)
	assert.Zero(t, s.MeshCount)
	assert.False(t, s.HasMorphTargets)
}

func TestParseDocument_WrongTypesAreAbsent(t *testing.T) {
	s, err := ParseDocument([]byte(`{"animations":"many","meshes":{"a":1},"nodes":[1,2]}`))
	require.NoError(t, err)
	assert.Zero(t, s.AnimationCount)
	assert.Zero(t, s.MeshCount)
	assert.Zero(t, s.NodeCount)
}

func TestParseDocument_Invalid(t *testing.T) {
	for _, doc := range []string{``, `{`, `[]`, `null`, `"text"`} {
		t.Run(doc, func(t *testing.T) {
			_, err := ParseDocument([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestParseBinary_MorphScenario(t *testing.T) {
	s, err := ParseBinary(buildGLB(t, sampleMorphScenario))
	require.NoError(t, err)
	assert.Equal(t, KindBinary, s.Kind)
	assert.True(t, s.HasMorphTargets)
	assert.Equal(t, 1, s.MeshCount)
}

func TestParseBinary_FlagsMatchCounts(t *testing.T) {
	for _, doc := range []string{sampleCharacter, sampleStatic, sampleMorphScenario, `{}`} {
		s, err := ParseBinary(buildGLB(t, doc))
		require.NoError(t, err)
		assert.Equal(t, s.AnimationCount > 0, s.HasAnimations)
		assert.Equal(t, s.SkinCount > 0, s.HasSkins)
	}
}

func TestParseBinary_IgnoresTrailingBinaryChunk(t *testing.T) {
	data := buildGLB(t, sampleStatic)
	bin := make([]byte, 8+16)
	binary.LittleEndian.PutUint32(bin[0:4], 16)
	copy(bin[4:8], "BIN\x00")
	data = append(data, bin...)

	s, err := ParseBinary(data)
	require.NoError(t, err)
	assert.Equal(t, 1, s.MeshCount)
}

func TestParseBinary_StructuralErrors(t *testing.T) {
	valid := buildGLB(t, sampleStatic)

	badMagic := append([]byte(nil), valid...)
	copy(badMagic[0:4], "glTX")

	badChunk := append([]byte(nil), valid...)
	copy(badChunk[16:20], "BIN\x00")

	longChunk := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(longChunk[12:16], uint32(len(sampleStatic)+1))

	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", nil, ReasonTooSmall},
		{"eleven bytes", valid[:11], ReasonTooSmall},
		{"magic mismatch", badMagic, ReasonMagicMismatch},
		{"header only", valid[:12], ReasonTruncated},
		{"partial chunk header", valid[:19], ReasonTruncated},
		{"invalid chunk type", badChunk, ReasonInvalidChunkType},
		{"chunk truncated", longChunk, ReasonChunkTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBinary(tt.data)
			require.ErrorIs(t, err, failure.ErrInvalidFile)
			assert.EqualError(t, err, "invalid file: "+tt.reason)
		})
	}
}

func TestParseBinary_InvalidJSONChunk(t *testing.T) {
	_, err := ParseBinary(buildGLB(t, `{"meshes": [`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestInspect_Files(t *testing.T) {
	dir := t.TempDir()
	glb := writeFile(t, dir, "Fox.GLB", buildGLB(t, sampleCharacter))
	text := writeFile(t, dir, "scene.gltf", []byte(sampleStatic))

	s, err := Inspect(glb)
	require.NoError(t, err)
	assert.Equal(t, KindBinary, s.Kind)
	assert.Equal(t, 2, s.AnimationCount)

	s, err = Inspect(text)
	require.NoError(t, err)
	assert.Equal(t, KindText, s.Kind)
	assert.Equal(t, 1, s.MeshCount)
}

func TestInspect_DoesNotModifyFile(t *testing.T) {
	dir := t.TempDir()
	data := buildGLB(t, sampleCharacter)
	path := writeFile(t, dir, "a.glb", data)

	_, err := Inspect(path)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

func TestInspect_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "model.obj", []byte("v 0 0 0"))
	_, err := Inspect(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestInspect_Missing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.glb"))
	assert.ErrorIs(t, err, failure.ErrFileNotFound)
}

func TestSummary_Describe(t *testing.T) {
	s := Summary{HasAnimations: true, AnimationCount: 2, HasSkins: true, SkinCount: 1, HasMorphTargets: true, MeshCount: 3, NodeCount: 7}
	assert.Equal(t, "2 animation(s) • 1 skin(s) • morph targets • 3 mesh(es) • 7 node(s)", s.Describe())
	assert.Equal(t, "0 mesh(es) • 0 node(s)", Summary{}.Describe())
}
