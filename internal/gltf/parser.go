// Package gltf inspects glTF containers far enough to report structural
// features (animations, skins, morph targets, counts) without loading the
// scene graph. Inspection is read-only.
package gltf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/gltfpress/internal/failure"
)

// Parser errors. Structural problems in a binary container are reported as
// failure.InvalidFile with one of the reason strings below.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format (must be .glb or .gltf)")
	ErrInvalidDocument   = errors.New("failed to decode glTF JSON document")
)

const (
	ReasonTooSmall         = "too small"
	ReasonMagicMismatch    = "magic mismatch"
	ReasonTruncated        = "truncated"
	ReasonInvalidChunkType = "invalid chunk type"
	ReasonChunkTruncated   = "chunk truncated"
)

// GLB layout constants.
const (
	headerSize      = 12 // magic, version, total length
	chunkHeaderSize = 8  // chunk length, chunk type
	glbMagic        = "glTF"
	chunkTypeJSON   = "JSON"
)

// Inspect parses the container at path and returns its feature summary.
// The extension selects the binary (.glb) or text (.gltf) path.
func Inspect(path string) (Summary, error) {
	kind, err := KindFor(path)
	if err != nil {
		return Summary{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Summary{}, failure.FromOS(err, path)
	}
	defer f.Close()

	if kind == KindText {
		data, err := io.ReadAll(f)
		if err != nil {
			return Summary{}, failure.FromOS(err, path)
		}
		return ParseDocument(data)
	}

	fi, err := f.Stat()
	if err != nil {
		return Summary{}, failure.FromOS(err, path)
	}
	return parseBinary(f, fi.Size())
}

// KindFor maps a file extension to a container kind.
func KindFor(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glb":
		return KindBinary, nil
	case ".gltf":
		return KindText, nil
	default:
		return 0, ErrUnsupportedFormat
	}
}

// ParseBinary parses an in-memory GLB container.
func ParseBinary(data []byte) (Summary, error) {
	return parseBinary(bytes.NewReader(data), int64(len(data)))
}

// parseBinary validates the GLB header and the first chunk header, then
// decodes the JSON chunk. Only the header and the JSON chunk are read, so the
// binary payload of large files never enters memory.
func parseBinary(r io.ReaderAt, size int64) (Summary, error) {
	if size < headerSize {
		return Summary{}, failure.InvalidFile(ReasonTooSmall)
	}

	var head [headerSize + chunkHeaderSize]byte
	n, err := r.ReadAt(head[:], 0)
	if n < headerSize && err != nil {
		return Summary{}, fmt.Errorf("read GLB header: %w", err)
	}

	if string(head[0:4]) != glbMagic {
		return Summary{}, failure.InvalidFile(ReasonMagicMismatch)
	}
	if size < headerSize+chunkHeaderSize {
		return Summary{}, failure.InvalidFile(ReasonTruncated)
	}

	chunkLen := int64(binary.LittleEndian.Uint32(head[12:16]))
	if string(head[16:20]) != chunkTypeJSON {
		return Summary{}, failure.InvalidFile(ReasonInvalidChunkType)
	}

	start := int64(headerSize + chunkHeaderSize)
	if size < start+chunkLen {
		return Summary{}, failure.InvalidFile(ReasonChunkTruncated)
	}

	doc := make([]byte, chunkLen)
	if _, err := r.ReadAt(doc, start); err != nil && !errors.Is(err, io.EOF) {
		return Summary{}, fmt.Errorf("read GLB JSON chunk: %w", err)
	}

	s, err := ParseDocument(doc)
	s.Kind = KindBinary
	return s, err
}

// ParseDocument extracts the feature summary from a glTF JSON document.
// Fields that are missing or of the wrong type count as absent.
func ParseDocument(data []byte) (Summary, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Summary{Kind: KindText}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return Summary{Kind: KindText}, fmt.Errorf("%w: document is not an object", ErrInvalidDocument)
	}

	s := Summary{Kind: KindText}

	if animations, ok := objects(doc["animations"]); ok {
		s.AnimationCount = len(animations)
		s.HasAnimations = len(animations) > 0
	}
	if skins, ok := objects(doc["skins"]); ok {
		s.SkinCount = len(skins)
		s.HasSkins = len(skins) > 0
	}
	if meshes, ok := objects(doc["meshes"]); ok {
		s.MeshCount = len(meshes)
		s.HasMorphTargets = hasMorphTargets(meshes)
	}
	if nodes, ok := objects(doc["nodes"]); ok {
		s.NodeCount = len(nodes)
	}
	return s, nil
}

// hasMorphTargets reports whether any primitive of any mesh carries a
// non-empty targets array. It stops at the first match.
func hasMorphTargets(meshes []map[string]any) bool {
	for _, mesh := range meshes {
		primitives, ok := objects(mesh["primitives"])
		if !ok {
			continue
		}
		for _, prim := range primitives {
			if targets, ok := objects(prim["targets"]); ok && len(targets) > 0 {
				return true
			}
		}
	}
	return false
}

// objects converts a decoded JSON array of objects. An array containing a
// non-object element is rejected as a whole, matching a typed array cast.
func objects(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}
