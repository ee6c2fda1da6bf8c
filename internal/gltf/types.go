package gltf

import (
	"strconv"
	"strings"
)

// Kind is the container flavour, decided by file extension.
type Kind int

const (
	KindBinary Kind = iota // .glb: 12-byte header followed by typed chunks.
	KindText               // .gltf: the whole file is the JSON document.
)

func (k Kind) String() string {
	if k == KindBinary {
		return "glb"
	}
	return "gltf"
}

// Summary holds the structural feature flags extracted from a document.
// Missing fields leave the zero value.
type Summary struct {
	Kind            Kind
	HasAnimations   bool
	AnimationCount  int
	HasSkins        bool
	SkinCount       int
	HasMorphTargets bool
	MeshCount       int
	NodeCount       int
}

// Describe returns a one-line summary such as
// "2 animation(s) • 1 skin(s) • morph targets • 3 mesh(es) • 7 node(s)".
func (s Summary) Describe() string {
	var parts []string
	if s.HasAnimations {
		parts = append(parts, strconv.Itoa(s.AnimationCount)+" animation(s)")
	}
	if s.HasSkins {
		parts = append(parts, strconv.Itoa(s.SkinCount)+" skin(s)")
	}
	if s.HasMorphTargets {
		parts = append(parts, "morph targets")
	}
	parts = append(parts,
		strconv.Itoa(s.MeshCount)+" mesh(es)",
		strconv.Itoa(s.NodeCount)+" node(s)",
	)
	return strings.Join(parts, " • ")
}
