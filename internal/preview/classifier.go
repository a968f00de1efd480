package preview

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Workflow labels reported by Classify.
const (
	WorkflowMetalness = "Metalness (PBR)"
	WorkflowSpecular  = "Specular (Legacy)"
)

// Classification is the result of classifying a set of ORM source textures.
type Classification struct {
	Mode        PackingMode
	MetalSource *TextureRef
	Workflow    string
}

// Classify maps the presence of source textures to a packing mode.
//
// Metal-channel resolution: metallic wins when present; otherwise specular is
// used as the metal channel under the legacy workflow. Texture presence is
// authoritative — a stored "prefers metalness" flag can be stale relative to
// which files actually exist on disk, so no such flag is consulted here.
//
// Mode table (AO, Gloss, resolved metal, Height):
//
//	all four        -> PackOGMH
//	AO+Gloss+metal  -> PackOGM
//	AO+Gloss        -> PackOG
//	anything else   -> PackNone
//
// Pure: no I/O, no side effects.
func Classify(src ORMSources) Classification {
	var metal *TextureRef
	workflow := ""
	switch {
	case src.Metallic != nil:
		metal = src.Metallic
		workflow = WorkflowMetalness
	case src.Specular != nil:
		metal = src.Specular
		workflow = WorkflowSpecular
	}

	if src.AO == nil || src.Gloss == nil {
		return Classification{Mode: PackNone}
	}

	switch {
	case metal != nil && src.Height != nil:
		return Classification{Mode: PackOGMH, MetalSource: metal, Workflow: workflow}
	case metal != nil:
		return Classification{Mode: PackOGM, MetalSource: metal, Workflow: workflow}
	default:
		return Classification{Mode: PackOG}
	}
}

// MissingSources names the required channels absent from src, in the order a
// user would expect to see them. Height is optional and never reported.
// A PackNone refusal must surface exactly this list.
func MissingSources(src ORMSources) []string {
	var missing []string
	if src.AO == nil {
		missing = append(missing, "ao")
	}
	if src.Gloss == nil {
		missing = append(missing, "gloss")
	}
	if src.Metallic == nil && src.Specular == nil {
		missing = append(missing, "metal")
	}
	return missing
}

// PackedName derives the packed texture's display name from the owning
// material's base name: any trailing "_mat" is stripped and the mode suffix
// appended ("_og", "_ogm", "_ogmh").
func PackedName(materialName string, mode PackingMode) string {
	base := strings.TrimSuffix(materialName, "_mat")
	return base + "_" + mode.String()
}

// PackedIdentity derives a stable identity for a virtual packed texture from
// its constituent source references and mode. Two requests naming the same
// sources and mode yield the same id regardless of material name.
func PackedIdentity(src ORMSources, mode PackingMode) PackedID {
	h := fnv.New64a()
	for _, ref := range []*TextureRef{src.AO, src.Gloss, src.Metallic, src.Specular, src.Height} {
		if ref != nil {
			h.Write([]byte(*ref))
		}
		h.Write([]byte{0})
	}
	h.Write([]byte(mode.String()))
	return PackedID(fmt.Sprintf("%016x", h.Sum64()))
}
