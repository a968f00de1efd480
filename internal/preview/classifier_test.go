package preview

import (
	"reflect"
	"testing"
)

func ref(s string) *TextureRef {
	r := TextureRef(s)
	return &r
}

func TestClassify_table(t *testing.T) {
	ao := ref("stone_ao.png")
	gloss := ref("stone_gloss.png")
	metallic := ref("stone_metallic.png")
	specular := ref("stone_spec.png")
	height := ref("stone_height.png")

	cases := []struct {
		name      string
		src       ORMSources
		wantMode  PackingMode
		wantMetal *TextureRef
		wantFlow  string
	}{
		{
			name:      "all_four_metalness",
			src:       ORMSources{AO: ao, Gloss: gloss, Metallic: metallic, Height: height},
			wantMode:  PackOGMH,
			wantMetal: metallic,
			wantFlow:  WorkflowMetalness,
		},
		{
			name:      "ao_gloss_metallic",
			src:       ORMSources{AO: ao, Gloss: gloss, Metallic: metallic},
			wantMode:  PackOGM,
			wantMetal: metallic,
			wantFlow:  WorkflowMetalness,
		},
		{
			name:      "specular_stands_in_for_metal",
			src:       ORMSources{AO: ao, Gloss: gloss, Specular: specular},
			wantMode:  PackOGM,
			wantMetal: specular,
			wantFlow:  WorkflowSpecular,
		},
		{
			name:      "metallic_beats_specular",
			src:       ORMSources{AO: ao, Gloss: gloss, Metallic: metallic, Specular: specular},
			wantMode:  PackOGM,
			wantMetal: metallic,
			wantFlow:  WorkflowMetalness,
		},
		{
			name:     "ao_gloss_only",
			src:      ORMSources{AO: ao, Gloss: gloss},
			wantMode: PackOG,
		},
		{
			name:      "specular_with_height",
			src:       ORMSources{AO: ao, Gloss: gloss, Specular: specular, Height: height},
			wantMode:  PackOGMH,
			wantMetal: specular,
			wantFlow:  WorkflowSpecular,
		},
		{
			name:     "gloss_only_refused",
			src:      ORMSources{Gloss: gloss},
			wantMode: PackNone,
		},
		{
			name:     "ao_only_refused",
			src:      ORMSources{AO: ao},
			wantMode: PackNone,
		},
		{
			name:     "metal_only_refused",
			src:      ORMSources{Metallic: metallic},
			wantMode: PackNone,
		},
		{
			name:     "gloss_and_metal_without_ao_refused",
			src:      ORMSources{Gloss: gloss, Metallic: metallic, Height: height},
			wantMode: PackNone,
		},
		{
			name:     "height_alone_does_not_upgrade",
			src:      ORMSources{AO: ao, Gloss: gloss, Height: height},
			wantMode: PackOG,
		},
		{
			name:     "empty_refused",
			src:      ORMSources{},
			wantMode: PackNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.src)
			if got.Mode != tc.wantMode {
				t.Errorf("mode: got %v, want %v", got.Mode, tc.wantMode)
			}
			if got.MetalSource != tc.wantMetal {
				t.Errorf("metal source: got %v, want %v", got.MetalSource, tc.wantMetal)
			}
			if got.Workflow != tc.wantFlow {
				t.Errorf("workflow: got %q, want %q", got.Workflow, tc.wantFlow)
			}
		})
	}
}

// TestClassify_exhaustive checks every presence combination against the rules
// stated independently: mode depends only on AO, Gloss, resolved metal, Height.
func TestClassify_exhaustive(t *testing.T) {
	for mask := 0; mask < 32; mask++ {
		var src ORMSources
		if mask&1 != 0 {
			src.AO = ref("ao")
		}
		if mask&2 != 0 {
			src.Gloss = ref("gloss")
		}
		if mask&4 != 0 {
			src.Metallic = ref("metallic")
		}
		if mask&8 != 0 {
			src.Specular = ref("specular")
		}
		if mask&16 != 0 {
			src.Height = ref("height")
		}

		hasMetal := src.Metallic != nil || src.Specular != nil
		want := PackNone
		if src.AO != nil && src.Gloss != nil {
			switch {
			case hasMetal && src.Height != nil:
				want = PackOGMH
			case hasMetal:
				want = PackOGM
			default:
				want = PackOG
			}
		}

		got := Classify(src)
		if got.Mode != want {
			t.Errorf("mask %05b: got %v, want %v", mask, got.Mode, want)
		}
		if got.Mode != PackNone && hasMetal {
			if src.Metallic != nil && got.MetalSource != src.Metallic {
				t.Errorf("mask %05b: metallic should win", mask)
			}
			if src.Metallic == nil && got.MetalSource != src.Specular {
				t.Errorf("mask %05b: specular should stand in", mask)
			}
		}
	}
}

func TestMissingSources(t *testing.T) {
	got := MissingSources(ORMSources{Gloss: ref("g")})
	want := []string{"ao", "metal"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if m := MissingSources(ORMSources{AO: ref("a"), Gloss: ref("g"), Specular: ref("s")}); m != nil {
		t.Errorf("nothing should be missing, got %v", m)
	}
}

func TestPackedName(t *testing.T) {
	cases := []struct {
		material string
		mode     PackingMode
		want     string
	}{
		{"stone_mat", PackOG, "stone_og"},
		{"stone_mat", PackOGM, "stone_ogm"},
		{"stone_mat", PackOGMH, "stone_ogmh"},
		{"brick", PackOGM, "brick_ogm"},
	}
	for _, tc := range cases {
		if got := PackedName(tc.material, tc.mode); got != tc.want {
			t.Errorf("PackedName(%q, %v) = %q, want %q", tc.material, tc.mode, got, tc.want)
		}
	}
}

func TestPackedIdentity(t *testing.T) {
	src := ORMSources{AO: ref("a"), Gloss: ref("g"), Metallic: ref("m")}

	t.Run("stable", func(t *testing.T) {
		if PackedIdentity(src, PackOGM) != PackedIdentity(src, PackOGM) {
			t.Error("same sources and mode should yield the same identity")
		}
	})

	t.Run("mode_changes_identity", func(t *testing.T) {
		if PackedIdentity(src, PackOGM) == PackedIdentity(src, PackOGMH) {
			t.Error("different modes should yield different identities")
		}
	})

	t.Run("source_slot_matters", func(t *testing.T) {
		asMetallic := ORMSources{AO: ref("a"), Gloss: ref("g"), Metallic: ref("x")}
		asSpecular := ORMSources{AO: ref("a"), Gloss: ref("g"), Specular: ref("x")}
		if PackedIdentity(asMetallic, PackOGM) == PackedIdentity(asSpecular, PackOGM) {
			t.Error("the same ref in a different slot should yield a different identity")
		}
	})
}
