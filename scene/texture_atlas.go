package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// AtlasPixelStride is the byte size of one packed texel: RGBA8, matching
// the WGSL texture atlas module's texel record.
const AtlasPixelStride = 4

// TextureAtlas is the flattened RGBA8 pixel buffer every loaded texture
// is packed into, plus one TextureInfo entry per texture describing
// where it landed.
type TextureAtlas struct {
	Width, Height int
	Pixels        []byte // Width*Height*AtlasPixelStride, row-major
	Infos         []TextureInfo
}

// TextureInfo locates one texture's rectangle within the atlas.
type TextureInfo struct {
	X, Y, W, H int32
}

// BuildAtlas decodes every texture referenced by refs, resamples each to
// a cellSize x cellSize cell stacked in a single column (the atlas is
// cellSize wide and cellSize*len(refs) tall), and returns the packed
// buffer plus per-texture placement info in the same order as refs. Uses golang.org/x/image/draw for the resampling copy,
// the same dependency the teacher pulls in for glyph rasterization.
func BuildAtlas(refs []TextureRef, cellSize int) (*TextureAtlas, error) {
	if len(refs) == 0 {
		return &TextureAtlas{Width: 1, Height: 1, Pixels: make([]byte, AtlasPixelStride)}, nil
	}

	atlasW := cellSize
	atlasH := cellSize * len(refs)
	atlas := &TextureAtlas{
		Width:  atlasW,
		Height: atlasH,
		Pixels: make([]byte, atlasW*atlasH*AtlasPixelStride),
		Infos:  make([]TextureInfo, len(refs)),
	}

	dst := &image.RGBA{
		Pix:    atlas.Pixels,
		Stride: atlasW * AtlasPixelStride,
		Rect:   image.Rect(0, 0, atlasW, atlasH),
	}

	for i, ref := range refs {
		src, err := decodeTexture(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("texture atlas: %s: %w", ref.Path, err)
		}
		cellRect := image.Rect(0, i*cellSize, cellSize, (i+1)*cellSize)
		draw.CatmullRom.Scale(dst, cellRect, src, src.Bounds(), draw.Src, nil)
		atlas.Infos[i] = TextureInfo{X: 0, Y: int32(i * cellSize), W: int32(cellSize), H: int32(cellSize)}
	}

	return atlas, nil
}

func decodeTexture(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
