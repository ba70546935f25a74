package codec

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblique-map/osgb_tiler/internal/osg"
)

func rgbTexture(w, h, pad int) *osg.Texture {
	rowSize := w * 3
	step := rowSize + pad
	pixels := make([]byte, h*step)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			pixels[row*step+col*3+0] = byte(row)
			pixels[row*step+col*3+1] = byte(col)
			pixels[row*step+col*3+2] = 128
		}
	}
	return &osg.Texture{
		Width: w, Height: h,
		Format:  osg.PixelRGB,
		RowStep: step, RowSize: rowSize,
		Pixels: pixels,
	}
}

func TestNormalizeRGBAHandlesRowPadding(t *testing.T) {
	padded := normalizeRGBA(rgbTexture(4, 3, 5))
	tight := normalizeRGBA(rgbTexture(4, 3, 0))
	assert.Equal(t, tight, padded)
	assert.Len(t, tight, 4*3*4)
	// Alpha forced opaque.
	assert.Equal(t, byte(255), tight[3])
}

func TestNormalizeRGBASwapsBGRA(t *testing.T) {
	tex := &osg.Texture{
		Width: 1, Height: 1,
		Format:  osg.PixelBGRA,
		RowStep: 4, RowSize: 4,
		Pixels: []byte{10, 20, 30, 40}, // B G R A
	}
	out := normalizeRGBA(tex)
	assert.Equal(t, []byte{30, 20, 10, 40}, out)
}

func TestProcessTextureJpegDefault(t *testing.T) {
	data, mime := ProcessTexture(rgbTexture(8, 8, 0), false, nil)
	assert.Equal(t, "image/jpeg", mime)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestProcessTextureWhiteFallback(t *testing.T) {
	data, mime := ProcessTexture(&osg.Texture{}, false, nil)
	assert.Equal(t, "image/jpeg", mime)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())

	r, g, b, _ := img.At(128, 128).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Greater(t, g, uint32(0xf000))
	assert.Greater(t, b, uint32(0xf000))
}

type stubKtx2 struct {
	data []byte
	err  error
}

func (s *stubKtx2) Encode(rgba []byte, width, height int) ([]byte, error) {
	return s.data, s.err
}

func TestProcessTextureKtx2Success(t *testing.T) {
	enc := &stubKtx2{data: []byte("ktx2-bytes")}
	data, mime := ProcessTexture(rgbTexture(4, 4, 0), true, enc)
	assert.Equal(t, "image/ktx2", mime)
	assert.Equal(t, []byte("ktx2-bytes"), data)
}

func TestProcessTextureKtx2FailureFallsBackToJpeg(t *testing.T) {
	enc := &stubKtx2{err: errors.New("encoder exploded")}
	data, mime := ProcessTexture(rgbTexture(4, 4, 0), true, enc)
	assert.Equal(t, "image/jpeg", mime)
	assert.NotEmpty(t, data)
}

func TestProcessTextureCompressedSourceFallsBack(t *testing.T) {
	tex := rgbTexture(4, 4, 0)
	tex.Compression = osg.TexDXT1
	data, mime := ProcessTexture(tex, true, &stubKtx2{data: []byte("x")})
	assert.Equal(t, "image/jpeg", mime)
	// DXT payloads are not decodable here; the white fallback kicks in.
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestDracoParamsClamping(t *testing.T) {
	p := DracoParams{}.normalized()
	assert.Equal(t, 11, p.PositionBits)
	assert.Equal(t, 10, p.NormalBits)
	assert.Equal(t, 12, p.TexCoordBits)

	p = DracoParams{PositionBits: 99, NormalBits: 1, TexCoordBits: 20}.normalized()
	assert.Equal(t, 16, p.PositionBits)
	assert.Equal(t, 8, p.NormalBits)
	assert.Equal(t, 16, p.TexCoordBits)
}
