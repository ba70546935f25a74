// Package codec hosts the lossy encoders the GLB writer feeds: texture
// compression (KTX2 with JPEG fallback) and Draco mesh compression. Both
// heavy encoders live behind interfaces; the defaults shell out to the
// reference command line tools the same way the point tiler this project
// grew from invoked its external draco_encoder.
package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"log"

	"github.com/oblique-map/osgb_tiler/internal/osg"
)

const jpegQuality = 80

// ProcessTexture converts a texture into an embeddable image payload and its
// MIME type. The KTX2 path falls back to JPEG on any failure; a texture
// without decodable pixels becomes a 256x256 white JPEG.
func ProcessTexture(tex *osg.Texture, enableKtx2 bool, enc Ktx2Encoder) ([]byte, string) {
	if enableKtx2 && enc != nil && tex.HasImage() && tex.Compression == osg.TexUncompressed {
		if rgba := normalizeRGBA(tex); rgba != nil {
			if data, err := enc.Encode(rgba, tex.Width, tex.Height); err == nil && len(data) > 0 {
				return data, "image/ktx2"
			} else if err != nil {
				log.Printf("ktx2 compression failed, falling back to jpeg: %v", err)
			}
		}
	}
	return encodeJpeg(tex), "image/jpeg"
}

// normalizeRGBA flattens the texture to tightly packed RGBA8, handling
// RGB->RGBA padding, BGRA->RGBA swizzle and padded rows. Unknown layouts
// return nil.
func normalizeRGBA(tex *osg.Texture) []byte {
	w, h := tex.Width, tex.Height
	out := make([]byte, w*h*4)
	step := tex.RowStep
	if step <= 0 {
		step = tex.RowSize
	}

	switch tex.Format {
	case osg.PixelRGBA:
		for row := 0; row < h; row++ {
			src := tex.Pixels[row*step:]
			copy(out[row*w*4:(row+1)*w*4], src[:w*4])
		}
	case osg.PixelBGRA:
		for row := 0; row < h; row++ {
			src := tex.Pixels[row*step:]
			for col := 0; col < w; col++ {
				out[(row*w+col)*4+0] = src[col*4+2]
				out[(row*w+col)*4+1] = src[col*4+1]
				out[(row*w+col)*4+2] = src[col*4+0]
				out[(row*w+col)*4+3] = src[col*4+3]
			}
		}
	case osg.PixelRGB:
		for row := 0; row < h; row++ {
			src := tex.Pixels[row*step:]
			for col := 0; col < w; col++ {
				out[(row*w+col)*4+0] = src[col*3+0]
				out[(row*w+col)*4+1] = src[col*3+1]
				out[(row*w+col)*4+2] = src[col*3+2]
				out[(row*w+col)*4+3] = 255
			}
		}
	default:
		return nil
	}
	return out
}

func encodeJpeg(tex *osg.Texture) []byte {
	if tex.HasImage() && tex.Compression == osg.TexUncompressed {
		if img := textureToImage(tex); img != nil {
			return jpegBytes(img)
		}
	}
	return whiteFallbackJpeg()
}

func textureToImage(tex *osg.Texture) image.Image {
	w, h := tex.Width, tex.Height
	step := tex.RowStep
	if step <= 0 {
		step = tex.RowSize
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	switch tex.Format {
	case osg.PixelRGBA, osg.PixelBGRA:
		swap := tex.Format == osg.PixelBGRA
		for row := 0; row < h; row++ {
			src := tex.Pixels[row*step:]
			for col := 0; col < w; col++ {
				r, g, b := src[col*4+0], src[col*4+1], src[col*4+2]
				if swap {
					r, b = b, r
				}
				img.SetNRGBA(col, row, color.NRGBA{R: r, G: g, B: b, A: 255})
			}
		}
	case osg.PixelRGB:
		for row := 0; row < h; row++ {
			src := tex.Pixels[row*step:]
			for col := 0; col < w; col++ {
				img.SetNRGBA(col, row, color.NRGBA{R: src[col*3], G: src[col*3+1], B: src[col*3+2], A: 255})
			}
		}
	default:
		return nil
	}
	return img
}

func whiteFallbackJpeg() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return jpegBytes(img)
}

func jpegBytes(img image.Image) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Printf("jpeg encode failed: %v", err)
		return nil
	}
	return buf.Bytes()
}
