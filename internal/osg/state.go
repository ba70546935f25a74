package osg

// PixelFormat tags the channel layout of a texture payload.
type PixelFormat int

const (
	PixelRGB PixelFormat = iota
	PixelRGBA
	PixelBGRA
	PixelLuminance
	PixelLuminanceAlpha
)

// Channels returns the per-pixel channel count for the format.
func (f PixelFormat) Channels() int {
	switch f {
	case PixelRGB:
		return 3
	case PixelRGBA, PixelBGRA:
		return 4
	case PixelLuminanceAlpha:
		return 2
	default:
		return 1
	}
}

// TexCompression tags on-disk block compression of the texture payload.
type TexCompression int

const (
	TexUncompressed TexCompression = iota
	TexDXT1
	TexDXT3
	TexDXT5
)

// Texture is a decoded image as the loader hands it over. RowStep may exceed
// RowSize when rows carry padding; consumers must honor RowStep when walking
// Pixels.
type Texture struct {
	Width       int
	Height      int
	Format      PixelFormat
	Compression TexCompression
	RowStep     int
	RowSize     int
	Pixels      []byte
}

// HasImage reports whether the texture carries decodable pixel data.
func (t *Texture) HasImage() bool {
	return t != nil && t.Width > 0 && t.Height > 0 && len(t.Pixels) > 0
}

// Material mirrors the fixed-function material attribute of a state set.
type Material struct {
	Name      string
	Ambient   [4]float32
	Diffuse   [4]float32
	Specular  [4]float32
	Emission  [4]float32
	Shininess float32
	// Texture slot within the owning tile's texture table, -1 for none.
	TextureIndex int
}
