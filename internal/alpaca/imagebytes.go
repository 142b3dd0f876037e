package alpaca

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"net/http"

	"github.com/gin-gonic/gin"
)

// imageBytesHeaderSize is the fixed metadata block preceding the pixel
// data in an ImageBytes response (metadata version 1).
const imageBytesHeaderSize = 44

// imageBytesHeader is the version-1 ImageBytes metadata block, laid out as
// eleven consecutive little-endian 32-bit words.
type imageBytesHeader struct {
	MetadataVersion         uint32
	ErrorNumber             int32
	ClientTransactionID     uint32
	ServerTransactionID     uint32
	DataStart               uint32
	ImageElementType        uint32
	TransmissionElementType uint32
	Rank                    uint32
	Dimension1              uint32
	Dimension2              uint32
	Dimension3              uint32
}

// writeImageBytes renders the frame in the Alpaca binary format: the
// 44-byte header followed by row-major little-endian uint16 samples.
func (s *Server) writeImageBytes(c *gin.Context, tx transaction, img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := grayscale16(img)

	header := imageBytesHeader{
		MetadataVersion:         1,
		ErrorNumber:             0,
		ClientTransactionID:     uint32(tx.ClientTransactionID),
		ServerTransactionID:     uint32(s.nextTransactionID()),
		DataStart:               imageBytesHeaderSize,
		ImageElementType:        2, // int16
		TransmissionElementType: 2, // int16
		Rank:                    2,
		Dimension1:              uint32(width),
		Dimension2:              uint32(height),
		Dimension3:              0,
	}

	buf := bytes.NewBuffer(make([]byte, 0, imageBytesHeaderSize+len(pixels)*2))
	_ = binary.Write(buf, binary.LittleEndian, header)
	_ = binary.Write(buf, binary.LittleEndian, pixels)

	c.Data(http.StatusOK, "application/imagebytes", buf.Bytes())
}

// grayscale16 flattens a frame into row-major 16-bit grayscale samples.
// 8-bit grayscale sources scale by 257 so full white stays full scale;
// color sources are luma-converted first.
func grayscale16(img image.Image) []uint16 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := make([]uint16, width*height)

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
			for x, v := range row {
				pixels[y*width+x] = uint16(v) * 257
			}
		}
		return pixels
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			luma := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y
			pixels[y*width+x] = uint16(luma) * 257
		}
	}
	return pixels
}
