package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("DecodeImage", func() {
	It("should decode a PNG", func() {
		img, err := DecodeImage(pngBytes(32, 16), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(32))
		Expect(img.Bounds().Dy()).To(Equal(16))
	})

	It("should sniff the format regardless of the declared type", func() {
		img, err := DecodeImage(pngBytes(8, 8), "application/octet-stream")
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(8))
	})

	It("should reject unknown data", func() {
		_, err := DecodeImage([]byte("definitely not an image"), "image/jpeg")
		Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
	})
})

var _ = Describe("EncodeJPEG", func() {
	It("should produce a decodable JPEG of the same size", func() {
		src, err := DecodeImage(pngBytes(20, 10), "image/png")
		Expect(err).NotTo(HaveOccurred())

		data, err := EncodeJPEG(src, JPEGQuality)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[:2]).To(Equal([]byte{0xFF, 0xD8}))

		img, err := DecodeImage(data, "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Size()).To(Equal(image.Pt(20, 10)))
	})
})

var _ = Describe("prepareImageData", func() {
	It("should pass JPEG and PNG through", func() {
		in := []byte("raw")
		out, mimeType, err := prepareImageData(in, " IMAGE/PNG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
		Expect(mimeType).To(Equal("image/png"))
	})

	It("should re-encode other formats as JPEG", func() {
		out, mimeType, err := prepareImageData(pngBytes(4, 4), "image/x-unknown")
		Expect(err).NotTo(HaveOccurred())
		Expect(mimeType).To(Equal("image/jpeg"))
		Expect(out[:2]).To(Equal([]byte{0xFF, 0xD8}))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should recognise an ftyp heic header", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"))).To(BeTrue())
	})

	It("should reject short or foreign data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
		Expect(isHEICFormat(pngBytes(2, 2))).To(BeFalse())
	})
})

var _ = Describe("imageFormat", func() {
	It("should map MIME types to format names", func() {
		Expect(imageFormat("image/png")).To(Equal("png"))
		Expect(imageFormat("image/jpeg")).To(Equal("jpeg"))
		Expect(imageFormat("")).To(Equal("jpeg"))
	})
})
