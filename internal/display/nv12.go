package display

import (
	"fmt"
	"image"
)

// fillYCbCr copies one NV12 frame into dst, de-interleaving the combined
// CbCr plane into the separate chroma planes of a 4:2:0 image. Plane
// strides may exceed the visible width (driver alignment); the copy honors
// them. This copy is what makes requeueing the kernel buffer safe: after it
// returns, nothing references the mapped memory.
func fillYCbCr(dst *image.YCbCr, luma, chroma []byte, lumaStride, chromaStride int) error {
	w := dst.Rect.Dx()
	h := dst.Rect.Dy()
	if lumaStride < w {
		return fmt.Errorf("luma stride %d shorter than width %d", lumaStride, w)
	}
	if chromaStride < w {
		return fmt.Errorf("chroma stride %d shorter than width %d", chromaStride, w)
	}
	if need := lumaStride*(h-1) + w; len(luma) < need {
		return fmt.Errorf("luma plane %d bytes, need %d", len(luma), need)
	}
	cRows := h / 2
	if need := chromaStride*(cRows-1) + w; len(chroma) < need {
		return fmt.Errorf("chroma plane %d bytes, need %d", len(chroma), need)
	}

	for r := 0; r < h; r++ {
		copy(dst.Y[r*dst.YStride:r*dst.YStride+w], luma[r*lumaStride:r*lumaStride+w])
	}
	half := w / 2
	for r := 0; r < cRows; r++ {
		row := chroma[r*chromaStride:]
		out := r * dst.CStride
		for i := 0; i < half; i++ {
			dst.Cb[out+i] = row[2*i]
			dst.Cr[out+i] = row[2*i+1]
		}
	}
	return nil
}
