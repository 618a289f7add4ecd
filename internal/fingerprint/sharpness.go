package fingerprint

import "image"

// sharpnessMaxSide caps the working size for the Laplacian pass. Sharpness is
// only used as a relative ranking inside a cluster, so a downscaled copy is
// enough and keeps the cost bounded for large originals.
const sharpnessMaxSide = 500

// computeSharpness estimates focus quality as the variance of a Laplacian
// convolution over the grayscale image. Higher means sharper.
func computeSharpness(img image.Image) float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	if width > sharpnessMaxSide || height > sharpnessMaxSide {
		if width > height {
			height = height * sharpnessMaxSide / width
			width = sharpnessMaxSide
		} else {
			width = width * sharpnessMaxSide / height
			height = sharpnessMaxSide
		}
		if width < 3 || height < 3 {
			return 0
		}
	}

	gray := toGrayscale(resizeImage(img, width, height))

	// 4-neighbour Laplacian over interior pixels.
	n := 0
	var sum, sumSq float64
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			lap := gray[x-1][y] + gray[x+1][y] + gray[x][y-1] + gray[x][y+1] - 4*gray[x][y]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
