// Package fingerprint computes perceptual fingerprints of photos: a 64-bit
// difference hash for near-duplicate detection, image dimensions, and a
// Laplacian-variance sharpness score used for representative selection.
package fingerprint

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Fingerprint contains everything the indexer extracts from image pixels.
type Fingerprint struct {
	DHash     string  `json:"dhash"` // 64-bit difference hash as hex string
	DHashBits uint64  `json:"-"`     // Raw dHash for comparison
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Sharpness float64 `json:"sharpness"`
}

// Compute decodes an image and extracts its fingerprint.
func Compute(imageData []byte) (*Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	dHash := computeDHash(img)

	return &Fingerprint{
		DHash:     fmt.Sprintf("%016x", dHash),
		DHashBits: dHash,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Sharpness: computeSharpness(img),
	}, nil
}

// ParseDHash converts a 16-character hex dHash back to its raw bits.
// Returns ok=false for empty or malformed hashes so callers can treat the
// photo as having no valid hash rather than failing.
func ParseDHash(s string) (uint64, bool) {
	if len(s) != 16 {
		return 0, false
	}
	var bits uint64
	for i := 0; i < 16; i++ {
		c := s[i]
		var v uint64
		switch {
		case c >= '0' && c <= '9':
			v = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = uint64(c-'A') + 10
		default:
			return 0, false
		}
		bits = bits<<4 | v
	}
	return bits, true
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar returns true if two hashes are within the given threshold.
// A threshold around 10-12 is typically used for near-duplicate detection.
func Similar(hash1, hash2 uint64, threshold int) bool {
	return HammingDistance(hash1, hash2) <= threshold
}

// ContentHash computes the MD5 hex digest of raw file bytes, used for exact
// duplicate detection independent of perceptual hashing.
func ContentHash(r io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("hashing file contents: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// computeDHash computes a 64-bit difference hash.
func computeDHash(img image.Image) uint64 {
	// 1. Resize to 9x8 (we need 9 columns for 8 differences)
	resized := resizeImage(img, 9, 8)

	// 2. Convert to grayscale
	gray := toGrayscale(resized)

	// 3. Compare adjacent pixels horizontally
	//    Each row: compare pixel[x] vs pixel[x+1]
	//    8 rows * 8 comparisons = 64 bits
	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}

	return hash
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}
