package imaging

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

// ImageCache provides thread-safe caching of loaded images to avoid redundant
// disk reads and grayscale conversions.
//
// The cache stores decoded image.Image objects keyed by their file path, plus
// the *image.Gray conversion the detectors consume. Once an image is loaded,
// subsequent Load() or LoadGray() calls for the same path return the cached
// copy without disk I/O.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Size Limit
//
// Images wider or taller than the configured maximum side are rejected at
// load time. Edge point coordinates are 16-bit, so the limit never exceeds
// detection.MaxImageSide-1.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
// For long-running processes handling many images, consider periodic cleanup to
// prevent unbounded memory growth.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(0)
//	gray, err := cache.LoadGray("/path/to/image.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Use gray...
//	cache.Evict("/path/to/image.png") // Optional: free memory
type ImageCache struct {
	mu      sync.RWMutex
	maxSide int
	images  map[string]image.Image
	grays   map[string]*image.Gray
}

// NewImageCache creates an empty cache that rejects images with a side longer
// than maxSide. Zero or out-of-range values select detection.MaxImageSide-1.
func NewImageCache(maxSide int) *ImageCache {
	if maxSide <= 0 || maxSide >= detection.MaxImageSide {
		maxSide = detection.MaxImageSide - 1
	}
	return &ImageCache{
		maxSide: maxSide,
		images:  make(map[string]image.Image),
		grays:   make(map[string]*image.Gray),
	}
}

// MaxSide returns the longest accepted image side in pixels.
func (c *ImageCache) MaxSide() int {
	return c.maxSide
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats are
//     those of disintegration/imaging: PNG, JPEG, GIF, BMP and TIFF. EXIF
//     orientation is applied to JPEG files.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Non-nil if the file cannot be opened or decoded, or exceeds the
//     size limit.
//
// The image is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > c.maxSide || b.Dy() > c.maxSide {
		return nil, fmt.Errorf("image %dx%d exceeds the %d pixel side limit", b.Dx(), b.Dy(), c.maxSide)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// LoadGray returns the 8-bit grayscale version of the image at path,
// anchored at (0,0). The conversion is cached alongside the decoded image.
func (c *ImageCache) LoadGray(path string) (*image.Gray, error) {
	c.mu.RLock()
	if g, ok := c.grays[path]; ok {
		c.mu.RUnlock()
		return g, nil
	}
	c.mu.RUnlock()

	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	g := ToGray(img)

	c.mu.Lock()
	c.grays[path] = g
	c.mu.Unlock()

	return g, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.grays = make(map[string]*image.Gray)
	c.mu.Unlock()
}

// Evict removes a specific image and its grayscale conversion from the cache.
//
// If the path is not in the cache, this method does nothing.
// After eviction, the next Load() call for this path will read from disk.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	delete(c.grays, path)
	c.mu.Unlock()
}

// Len returns the number of cached decoded images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
