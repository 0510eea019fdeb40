package models

import "encoding/json"

// ImageRef is a location-independent image identifier: the hex digest of the
// raw bytes. Images are immutable once hashed: the same bytes always produce
// the same reference, so identical images are stored once remotely no matter
// how many records (or accounts) reference them.
type ImageRef struct {
	// Hash is the 64-character hex SHA-256 digest of the raw image bytes.
	Hash string `json:"hash"`

	// ContentType is the MIME type recorded when the image was stored.
	ContentType string `json:"contentType,omitempty"`

	// Size is the byte length of the image.
	Size int64 `json:"size,omitempty"`
}

// MaxImageSize is the ceiling for a single image blob. The client rejects
// larger blobs before any network call; the server enforces the same limit
// authoritatively.
const MaxImageSize = 10 << 20 // 10 MiB

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ValidImageType reports whether contentType belongs to the allowed set.
func ValidImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// recordImages mirrors the image-bearing fields of a domain document.
// A record stores either a single image ("image") or a gallery ("images").
type recordImages struct {
	Image  *ImageRef  `json:"image,omitempty"`
	Images []ImageRef `json:"images,omitempty"`
}

// CollectImageRefs extracts every image reference from the given records,
// de-duplicated by hash. Records whose documents do not parse or carry no
// image fields are skipped silently; a missing reference is not an error at
// collection time.
func CollectImageRefs(records []Record) []ImageRef {
	seen := make(map[string]struct{})
	refs := make([]ImageRef, 0)

	add := func(ref ImageRef) {
		if ref.Hash == "" {
			return
		}
		if _, ok := seen[ref.Hash]; ok {
			return
		}
		seen[ref.Hash] = struct{}{}
		refs = append(refs, ref)
	}

	for _, rec := range records {
		if len(rec.Data) == 0 || rec.Deleted {
			continue
		}

		var imgs recordImages
		if err := json.Unmarshal(rec.Data, &imgs); err != nil {
			continue
		}

		if imgs.Image != nil {
			add(*imgs.Image)
		}
		for _, ref := range imgs.Images {
			add(ref)
		}
	}

	return refs
}
