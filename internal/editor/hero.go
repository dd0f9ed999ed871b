package editor

import (
	"strconv"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/schema"
)

// heroUpload is a hero-only image: either already stored (Ref) or waiting
// for the next save (Data).
type heroUpload struct {
	Ref      schema.AssetRef `json:"ref,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Data     []byte          `json:"data,omitempty"`
}

func (u heroUpload) pending() bool {
	return u.Ref == "" && len(u.Data) > 0
}

type heroPools struct {
	Selected []schema.AssetRef `json:"selected"`
	Uploads  []heroUpload      `json:"uploads"`
}

// splitHero sorts stored background images into the gallery pool and the
// hero-only pool.
func splitHero(images, options []schema.AssetRef) heroPools {
	pools := heroPools{Selected: []schema.AssetRef{}, Uploads: []heroUpload{}}
	available := refSet(options)
	seen := map[schema.AssetRef]bool{}
	for _, ref := range images {
		if available[ref] && !seen[ref] {
			pools.Selected = append(pools.Selected, ref)
			seen[ref] = true
			continue
		}
		pools.Uploads = append(pools.Uploads, heroUpload{Ref: ref})
	}
	pools.Selected = orderByOptions(pools.Selected, options)
	return pools
}

// combined returns backgroundImages: gallery selections followed by hero-only
// images. A pending upload holds its slot with an empty ref until stored.
func (p heroPools) combined() []schema.AssetRef {
	images := make([]schema.AssetRef, 0, len(p.Selected)+len(p.Uploads))
	images = append(images, p.Selected...)
	for _, upload := range p.Uploads {
		images = append(images, upload.Ref)
	}
	return images
}

// uploadField names the upload field for hero-only entry i in the combined list.
func (p heroPools) uploadField(i int) string {
	return string(assets.FieldHeroImage) + "-" + strconv.Itoa(len(p.Selected)+i)
}

func (p *heroPools) prune(options []schema.AssetRef) {
	available := refSet(options)
	kept := p.Selected[:0]
	for _, ref := range p.Selected {
		if available[ref] {
			kept = append(kept, ref)
		}
	}
	p.Selected = orderByOptions(kept, options)
}

// orderByOptions returns the selection in option order followed by any
// selected refs that are not options, in their existing order. Duplicates
// are dropped.
func orderByOptions(selected, options []schema.AssetRef) []schema.AssetRef {
	chosen := refSet(selected)
	ordered := make([]schema.AssetRef, 0, len(selected))
	placed := map[schema.AssetRef]bool{}
	for _, option := range options {
		if chosen[option] && !placed[option] {
			ordered = append(ordered, option)
			placed[option] = true
		}
	}
	for _, ref := range selected {
		if !placed[ref] {
			ordered = append(ordered, ref)
			placed[ref] = true
		}
	}
	return ordered
}

func toggle(selected []schema.AssetRef, ref schema.AssetRef, on bool, options []schema.AssetRef) []schema.AssetRef {
	next := make([]schema.AssetRef, 0, len(selected)+1)
	for _, existing := range selected {
		if existing != ref {
			next = append(next, existing)
		}
	}
	if on {
		next = append(next, ref)
	}
	return orderByOptions(next, options)
}

func refSet(refs []schema.AssetRef) map[schema.AssetRef]bool {
	set := make(map[schema.AssetRef]bool, len(refs))
	for _, ref := range refs {
		set[ref] = true
	}
	return set
}

func galleryOptions(items []schema.GalleryItem) []schema.AssetRef {
	options := make([]schema.AssetRef, 0, len(items))
	for _, item := range items {
		if item.Image != "" {
			options = append(options, item.Image)
		}
	}
	return options
}
