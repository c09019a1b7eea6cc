package media

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies which catalog entity a cache slot belongs to.
type Kind string

const (
	KindGame    Kind = "game"
	KindConsole Kind = "console"
)

// Valid reports whether the kind is one of the supported entity kinds.
func (k Kind) Valid() bool {
	return k == KindGame || k == KindConsole
}

// Region is a lowercase region code understood by the upstream provider.
//
// The set is closed: unknown codes are rejected at the resolver boundary
// instead of silently occupying cache slots. Region-independent media is
// stored under the RegionNone sentinel.
type Region string

const (
	RegionEurope  Region = "eu"
	RegionUSA     Region = "us"
	RegionJapan   Region = "jp"
	RegionFrance  Region = "fr"
	RegionGermany Region = "de"
	RegionSpain   Region = "es"
	RegionItaly   Region = "it"
	RegionUK      Region = "uk"
	RegionAsia    Region = "asi"
	RegionWorld   Region = "wor"

	// RegionNone is the sentinel slot for media types that carry no region.
	RegionNone Region = "none"
)

var knownRegions = map[Region]struct{}{
	RegionEurope:  {},
	RegionUSA:     {},
	RegionJapan:   {},
	RegionFrance:  {},
	RegionGermany: {},
	RegionSpain:   {},
	RegionItaly:   {},
	RegionUK:      {},
	RegionAsia:    {},
	RegionWorld:   {},
	RegionNone:    {},
}

// ParseRegion lowercases and validates a region code.
func ParseRegion(s string) (Region, error) {
	region := Region(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownRegions[region]; !ok {
		return "", fmt.Errorf("media: unknown region %q", s)
	}
	return region, nil
}

// ParseRegions converts a priority-ordered list of codes, rejecting duplicates.
func ParseRegions(codes []string) ([]Region, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("media: region priority list is empty")
	}

	seen := make(map[Region]struct{}, len(codes))
	regions := make([]Region, 0, len(codes))
	for _, code := range codes {
		region, err := ParseRegion(code)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[region]; dup {
			return nil, fmt.Errorf("media: duplicate region %q in priority list", region)
		}
		seen[region] = struct{}{}
		regions = append(regions, region)
	}
	return regions, nil
}

// TagSet is the configured set of media type tags the resolver accepts.
// The set is open (extended through configuration) but validated up front so
// typos never end up as cache keys.
type TagSet struct {
	tags map[string]struct{}
}

// DefaultMediaTags lists the provider media types enabled out of the box.
var DefaultMediaTags = []string{
	"box-2D",
	"box-3D",
	"wheel",
	"minicon",
	"sstitle",
	"ss",
	"screenmarquee",
	"logo-monochrome",
}

// NewTagSet builds a TagSet from configuration, rejecting blank entries.
func NewTagSet(tags []string) (*TagSet, error) {
	if len(tags) == 0 {
		tags = DefaultMediaTags
	}

	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, fmt.Errorf("media: blank media type tag in configuration")
		}
		set[tag] = struct{}{}
	}
	return &TagSet{tags: set}, nil
}

// Contains reports whether the tag is an accepted media type.
func (s *TagSet) Contains(tag string) bool {
	if s == nil {
		return false
	}
	_, ok := s.tags[tag]
	return ok
}

// Tags returns the accepted tags in stable order, for diagnostics.
func (s *TagSet) Tags() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// EntityRef identifies the entity whose media is being resolved, together with
// the upstream identifiers supplied by the catalog store. The cache never
// derives upstream identifiers itself.
type EntityRef struct {
	Kind     Kind
	EntityID string

	// SourceID is the entity's identifier in the provider's database.
	SourceID int64
	// SystemSourceID is the owning console's provider identifier. For console
	// entities it equals SourceID.
	SystemSourceID int64
}

// EntryKey is the composite identity of one cache slot.
type EntryKey struct {
	Kind      Kind
	EntityID  string
	MediaType string
	Region    Region
}
