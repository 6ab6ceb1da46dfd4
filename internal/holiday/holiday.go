// Package holiday provides the catalog of supported holiday themes and a
// bounded cache for resolved theme details. Themes drive the video prompt:
// each one carries a palette, a set of visual motifs, and a prompt fragment
// handed to the generation request.
package holiday

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownHoliday is returned when a slug does not match any catalog entry.
var ErrUnknownHoliday = errors.New("holiday: unknown holiday")

// Holiday describes one supported theme.
type Holiday struct {
	// Slug is the stable identifier used in URLs and requests.
	Slug string `json:"slug"`
	// Name is the display name.
	Name string `json:"name"`
	// Palette lists the dominant colors as hex strings.
	Palette []string `json:"palette"`
	// Motifs lists the visual elements woven into the scene.
	Motifs []string `json:"motifs"`
	// PromptHint is the theme fragment appended to the video prompt.
	PromptHint string `json:"promptHint"`
}

// defaultCatalog returns the built-in theme set. A fresh slice is returned
// each call so callers can never mutate shared state.
func defaultCatalog() []Holiday {
	return []Holiday{
		{
			Slug:       "christmas",
			Name:       "Christmas",
			Palette:    []string{"#B3000C", "#1A472A", "#F8B229"},
			Motifs:     []string{"snowfall", "string lights", "ornaments", "pine branches"},
			PromptHint: "a cozy Christmas scene with gentle snowfall and warm string lights",
		},
		{
			Slug:       "hanukkah",
			Name:       "Hanukkah",
			Palette:    []string{"#0F52BA", "#C0C0C0", "#FFFFFF"},
			Motifs:     []string{"menorah glow", "dreidels", "soft candlelight"},
			PromptHint: "an elegant Hanukkah scene lit by the warm glow of a menorah",
		},
		{
			Slug:       "new-year",
			Name:       "New Year",
			Palette:    []string{"#0B0B45", "#FFD700", "#E5E4E2"},
			Motifs:     []string{"fireworks", "confetti", "champagne sparkle", "countdown clock"},
			PromptHint: "a festive New Year celebration with fireworks and golden confetti",
		},
		{
			Slug:       "halloween",
			Name:       "Halloween",
			Palette:    []string{"#FF6700", "#2E1A47", "#000000"},
			Motifs:     []string{"carved pumpkins", "drifting fog", "bats", "full moon"},
			PromptHint: "a playful Halloween scene with glowing pumpkins under a full moon",
		},
		{
			Slug:       "valentines",
			Name:       "Valentine's Day",
			Palette:    []string{"#E0115F", "#FFC0CB", "#FFFFFF"},
			Motifs:     []string{"floating hearts", "rose petals", "soft bokeh"},
			PromptHint: "a romantic Valentine's scene with drifting rose petals and soft hearts",
		},
		{
			Slug:       "diwali",
			Name:       "Diwali",
			Palette:    []string{"#FF9933", "#800080", "#FFD700"},
			Motifs:     []string{"oil lamps", "rangoli patterns", "sparklers"},
			PromptHint: "a radiant Diwali scene with rows of oil lamps and colorful rangoli",
		},
		{
			Slug:       "easter",
			Name:       "Easter",
			Palette:    []string{"#A7C7E7", "#FFF44F", "#C8A2C8"},
			Motifs:     []string{"painted eggs", "spring blossoms", "pastel ribbons"},
			PromptHint: "a bright Easter scene with painted eggs among spring blossoms",
		},
		{
			Slug:       "thanksgiving",
			Name:       "Thanksgiving",
			Palette:    []string{"#B5651D", "#8B0000", "#DAA520"},
			Motifs:     []string{"autumn leaves", "harvest table", "golden light"},
			PromptHint: "a warm Thanksgiving scene with falling autumn leaves and golden light",
		},
	}
}

// Catalog holds the supported holidays indexed by slug.
// Construct it explicitly with NewCatalog; there is no package-level instance.
type Catalog struct {
	ordered []Holiday
	bySlug  map[string]Holiday
}

// NewCatalog builds a catalog from the built-in theme set.
func NewCatalog() *Catalog {
	return newCatalog(defaultCatalog())
}

func newCatalog(entries []Holiday) *Catalog {
	c := &Catalog{
		ordered: entries,
		bySlug:  make(map[string]Holiday, len(entries)),
	}
	for _, h := range entries {
		c.bySlug[h.Slug] = h
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		return c.ordered[i].Slug < c.ordered[j].Slug
	})
	return c
}

// List returns all holidays ordered by slug.
func (c *Catalog) List() []Holiday {
	out := make([]Holiday, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Get returns the holiday for the given slug.
// Returns ErrUnknownHoliday if the slug is not in the catalog.
func (c *Catalog) Get(slug string) (Holiday, error) {
	h, ok := c.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Holiday{}, fmt.Errorf("%w: %q", ErrUnknownHoliday, slug)
	}
	return h, nil
}

// BuildPrompt composes the video prompt for a holiday around the brand name.
// The logo image itself travels separately as the conditioning frame.
func (c *Catalog) BuildPrompt(slug, brandName string) (string, error) {
	h, err := c.Get(slug)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Animate the provided logo of ")
	if brandName != "" {
		b.WriteString(brandName)
	} else {
		b.WriteString("the brand")
	}
	b.WriteString(" into ")
	b.WriteString(h.PromptHint)
	b.WriteString(". Feature ")
	b.WriteString(strings.Join(h.Motifs, ", "))
	b.WriteString(". Keep the logo sharp, centered, and legible throughout.")
	return b.String(), nil
}
