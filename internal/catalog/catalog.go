package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/threadline-rugs/roomview/internal/models"
)

// ErrNotFound is returned when no rug has the requested ID
var ErrNotFound = errors.New("rug not found")

// DefaultAssetsDir is where relative rug image paths resolve when no other
// directory is configured.
const DefaultAssetsDir = "assets"

var validUnits = map[string]bool{"ft": true, "cm": true, "m": true}

// Catalog is an immutable, ordered set of rugs
type Catalog struct {
	rugs      []models.Rug
	byID      map[string]int
	assetsDir string
}

// New builds a catalog from rugs. Rug image paths that are neither URLs nor
// absolute paths resolve against assetsDir.
func New(rugs []models.Rug, assetsDir string) (*Catalog, error) {
	if err := ValidateAll(rugs); err != nil {
		return nil, err
	}

	c := &Catalog{
		rugs:      make([]models.Rug, len(rugs)),
		byID:      make(map[string]int, len(rugs)),
		assetsDir: assetsDir,
	}
	copy(c.rugs, rugs)
	for i, r := range c.rugs {
		c.byID[r.ID] = i
	}
	return c, nil
}

// Default returns the built-in sample catalog
func Default(assetsDir string) *Catalog {
	c, err := New(SampleRugs, assetsDir)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// All returns every rug in catalog order.
func (c *Catalog) All() []models.Rug {
	out := make([]models.Rug, len(c.rugs))
	copy(out, c.rugs)
	return out
}

// Get looks up a rug by ID.
func (c *Catalog) Get(id string) (models.Rug, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Rug{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.rugs[i], nil
}

// Filter returns rugs whose style matches (case-insensitive). An empty style
// returns everything.
func (c *Catalog) Filter(style string) []models.Rug {
	if style == "" {
		return c.All()
	}
	var out []models.Rug
	for _, r := range c.rugs {
		if strings.EqualFold(r.Style, style) {
			out = append(out, r)
		}
	}
	return out
}

// ResolveImage returns an ingestion source for the rug's own image bytes,
// resolving relative paths against the catalog's assets directory.
func (c *Catalog) ResolveImage(rug models.Rug) (string, error) {
	return ResolveImage(c.assetsDir, rug)
}

// ResolveImage passes data URIs and URLs through and joins relative paths
// onto assetsDir, made absolute.
func ResolveImage(assetsDir string, rug models.Rug) (string, error) {
	ref := strings.TrimSpace(rug.ImageURL)
	if ref == "" {
		return "", fmt.Errorf("rug %s has no image", rug.ID)
	}

	if strings.HasPrefix(ref, "data:") || filepath.IsAbs(ref) {
		return ref, nil
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "file") {
		return ref, nil
	}

	abs, err := filepath.Abs(filepath.Join(assetsDir, filepath.FromSlash(ref)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path for rug %s: %w", rug.ID, err)
	}
	return abs, nil
}

// MissingAssets returns the IDs of rugs whose image resolves to a local file
// that does not exist. Remote and inline images are not checked.
func (c *Catalog) MissingAssets() []string {
	var missing []string
	for _, r := range c.rugs {
		ref, err := c.ResolveImage(r)
		if err != nil {
			missing = append(missing, r.ID)
			continue
		}
		if !filepath.IsAbs(ref) {
			continue
		}
		if _, err := os.Stat(ref); err != nil {
			missing = append(missing, r.ID)
		}
	}
	return missing
}

// Validate checks a single rug record
func Validate(r models.Rug) error {
	var errs []error
	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(r.ImageURL) == "" {
		errs = append(errs, errors.New("imageUrl is required"))
	}
	if r.Price <= 0 {
		errs = append(errs, fmt.Errorf("price must be positive, got %v", r.Price))
	}
	if r.OriginalPrice != nil && *r.OriginalPrice <= r.Price {
		errs = append(errs, fmt.Errorf("originalPrice %v must be greater than price %v", *r.OriginalPrice, r.Price))
	}
	if r.Dimensions.Width <= 0 || r.Dimensions.Height <= 0 {
		errs = append(errs, fmt.Errorf("dimensions must be positive, got %vx%v", r.Dimensions.Width, r.Dimensions.Height))
	}
	if !validUnits[r.Dimensions.Unit] {
		errs = append(errs, fmt.Errorf("invalid unit %q (must be ft, cm, or m)", r.Dimensions.Unit))
	}

	if len(errs) == 0 {
		return nil
	}
	label := r.ID
	if label == "" {
		label = r.Name
	}
	return fmt.Errorf("rug %q: %w", label, errors.Join(errs...))
}

// ValidateAll validates every rug and checks IDs are unique
func ValidateAll(rugs []models.Rug) error {
	var errs []error
	seen := make(map[string]bool, len(rugs))
	for _, r := range rugs {
		if err := Validate(r); err != nil {
			errs = append(errs, err)
		}
		if r.ID != "" && seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate rug id %q", r.ID))
		}
		seen[r.ID] = true
	}
	return errors.Join(errs...)
}
