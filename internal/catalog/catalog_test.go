package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/threadline-rugs/roomview/internal/models"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	if err := ValidateAll(SampleRugs); err != nil {
		t.Fatalf("built-in catalog failed validation: %v", err)
	}

	c := Default("assets")
	if got := len(c.All()); got != 6 {
		t.Errorf("Expected 6 rugs, got %d", got)
	}

	rug, err := c.Get("moroccan-berber-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rug.Name != "Atlas Mountains" {
		t.Errorf("Expected Atlas Mountains, got %s", rug.Name)
	}
	if rug.Dimensions.Width != 6 || rug.Dimensions.Height != 9 || rug.Dimensions.Unit != "ft" {
		t.Errorf("Unexpected dimensions %+v", rug.Dimensions)
	}
}

func TestGetUnknownRug(t *testing.T) {
	c := Default("assets")
	_, err := c.Get("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := SampleRugs[1]

	tests := []struct {
		name    string
		mutate  func(r *models.Rug)
		wantErr string
	}{
		{
			name:   "valid rug",
			mutate: func(r *models.Rug) {},
		},
		{
			name:    "original price below price",
			mutate:  func(r *models.Rug) { r.OriginalPrice = price(1000) },
			wantErr: "originalPrice",
		},
		{
			name:    "original price equal to price",
			mutate:  func(r *models.Rug) { r.OriginalPrice = price(r.Price) },
			wantErr: "originalPrice",
		},
		{
			name:    "unknown unit",
			mutate:  func(r *models.Rug) { r.Dimensions.Unit = "in" },
			wantErr: "invalid unit",
		},
		{
			name:    "missing image",
			mutate:  func(r *models.Rug) { r.ImageURL = "" },
			wantErr: "imageUrl is required",
		},
		{
			name:    "zero width",
			mutate:  func(r *models.Rug) { r.Dimensions.Width = 0 },
			wantErr: "dimensions must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := Validate(r)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAllDuplicateIDs(t *testing.T) {
	rugs := []models.Rug{SampleRugs[0], SampleRugs[0]}
	err := ValidateAll(rugs)
	if err == nil || !strings.Contains(err.Error(), "duplicate rug id") {
		t.Errorf("Expected duplicate id error, got %v", err)
	}
}

func TestDiscountPercent(t *testing.T) {
	if got := SampleRugs[0].DiscountPercent(); got != 22 {
		t.Errorf("Expected 22%% off Royal Isfahan, got %d", got)
	}
	if got := SampleRugs[1].DiscountPercent(); got != 0 {
		t.Errorf("Expected no discount for Atlas Mountains, got %d", got)
	}
}

func TestFilter(t *testing.T) {
	c := Default("assets")
	got := c.Filter("bohemian")
	if len(got) != 1 || got[0].ID != "moroccan-berber-1" {
		t.Errorf("Unexpected filter result: %+v", got)
	}
	if len(c.Filter("")) != 6 {
		t.Error("Empty filter should return every rug")
	}
}

func TestResolveImage(t *testing.T) {
	dir := t.TempDir()
	c := Default(dir)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"data uri passes through", "data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
		{"https passes through", "https://cdn.example.com/rug.jpg", "https://cdn.example.com/rug.jpg"},
		{"absolute path passes through", "/srv/rugs/a.jpg", "/srv/rugs/a.jpg"},
		{"relative path joins assets dir", "rugs/a.jpg", filepath.Join(dir, "rugs", "a.jpg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rug := SampleRugs[1]
			rug.ImageURL = tt.ref
			got, err := c.ResolveImage(rug)
			if err != nil {
				t.Fatalf("ResolveImage failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMissingAssets(t *testing.T) {
	dir := t.TempDir()
	rugs := []models.Rug{SampleRugs[0], SampleRugs[1], SampleRugs[2]}
	rugs[2].ImageURL = "https://cdn.example.com/rug.jpg"
	c, err := New(rugs, dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	present := filepath.Join(dir, filepath.FromSlash(rugs[0].ImageURL))
	if err := os.MkdirAll(filepath.Dir(present), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(present, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	missing := c.MissingAssets()
	if len(missing) != 1 || missing[0] != rugs[1].ID {
		t.Errorf("Expected only %s missing, got %v", rugs[1].ID, missing)
	}
}

func TestLoadRoundTripFormats(t *testing.T) {
	for _, ext := range []string{".yaml", ".json", ".parquet"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog"+ext)
			if err := Write(path, SampleRugs); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			c, err := Load(path, "assets")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			rugs := c.All()
			if len(rugs) != len(SampleRugs) {
				t.Fatalf("Expected %d rugs, got %d", len(SampleRugs), len(rugs))
			}
			isfahan, _ := c.Get("persian-silk-1")
			if isfahan.OriginalPrice == nil || *isfahan.OriginalPrice != 5800 {
				t.Errorf("Original price lost: %+v", isfahan.OriginalPrice)
			}
			atlas, _ := c.Get("moroccan-berber-1")
			if atlas.OriginalPrice != nil {
				t.Errorf("Expected no original price, got %v", *atlas.OriginalPrice)
			}
			if len(atlas.Colors) != 3 || atlas.Colors[2] != "Rust" {
				t.Errorf("Colors lost: %v", atlas.Colors)
			}
		})
	}
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := `rugs:
  - id: cheap
    name: Cheap Rug
    price: 100
    originalPrice: 90
    imageUrl: rugs/cheap.jpg
    dimensions: {width: 2, height: 3, unit: ft}
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, "assets"); err == nil {
		t.Error("Expected validation error for originalPrice below price")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("catalog.csv", "assets"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
