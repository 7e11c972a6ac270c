package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/threadline-rugs/roomview/internal/models"
	"gopkg.in/yaml.v3"
)

// rugRow is the flat parquet layout of a rug
type rugRow struct {
	ID            string   `parquet:"id"`
	Name          string   `parquet:"name"`
	Collection    string   `parquet:"collection"`
	Price         float64  `parquet:"price"`
	OriginalPrice *float64 `parquet:"original_price,optional"`
	ImageURL      string   `parquet:"image_url"`
	Width         float64  `parquet:"width"`
	Height        float64  `parquet:"height"`
	Unit          string   `parquet:"unit"`
	Material      string   `parquet:"material"`
	Style         string   `parquet:"style"`
	Colors        []string `parquet:"colors,list"`
	Description   string   `parquet:"description"`
}

func (r rugRow) toRug() models.Rug {
	return models.Rug{
		ID:            r.ID,
		Name:          r.Name,
		Collection:    r.Collection,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		ImageURL:      r.ImageURL,
		Dimensions:    models.Dimensions{Width: r.Width, Height: r.Height, Unit: r.Unit},
		Material:      r.Material,
		Style:         r.Style,
		Colors:        r.Colors,
		Description:   r.Description,
	}
}

func fromRug(r models.Rug) rugRow {
	return rugRow{
		ID:            r.ID,
		Name:          r.Name,
		Collection:    r.Collection,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		ImageURL:      r.ImageURL,
		Width:         r.Dimensions.Width,
		Height:        r.Dimensions.Height,
		Unit:          r.Dimensions.Unit,
		Material:      r.Material,
		Style:         r.Style,
		Colors:        r.Colors,
		Description:   r.Description,
	}
}

// Load reads a catalog file (.yaml, .yml, .json or .parquet) and validates it.
// An empty path returns the built-in catalog.
func Load(path, assetsDir string) (*Catalog, error) {
	if path == "" {
		return Default(assetsDir), nil
	}

	rugs, err := ReadRugs(path)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded catalog", "path", path, "rugs", len(rugs))

	return New(rugs, assetsDir)
}

// ReadRugs decodes rugs from a catalog file without validating them
func ReadRugs(path string) ([]models.Rug, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet":
		return readParquet(path)
	case ".yaml", ".yml":
		return readYAML(path)
	case ".json":
		return readJSON(path)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s (supported: .yaml, .json, .parquet)", ext)
	}
}

// catalogFile is the document shape of YAML and JSON catalogs
type catalogFile struct {
	Rugs []models.Rug `json:"rugs" yaml:"rugs"`
}

func readYAML(path string) ([]models.Rug, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}
	return doc.Rugs, nil
}

func readJSON(path string) ([]models.Rug, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var doc catalogFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
	}
	return doc.Rugs, nil
}

func readParquet(path string) ([]models.Rug, error) {
	slog.Debug("Opening Parquet catalog", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet catalog opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[rugRow](pf)
	defer reader.Close()

	var rugs []models.Rug
	rows := make([]rugRow, 64)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			rugs = append(rugs, row.toRug())
		}
		if err != nil {
			break
		}
	}

	return rugs, nil
}

// Write encodes rugs to path, picking the format from the extension.
func Write(path string, rugs []models.Rug) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet":
		rows := make([]rugRow, len(rugs))
		for i, r := range rugs {
			rows[i] = fromRug(r)
		}
		if err := parquet.WriteFile(path, rows); err != nil {
			return fmt.Errorf("failed to write parquet catalog: %w", err)
		}
		return nil
	case ".yaml", ".yml":
		data, err := yaml.Marshal(catalogFile{Rugs: rugs})
		if err != nil {
			return fmt.Errorf("failed to marshal YAML catalog: %w", err)
		}
		return os.WriteFile(path, data, 0644)
	case ".json":
		data, err := json.MarshalIndent(catalogFile{Rugs: rugs}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON catalog: %w", err)
		}
		return os.WriteFile(path, data, 0644)
	default:
		return fmt.Errorf("unsupported catalog format: %s (supported: .yaml, .json, .parquet)", ext)
	}
}
