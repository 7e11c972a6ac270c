package catalog

import "github.com/threadline-rugs/roomview/internal/models"

func price(v float64) *float64 { return &v }

// SampleRugs is the built-in storefront catalog
var SampleRugs = []models.Rug{
	{
		ID:            "persian-silk-1",
		Name:          "Royal Isfahan",
		Collection:    "Persian Heritage",
		Price:         4500,
		OriginalPrice: price(5800),
		ImageURL:      "rugs/persian-silk.jpg",
		Dimensions:    models.Dimensions{Width: 8, Height: 10, Unit: "ft"},
		Material:      "Hand-knotted Silk",
		Style:         "Traditional",
		Colors:        []string{"Burgundy", "Gold", "Navy"},
		Description:   "An exquisite hand-knotted silk rug from Isfahan, featuring intricate medallion patterns.",
	},
	{
		ID:          "moroccan-berber-1",
		Name:        "Atlas Mountains",
		Collection:  "Moroccan Artisan",
		Price:       2200,
		ImageURL:    "rugs/moroccan-berber.jpg",
		Dimensions:  models.Dimensions{Width: 6, Height: 9, Unit: "ft"},
		Material:    "Hand-woven Wool",
		Style:       "Bohemian",
		Colors:      []string{"Ivory", "Black", "Rust"},
		Description: "Authentic Berber rug handwoven by artisans in the Atlas Mountains.",
	},
	{
		ID:          "modern-geometric-1",
		Name:        "Nordic Frost",
		Collection:  "Contemporary",
		Price:       1800,
		ImageURL:    "rugs/modern-geometric.jpg",
		Dimensions:  models.Dimensions{Width: 8, Height: 11, Unit: "ft"},
		Material:    "New Zealand Wool",
		Style:       "Modern",
		Colors:      []string{"Grey", "White", "Charcoal"},
		Description: "Minimalist geometric design perfect for modern interiors.",
	},
	{
		ID:            "vintage-oushak-1",
		Name:          "Anatolia Dreams",
		Collection:    "Vintage Collection",
		Price:         6800,
		OriginalPrice: price(8500),
		ImageURL:      "rugs/vintage-oushak.jpg",
		Dimensions:    models.Dimensions{Width: 9, Height: 12, Unit: "ft"},
		Material:      "Antique Wool",
		Style:         "Vintage",
		Colors:        []string{"Coral", "Sage", "Cream"},
		Description:   "Authentic vintage Oushak rug from Turkey, circa 1920.",
	},
	{
		ID:          "kilim-tribal-1",
		Name:        "Nomad Spirit",
		Collection:  "Tribal Collection",
		Price:       1400,
		ImageURL:    "rugs/kilim-tribal.jpg",
		Dimensions:  models.Dimensions{Width: 5, Height: 7, Unit: "ft"},
		Material:    "Flatweave Wool",
		Style:       "Tribal",
		Colors:      []string{"Red", "Orange", "Brown"},
		Description: "Vibrant kilim with traditional tribal motifs.",
	},
	{
		ID:          "art-deco-1",
		Name:        "Gatsby Gold",
		Collection:  "Art Deco Revival",
		Price:       3200,
		ImageURL:    "rugs/art-deco.jpg",
		Dimensions:  models.Dimensions{Width: 8, Height: 10, Unit: "ft"},
		Material:    "Silk & Wool Blend",
		Style:       "Art Deco",
		Colors:      []string{"Black", "Gold", "Cream"},
		Description: "Luxurious Art Deco inspired rug with geometric patterns.",
	},
}
