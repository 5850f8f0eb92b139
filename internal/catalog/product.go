package catalog

import "path/filepath"

// Catalog filenames recognized during a scan, in match order.
var catalogFilenames = []string{"catalogue.csv", "catalogue - Sheet1.csv"}

// Garment directory names recognized next to a catalog file; the first one
// that exists wins.
var garmentDirNames = []string{"garment", "garments"}

// Column headers used by catalog files. Optional columns absent from a file
// default to empty values without error.
const (
	columnID           = "id"
	columnName         = "Name"
	columnBrand        = "Brand"
	columnMRP          = "MRP"
	columnDiscount     = "Discount %"
	columnCategory     = "Category"
	columnSubCategory  = "Sub_Category"
	columnGender       = "Gender"
	columnColor        = "Color"
	columnDescription  = "Description"
	columnMaterialCare = "Material Care"
	columnSizes        = "sizes"
	columnThumbnail    = "Thumbnail Image Filename"
	// ColumnVtonReady is the column the approval workflow rewrites.
	ColumnVtonReady     = "Vton Ready Image Filename"
	columnOtherImages   = "Other images filename"
	columnSizeChart     = "size_chart"
	columnSizeChartUnit = "size_chart_unit"
)

// Product is one catalog row enriched with the resolved garment directory
// and source catalog path. The whole set is reconstructed on every refresh;
// products are never patched in memory.
type Product struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Brand           string   `json:"brand"`
	MRP             float64  `json:"mrp"`
	DiscountPercent float64  `json:"discount_percent"`
	Category        string   `json:"category"`
	SubCategory     string   `json:"sub_category"`
	Gender          string   `json:"gender"`
	Color           string   `json:"color"`
	Description     string   `json:"description"`
	MaterialCare    string   `json:"material_care"`
	Sizes           string   `json:"sizes"`
	ThumbnailImage  string   `json:"thumbnail_image"`
	VtonImage       string   `json:"vton_image"`
	OtherImages     []string `json:"other_images"`
	SizeChart       string   `json:"size_chart"`
	SizeChartUnit   string   `json:"size_chart_unit"`

	// GarmentDir is the resolved image directory for the catalog this product
	// came from; stable for the lifetime of one cache generation.
	GarmentDir string `json:"-"`
	// SourceCSV is the catalog file the product row was parsed from.
	SourceCSV string `json:"-"`
}

// ImagePath resolves a product image filename inside the garment tree.
func (p Product) ImagePath(filename string) string {
	return filepath.Join(p.GarmentDir, p.ID, filepath.Base(filename))
}

// HasVtonImage reports whether the product already carries an approved
// try-on result.
func (p Product) HasVtonImage() bool {
	return p.VtonImage != ""
}
