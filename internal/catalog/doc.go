// Package catalog reads and updates the delimited-text garment catalogs that
// act as the product database.
//
// A catalog is a recognized CSV file plus a sibling garment image directory
// holding one subdirectory per product id. The store scans a root tree for
// catalogs, caches the parsed product set with a TTL, and supports point
// lookup and single-field update-and-persist. Product ids are expected to be
// globally unique across catalogs but this is not enforced: duplicates
// resolve to the first product encountered in scan order.
package catalog
