package cache

// Each entity type lives under its own prefix so keys of different types
// never collide.
const (
	vehiclePrefix     = "vehicle:"
	uploadPrefix      = "web-companion:upload:"
	uploadStockPrefix = "web-companion:stock:"
	InventoryIndexKey = "inventory:index"
	CustomMediaKey    = "media:custom"
)

func VehicleKey(id string) string {
	return vehiclePrefix + id
}

func UploadKey(id string) string {
	return uploadPrefix + id
}

func UploadStockKey(stockNumber string) string {
	return uploadStockPrefix + stockNumber
}
