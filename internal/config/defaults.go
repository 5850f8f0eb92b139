package config

const (
	defaultCatalogRoot       = "~/catalogs"
	defaultProcessedDir      = "~/.local/share/tryon/processed_images"
	defaultTempCropDir       = "~/.local/share/tryon/temp_crops"
	defaultThumbnailDir      = "~/.local/share/tryon/thumbnails"
	defaultQueueFile         = "~/.local/share/tryon/queue_data.json"
	defaultLogDir            = "~/.local/share/tryon/logs"
	defaultAPIBind           = "127.0.0.1:8001"
	defaultInferenceTimeout  = 120
	defaultInferenceCategory = "dress"
	defaultInferenceSeed     = 42
	defaultInferenceSteps    = 10
	defaultInferenceCFG      = 1.0
	defaultCacheTTLSeconds   = 300
	defaultQueuePollInterval = 3
	defaultJanitorEveryTicks = 20
	defaultThumbMaxDimension = 400
	defaultThumbJPEGQuality  = 70
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogRoot:  defaultCatalogRoot,
			ProcessedDir: defaultProcessedDir,
			TempCropDir:  defaultTempCropDir,
			ThumbnailDir: defaultThumbnailDir,
			QueueFile:    defaultQueueFile,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Inference: Inference{
			TimeoutSeconds: defaultInferenceTimeout,
			Category:       defaultInferenceCategory,
			Seed:           defaultInferenceSeed,
			Steps:          defaultInferenceSteps,
			CFG:            defaultInferenceCFG,
		},
		Catalog: Catalog{
			CacheTTLSeconds: defaultCacheTTLSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			JanitorEveryTicks: defaultJanitorEveryTicks,
		},
		Thumbnails: Thumbnails{
			MaxDimension: defaultThumbMaxDimension,
			JPEGQuality:  defaultThumbJPEGQuality,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
