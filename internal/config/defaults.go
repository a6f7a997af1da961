package config

const (
	defaultLogDir         = "~/.local/share/qupload/logs"
	defaultHistoryDB      = "~/.local/share/qupload/history.db"
	defaultMaxConcurrent  = 3
	defaultAutoRetries    = 0
	defaultRequestTimeout = 120
	defaultMaxFileSizeMB  = 50
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// defaultAcceptedTypes covers the stimulus formats study builders accept:
// images, audio, video, and PDF documents.
var defaultAcceptedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"audio/mpeg",
	"audio/wav",
	"video/mp4",
	"video/webm",
	"application/pdf",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Upload: Upload{
			MaxConcurrent:  defaultMaxConcurrent,
			AutoRetries:    defaultAutoRetries,
			RequestTimeout: defaultRequestTimeout,
		},
		Policy: Policy{
			AcceptedTypes: append([]string(nil), defaultAcceptedTypes...),
			MaxFileSizeMB: defaultMaxFileSizeMB,
		},
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
