package cfg

type Cfg struct {
	// Local storage configuration
	DBPath  string
	DataDir string

	// Remote record store configuration
	RemoteEndpoint string
	RemoteUsername string
	RemoteToken    string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	RefreshInterval   int
	StatusWatermark   int
	RetentionDays     int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
