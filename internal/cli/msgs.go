package cli

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort    = "Run a startup procedure exactly once, whatever triggers it"
	MsgRunShort     = "Start the app and fire startup triggers"
	MsgVerifyShort  = "Check that a log holds exactly the expected init markers"
	MsgConfigShort  = "Print the effective configuration"
	MsgVersionShort = "Print version information"
	MsgVersionLong  = "Print detailed version information including commit hash and build date"

	// Version output
	MsgVersionFormat = "bootonce version %s\n"
	MsgCommitFormat  = "Commit: %s\n"
	MsgBuiltFormat   = "Built:  %s\n"
)

// Long descriptions
const (
	MsgRootLong = `bootonce bootstraps the session and backend layer of the watchlist app.

Startup can be requested by several triggers: an auth-state callback, the
host signalling it is ready, a timer or an explicit call. Whichever arrives
first runs the startup procedure; every later request is a no-op.`

	MsgRunLong = `Run builds the app from the effective configuration, starts the
trigger sources named in [startup] triggers and fires the requested
triggers. It waits for the startup procedure to settle and prints a status
report. The command fails if initialization failed.

With no trigger flags a single manual request is made.`

	MsgVerifyLong = `Verify scans a log file, JSON or plain text, and counts lines whose
message contains the init marker. It fails unless the count equals the
expected value, 1 by default.

Without a LOGFILE argument the bootonce log file is used. The file is
appended to by every run; pass --run-id to check a single run.`

	MsgConfigLong = `Config prints the configuration after defaults, the user config file,
BOOTONCE_* environment variables and flags have been applied.`
)

// Examples
const (
	MsgRunExample = `  # One manual request
  bootonce run

  # Ten auth callbacks, a ready signal and a burst of 50 concurrent requests
  bootonce run --auth 10 --ready --burst 50

  # Sign in after startup and mark the watchlist data as loaded
  bootonce run --sign-in u1 --load-data

  # Expose Prometheus metrics while running
  bootonce run --metrics-addr 127.0.0.1:9464`

	MsgVerifyExample = `  bootonce --log-file /tmp/boot.log run --burst 20
  bootonce verify /tmp/boot.log

  # Only the run whose status reported this run id
  bootonce verify --run-id 0b7e2c9a-5d0f-4a43-9a59-2f1f3c7a8e11`
)
