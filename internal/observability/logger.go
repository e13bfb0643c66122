package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithRepository adds repository path context to logger.
func (l *Logger) WithRepository(path string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("repository", path).Logger(),
	}
}

// WithArchive adds archive_id context to logger.
func (l *Logger) WithArchive(archiveID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("archive_id", archiveID).Logger(),
	}
}

// WithObject adds object path context to logger.
func (l *Logger) WithObject(objectPath string, size int64) *Logger {
	return &Logger{
		logger: l.logger.With().
			Str("object_path", objectPath).
			Int64("object_size", size).
			Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// BackupStarted logs the start of an archive backup.
func (l *Logger) BackupStarted(archiveName string, objectCount int) {
	l.logger.Info().
		Str("archive_name", archiveName).
		Int("object_count", objectCount).
		Msg("backup started")
}

// ChunkWritten logs a chunk write, including whether it deduplicated against
// an existing entry.
func (l *Logger) ChunkWritten(chunkID string, size int, deduped bool) {
	l.logger.Debug().
		Str("chunk_id", chunkID).
		Int("size", size).
		Bool("deduped", deduped).
		Msg("chunk written")
}

// BackupProgress logs backup progress.
func (l *Logger) BackupProgress(objectsDone, objectsTotal int, bytesWritten int64, elapsed time.Duration) {
	progress := float64(objectsDone) / float64(objectsTotal) * 100.0

	l.logger.Info().
		Int("objects_done", objectsDone).
		Int("objects_total", objectsTotal).
		Float64("progress_percent", progress).
		Int64("bytes_written", bytesWritten).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Msg("backup progress")
}

// BackupCompleted logs backup completion.
func (l *Logger) BackupCompleted(archiveID string, objectCount int, duration time.Duration, bytesWritten int64) {
	l.logger.Info().
		Str("archive_id", archiveID).
		Int("object_count", objectCount).
		Float64("duration_seconds", duration.Seconds()).
		Int64("bytes_written", bytesWritten).
		Msg("backup completed successfully")
}

// ChunkVerifyFailed logs a chunk integrity failure during verification.
func (l *Logger) ChunkVerifyFailed(chunkID string, status string, detail string) {
	l.logger.Error().
		Str("chunk_id", chunkID).
		Str("status", status).
		Str("detail", detail).
		Msg("chunk verification failed")
}

// LockAcquired logs a backend lock acquisition.
func (l *Logger) LockAcquired(kind string, waited time.Duration) {
	l.logger.Info().
		Str("lock_kind", kind).
		Float64("waited_seconds", waited.Seconds()).
		Msg("backend lock acquired")
}

// LockStale logs detection and recovery of a stale lock.
func (l *Logger) LockStale(kind string, holderPID int) {
	l.logger.Warn().
		Str("lock_kind", kind).
		Int("holder_pid", holderPID).
		Msg("stale lock detected, stealing")
}

// RemoteConnectionEstablished logs a remote backend connection.
func (l *Logger) RemoteConnectionEstablished(remoteAddr string) {
	l.logger.Info().
		Str("remote_addr", remoteAddr).
		Msg("remote backend connection established")
}

// RemoteConnectionFailed logs a remote backend connection failure.
func (l *Logger) RemoteConnectionFailed(remoteAddr string, err error) {
	l.logger.Error().
		Str("remote_addr", remoteAddr).
		Err(err).
		Msg("remote backend connection failed")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
