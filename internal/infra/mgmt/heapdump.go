package mgmt

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
)

const (
	HeapFormatPprof = "pprof"
	HeapFormatRaw   = "raw"
)

// HeapDumpHandler streams a heap profile, or with ?format=raw a full runtime
// heap dump, as a file download.
type HeapDumpHandler struct {
	logger       *zap.Logger
	metrics      domain.Metrics
	processName  string
	tempDir      string
	now          func() time.Time
	writeProfile func(io.Writer) error
	writeRaw     func(*os.File) error
}

func NewHeapDumpHandler(metrics domain.Metrics, logger *zap.Logger) *HeapDumpHandler {
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &HeapDumpHandler{
		logger:       loggerOrNop(logger),
		metrics:      metrics,
		processName:  ProcessName(os.Args[0]),
		now:          time.Now,
		writeProfile: writeHeapProfile,
		writeRaw:     writeRawHeapDump,
	}
}

func writeHeapProfile(w io.Writer) error {
	runtime.GC()
	return pprof.Lookup("heap").WriteTo(w, 0)
}

func writeRawHeapDump(f *os.File) error {
	debug.WriteHeapDump(f.Fd())
	return nil
}

// Filename returns the download name for a dump taken at now.
func (h *HeapDumpHandler) Filename(now time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", h.processName, now.UTC().Format("2006-01-02T15-04-05"), ext)
}

func (h *HeapDumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = HeapFormatPprof
	}
	logger := telemetry.LoggerWithRequest(r.Context(), h.logger).With(
		telemetry.EndpointField(domain.EndpointHeapDump),
		zap.String("format", format),
	)
	logger.Info("heap dump requested", telemetry.EventField(telemetry.EventDumpStart))

	var err error
	switch format {
	case HeapFormatPprof:
		err = h.servePprof(w)
	case HeapFormatRaw:
		err = h.serveRaw(w, logger)
	default:
		writeError(w, domain.E(domain.CodeInvalidArgument, "mgmt.HeapDump", fmt.Sprintf("unknown format %q", format), domain.ErrInvalidRequest))
		return
	}
	h.metrics.ObserveDump(domain.EndpointHeapDump, err)
	if err != nil {
		logger.Error("heap dump failed", telemetry.EventField(telemetry.EventDumpFailure), zap.Error(err))
		http.Error(w, "Failed to generate heap dump", http.StatusInternalServerError)
		return
	}
	logger.Info("heap dump sent", telemetry.EventField(telemetry.EventDumpSuccess))
}

func (h *HeapDumpHandler) servePprof(w http.ResponseWriter) error {
	var buf bytes.Buffer
	if err := h.writeProfile(&buf); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDumpFailed, err)
	}
	setAttachmentHeaders(w, h.Filename(h.now(), "pprof"), int64(buf.Len()))
	_, _ = w.Write(buf.Bytes())
	return nil
}

func (h *HeapDumpHandler) serveRaw(w http.ResponseWriter, logger *zap.Logger) error {
	filename := h.Filename(h.now(), "heapdump")
	f, err := os.CreateTemp(h.tempDir, "*-"+filename)
	if err != nil {
		return fmt.Errorf("%w: create temporary file: %w", domain.ErrDumpFailed, err)
	}
	defer func() {
		_ = f.Close()
		if err := os.Remove(f.Name()); err != nil {
			logger.Error("failed to delete temporary file", zap.String("file", f.Name()), zap.Error(err))
			return
		}
		logger.Debug("deleted temporary file", zap.String("file", f.Name()))
	}()

	if err := h.writeRaw(f); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDumpFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDumpFailed, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDumpFailed, err)
	}
	setAttachmentHeaders(w, filename, info.Size())
	_, _ = io.Copy(w, f)
	return nil
}

func setAttachmentHeaders(w http.ResponseWriter, filename string, size int64) {
	w.Header().Set("Content-Type", TypeBinary)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(size))
	w.WriteHeader(http.StatusOK)
}
